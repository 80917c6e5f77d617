// Package types defines the shared types used across all Assessly packages.
//
// These types form the lingua franca between the media gateway, the realtime
// provider layer, the playback scheduler, and the evaluation pipeline. They are
// intentionally minimal — each package defines its own domain types, but
// cross-cutting data structures live here to avoid circular imports.
package types

import (
	"fmt"
	"strings"
	"time"
)

// CandidateProfile identifies the person being interviewed. Collected during
// registration and carried through the session so the evaluation report and
// delivery channels can reference the candidate.
type CandidateProfile struct {
	// Name is the candidate's full name.
	Name string `json:"name" yaml:"name"`

	// Email is the candidate's contact email.
	Email string `json:"email" yaml:"email"`

	// Phone is the candidate's contact phone number.
	Phone string `json:"phone" yaml:"phone"`
}

// Validate reports whether the profile carries the fields required to start
// an interview and deliver its results.
func (p CandidateProfile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("candidate profile: name is required")
	}
	if strings.TrimSpace(p.Email) == "" {
		return fmt.Errorf("candidate profile: email is required")
	}
	return nil
}

// Role identifies which party produced a transcript line.
type Role string

const (
	// RoleAI marks lines spoken by the interviewer agent.
	RoleAI Role = "AI"

	// RoleUser marks lines spoken by the candidate.
	RoleUser Role = "User"
)

// TranscriptLine is a single finalized utterance in the interview transcript.
// Lines are appended in the order their transcription fragments complete, so
// the transcript reflects conversational order as observed, not wall-clock
// speech order.
type TranscriptLine struct {
	// Role identifies the speaker.
	Role Role `json:"role"`

	// Text is the complete utterance text.
	Text string `json:"text"`

	// Timestamp is when the line was committed, relative to session start.
	Timestamp time.Duration `json:"timestamp"`
}

// SessionResult is the structured outcome of an interview evaluation.
type SessionResult struct {
	// Score is the overall technical competency score, 0–100.
	Score int `json:"score"`

	// Feedback is a qualitative summary of the candidate's performance.
	Feedback string `json:"feedback"`

	// Strengths lists observed technical strengths.
	Strengths []string `json:"strengths"`

	// Weaknesses lists observed areas for improvement.
	Weaknesses []string `json:"weaknesses"`

	// QuestionsAnswered counts the distinct questions the candidate engaged with.
	QuestionsAnswered int `json:"questionsAnswered"`
}

// Validate checks the structural invariants the evaluation model must honor.
func (r SessionResult) Validate() error {
	if r.Score < 0 || r.Score > 100 {
		return fmt.Errorf("session result: score %d out of range [0,100]", r.Score)
	}
	if strings.TrimSpace(r.Feedback) == "" {
		return fmt.Errorf("session result: feedback is empty")
	}
	if r.QuestionsAnswered < 0 {
		return fmt.Errorf("session result: questionsAnswered %d is negative", r.QuestionsAnswered)
	}
	return nil
}

// Stage enumerates the lifecycle phases of an interview.
type Stage int

const (
	// StageRegistration is the initial phase where the candidate profile is collected.
	StageRegistration Stage = iota

	// StagePreparation covers device setup before the live session starts.
	StagePreparation

	// StageInterview is the live conversational phase.
	StageInterview

	// StageCompleted means the interview ended and evaluation ran (or failed).
	StageCompleted
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageRegistration:
		return "REGISTRATION"
	case StagePreparation:
		return "PREPARATION"
	case StageInterview:
		return "INTERVIEW"
	case StageCompleted:
		return "COMPLETED"
	default:
		return "UNKNOWN"
	}
}
