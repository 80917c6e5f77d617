// Package evaluate turns a frozen interview transcript into a structured
// [types.SessionResult].
//
// The [Scorer] renders the transcript as plain "Role: text" lines and sends
// it to an [eval.Provider] under a strict grading rubric. The model must
// answer with a single JSON object matching the result schema; anything else
// is a scoring failure. Unlike a transcript display glitch, a malformed or
// out-of-range evaluation cannot be papered over — downstream consumers have
// to be able to trust every field — so parse and validation errors are
// surfaced to the caller instead of being silently repaired.
package evaluate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/assessly-ai/assessly/pkg/provider/eval"
	"github.com/assessly-ai/assessly/pkg/types"
)

const (
	defaultTemperature = 0.2
	defaultMaxTokens   = 1024
)

// systemPrompt fixes the grading persona and rubric. The transcript and
// candidate name are supplied per request.
const systemPrompt = `You are a highly senior AWS Solutions Architect evaluating an 8-minute mock technical interview.

STRICT GRADING RUBRIC:
1. Deep knowledge of VPC, Subnets, Transit Gateway, Route 53, Direct Connect, and Hybrid architectures.
2. Score (0-100): Be very strict. Award points only for specific, accurate technical answers.
3. Penalty: If the candidate avoided questions or was vague, assign 0 for that section.
4. Strengths: List areas where they showed senior-level expertise.
5. Weaknesses: List every technical gap discovered.

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "score": <0-100>,
  "feedback": "<overall assessment>",
  "strengths": ["<area>"],
  "weaknesses": ["<gap>"],
  "questionsAnswered": <count>
}`

// resultWire is the JSON shape the model must return. Score and
// QuestionsAnswered are pointers so that absent fields can be told apart
// from legitimate zeroes.
type resultWire struct {
	Score             *float64 `json:"score"`
	Feedback          string   `json:"feedback"`
	Strengths         []string `json:"strengths"`
	Weaknesses        []string `json:"weaknesses"`
	QuestionsAnswered *int     `json:"questionsAnswered"`
}

// Option is a functional option for configuring a [Scorer].
type Option func(*Scorer)

// WithTemperature sets the sampling temperature. Lower values produce more
// reproducible grades. Default: 0.2.
func WithTemperature(temp float64) Option {
	return func(s *Scorer) {
		s.temperature = temp
	}
}

// Scorer grades interview transcripts with an [eval.Provider].
// It is stateless apart from its configuration and safe for concurrent use.
type Scorer struct {
	provider    eval.Provider
	candidate   string
	temperature float64
}

// New returns a [Scorer] for the named candidate backed by provider.
// The candidate name appears in the grading request so the written feedback
// can address them directly.
func New(provider eval.Provider, candidate string, opts ...Option) *Scorer {
	s := &Scorer{
		provider:    provider,
		candidate:   candidate,
		temperature: defaultTemperature,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Score sends the transcript for grading and returns the validated result.
//
// Provider errors, unparseable responses and schema violations are all
// returned as errors; Score never fabricates a result.
func (s *Scorer) Score(ctx context.Context, lines []types.TranscriptLine) (*types.SessionResult, error) {
	resp, err := s.provider.Complete(ctx, eval.Request{
		SystemPrompt: systemPrompt,
		Prompt:       buildPrompt(s.candidate, lines),
		Temperature:  s.temperature,
		MaxTokens:    defaultMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluate: complete: %w", err)
	}

	result, err := parseResult(resp.Content)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// buildPrompt renders the candidate header and the transcript as one
// "Role: text" line per utterance.
func buildPrompt(candidate string, lines []types.TranscriptLine) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Evaluate this interview transcript for %s.\n\nTRANSCRIPT DATA:\n", candidate)
	for i, line := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(string(line.Role))
		sb.WriteString(": ")
		sb.WriteString(line.Text)
	}
	return sb.String()
}

// parseResult unmarshals the model output into a [types.SessionResult],
// stripping markdown code fences first. Missing required fields and
// out-of-range values are errors.
func parseResult(content string) (*types.SessionResult, error) {
	cleaned := stripMarkdown(content)

	var w resultWire
	if err := json.Unmarshal([]byte(cleaned), &w); err != nil {
		return nil, fmt.Errorf("evaluate: parse response: %w", err)
	}
	if w.Score == nil || w.QuestionsAnswered == nil {
		return nil, fmt.Errorf("evaluate: response missing required fields")
	}

	result := &types.SessionResult{
		Score:             int(*w.Score),
		Feedback:          strings.TrimSpace(w.Feedback),
		Strengths:         w.Strengths,
		Weaknesses:        w.Weaknesses,
		QuestionsAnswered: *w.QuestionsAnswered,
	}
	if result.Strengths == nil {
		result.Strengths = []string{}
	}
	if result.Weaknesses == nil {
		result.Weaknesses = []string{}
	}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("evaluate: invalid result: %w", err)
	}
	return result, nil
}

// stripMarkdown removes optional markdown code fences (```json ... ```) that
// some models wrap around JSON output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
