package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/assessly-ai/assessly/internal/session"
	"github.com/assessly-ai/assessly/pkg/types"
	"github.com/google/uuid"
)

// registrationTTL is how long an unclaimed registration survives before it is
// pruned. Candidates who register but never join their media session do not
// accumulate state forever.
const registrationTTL = time.Hour

// Manager errors returned by lookup and claim operations.
var (
	ErrUnknownInterview = errors.New("gateway: unknown interview")
	ErrInterviewBusy    = errors.New("gateway: interview already in progress")
	ErrInterviewDone    = errors.New("gateway: interview already completed")
)

// Info is an immutable snapshot of one tracked interview.
type Info struct {
	ID        string
	Profile   types.CandidateProfile
	CreatedAt time.Time
	Stage     types.Stage
}

// interview is the manager's mutable record. All fields are guarded by the
// manager's mutex.
type interview struct {
	info Info
	ctrl *session.Controller
}

// Manager tracks every registered interview from registration through
// completion. Each interview may be claimed for a media session at most once;
// a second join attempt while the first is live is rejected. All exported
// methods are safe for concurrent use.
type Manager struct {
	mu         sync.Mutex
	interviews map[string]*interview
	now        func() time.Time
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{
		interviews: make(map[string]*interview),
		now:        time.Now,
	}
}

// Register validates the candidate profile and creates a new interview record
// in the registration stage. The returned snapshot carries the generated
// session ID.
func (m *Manager) Register(profile types.CandidateProfile) (Info, error) {
	if err := profile.Validate(); err != nil {
		return Info{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()

	info := Info{
		ID:        uuid.NewString(),
		Profile:   profile,
		CreatedAt: m.now(),
		Stage:     types.StageRegistration,
	}
	m.interviews[info.ID] = &interview{info: info}
	return info, nil
}

// Lookup returns a snapshot of the interview with the given ID.
func (m *Manager) Lookup(id string) (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	itv, ok := m.interviews[id]
	if !ok {
		return Info{}, false
	}
	return itv.info, true
}

// Claim transitions an interview from registration to the live stage and
// returns its candidate profile. A claimed interview cannot be claimed again:
// the browser holds exactly one media connection per session.
func (m *Manager) Claim(id string) (types.CandidateProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	itv, ok := m.interviews[id]
	if !ok {
		return types.CandidateProfile{}, ErrUnknownInterview
	}
	switch itv.info.Stage {
	case types.StageInterview:
		return types.CandidateProfile{}, ErrInterviewBusy
	case types.StageCompleted:
		return types.CandidateProfile{}, ErrInterviewDone
	}
	itv.info.Stage = types.StageInterview
	return itv.info.Profile, nil
}

// Attach binds the running controller to a claimed interview so shutdown can
// reach it.
func (m *Manager) Attach(id string, ctrl *session.Controller) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if itv, ok := m.interviews[id]; ok {
		itv.ctrl = ctrl
	}
}

// Release returns a claimed interview to the registration stage. Used when
// the media handshake fails before a controller ever ran, so the candidate
// can retry device setup with the same session ID.
func (m *Manager) Release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if itv, ok := m.interviews[id]; ok && itv.info.Stage == types.StageInterview {
		itv.info.Stage = types.StageRegistration
		itv.ctrl = nil
	}
}

// Finish marks an interview completed and drops its controller reference.
func (m *Manager) Finish(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if itv, ok := m.interviews[id]; ok {
		itv.info.Stage = types.StageCompleted
		itv.ctrl = nil
	}
}

// Active returns the number of interviews currently in the live stage.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, itv := range m.interviews {
		if itv.info.Stage == types.StageInterview {
			n++
		}
	}
	return n
}

// StopAll requests an early finish from every live controller and waits for
// each to reach a terminal state. Called during graceful shutdown.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	var ctrls []*session.Controller
	for _, itv := range m.interviews {
		if itv.info.Stage == types.StageInterview && itv.ctrl != nil {
			ctrls = append(ctrls, itv.ctrl)
		}
	}
	m.mu.Unlock()

	var errs []error
	for _, ctrl := range ctrls {
		if ctrl.State() != session.StateLive {
			continue
		}
		if err := ctrl.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("gateway: stop session: %w", err))
		}
	}
	return errors.Join(errs...)
}

// pruneLocked drops stale registrations that were never claimed. Caller must
// hold the mutex.
func (m *Manager) pruneLocked() {
	cutoff := m.now().Add(-registrationTTL)
	for id, itv := range m.interviews {
		if itv.info.Stage == types.StageRegistration && itv.info.CreatedAt.Before(cutoff) {
			delete(m.interviews, id)
		}
	}
}
