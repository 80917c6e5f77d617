// Package gateway is the HTTP surface of the interview service.
//
// It exposes candidate registration, the media WebSocket that runs the live
// session, and the operational endpoints (health, readiness, metrics). Each
// accepted media connection gets its own session controller; the gateway's
// [Manager] enforces one live connection per registered interview.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/assessly-ai/assessly/internal/evaluate"
	"github.com/assessly-ai/assessly/internal/health"
	"github.com/assessly-ai/assessly/internal/observe"
	"github.com/assessly-ai/assessly/internal/session"
	"github.com/assessly-ai/assessly/pkg/media/socket"
	"github.com/assessly-ai/assessly/pkg/provider/eval"
	"github.com/assessly-ai/assessly/pkg/provider/live"
	"github.com/assessly-ai/assessly/pkg/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxRegisterBody caps the registration request body size.
const maxRegisterBody = 1 << 20

// Config holds the per-session settings the gateway hands to each controller.
type Config struct {
	// AllowedOrigins restricts which browser origins may open the media
	// WebSocket. Empty means same-origin only.
	AllowedOrigins []string

	// Instructions is the interviewer persona. A %s placeholder receives the
	// candidate's name.
	Instructions string

	// Voice is the interviewer's synthesised voice.
	Voice string

	// Duration is the interview length.
	Duration time.Duration

	// SnapshotInterval is how often a camera snapshot reaches the AI peer.
	SnapshotInterval time.Duration
}

// Server routes HTTP traffic to the interview subsystems.
type Server struct {
	mu      sync.RWMutex
	cfg     Config
	live    live.Provider
	eval    eval.Provider
	relay   session.Relay
	metrics *observe.Metrics
	health  *health.Handler
	manager *Manager
}

// New creates a Server. relay may be nil when chat delivery is disabled;
// healthHandler may be nil, in which case a checker-less handler is used.
func New(cfg Config, liveProv live.Provider, evalProv eval.Provider, relay session.Relay, metrics *observe.Metrics, healthHandler *health.Handler) *Server {
	if healthHandler == nil {
		healthHandler = health.New()
	}
	return &Server{
		cfg:     cfg,
		live:    liveProv,
		eval:    evalProv,
		relay:   relay,
		metrics: metrics,
		health:  healthHandler,
		manager: NewManager(),
	}
}

// Manager returns the interview registry, mainly so shutdown can stop live
// sessions.
func (s *Server) Manager() *Manager { return s.manager }

// SetConfig replaces the session settings. Sessions already running keep the
// settings they started with; only new joins see the update.
func (s *Server) SetConfig(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *Server) config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Handler builds the full route table.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /api/interviews", s.handleRegister)
	s.health.Register(api)
	api.Handle("GET /metrics", promhttp.Handler())

	root := http.NewServeMux()
	// The WebSocket upgrade needs the raw ResponseWriter; the recording
	// middleware's wrapper hides the Hijacker it requires.
	root.HandleFunc("GET /interviews/{id}/media", s.handleMedia)
	root.Handle("/", observe.Middleware(s.metrics)(api))
	return root
}

// registerResponse is the join payload returned to the browser after
// registration.
type registerResponse struct {
	ID              string `json:"id"`
	MediaPath       string `json:"mediaPath"`
	DurationSeconds int    `json:"durationSeconds"`
}

// handleRegister validates the candidate profile and issues a session ID.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var profile types.CandidateProfile
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRegisterBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&profile); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("malformed registration: %v", err))
		return
	}

	info, err := s.manager.Register(profile)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	slog.Info("candidate registered", "id", info.ID, "candidate", info.Profile.Email)
	writeJSON(w, http.StatusCreated, registerResponse{
		ID:              info.ID,
		MediaPath:       "/interviews/" + info.ID + "/media",
		DurationSeconds: int(s.config().Duration.Seconds()),
	})
}

// handleMedia upgrades the request to the media WebSocket and runs the full
// interview session on the handler goroutine. The handler returns only when
// the session is terminal.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	profile, err := s.manager.Claim(id)
	switch {
	case errors.Is(err, ErrUnknownInterview):
		writeError(w, http.StatusNotFound, "unknown interview")
		return
	case errors.Is(err, ErrInterviewBusy):
		writeError(w, http.StatusConflict, "interview already in progress")
		return
	case errors.Is(err, ErrInterviewDone):
		writeError(w, http.StatusConflict, "interview already completed")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	cfg := s.config()
	conn, err := socket.Accept(w, r, &socket.AcceptOptions{OriginPatterns: cfg.AllowedOrigins})
	if err != nil {
		// The candidate can fix their devices and rejoin with the same ID.
		s.manager.Release(id)
		slog.Warn("media accept failed", "id", id, "err", err)
		return
	}

	instructions := cfg.Instructions
	if strings.Contains(instructions, "%s") {
		instructions = fmt.Sprintf(instructions, profile.Name)
	}

	var relay session.Relay
	if s.relay != nil {
		relay = &timedRelay{inner: s.relay, metrics: s.metrics}
	}

	var wentLive atomic.Bool
	ctrl := session.NewController(session.ControllerConfig{
		Profile:  profile,
		Source:   conn,
		Provider: s.live,
		Scorer: &timedScorer{
			inner:   evaluate.New(s.eval, profile.Name),
			metrics: s.metrics,
		},
		Relay:            relay,
		Instructions:     instructions,
		Voice:            cfg.Voice,
		Duration:         cfg.Duration,
		SnapshotInterval: cfg.SnapshotInterval,
		Hooks: session.Hooks{
			OnStateChange: func(st session.State) {
				if st == session.StateLive && wentLive.CompareAndSwap(false, true) {
					s.metrics.SessionsStarted.Add(r.Context(), 1)
					s.metrics.ActiveSessions.Add(r.Context(), 1)
				}
			},
		},
	})
	s.manager.Attach(id, ctrl)

	slog.Info("interview session starting", "id", id, "candidate", profile.Email)
	runErr := ctrl.Run(r.Context())
	if runErr != nil {
		// A failed session delivered nothing; the candidate may rejoin and
		// retry with the same registration.
		s.manager.Release(id)
	} else {
		s.manager.Finish(id)
	}

	ctx := r.Context()
	if wentLive.Load() {
		s.metrics.ActiveSessions.Add(ctx, -1)
	}
	outcome := "complete"
	if runErr != nil {
		outcome = "failed"
	}
	s.metrics.RecordSessionEnded(ctx, ctrl.EndTrigger(), outcome)

	if runErr != nil {
		slog.Warn("interview session ended", "id", id, "outcome", outcome, "trigger", ctrl.EndTrigger(), "err", runErr)
		return
	}
	result := ctrl.Result()
	slog.Info("interview session ended", "id", id, "outcome", outcome, "trigger", ctrl.EndTrigger(), "score", result.Score)
}

// timedScorer records evaluation latency around the wrapped scorer.
type timedScorer struct {
	inner   session.Scorer
	metrics *observe.Metrics
}

func (t *timedScorer) Score(ctx context.Context, lines []types.TranscriptLine) (*types.SessionResult, error) {
	start := time.Now()
	result, err := t.inner.Score(ctx, lines)
	t.metrics.EvaluationDuration.Record(ctx, time.Since(start).Seconds())
	return result, err
}

// timedRelay records delivery outcome and latency around the wrapped relay.
type timedRelay struct {
	inner   session.Relay
	metrics *observe.Metrics
}

func (t *timedRelay) Deliver(ctx context.Context, profile types.CandidateProfile, result *types.SessionResult, lines []types.TranscriptLine) error {
	start := time.Now()
	err := t.inner.Deliver(ctx, profile, result, lines)
	status := "ok"
	if err != nil {
		status = "error"
	}
	t.metrics.RecordRelayDelivery(ctx, status, time.Since(start))
	return err
}

// errorResponse is the JSON body for non-2xx API responses.
type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("gateway: encode response failed", "err", err)
	}
}
