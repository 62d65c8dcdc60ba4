package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/RoastedBrotato/audio-translator/internal/metrics"
	"github.com/RoastedBrotato/audio-translator/internal/protocol"
	"github.com/RoastedBrotato/audio-translator/internal/speaker"
	"github.com/RoastedBrotato/audio-translator/internal/vad"
)

// resultRetention bounds how long a finalized transcript stays retrievable.
// Results and their speaker trackers are evicted together.
const resultRetention = 1 * time.Hour

// storedResult pairs a finalization result with its storage time for the
// retention sweep.
type storedResult struct {
	result   *Result
	storedAt time.Time
}

// Registry is the process-wide map from session id to live session state,
// plus the stored finalization results and per-session speaker trackers.
//
// The registry lock is independent of any session's lock: registry methods
// never call into a session while holding it, so the lock ordering cannot
// deadlock.
type Registry struct {
	cfg         Config
	gate        *vad.Gate
	transcriber Transcriber
	finalizer   *Finalizer
	newTracker  func() *speaker.Tracker
	timeout     time.Duration
	metrics     *metrics.Metrics
	logger      *slog.Logger

	sessions map[string]*Session
	results  map[string]*storedResult
	trackers map[string]*speaker.Tracker
	mu       sync.RWMutex

	ctx     context.Context
	cancel  context.CancelFunc
	cleanup chan struct{}
}

// NewRegistry creates a session registry and starts its cleanup routine.
// newTracker builds a fresh speaker tracker for each new session id; the
// metrics handle may be nil (tests).
func NewRegistry(cfg Config, gate *vad.Gate, transcriber Transcriber, finalizer *Finalizer, newTracker func() *speaker.Tracker, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Registry {
	ctx, cancel := context.WithCancel(context.Background())

	r := &Registry{
		cfg:         cfg,
		gate:        gate,
		transcriber: transcriber,
		finalizer:   finalizer,
		newTracker:  newTracker,
		timeout:     timeout,
		metrics:     m,
		logger:      logger,
		sessions:    make(map[string]*Session),
		results:     make(map[string]*storedResult),
		trackers:    make(map[string]*speaker.Tracker),
		ctx:         ctx,
		cancel:      cancel,
		cleanup:     make(chan struct{}),
	}

	go r.startCleanupRoutine()

	return r
}

// CreateSession registers a new streaming session and starts its evaluation
// loop. A session id already in use is rejected.
func (r *Registry) CreateSession(params protocol.StreamParams, emitter Emitter) (*Session, error) {
	s := New(params.SessionID, params.Language, r.cfg, r.gate, r.transcriber, emitter, r.metrics, r.logger)

	r.mu.Lock()
	if _, exists := r.sessions[params.SessionID]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("session %s already active", params.SessionID)
	}
	r.sessions[params.SessionID] = s
	active := len(r.sessions)
	r.mu.Unlock()

	s.Start(r.ctx)

	if r.metrics != nil {
		r.metrics.RecordSessionCreated()
		r.metrics.SetActiveSessions(active)
	}

	r.logger.Info("Session created",
		slog.String("session_id", params.SessionID),
		slog.String("language", params.Language),
		slog.Int("active_sessions", active),
	)

	return s, nil
}

// GetSession retrieves a live session.
func (r *Registry) GetSession(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// CloseSession removes the session from the registry, stops its evaluation
// loop and launches the one-shot finalization pass as an independent unit so
// a slow final pass never blocks new connections.
func (r *Registry) CloseSession(s *Session) {
	r.mu.Lock()
	_, exists := r.sessions[s.ID]
	delete(r.sessions, s.ID)
	active := len(r.sessions)
	r.mu.Unlock()

	if !exists {
		return
	}

	s.Stop()

	duration := time.Since(s.StartTime)
	if r.metrics != nil {
		r.metrics.RecordSessionDestroyed(duration.Seconds())
		r.metrics.SetActiveSessions(active)
	}

	r.logger.Info("Session closed",
		slog.String("session_id", s.ID),
		slog.Duration("duration", duration),
		slog.Int("active_sessions", active),
	)

	go r.finalizeSession(s)
}

// finalizeSession runs the post-disconnect full-session pass at most once
// per session. A failed pass leaves no stored result: retrieval reports
// "not found", never a partial result.
func (r *Registry) finalizeSession(s *Session) {
	s.finalizeOnce.Do(func() {
		samples := s.RollingAudio()

		result, err := r.finalizer.Process(r.ctx, samples, s.Language, r.Tracker(s.ID), 0, 0, s.ID)
		if err != nil {
			r.logger.Warn("Session finalization failed, no result stored",
				slog.String("session_id", s.ID),
				slog.String("error", err.Error()),
			)
			return
		}

		r.mu.Lock()
		r.results[s.ID] = &storedResult{result: result, storedAt: time.Now()}
		r.mu.Unlock()

		r.logger.Info("Session finalized",
			slog.String("session_id", s.ID),
			slog.Int("segments", len(result.Segments)),
			slog.Int("num_speakers", result.NumSpeakers),
			slog.Float64("audio_duration", result.Duration),
		)
	})
}

// GetResult retrieves a stored finalization result. The second return is
// false both for unknown ids and for sessions still processing.
func (r *Registry) GetResult(id string) (*Result, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.results[id]
	if !ok {
		return nil, false
	}
	return stored.result, true
}

// Tracker returns the speaker tracker for a session id, creating it on first
// use. Trackers outlive their session so repeated batch calls with the same
// id keep a consistent speaker numbering.
func (r *Registry) Tracker(id string) *speaker.Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.trackers[id]; ok {
		return t
	}
	t := r.newTracker()
	r.trackers[id] = t
	return t
}

// ProcessBatch runs the finalization pipeline over one complete audio buffer
// outside any live session. A non-empty sessionID reuses that id's speaker
// tracker across calls.
func (r *Registry) ProcessBatch(ctx context.Context, samples []float32, language string, minSpeakers, maxSpeakers int, sessionID string) (*Result, error) {
	var tracker *speaker.Tracker
	if sessionID != "" {
		tracker = r.Tracker(sessionID)
	}
	return r.finalizer.Process(ctx, samples, language, tracker, minSpeakers, maxSpeakers, sessionID)
}

// ActiveSessionCount returns the number of live sessions.
func (r *Registry) ActiveSessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// GetAllSessionInfo returns monitoring info for every live session.
func (r *Registry) GetAllSessionInfo() []Info {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.GetInfo())
	}
	return infos
}

// Stop gracefully shuts down the registry: the cleanup routine, then every
// live session loop. Pending finalizations are abandoned.
func (r *Registry) Stop() {
	r.logger.Info("Stopping session registry...")

	r.cancel()
	<-r.cleanup

	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Stop()
	}

	r.logger.Info("Session registry stopped",
		slog.Int("sessions_stopped", len(sessions)),
	)
}

// startCleanupRoutine reaps sessions that have been idle for too long.
func (r *Registry) startCleanupRoutine() {
	defer close(r.cleanup)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	r.logger.Info("Session cleanup routine started",
		slog.Duration("timeout", r.timeout),
	)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Info("Session cleanup routine stopping")
			return
		case <-ticker.C:
			r.cleanupExpiredSessions()
			r.cleanupExpiredResults()
		}
	}
}

func (r *Registry) cleanupExpiredSessions() {
	now := time.Now()

	r.mu.RLock()
	expired := make([]*Session, 0)
	for _, s := range r.sessions {
		if now.Sub(s.LastActivity()) > r.timeout {
			expired = append(expired, s)
		}
	}
	r.mu.RUnlock()

	if len(expired) == 0 {
		return
	}

	r.logger.Info("Cleaning up expired sessions",
		slog.Int("expired_count", len(expired)),
	)

	for _, s := range expired {
		r.CloseSession(s)
	}
}

// cleanupExpiredResults evicts stored transcripts past the retention window,
// along with the speaker tracker tied to the same session id.
func (r *Registry) cleanupExpiredResults() {
	now := time.Now()

	r.mu.Lock()
	evicted := 0
	for id, stored := range r.results {
		if now.Sub(stored.storedAt) > resultRetention {
			delete(r.results, id)
			delete(r.trackers, id)
			evicted++
		}
	}
	r.mu.Unlock()

	if evicted > 0 {
		r.logger.Info("Evicted expired results",
			slog.Int("evicted_count", evicted),
		)
	}
}
