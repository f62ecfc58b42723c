package exam

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/examprep/internal/model"
)

// DefaultDuration is used when neither the exam nor the config sets one.
const DefaultDuration = 60 * time.Minute

// DefaultRetention is how long a completed session stays in the registry
// when the config does not say.
const DefaultRetention = 10 * time.Minute

// Registry holds the live sessions of the server.
type Registry struct {
	gw        Gateway
	submit    SubmitFunc
	cfg       model.ExamConfig
	newTicker TickerFunc
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry returns a registry whose sessions load questions from gw and
// submit through a Submitter on gw.
func NewRegistry(gw Gateway, cfg model.ExamConfig) *Registry {
	return &Registry{
		gw:        gw,
		submit:    NewSubmitter(gw).Submit,
		cfg:       cfg,
		newTicker: NewTimeTicker,
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}
}

// SetTicker replaces the countdown ticker of sessions opened afterwards.
func (r *Registry) SetTicker(f TickerFunc) { r.newTicker = f }

// SetClock replaces the clock of the registry and of sessions opened
// afterwards.
func (r *Registry) SetClock(now func() time.Time) { r.now = now }

func (r *Registry) retention() time.Duration {
	if r.cfg.Retention > 0 {
		return r.cfg.Retention
	}
	return DefaultRetention
}

func (r *Registry) duration(e model.Exam) time.Duration {
	switch {
	case e.DurationSec > 0:
		return time.Duration(e.DurationSec) * time.Second
	case r.cfg.DefaultDuration > 0:
		return r.cfg.DefaultDuration
	}
	return DefaultDuration
}

// Open loads a shuffled copy of an exam and starts a session for userID.
func (r *Registry) Open(ctx context.Context, userID, examID int64) (*Session, error) {
	r.Sweep()
	e, err := r.gw.GetExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam %d: %w", examID, err)
	}
	questions, err := r.gw.GetShuffledQuestions(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("load questions of exam %d: %w", examID, err)
	}

	s := NewSession(newSessionID(), userID, e, r.duration(e), r.submit,
		WithTicker(r.newTicker), WithClock(r.now))
	if err := s.Start(questions); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()
	return s, nil
}

// Get returns a live session.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove closes a session and forgets it.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Sweep drops sessions that completed longer ago than the retention period
// and returns how many it removed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.retention())
	var expired []*Session
	r.mu.Lock()
	for id, s := range r.sessions {
		if at, ok := s.CompletedAt(); ok && at.Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()
	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		slog.Debug("dropped completed exam sessions", "count", len(expired))
	}
	return len(expired)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll closes every session. Unsubmitted answers are discarded.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
	if len(sessions) > 0 {
		slog.Info("closed exam sessions", "count", len(sessions))
	}
}

func newSessionID() string { return uuid.NewString() }
