package exam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/pavelanni/examprep/internal/model"
)

var (
	ErrNotInProgress   = errors.New("exam is not in progress")
	ErrInvalidAnswer   = errors.New("answer does not belong to the current question")
	ErrIndexOutOfRange = errors.New("question index out of range")
	ErrSubmitInFlight  = errors.New("exam submission already in progress")
	ErrNoQuestions     = errors.New("exam has no questions")
)

// State is the lifecycle stage of a session.
type State int

const (
	StateLoading State = iota
	StateInProgress
	StateTimedOut
	StateSubmitting
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateInProgress:
		return "in_progress"
	case StateTimedOut:
		return "timed_out"
	case StateSubmitting:
		return "submitting"
	case StateCompleted:
		return "completed"
	}
	return "unknown"
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a state name written by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	for st := StateLoading; st <= StateCompleted; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown exam state %q", b)
}

// Ticker delivers the one-second countdown ticks.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker is the TickerFunc backed by time.Ticker.
func NewTimeTicker(d time.Duration) Ticker { return timeTicker{time.NewTicker(d)} }

// Submission is what a session hands to its SubmitFunc.
type Submission struct {
	UserID    int64
	ExamID    int64
	StartedAt time.Time
	// Questions are in presentation order.
	Questions []model.ShuffledQuestion
	// Selections maps question ID to the selected answer ID.
	Selections map[int64]int64
	// AttemptID is set when an earlier try already created the attempt row.
	AttemptID int64
}

// SubmitError reports a failed submission whose attempt row was already
// created, so a retry can reuse it.
type SubmitError struct {
	AttemptID int64
	Err       error
}

func (e *SubmitError) Error() string { return e.Err.Error() }

func (e *SubmitError) Unwrap() error { return e.Err }

// SubmitFunc persists a submission and returns the authoritative score.
type SubmitFunc func(ctx context.Context, sub Submission) (model.AttemptScore, error)

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	ID           string                   `json:"id"`
	ExamID       int64                    `json:"exam_id"`
	ExamTitle    string                   `json:"exam_title"`
	State        State                    `json:"state"`
	Index        int                      `json:"index"`
	RemainingSec int                      `json:"remaining_sec"`
	Questions    []model.ShuffledQuestion `json:"questions"`
	Selections   map[int64]int64          `json:"selections"`
	Result       *model.AttemptScore      `json:"result,omitempty"`
	Error        string                   `json:"error,omitempty"`
}

const autoSubmitTimeout = 30 * time.Second

// Session is one candidate's run through an exam.
//
// Loading -> InProgress -> Submitting -> Completed, or
// InProgress -> TimedOut -> Submitting -> Completed when the countdown runs
// out. A failed submission goes back to the state it came from.
type Session struct {
	id        string
	userID    int64
	exam      model.Exam
	submit    SubmitFunc
	newTicker TickerFunc
	now       func() time.Time

	mu          sync.Mutex
	state       State
	before      State // state restored when a submission fails
	questions   []model.ShuffledQuestion
	selections  map[int64]int64
	index       int
	remaining   int
	startedAt   time.Time
	attemptID   int64
	result      *model.AttemptScore
	completedAt time.Time
	lastErr     error
	closed      bool
	stop        chan struct{}
	timerDone   chan struct{}
}

// SessionOption customises a Session.
type SessionOption func(*Session)

// WithTicker replaces the countdown ticker.
func WithTicker(f TickerFunc) SessionOption {
	return func(s *Session) { s.newTicker = f }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// NewSession returns a session in the Loading state. duration is the
// countdown length, rounded down to whole seconds.
func NewSession(id string, userID int64, exam model.Exam, duration time.Duration, submit SubmitFunc, opts ...SessionOption) *Session {
	s := &Session{
		id:         id,
		userID:     userID,
		exam:       exam,
		submit:     submit,
		newTicker:  NewTimeTicker,
		now:        time.Now,
		state:      StateLoading,
		selections: make(map[int64]int64),
		remaining:  int(duration / time.Second),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// UserID returns the owner of the session.
func (s *Session) UserID() int64 { return s.userID }

// Start moves a loaded session to InProgress and starts the countdown.
func (s *Session) Start(questions []model.ShuffledQuestion) error {
	if len(questions) == 0 {
		return ErrNoQuestions
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateLoading || s.closed {
		return ErrNotInProgress
	}
	s.questions = questions
	s.startedAt = s.now()
	s.state = StateInProgress
	s.startTimerLocked()
	slog.Info("exam session started", "session", s.id, "exam_id", s.exam.ID, "questions", len(questions), "remaining_sec", s.remaining)
	return nil
}

func (s *Session) startTimerLocked() {
	if s.remaining <= 0 {
		// No time left: expire on the first tick.
		s.remaining = 0
	}
	s.stop = make(chan struct{})
	s.timerDone = make(chan struct{})
	go s.runTimer(s.newTicker(time.Second), s.stop, s.timerDone)
}

func (s *Session) stopTimerLocked() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

func (s *Session) runTimer(t Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C():
			expired, live := s.tick(stop)
			if !live {
				return
			}
			if expired {
				go s.autoSubmit()
				return
			}
		}
	}
}

// tick counts down one second. live is false once the timer belongs to a
// session that has left InProgress.
func (s *Session) tick(stop <-chan struct{}) (expired, live bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-stop:
		return false, false
	default:
	}
	if s.closed || s.state != StateInProgress {
		return false, false
	}
	if s.remaining > 0 {
		s.remaining--
	}
	if s.remaining > 0 {
		return false, true
	}
	s.state = StateTimedOut
	s.stopTimerLocked()
	slog.Info("exam time is up", "session", s.id)
	return true, true
}

func (s *Session) autoSubmit() {
	ctx, cancel := context.WithTimeout(context.Background(), autoSubmitTimeout)
	defer cancel()
	if _, err := s.Submit(ctx); err != nil && !errors.Is(err, ErrNotInProgress) {
		slog.Error("automatic submission failed", "session", s.id, "error", err)
	}
}

// Select records answerID for the displayed question.
func (s *Session) Select(answerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.state != StateInProgress {
		return ErrNotInProgress
	}
	q := s.questions[s.index]
	if !q.HasAnswer(answerID) {
		return ErrInvalidAnswer
	}
	s.selections[q.ID] = answerID
	return nil
}

// Next shows the following question.
func (s *Session) Next() error { return s.move(func(i int) int { return i + 1 }) }

// Previous shows the preceding question.
func (s *Session) Previous() error { return s.move(func(i int) int { return i - 1 }) }

// Jump shows question i.
func (s *Session) Jump(i int) error { return s.move(func(int) int { return i }) }

func (s *Session) move(to func(int) int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.state != StateInProgress {
		return ErrNotInProgress
	}
	i := to(s.index)
	if i < 0 || i >= len(s.questions) {
		return ErrIndexOutOfRange
	}
	s.index = i
	return nil
}

// Submit sends the answers once. Both an explicit submission and the expiry
// of the countdown end up here; only one of them reaches the gateway.
func (s *Session) Submit(ctx context.Context) (model.AttemptScore, error) {
	sub, err := s.beginSubmit()
	if err != nil {
		return model.AttemptScore{}, err
	}

	score, err := s.submit(ctx, sub)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = err
		var se *SubmitError
		if errors.As(err, &se) && se.AttemptID != 0 {
			s.attemptID = se.AttemptID
		}
		s.state = s.before
		if s.state == StateInProgress && !s.closed {
			s.startTimerLocked()
		}
		slog.Warn("exam submission failed", "session", s.id, "error", err)
		return model.AttemptScore{}, err
	}
	s.lastErr = nil
	s.result = &score
	s.state = StateCompleted
	s.completedAt = s.now()
	slog.Info("exam submitted", "session", s.id, "attempt_id", score.AttemptID, "percentage", score.Percentage)
	return score, nil
}

func (s *Session) beginSubmit() (Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Submission{}, ErrNotInProgress
	}
	switch s.state {
	case StateInProgress, StateTimedOut:
	case StateSubmitting:
		return Submission{}, ErrSubmitInFlight
	default:
		return Submission{}, ErrNotInProgress
	}
	s.before = s.state
	s.state = StateSubmitting
	s.stopTimerLocked()
	return Submission{
		UserID:     s.userID,
		ExamID:     s.exam.ID,
		StartedAt:  s.startedAt,
		Questions:  s.questions,
		Selections: maps.Clone(s.selections),
		AttemptID:  s.attemptID,
	}, nil
}

// Close cancels the countdown and waits for the timer goroutine to exit.
// It does not submit.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.stopTimerLocked()
	done := s.timerDone
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// CompletedAt reports when the session was submitted successfully.
func (s *Session) CompletedAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completedAt, s.state == StateCompleted
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns a copy of the session for display.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:           s.id,
		ExamID:       s.exam.ID,
		ExamTitle:    s.exam.Title,
		State:        s.state,
		Index:        s.index,
		RemainingSec: s.remaining,
		Questions:    s.questions,
		Selections:   maps.Clone(s.selections),
	}
	if s.result != nil {
		r := *s.result
		snap.Result = &r
	}
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}
	return snap
}
