package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleCandidate is a candidate preparing for the exam.
	UserRoleCandidate UserRole = "candidate"
	// UserRoleAdmin manages question banks and users.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Candidate returns the read-only view of the user used on reports.
func (u User) Candidate() Candidate {
	return Candidate{DisplayName: u.DisplayName, Email: u.Email}
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// Exam is a named question set with a time limit.
type Exam struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	// DurationSec is the countdown length; 0 means the configured default.
	DurationSec int `json:"duration_sec"`
	Questions   int `json:"questions"`
}

// Question is a multiple-choice question with exactly one correct answer.
type Question struct {
	ID          int64    `json:"id"`
	ExamID      int64    `json:"exam_id"`
	Text        string   `json:"text"`
	Explanation string   `json:"explanation,omitempty"`
	Answers     []Answer `json:"answers"`
}

// CorrectAnswer returns the correct option, if the question has one.
func (q Question) CorrectAnswer() (Answer, bool) {
	for _, a := range q.Answers {
		if a.IsCorrect {
			return a, true
		}
	}
	return Answer{}, false
}

// Answer is one option of a question.
type Answer struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"-"`
}

// ShuffledQuestion is the candidate-facing shape returned by the shuffle
// procedure. It never carries correctness.
type ShuffledQuestion struct {
	ID           int64          `json:"id"`
	QuestionText string         `json:"question_text"`
	Answers      []AnswerOption `json:"answers"`
}

// HasAnswer reports whether answerID is one of the question's options.
func (q ShuffledQuestion) HasAnswer(answerID int64) bool {
	for _, a := range q.Answers {
		if a.ID == answerID {
			return true
		}
	}
	return false
}

// AnswerOption is an answer as shown to a candidate.
type AnswerOption struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

// Attempt is one candidate's completed run through an exam.
type Attempt struct {
	ID             int64      `json:"id"`
	ExamID         int64      `json:"exam_id"`
	UserID         int64      `json:"user_id"`
	ExamTitle      string     `json:"exam_title"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Score          int        `json:"score"`
	Percentage     float64    `json:"percentage"`
	TotalQuestions int        `json:"total_questions"`
}

// AnsweredQuestion pairs a question with the selected and the correct option.
type AnsweredQuestion struct {
	QuestionText       string `json:"question_text"`
	Explanation        string `json:"explanation,omitempty"`
	IsCorrect          bool   `json:"is_correct"`
	Answered           bool   `json:"answered"`
	SelectedAnswerText string `json:"selected_answer_text,omitempty"`
	CorrectAnswerText  string `json:"correct_answer_text"`
}

// Candidate is the identity printed on a report.
type Candidate struct {
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
}

// AttemptScore is the result of the score procedure.
type AttemptScore struct {
	AttemptID      int64   `json:"attempt_id"`
	TotalQuestions int     `json:"total_questions"`
	CorrectAnswers int     `json:"correct_answers"`
	Score          int     `json:"score"`
	Percentage     float64 `json:"percentage"`
}

// UserAnswer is one persisted selection of an attempt.
type UserAnswer struct {
	AttemptID  int64
	QuestionID int64
	// AnswerID is nil when the question was left unanswered.
	AnswerID *int64
	Position int
}

// AttemptReport bundles everything the report engine consumes.
type AttemptReport struct {
	Attempt   Attempt
	Questions []AnsweredQuestion
	Candidate Candidate
}

// Stats summarises a candidate's attempts.
type Stats struct {
	Attempts          int         `json:"attempts"`
	Passed            int         `json:"passed"`
	AveragePercentage float64     `json:"average_percentage"`
	BestPercentage    float64     `json:"best_percentage"`
	Exams             []ExamStats `json:"exams"`
}

// ExamStats is the per-exam breakdown of Stats.
type ExamStats struct {
	ExamID            int64   `json:"exam_id"`
	ExamTitle         string  `json:"exam_title"`
	Attempts          int     `json:"attempts"`
	AveragePercentage float64 `json:"average_percentage"`
	BestPercentage    float64 `json:"best_percentage"`
}

// ExamConfig holds runtime exam parameters set via CLI flags.
type ExamConfig struct {
	DefaultDuration time.Duration // used when an exam has no duration of its own
	Retention       time.Duration // how long a completed session stays readable
}

// PassThreshold is the percentage at or above which an attempt passes.
// It is the same for every exam.
const PassThreshold = 50.0

// Passed reports whether a percentage clears PassThreshold.
func Passed(percentage float64) bool {
	return percentage >= PassThreshold
}
