// Package exam runs timed exam sessions and submits their answers through
// the remote data gateway.
package exam

import (
	"context"
	"time"

	"github.com/pavelanni/examprep/internal/model"
)

// Gateway is the part of the data API an exam session needs.
// *store.Store implements it.
type Gateway interface {
	GetExam(ctx context.Context, id int64) (model.Exam, error)
	GetShuffledQuestions(ctx context.Context, examID int64) ([]model.ShuffledQuestion, error)
	CreateAttempt(ctx context.Context, userID, examID int64, startedAt time.Time) (int64, error)
	InsertUserAnswers(ctx context.Context, answers []model.UserAnswer) error
	CorrectAnswers(ctx context.Context, questionIDs []int64) (map[int64]int64, error)
	CalculateAttemptScore(ctx context.Context, attemptID int64) (model.AttemptScore, error)
}
