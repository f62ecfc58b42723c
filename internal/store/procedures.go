package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/pavelanni/examprep/internal/model"
)

// GetShuffledQuestions returns the questions of an exam in random order, each
// with its answers in random order. Correctness is never included.
func (s *Store) GetShuffledQuestions(ctx context.Context, examID int64) ([]model.ShuffledQuestion, error) {
	if _, err := s.GetExam(ctx, examID); err != nil {
		return nil, err
	}
	questions, err := s.ListQuestions(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	out := make([]model.ShuffledQuestion, 0, len(questions))
	for _, q := range questions {
		sq := model.ShuffledQuestion{ID: q.ID, QuestionText: q.Text}
		for _, a := range q.Answers {
			sq.Answers = append(sq.Answers, model.AnswerOption{ID: a.ID, Text: a.Text})
		}
		rand.Shuffle(len(sq.Answers), func(i, j int) {
			sq.Answers[i], sq.Answers[j] = sq.Answers[j], sq.Answers[i]
		})
		out = append(out, sq)
	}
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out, nil
}

// CalculateAttemptScore counts the correct answers recorded for an attempt,
// stores score and percentage on the attempt and marks it completed.
// The percentage is round(100 * correct / total).
func (s *Store) CalculateAttemptScore(ctx context.Context, attemptID int64) (model.AttemptScore, error) {
	res := model.AttemptScore{AttemptID: attemptID}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM user_attempts WHERE id = ?`, attemptID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return res, fmt.Errorf("attempt %d: %w", attemptID, ErrNotFound)
	}
	if err != nil {
		return res, err
	}

	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN a.is_correct = 1 THEN 1 ELSE 0 END), 0)
		 FROM user_answers ua
		 LEFT JOIN answers a ON a.id = ua.answer_id
		 WHERE ua.attempt_id = ?`, attemptID,
	).Scan(&res.TotalQuestions, &res.CorrectAnswers)
	if err != nil {
		return res, err
	}

	res.Score = res.CorrectAnswers
	res.Percentage = Percentage(res.CorrectAnswers, res.TotalQuestions)

	_, err = tx.ExecContext(ctx,
		`UPDATE user_attempts
		 SET score = ?, percentage = ?, total_questions = ?, completed_at = COALESCE(completed_at, ?)
		 WHERE id = ?`,
		res.Score, res.Percentage, res.TotalQuestions, time.Now(), attemptID,
	)
	if err != nil {
		return res, err
	}
	return res, tx.Commit()
}

// Percentage returns round(100 * correct / total), or 0 for an empty attempt.
func Percentage(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(100 * float64(correct) / float64(total))
}
