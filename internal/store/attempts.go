package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pavelanni/examprep/internal/model"
)

// CreateAttempt inserts an open attempt for a user.
func (s *Store) CreateAttempt(ctx context.Context, userID, examID int64, startedAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO user_attempts (exam_id, user_id, started_at) VALUES (?, ?, ?)`,
		examID, userID, startedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// InsertUserAnswers stores the selections of an attempt in one transaction,
// replacing any rows an earlier try left for the same attempt.
func (s *Store) InsertUserAnswers(ctx context.Context, answers []model.UserAnswer) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	cleared := make(map[int64]bool)
	for _, ua := range answers {
		if cleared[ua.AttemptID] {
			continue
		}
		cleared[ua.AttemptID] = true
		if _, err := tx.ExecContext(ctx, `DELETE FROM user_answers WHERE attempt_id = ?`, ua.AttemptID); err != nil {
			return fmt.Errorf("clear answers of attempt %d: %w", ua.AttemptID, err)
		}
	}
	for _, ua := range answers {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO user_answers (attempt_id, question_id, answer_id, position) VALUES (?, ?, ?, ?)`,
			ua.AttemptID, ua.QuestionID, ua.AnswerID, ua.Position,
		)
		if err != nil {
			return fmt.Errorf("insert answer for question %d: %w", ua.QuestionID, err)
		}
	}
	return tx.Commit()
}

// CorrectAnswers returns the correct answer ID for each of the given questions.
func (s *Store) CorrectAnswers(ctx context.Context, questionIDs []int64) (map[int64]int64, error) {
	out := make(map[int64]int64, len(questionIDs))
	if len(questionIDs) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(questionIDs)), ",")
	args := make([]any, len(questionIDs))
	for i, id := range questionIDs {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT question_id, id FROM answers WHERE is_correct = 1 AND question_id IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var qID, aID int64
		if err := rows.Scan(&qID, &aID); err != nil {
			return nil, err
		}
		out[qID] = aID
	}
	return out, rows.Err()
}

const attemptColumns = `ua.id, ua.exam_id, ua.user_id, e.title, ua.started_at, ua.completed_at,
	ua.score, ua.percentage, ua.total_questions`

func scanAttempt(sc interface{ Scan(...any) error }) (model.Attempt, error) {
	var a model.Attempt
	err := sc.Scan(&a.ID, &a.ExamID, &a.UserID, &a.ExamTitle, &a.StartedAt, &a.CompletedAt,
		&a.Score, &a.Percentage, &a.TotalQuestions)
	return a, err
}

// GetAttempt returns a completed attempt by ID. An attempt that was never
// scored is reported as ErrNotFound.
func (s *Store) GetAttempt(ctx context.Context, id int64) (model.Attempt, error) {
	a, err := scanAttempt(s.db.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM user_attempts ua JOIN exams e ON e.id = ua.exam_id
		 WHERE ua.id = ? AND ua.completed_at IS NOT NULL`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return a, fmt.Errorf("attempt %d: %w", id, ErrNotFound)
	}
	return a, err
}

// ListAttempts returns a user's completed attempts, newest first.
func (s *Store) ListAttempts(ctx context.Context, userID int64) ([]model.Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+attemptColumns+` FROM user_attempts ua JOIN exams e ON e.id = ua.exam_id
		 WHERE ua.user_id = ? AND ua.completed_at IS NOT NULL
		 ORDER BY ua.id DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// Stats summarises a user's completed attempts overall and per exam.
func (s *Store) Stats(ctx context.Context, userID int64) (model.Stats, error) {
	attempts, err := s.ListAttempts(ctx, userID)
	if err != nil {
		return model.Stats{}, err
	}

	var st model.Stats
	perExam := make(map[int64]*model.ExamStats)
	var order []int64
	var total float64
	for i := len(attempts) - 1; i >= 0; i-- {
		a := attempts[i]
		st.Attempts++
		total += a.Percentage
		if a.Percentage > st.BestPercentage {
			st.BestPercentage = a.Percentage
		}
		if model.Passed(a.Percentage) {
			st.Passed++
		}

		es, ok := perExam[a.ExamID]
		if !ok {
			es = &model.ExamStats{ExamID: a.ExamID, ExamTitle: a.ExamTitle}
			perExam[a.ExamID] = es
			order = append(order, a.ExamID)
		}
		es.Attempts++
		es.AveragePercentage += (a.Percentage - es.AveragePercentage) / float64(es.Attempts)
		if a.Percentage > es.BestPercentage {
			es.BestPercentage = a.Percentage
		}
	}
	if st.Attempts > 0 {
		st.AveragePercentage = total / float64(st.Attempts)
	}
	for _, id := range order {
		st.Exams = append(st.Exams, *perExam[id])
	}
	return st, nil
}
