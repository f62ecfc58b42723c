package store

import (
	"context"
	"fmt"

	"github.com/pavelanni/examprep/internal/model"
)

// GetAttemptReport builds the report input for an attempt: the attempt, its
// questions in the order they were presented, and the candidate.
func (s *Store) GetAttemptReport(ctx context.Context, attemptID int64) (*model.AttemptReport, error) {
	attempt, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	user, err := s.GetUserByID(ctx, attempt.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", attempt.UserID, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT q.text, q.explanation, ua.answer_id IS NOT NULL,
		        COALESCE(sel.text, ''), COALESCE(sel.is_correct, 0), COALESCE(cor.text, '')
		 FROM user_answers ua
		 JOIN questions q ON q.id = ua.question_id
		 LEFT JOIN answers sel ON sel.id = ua.answer_id
		 LEFT JOIN answers cor ON cor.question_id = q.id AND cor.is_correct = 1
		 WHERE ua.attempt_id = ?
		 ORDER BY ua.position, ua.id`, attemptID,
	)
	if err != nil {
		return nil, fmt.Errorf("query answered questions: %w", err)
	}
	defer rows.Close()

	var questions []model.AnsweredQuestion
	for rows.Next() {
		var aq model.AnsweredQuestion
		if err := rows.Scan(&aq.QuestionText, &aq.Explanation, &aq.Answered,
			&aq.SelectedAnswerText, &aq.IsCorrect, &aq.CorrectAnswerText); err != nil {
			return nil, err
		}
		questions = append(questions, aq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	report := &model.AttemptReport{Attempt: attempt, Questions: questions}
	if user != nil {
		report.Candidate = user.Candidate()
	}
	return report, nil
}
