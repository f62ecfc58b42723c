package exam

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/pavelanni/examprep/internal/model"
)

// Submitter stores a finished session through the gateway and asks the
// gateway to score it.
type Submitter struct {
	gw Gateway
}

// NewSubmitter returns a Submitter writing to gw.
func NewSubmitter(gw Gateway) *Submitter {
	return &Submitter{gw: gw}
}

// Submit creates the attempt, stores one answer row per question in
// presentation order and returns the score computed by the gateway. A local
// preview is computed as well; when it disagrees the gateway's value wins.
//
// When sub.AttemptID is set the attempt is reused instead of created. Errors
// after the attempt exists are returned as *SubmitError carrying its ID.
func (s *Submitter) Submit(ctx context.Context, sub Submission) (model.AttemptScore, error) {
	attemptID := sub.AttemptID
	if attemptID == 0 {
		id, err := s.gw.CreateAttempt(ctx, sub.UserID, sub.ExamID, sub.StartedAt)
		if err != nil {
			return model.AttemptScore{}, fmt.Errorf("create attempt: %w", err)
		}
		attemptID = id
	}
	score, err := s.complete(ctx, attemptID, sub)
	if err != nil {
		return model.AttemptScore{}, &SubmitError{AttemptID: attemptID, Err: err}
	}
	return score, nil
}

func (s *Submitter) complete(ctx context.Context, attemptID int64, sub Submission) (model.AttemptScore, error) {
	answers := make([]model.UserAnswer, len(sub.Questions))
	ids := make([]int64, len(sub.Questions))
	for i, q := range sub.Questions {
		ids[i] = q.ID
		answers[i] = model.UserAnswer{AttemptID: attemptID, QuestionID: q.ID, Position: i}
		if a, ok := sub.Selections[q.ID]; ok {
			answers[i].AnswerID = &a
		}
	}
	if err := s.gw.InsertUserAnswers(ctx, answers); err != nil {
		return model.AttemptScore{}, fmt.Errorf("store answers of attempt %d: %w", attemptID, err)
	}

	correct, err := s.gw.CorrectAnswers(ctx, ids)
	if err != nil {
		return model.AttemptScore{}, fmt.Errorf("fetch correct answers: %w", err)
	}
	preview := Preview(sub, correct)

	score, err := s.gw.CalculateAttemptScore(ctx, attemptID)
	if err != nil {
		return model.AttemptScore{}, fmt.Errorf("score attempt %d: %w", attemptID, err)
	}
	if score.CorrectAnswers != preview.CorrectAnswers || score.Percentage != preview.Percentage {
		slog.Warn("local score preview differs from stored score",
			"attempt_id", attemptID,
			"preview_correct", preview.CorrectAnswers,
			"preview_percentage", preview.Percentage,
			"correct", score.CorrectAnswers,
			"percentage", score.Percentage,
		)
	}
	return score, nil
}

// Preview scores a submission against the given correct answer per question.
func Preview(sub Submission, correct map[int64]int64) model.AttemptScore {
	res := model.AttemptScore{TotalQuestions: len(sub.Questions)}
	for _, q := range sub.Questions {
		sel, ok := sub.Selections[q.ID]
		if ok && correct[q.ID] == sel {
			res.CorrectAnswers++
		}
	}
	res.Score = res.CorrectAnswers
	if res.TotalQuestions > 0 {
		res.Percentage = math.Round(100 * float64(res.CorrectAnswers) / float64(res.TotalQuestions))
	}
	return res
}
