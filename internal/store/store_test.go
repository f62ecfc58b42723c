package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pavelanni/examprep/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestExam(t *testing.T, s *Store, title string) int64 {
	t.Helper()
	id, err := s.CreateExam(context.Background(), model.Exam{Title: title, DurationSec: 600})
	if err != nil {
		t.Fatalf("insertTestExam: %v", err)
	}
	return id
}

// insertTestQuestion stores a question with three options, the first one correct.
func insertTestQuestion(t *testing.T, s *Store, examID int64, text string) model.Question {
	t.Helper()
	ctx := context.Background()
	id, err := s.InsertQuestion(ctx, model.Question{
		ExamID:      examID,
		Text:        text,
		Explanation: "explanation for " + text,
		Answers: []model.Answer{
			{Text: text + " right", IsCorrect: true},
			{Text: text + " wrong 1"},
			{Text: text + " wrong 2"},
		},
	})
	if err != nil {
		t.Fatalf("insertTestQuestion: %v", err)
	}
	qs, err := s.ListQuestions(ctx, examID)
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	for _, q := range qs {
		if q.ID == id {
			return q
		}
	}
	t.Fatalf("question %d not listed", id)
	return model.Question{}
}

func insertTestUser(t *testing.T, s *Store, email string) int64 {
	t.Helper()
	id, err := s.CreateUser(context.Background(), model.User{
		Email:        email,
		DisplayName:  "Candidate " + email,
		PasswordHash: "x",
		Role:         model.UserRoleCandidate,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("insertTestUser: %v", err)
	}
	return id
}

func wrongAnswer(q model.Question) int64 {
	for _, a := range q.Answers {
		if !a.IsCorrect {
			return a.ID
		}
	}
	return 0
}

func rightAnswer(q model.Question) int64 {
	a, _ := q.CorrectAnswer()
	return a.ID
}

func TestExamAndQuestionCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	exams, err := s.ListExams(ctx)
	if err != nil {
		t.Fatalf("ListExams: %v", err)
	}
	if len(exams) != 0 {
		t.Fatalf("expected no exams, got %d", len(exams))
	}

	examID := insertTestExam(t, s, "امتحان البريد")
	insertTestQuestion(t, s, examID, "Q1")
	insertTestQuestion(t, s, examID, "Q2")

	exam, err := s.GetExam(ctx, examID)
	if err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	if exam.Title != "امتحان البريد" {
		t.Errorf("expected Arabic title, got %q", exam.Title)
	}
	if exam.Questions != 2 {
		t.Errorf("expected 2 questions, got %d", exam.Questions)
	}

	byTitle, err := s.GetExamByTitle(ctx, "امتحان البريد")
	if err != nil {
		t.Fatalf("GetExamByTitle: %v", err)
	}
	if byTitle.ID != examID {
		t.Errorf("expected exam %d, got %d", examID, byTitle.ID)
	}

	_, err = s.GetExam(ctx, 9999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	qs, err := s.ListQuestions(ctx, examID)
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if len(qs) != 2 || qs[0].Text != "Q1" || qs[1].Text != "Q2" {
		t.Fatalf("unexpected questions: %+v", qs)
	}
	if len(qs[0].Answers) != 3 {
		t.Errorf("expected 3 answers, got %d", len(qs[0].Answers))
	}
	if _, ok := qs[0].CorrectAnswer(); !ok {
		t.Error("expected a correct answer")
	}
}

func TestInsertQuestionRequiresOneCorrectAnswer(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	examID := insertTestExam(t, s, "E")

	tests := []struct {
		name    string
		answers []model.Answer
	}{
		{"none correct", []model.Answer{{Text: "a"}, {Text: "b"}}},
		{"two correct", []model.Answer{{Text: "a", IsCorrect: true}, {Text: "b", IsCorrect: true}}},
		{"no answers", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.InsertQuestion(ctx, model.Question{ExamID: examID, Text: "Q", Answers: tt.answers})
			if !errors.Is(err, ErrInvalidQuestion) {
				t.Errorf("expected ErrInvalidQuestion, got %v", err)
			}
		})
	}
}

func TestExplanations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	examID := insertTestExam(t, s, "E")

	id, err := s.InsertQuestion(ctx, model.Question{
		ExamID:  examID,
		Text:    "No explanation",
		Answers: []model.Answer{{Text: "a", IsCorrect: true}, {Text: "b"}},
	})
	if err != nil {
		t.Fatalf("InsertQuestion: %v", err)
	}
	insertTestQuestion(t, s, examID, "With explanation")

	missing, err := s.ListQuestionsWithoutExplanation(ctx)
	if err != nil {
		t.Fatalf("ListQuestionsWithoutExplanation: %v", err)
	}
	if len(missing) != 1 || missing[0].ID != id {
		t.Fatalf("expected only question %d, got %+v", id, missing)
	}
	if len(missing[0].Answers) != 2 {
		t.Errorf("expected answers to be loaded, got %d", len(missing[0].Answers))
	}

	if err := s.SetExplanation(ctx, id, "because"); err != nil {
		t.Fatalf("SetExplanation: %v", err)
	}
	missing, _ = s.ListQuestionsWithoutExplanation(ctx)
	if len(missing) != 0 {
		t.Errorf("expected no missing explanations, got %d", len(missing))
	}

	if err := s.SetExplanation(ctx, 9999, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetShuffledQuestions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	examID := insertTestExam(t, s, "E")
	want := map[int64]int{}
	for _, text := range []string{"Q1", "Q2", "Q3", "Q4", "Q5"} {
		q := insertTestQuestion(t, s, examID, text)
		want[q.ID] = len(q.Answers)
	}

	shuffled, err := s.GetShuffledQuestions(ctx, examID)
	if err != nil {
		t.Fatalf("GetShuffledQuestions: %v", err)
	}
	if len(shuffled) != len(want) {
		t.Fatalf("expected %d questions, got %d", len(want), len(shuffled))
	}
	seen := map[int64]bool{}
	for _, q := range shuffled {
		if seen[q.ID] {
			t.Errorf("question %d returned twice", q.ID)
		}
		seen[q.ID] = true
		if n, ok := want[q.ID]; !ok || n != len(q.Answers) {
			t.Errorf("question %d: unexpected answers %+v", q.ID, q.Answers)
		}
	}

	if _, err := s.GetShuffledQuestions(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown exam, got %v", err)
	}
}

func TestCalculateAttemptScore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	userID := insertTestUser(t, s, "a@example.com")
	examID := insertTestExam(t, s, "E")
	q1 := insertTestQuestion(t, s, examID, "Q1")
	q2 := insertTestQuestion(t, s, examID, "Q2")
	q3 := insertTestQuestion(t, s, examID, "Q3")

	attemptID, err := s.CreateAttempt(ctx, userID, examID, time.Now())
	if err != nil {
		t.Fatalf("CreateAttempt: %v", err)
	}
	right1, right2, wrong3 := rightAnswer(q1), rightAnswer(q2), wrongAnswer(q3)
	err = s.InsertUserAnswers(ctx, []model.UserAnswer{
		{AttemptID: attemptID, QuestionID: q1.ID, AnswerID: &right1, Position: 0},
		{AttemptID: attemptID, QuestionID: q2.ID, AnswerID: &right2, Position: 1},
		{AttemptID: attemptID, QuestionID: q3.ID, AnswerID: &wrong3, Position: 2},
	})
	if err != nil {
		t.Fatalf("InsertUserAnswers: %v", err)
	}

	score, err := s.CalculateAttemptScore(ctx, attemptID)
	if err != nil {
		t.Fatalf("CalculateAttemptScore: %v", err)
	}
	if score.TotalQuestions != 3 || score.CorrectAnswers != 2 || score.Score != 2 {
		t.Errorf("unexpected score: %+v", score)
	}
	if score.Percentage != 67 {
		t.Errorf("expected percentage 67, got %v", score.Percentage)
	}

	attempt, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		t.Fatalf("GetAttempt: %v", err)
	}
	if attempt.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}
	if attempt.Percentage != Percentage(score.CorrectAnswers, score.TotalQuestions) {
		t.Errorf("persisted percentage %v does not match round(100*correct/total)", attempt.Percentage)
	}
	if attempt.Score != 2 || attempt.TotalQuestions != 3 || attempt.ExamTitle != "E" {
		t.Errorf("unexpected attempt: %+v", attempt)
	}

	if _, err := s.CalculateAttemptScore(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCalculateAttemptScoreUnanswered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	userID := insertTestUser(t, s, "a@example.com")
	examID := insertTestExam(t, s, "E")
	q1 := insertTestQuestion(t, s, examID, "Q1")
	q2 := insertTestQuestion(t, s, examID, "Q2")

	attemptID, _ := s.CreateAttempt(ctx, userID, examID, time.Now())
	right := rightAnswer(q1)
	if err := s.InsertUserAnswers(ctx, []model.UserAnswer{
		{AttemptID: attemptID, QuestionID: q1.ID, AnswerID: &right, Position: 0},
		{AttemptID: attemptID, QuestionID: q2.ID, AnswerID: nil, Position: 1},
	}); err != nil {
		t.Fatalf("InsertUserAnswers: %v", err)
	}

	score, err := s.CalculateAttemptScore(ctx, attemptID)
	if err != nil {
		t.Fatalf("CalculateAttemptScore: %v", err)
	}
	if score.CorrectAnswers != 1 || score.TotalQuestions != 2 || score.Percentage != 50 {
		t.Errorf("unexpected score: %+v", score)
	}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		correct, total int
		want           float64
	}{
		{0, 0, 0},
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 67},
		{8, 10, 80},
		{1, 2, 50},
		{3, 3, 100},
	}
	for _, tt := range tests {
		if got := Percentage(tt.correct, tt.total); got != tt.want {
			t.Errorf("Percentage(%d, %d) = %v, want %v", tt.correct, tt.total, got, tt.want)
		}
	}
}

func TestCorrectAnswers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	examID := insertTestExam(t, s, "E")
	q1 := insertTestQuestion(t, s, examID, "Q1")
	q2 := insertTestQuestion(t, s, examID, "Q2")

	got, err := s.CorrectAnswers(ctx, []int64{q1.ID, q2.ID})
	if err != nil {
		t.Fatalf("CorrectAnswers: %v", err)
	}
	if got[q1.ID] != rightAnswer(q1) || got[q2.ID] != rightAnswer(q2) {
		t.Errorf("unexpected correct answers: %v", got)
	}

	empty, err := s.CorrectAnswers(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("expected empty map, got %v, %v", empty, err)
	}
}

func TestGetAttemptReport(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	userID := insertTestUser(t, s, "Cand@Example.com")
	examID := insertTestExam(t, s, "E")
	q1 := insertTestQuestion(t, s, examID, "Q1")
	q2 := insertTestQuestion(t, s, examID, "Q2")
	q3 := insertTestQuestion(t, s, examID, "Q3")

	attemptID, _ := s.CreateAttempt(ctx, userID, examID, time.Now())
	right3, wrong1 := rightAnswer(q3), wrongAnswer(q1)
	// Presentation order differs from insertion order.
	if err := s.InsertUserAnswers(ctx, []model.UserAnswer{
		{AttemptID: attemptID, QuestionID: q3.ID, AnswerID: &right3, Position: 0},
		{AttemptID: attemptID, QuestionID: q1.ID, AnswerID: &wrong1, Position: 1},
		{AttemptID: attemptID, QuestionID: q2.ID, AnswerID: nil, Position: 2},
	}); err != nil {
		t.Fatalf("InsertUserAnswers: %v", err)
	}
	if _, err := s.CalculateAttemptScore(ctx, attemptID); err != nil {
		t.Fatalf("CalculateAttemptScore: %v", err)
	}

	rep, err := s.GetAttemptReport(ctx, attemptID)
	if err != nil {
		t.Fatalf("GetAttemptReport: %v", err)
	}
	if rep.Candidate.Email != "cand@example.com" {
		t.Errorf("expected lower-cased email, got %q", rep.Candidate.Email)
	}
	if len(rep.Questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(rep.Questions))
	}

	first, second, third := rep.Questions[0], rep.Questions[1], rep.Questions[2]
	if first.QuestionText != "Q3" || !first.IsCorrect || !first.Answered || first.SelectedAnswerText != "Q3 right" {
		t.Errorf("unexpected first question: %+v", first)
	}
	if second.QuestionText != "Q1" || second.IsCorrect || second.SelectedAnswerText != "Q1 wrong 1" || second.CorrectAnswerText != "Q1 right" {
		t.Errorf("unexpected second question: %+v", second)
	}
	if third.QuestionText != "Q2" || third.Answered || third.IsCorrect || third.SelectedAnswerText != "" || third.CorrectAnswerText != "Q2 right" {
		t.Errorf("unexpected third question: %+v", third)
	}
	if first.Explanation != "explanation for Q3" {
		t.Errorf("expected explanation, got %q", first.Explanation)
	}
	if rep.Attempt.Percentage != 33 {
		t.Errorf("expected percentage 33, got %v", rep.Attempt.Percentage)
	}

	if _, err := s.GetAttemptReport(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUncompletedAttemptIsHidden(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	userID := insertTestUser(t, s, "a@example.com")
	examID := insertTestExam(t, s, "E")
	q := insertTestQuestion(t, s, examID, "Q1")

	attemptID, err := s.CreateAttempt(ctx, userID, examID, time.Now())
	if err != nil {
		t.Fatalf("CreateAttempt: %v", err)
	}
	right := rightAnswer(q)
	if err := s.InsertUserAnswers(ctx, []model.UserAnswer{
		{AttemptID: attemptID, QuestionID: q.ID, AnswerID: &right, Position: 0},
	}); err != nil {
		t.Fatalf("InsertUserAnswers: %v", err)
	}

	if _, err := s.GetAttempt(ctx, attemptID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetAttempt before scoring: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetAttemptReport(ctx, attemptID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetAttemptReport before scoring: expected ErrNotFound, got %v", err)
	}

	if _, err := s.CalculateAttemptScore(ctx, attemptID); err != nil {
		t.Fatalf("CalculateAttemptScore: %v", err)
	}
	if _, err := s.GetAttemptReport(ctx, attemptID); err != nil {
		t.Errorf("GetAttemptReport after scoring: %v", err)
	}
}

func TestInsertUserAnswersReplacesEarlierRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	userID := insertTestUser(t, s, "a@example.com")
	examID := insertTestExam(t, s, "E")
	q1 := insertTestQuestion(t, s, examID, "Q1")
	q2 := insertTestQuestion(t, s, examID, "Q2")
	attemptID, _ := s.CreateAttempt(ctx, userID, examID, time.Now())

	wrong1, right1, right2 := wrongAnswer(q1), rightAnswer(q1), rightAnswer(q2)
	if err := s.InsertUserAnswers(ctx, []model.UserAnswer{
		{AttemptID: attemptID, QuestionID: q1.ID, AnswerID: &wrong1, Position: 0},
		{AttemptID: attemptID, QuestionID: q2.ID, Position: 1},
	}); err != nil {
		t.Fatalf("first InsertUserAnswers: %v", err)
	}
	if err := s.InsertUserAnswers(ctx, []model.UserAnswer{
		{AttemptID: attemptID, QuestionID: q1.ID, AnswerID: &right1, Position: 0},
		{AttemptID: attemptID, QuestionID: q2.ID, AnswerID: &right2, Position: 1},
	}); err != nil {
		t.Fatalf("second InsertUserAnswers: %v", err)
	}

	score, err := s.CalculateAttemptScore(ctx, attemptID)
	if err != nil {
		t.Fatalf("CalculateAttemptScore: %v", err)
	}
	if score.TotalQuestions != 2 || score.CorrectAnswers != 2 {
		t.Errorf("expected 2 of 2 correct, got %+v", score)
	}
}

func TestListAttemptsAndStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	userID := insertTestUser(t, s, "a@example.com")
	otherID := insertTestUser(t, s, "b@example.com")
	examA := insertTestExam(t, s, "A")
	examB := insertTestExam(t, s, "B")
	qa := insertTestQuestion(t, s, examA, "QA")
	qb := insertTestQuestion(t, s, examB, "QB")

	finish := func(user, exam int64, q model.Question, correct bool) {
		t.Helper()
		id, err := s.CreateAttempt(ctx, user, exam, time.Now())
		if err != nil {
			t.Fatalf("CreateAttempt: %v", err)
		}
		ans := wrongAnswer(q)
		if correct {
			ans = rightAnswer(q)
		}
		if err := s.InsertUserAnswers(ctx, []model.UserAnswer{{AttemptID: id, QuestionID: q.ID, AnswerID: &ans}}); err != nil {
			t.Fatalf("InsertUserAnswers: %v", err)
		}
		if _, err := s.CalculateAttemptScore(ctx, id); err != nil {
			t.Fatalf("CalculateAttemptScore: %v", err)
		}
	}

	finish(userID, examA, qa, true)
	finish(userID, examA, qa, false)
	finish(userID, examB, qb, true)
	finish(otherID, examB, qb, false)

	// An unfinished attempt is not listed.
	if _, err := s.CreateAttempt(ctx, userID, examA, time.Now()); err != nil {
		t.Fatalf("CreateAttempt: %v", err)
	}

	attempts, err := s.ListAttempts(ctx, userID)
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(attempts))
	}
	if attempts[0].ID < attempts[1].ID {
		t.Error("expected newest attempt first")
	}

	st, err := s.Stats(ctx, userID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Attempts != 3 || st.Passed != 2 || st.BestPercentage != 100 {
		t.Errorf("unexpected stats: %+v", st)
	}
	if st.AveragePercentage < 66.6 || st.AveragePercentage > 66.7 {
		t.Errorf("expected average ~66.67, got %v", st.AveragePercentage)
	}
	if len(st.Exams) != 2 || st.Exams[0].ExamTitle != "A" || st.Exams[0].Attempts != 2 || st.Exams[0].AveragePercentage != 50 {
		t.Errorf("unexpected per-exam stats: %+v", st.Exams)
	}

	empty, err := s.Stats(ctx, 9999)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if empty.Attempts != 0 || len(empty.Exams) != 0 {
		t.Errorf("expected empty stats, got %+v", empty)
	}
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	count, err := s.UserCount(ctx)
	if err != nil || count != 0 {
		t.Fatalf("UserCount = %d, %v", count, err)
	}

	id := insertTestUser(t, s, " Someone@Example.com ")
	u, err := s.GetUserByEmail(ctx, "someone@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if u == nil || u.ID != id || !u.Active || u.Role != model.UserRoleCandidate {
		t.Fatalf("unexpected user: %+v", u)
	}

	byID, err := s.GetUserByID(ctx, id)
	if err != nil || byID == nil || byID.Email != "someone@example.com" {
		t.Fatalf("GetUserByID = %+v, %v", byID, err)
	}

	missing, err := s.GetUserByEmail(ctx, "nobody@example.com")
	if err != nil || missing != nil {
		t.Errorf("expected nil user, got %+v, %v", missing, err)
	}

	if _, err := s.CreateUser(ctx, model.User{Email: "someone@example.com", PasswordHash: "x"}); err == nil {
		t.Error("expected duplicate email to fail")
	}
}

func TestImportedFileHash(t *testing.T) {
	s := newTestStore(t)

	// Missing file returns empty string.
	hash, err := s.GetImportedFileHash("/some/path.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty hash, got %q", hash)
	}

	if err := s.SetImportedFileHash("/some/path.json", "abc123"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	hash, _ = s.GetImportedFileHash("/some/path.json")
	if hash != "abc123" {
		t.Errorf("expected 'abc123', got %q", hash)
	}

	// Update existing.
	if err := s.SetImportedFileHash("/some/path.json", "def456"); err != nil {
		t.Fatalf("SetImportedFileHash update: %v", err)
	}
	hash, _ = s.GetImportedFileHash("/some/path.json")
	if hash != "def456" {
		t.Errorf("expected 'def456', got %q", hash)
	}
}
