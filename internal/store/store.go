package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pavelanni/examprep/internal/model"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidQuestion is returned when a question does not have exactly one
// correct answer.
var ErrInvalidQuestion = errors.New("question must have exactly one correct answer")

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and serialises
	// writers, which sqlite does anyway.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'candidate',
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS exams (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		duration_sec INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		exam_id INTEGER NOT NULL,
		text TEXT NOT NULL,
		explanation TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (exam_id) REFERENCES exams(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		question_id INTEGER NOT NULL,
		text TEXT NOT NULL,
		is_correct BOOLEAN NOT NULL DEFAULT 0,
		FOREIGN KEY (question_id) REFERENCES questions(id) ON DELETE CASCADE
	);

	CREATE UNIQUE INDEX IF NOT EXISTS answers_one_correct
		ON answers(question_id) WHERE is_correct = 1;

	CREATE TABLE IF NOT EXISTS user_attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		exam_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		score INTEGER NOT NULL DEFAULT 0,
		percentage REAL NOT NULL DEFAULT 0,
		total_questions INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (exam_id) REFERENCES exams(id),
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS user_answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		attempt_id INTEGER NOT NULL,
		question_id INTEGER NOT NULL,
		answer_id INTEGER,
		position INTEGER NOT NULL,
		UNIQUE (attempt_id, question_id),
		FOREIGN KEY (attempt_id) REFERENCES user_attempts(id) ON DELETE CASCADE,
		FOREIGN KEY (question_id) REFERENCES questions(id),
		FOREIGN KEY (answer_id) REFERENCES answers(id)
	);

	CREATE TABLE IF NOT EXISTS imported_files (
		path TEXT PRIMARY KEY,
		hash TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateExam inserts an exam.
func (s *Store) CreateExam(ctx context.Context, e model.Exam) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO exams (title, description, duration_sec) VALUES (?, ?, ?)`,
		e.Title, e.Description, e.DurationSec,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const examColumns = `e.id, e.title, e.description, e.duration_sec,
	(SELECT COUNT(*) FROM questions q WHERE q.exam_id = e.id)`

// GetExam returns an exam by ID.
func (s *Store) GetExam(ctx context.Context, id int64) (model.Exam, error) {
	var e model.Exam
	err := s.db.QueryRowContext(ctx,
		`SELECT `+examColumns+` FROM exams e WHERE e.id = ?`, id,
	).Scan(&e.ID, &e.Title, &e.Description, &e.DurationSec, &e.Questions)
	if errors.Is(err, sql.ErrNoRows) {
		return e, fmt.Errorf("exam %d: %w", id, ErrNotFound)
	}
	return e, err
}

// GetExamByTitle returns an exam by its unique title.
func (s *Store) GetExamByTitle(ctx context.Context, title string) (model.Exam, error) {
	var e model.Exam
	err := s.db.QueryRowContext(ctx,
		`SELECT `+examColumns+` FROM exams e WHERE e.title = ?`, title,
	).Scan(&e.ID, &e.Title, &e.Description, &e.DurationSec, &e.Questions)
	if errors.Is(err, sql.ErrNoRows) {
		return e, fmt.Errorf("exam %q: %w", title, ErrNotFound)
	}
	return e, err
}

// ListExams returns all exams ordered by ID.
func (s *Store) ListExams(ctx context.Context) ([]model.Exam, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+examColumns+` FROM exams e ORDER BY e.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.DurationSec, &e.Questions); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// InsertQuestion stores a question together with its answers.
func (s *Store) InsertQuestion(ctx context.Context, q model.Question) (int64, error) {
	correct := 0
	for _, a := range q.Answers {
		if a.IsCorrect {
			correct++
		}
	}
	if correct != 1 {
		return 0, ErrInvalidQuestion
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO questions (exam_id, text, explanation) VALUES (?, ?, ?)`,
		q.ExamID, q.Text, q.Explanation,
	)
	if err != nil {
		return 0, err
	}
	questionID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for _, a := range q.Answers {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO answers (question_id, text, is_correct) VALUES (?, ?, ?)`,
			questionID, a.Text, a.IsCorrect,
		)
		if err != nil {
			return 0, err
		}
	}
	return questionID, tx.Commit()
}

// ListQuestions returns the questions of an exam in insertion order, with answers.
func (s *Store) ListQuestions(ctx context.Context, examID int64) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, exam_id, text, explanation FROM questions WHERE exam_id = ? ORDER BY id`, examID,
	)
	if err != nil {
		return nil, err
	}
	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Text, &q.Explanation); err != nil {
			rows.Close()
			return nil, err
		}
		questions = append(questions, q)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range questions {
		answers, err := s.listAnswers(ctx, questions[i].ID)
		if err != nil {
			return nil, err
		}
		questions[i].Answers = answers
	}
	return questions, nil
}

// ListQuestionsWithoutExplanation returns every question whose explanation is empty.
func (s *Store) ListQuestionsWithoutExplanation(ctx context.Context) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, exam_id, text, explanation FROM questions WHERE explanation = '' ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Text, &q.Explanation); err != nil {
			rows.Close()
			return nil, err
		}
		questions = append(questions, q)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	for i := range questions {
		answers, err := s.listAnswers(ctx, questions[i].ID)
		if err != nil {
			return nil, err
		}
		questions[i].Answers = answers
	}
	return questions, nil
}

// SetExplanation updates the explanation of a question.
func (s *Store) SetExplanation(ctx context.Context, questionID int64, explanation string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE questions SET explanation = ? WHERE id = ?`, explanation, questionID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("question %d: %w", questionID, ErrNotFound)
	}
	return nil
}

func (s *Store) listAnswers(ctx context.Context, questionID int64) ([]model.Answer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question_id, text, is_correct FROM answers WHERE question_id = ? ORDER BY id`, questionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.Text, &a.IsCorrect); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
