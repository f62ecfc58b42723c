// Package bank imports question banks from JSON or YAML files.
package bank

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pavelanni/examprep/internal/model"
	"github.com/pavelanni/examprep/internal/store"
)

// Result describes the outcome of importing one file.
type Result struct {
	Path      string
	ExamID    int64
	Questions int
	// Skipped is set when the file was imported before.
	Skipped bool
}

// Parse decodes a question bank. Files ending in .yaml or .yml are read as
// YAML, everything else as JSON.
func Parse(name string, data []byte) (model.ExamImport, error) {
	var bank model.ExamImport
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &bank); err != nil {
			return bank, fmt.Errorf("parse %s: %w", name, err)
		}
	default:
		if err := json.Unmarshal(data, &bank); err != nil {
			return bank, fmt.Errorf("parse %s: %w", name, err)
		}
	}
	return bank, nil
}

// Validate checks a bank before anything is written.
func Validate(bank model.ExamImport) error {
	if strings.TrimSpace(bank.Title) == "" {
		return errors.New("exam title is required")
	}
	if len(bank.Questions) == 0 {
		return errors.New("exam has no questions")
	}
	if bank.DurationSec < 0 {
		return fmt.Errorf("negative duration %d", bank.DurationSec)
	}
	for i, q := range bank.Questions {
		if strings.TrimSpace(q.Text) == "" {
			return fmt.Errorf("question %d: text is required", i+1)
		}
		if len(q.Answers) < 2 {
			return fmt.Errorf("question %d: at least two answers are required", i+1)
		}
		correct := 0
		for _, a := range q.Answers {
			if strings.TrimSpace(a.Text) == "" {
				return fmt.Errorf("question %d: empty answer", i+1)
			}
			if a.Correct {
				correct++
			}
		}
		if correct != 1 {
			return fmt.Errorf("question %d: %d correct answers, want exactly one", i+1, correct)
		}
	}
	return nil
}

// ImportFile loads one bank into st. A file whose content hash was recorded
// before is skipped; a changed file is skipped with a warning so that
// existing attempts keep pointing at the questions they were taken with.
func ImportFile(ctx context.Context, st *store.Store, path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{Path: path}, fmt.Errorf("read %s: %w", path, err)
	}
	return ImportData(ctx, st, path, data)
}

// ImportData imports a bank that was read from somewhere else, such as an
// upload. path is the name the import is recorded under; its extension picks
// the format.
func ImportData(ctx context.Context, st *store.Store, path string, data []byte) (Result, error) {
	res := Result{Path: path}
	hash := sha256sum(data)
	storedHash, err := st.GetImportedFileHash(path)
	if err != nil {
		return res, fmt.Errorf("check import status for %s: %w", path, err)
	}
	if storedHash == hash {
		slog.Info("question bank unchanged, skipping", "path", path)
		res.Skipped = true
		return res, nil
	}
	if storedHash != "" {
		slog.Warn("question bank changed since last import, skipping to keep existing attempts intact", "path", path)
		res.Skipped = true
		return res, nil
	}

	bank, err := Parse(path, data)
	if err != nil {
		return res, err
	}
	if err := Validate(bank); err != nil {
		return res, fmt.Errorf("%s: %w", path, err)
	}

	res.ExamID, err = examID(ctx, st, bank)
	if err != nil {
		return res, err
	}
	for _, qi := range bank.Questions {
		q := model.Question{ExamID: res.ExamID, Text: qi.Text, Explanation: qi.Explanation}
		for _, a := range qi.Answers {
			q.Answers = append(q.Answers, model.Answer{Text: a.Text, IsCorrect: a.Correct})
		}
		if _, err := st.InsertQuestion(ctx, q); err != nil {
			return res, fmt.Errorf("insert question from %s: %w", path, err)
		}
		res.Questions++
	}

	if err := st.SetImportedFileHash(path, hash); err != nil {
		return res, fmt.Errorf("record import for %s: %w", path, err)
	}
	slog.Info("imported question bank", "path", path, "exam", bank.Title, "count", res.Questions)
	return res, nil
}

// ImportFiles imports every path in order and stops at the first error.
func ImportFiles(ctx context.Context, st *store.Store, paths []string) ([]Result, error) {
	var results []Result
	for _, p := range paths {
		r, err := ImportFile(ctx, st, p)
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}
	return results, nil
}

// examID returns the exam named by the bank, creating it when needed.
func examID(ctx context.Context, st *store.Store, bank model.ExamImport) (int64, error) {
	e, err := st.GetExamByTitle(ctx, bank.Title)
	if err == nil {
		return e.ID, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return 0, fmt.Errorf("look up exam %q: %w", bank.Title, err)
	}
	id, err := st.CreateExam(ctx, model.Exam{
		Title:       bank.Title,
		Description: bank.Description,
		DurationSec: bank.DurationSec,
	})
	if err != nil {
		return 0, fmt.Errorf("create exam %q: %w", bank.Title, err)
	}
	return id, nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
