// Package report lays out the result of a completed exam attempt and
// encodes it as a PDF.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/pavelanni/examprep/internal/i18n"
	"github.com/pavelanni/examprep/internal/model"
)

var (
	// ErrEmptyReport is returned for an attempt without questions.
	ErrEmptyReport = errors.New("report has no questions")
	// ErrFontUnavailable is returned by New when an Arabic font is required
	// but could not be loaded.
	ErrFontUnavailable = errors.New("arabic font unavailable")
)

// RenderError wraps a failure of the PDF writer.
type RenderError struct {
	Op  string
	Err error
}

func (e *RenderError) Error() string { return "report: " + e.Op + ": " + e.Err.Error() }

func (e *RenderError) Unwrap() error { return e.Err }

// Config controls font resolution.
type Config struct {
	// FontPath or FontURL locate a TrueType font covering Arabic. The path
	// wins when both are set.
	FontPath    string
	FontURL     string
	FontTimeout time.Duration
	// RequireArabicFont makes New fail instead of falling back to Helvetica.
	RequireArabicFont bool
	// HTTPClient fetches FontURL; http.DefaultClient when nil.
	HTTPClient *http.Client
	// Geometry defaults to A4.
	Geometry Geometry
}

// Engine renders attempt reports. It is safe for concurrent use: font data
// is read-only after New and every call builds its own PDF writer.
//
// The i18n bundle must be initialised before New is called.
type Engine struct {
	g       Geometry
	ttf     []byte
	lexicon map[string]string
	labels  Labels
}

// New resolves the report font once. Without a usable Arabic font the engine
// draws English labels in Helvetica.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	e := &Engine{g: cfg.Geometry}
	if e.g == (Geometry{}) {
		e.g = A4
	}

	ttf, err := loadFont(ctx, cfg)
	if err == nil {
		err = coversArabic(ttf)
	}
	if err == nil {
		err = checkFont(e.g, ttf)
	}
	if err == nil {
		e.ttf = ttf
		e.labels = i18n.Translator("ar")
		slog.Info("report font loaded", "bytes", len(ttf))
		return e, nil
	}
	if cfg.RequireArabicFont {
		return nil, fmt.Errorf("%w: %v", ErrFontUnavailable, err)
	}

	slog.Warn("arabic font unavailable, reports use Helvetica with English labels", "error", err)
	lex, lerr := i18n.Lexicon("ar", "en")
	if lerr != nil {
		return nil, fmt.Errorf("build lexicon: %w", lerr)
	}
	e.lexicon = lex
	e.labels = i18n.Translator("en")
	return e, nil
}

// HasArabicFont reports whether reports are drawn with the embedded font.
func (e *Engine) HasArabicFont() bool { return e.ttf != nil }

func (e *Engine) shaper(measure MeasureFunc) Shaper {
	if e.ttf != nil {
		return NewUnicodeShaper(measure)
	}
	return NewFallbackShaper(measure, e.lexicon)
}

// Layout builds the document model of a report without encoding it.
func (e *Engine) Layout(in Input) (*Document, error) {
	if len(in.Questions) == 0 {
		return nil, ErrEmptyReport
	}
	pdf, font, err := newPDF(e.g, e.ttf)
	if err != nil {
		return nil, &RenderError{Op: "init", Err: err}
	}
	return Layout(in, e.shaper(font.measure(pdf)), e.labels, e.g)
}

// Render lays out and encodes the report for one attempt.
func (e *Engine) Render(ctx context.Context, in Input) ([]byte, error) {
	if len(in.Questions) == 0 {
		return nil, ErrEmptyReport
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdf, font, err := newPDF(e.g, e.ttf)
	if err != nil {
		return nil, &RenderError{Op: "init", Err: err}
	}
	sh := e.shaper(font.measure(pdf))
	checkPercentage(in)
	if n := countPlaceholders(sh, in); n > 0 {
		slog.Warn("report text drawn with placeholder glyphs", "attempt_id", in.Attempt.ID, "count", n)
	}

	doc, err := Layout(in, sh, e.labels, e.g)
	if err != nil {
		return nil, err
	}
	out, err := encode(pdf, font, doc, metadata{
		title:   e.labels("ReportTitle", nil),
		subject: in.Attempt.ExamTitle,
		created: reportDate(in.Attempt),
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("rendered report", "attempt_id", in.Attempt.ID, "pages", len(doc.Pages), "bytes", len(out))
	return out, nil
}

// checkPercentage logs when the stored percentage disagrees with the
// correct answers listed in the report. The stored value is still the one
// printed. It returns the recomputed percentage.
func checkPercentage(in Input) float64 {
	total := len(in.Questions)
	if total == 0 {
		return 0
	}
	correct := 0
	for _, q := range in.Questions {
		if q.IsCorrect {
			correct++
		}
	}
	want := math.Round(100 * float64(correct) / float64(total))
	if want != in.Attempt.Percentage {
		slog.Warn("stored percentage does not match answered questions",
			"attempt_id", in.Attempt.ID,
			"correct", correct,
			"questions", total,
			"stored", in.Attempt.Percentage,
			"computed", want,
		)
	}
	return want
}

func countPlaceholders(sh Shaper, in Input) int {
	n := placeholderCount(sh, in.Attempt.ExamTitle)
	if c := in.Candidate; c != nil {
		n += placeholderCount(sh, c.DisplayName) + placeholderCount(sh, c.Email)
	}
	for _, q := range in.Questions {
		n += placeholderCount(sh, q.QuestionText)
		n += placeholderCount(sh, q.SelectedAnswerText)
		n += placeholderCount(sh, q.CorrectAnswerText)
		n += placeholderCount(sh, q.Explanation)
	}
	return n
}

func reportDate(a model.Attempt) time.Time {
	if a.CompletedAt != nil {
		return *a.CompletedAt
	}
	return a.StartedAt
}

// Filename returns the download name of an attempt's report,
// "report-<exam title>-<YYYY-MM-DD>.pdf".
func Filename(a model.Attempt) string {
	title := strings.Map(func(r rune) rune {
		switch {
		case r == '/', r == '\\', r == ':', r == '"', r == '*', r == '?', r == '<', r == '>', r == '|':
			return '-'
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, strings.TrimSpace(a.ExamTitle))
	if title == "" {
		title = "exam"
	}
	return fmt.Sprintf("report-%s-%s.pdf", title, reportDate(a).Format("2006-01-02"))
}
