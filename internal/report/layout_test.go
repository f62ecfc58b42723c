package report

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/pavelanni/examprep/internal/i18n"
	"github.com/pavelanni/examprep/internal/model"
)

func TestMain(m *testing.M) {
	if err := i18n.Init("ar"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

// fixedMeasure gives every rune half the font size in width.
func fixedMeasure(s string, size float64, bold bool) float64 {
	return float64(utf8.RuneCountInString(s)) * size * 0.5
}

func englishLayout(t *testing.T, in Input, g Geometry) *Document {
	t.Helper()
	lex, err := i18n.Lexicon("ar", "en")
	if err != nil {
		t.Fatalf("Lexicon: %v", err)
	}
	doc, err := Layout(in, NewFallbackShaper(fixedMeasure, lex), Labels(i18n.Translator("en")), g)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	return doc
}

func sampleInput(n, correct int) Input {
	completed := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	in := Input{
		Attempt: model.Attempt{
			ID:             7,
			ExamID:         1,
			ExamTitle:      "Customer Agent",
			StartedAt:      completed.Add(-20 * time.Minute),
			CompletedAt:    &completed,
			Score:          correct,
			Percentage:     float64(correct*100) / float64(n),
			TotalQuestions: n,
		},
		Candidate: &model.Candidate{DisplayName: "Sara Ali", Email: "sara@example.com"},
	}
	for i := range n {
		q := model.AnsweredQuestion{
			QuestionText:       fmt.Sprintf("Which form is used for parcel number %d?", i+1),
			Answered:           true,
			IsCorrect:          i < correct,
			CorrectAnswerText:  "Form C",
			SelectedAnswerText: "Form C",
		}
		if !q.IsCorrect {
			q.SelectedAnswerText = "Form B"
			q.Explanation = "Form C covers parcels above the letter weight limit."
		}
		in.Questions = append(in.Questions, q)
	}
	return in
}

func pageTexts(p *Page) []string {
	var out []string
	for _, op := range p.Ops {
		if op.Kind == OpText {
			out = append(out, op.Text)
		}
	}
	return out
}

func docText(doc *Document) string {
	var sb strings.Builder
	for _, p := range doc.Pages {
		for _, s := range pageTexts(p) {
			sb.WriteString(s)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func checkBlocksInsideMargins(t *testing.T, doc *Document, g Geometry) {
	t.Helper()
	for _, b := range doc.Blocks {
		if b.Bottom < g.Bottom-0.001 {
			t.Errorf("%s block of question %d on page %d ends at %v, below margin %v", b.Kind, b.Question, b.Page, b.Bottom, g.Bottom)
		}
		if b.Top > g.Height-g.Top+0.001 {
			t.Errorf("%s block on page %d starts at %v, above margin", b.Kind, b.Page, b.Top)
		}
	}
}

func TestLayoutQuestionBlocksInOrder(t *testing.T) {
	in := sampleInput(25, 20)
	doc := englishLayout(t, in, A4)

	var order []int
	for _, b := range doc.Blocks {
		if b.Kind == BlockQuestion && !b.Continued {
			order = append(order, b.Question)
		}
	}
	if len(order) != len(in.Questions) {
		t.Fatalf("got %d question blocks, want %d", len(order), len(in.Questions))
	}
	for i, q := range order {
		if q != i {
			t.Fatalf("question block %d has index %d", i, q)
		}
	}
	for i := range in.Questions {
		if !strings.Contains(docText(doc), fmt.Sprintf("Question %d\n", i+1)) {
			t.Errorf("missing heading for question %d", i+1)
		}
	}
	checkBlocksInsideMargins(t, doc, A4)
}

func TestLayoutPassedSummary(t *testing.T) {
	in := sampleInput(10, 8)
	in.Attempt.Percentage = 80
	doc := englishLayout(t, in, A4)
	text := docText(doc)

	for _, want := range []string{"Score: 8", "Percentage: 80%", "Passed", "Exam Result Report", "Name: Sara Ali"} {
		if !strings.Contains(text, want) {
			t.Errorf("report text missing %q", want)
		}
	}
	if strings.Contains(text, "Failed") {
		t.Error("passed attempt shows Failed")
	}
	if !hasRect(doc, colorPassFill) {
		t.Error("no green banner")
	}
}

func TestLayoutFailedSummary(t *testing.T) {
	in := sampleInput(10, 4)
	doc := englishLayout(t, in, A4)
	text := docText(doc)
	if !strings.Contains(text, "Failed") || strings.Contains(text, "Passed") {
		t.Errorf("failed attempt banner wrong:\n%s", text)
	}
	if !hasRect(doc, colorFailFill) {
		t.Error("no red banner")
	}
}

func hasRect(doc *Document, c Color) bool {
	for _, p := range doc.Pages {
		for _, op := range p.Ops {
			if op.Kind == OpRect && op.Color == c {
				return true
			}
		}
	}
	return false
}

func TestLayoutAnswerBoxes(t *testing.T) {
	in := sampleInput(3, 1)
	in.Questions[2].Answered = false
	in.Questions[2].SelectedAnswerText = ""
	doc := englishLayout(t, in, A4)

	kinds := map[int][]BlockKind{}
	for _, b := range doc.Blocks {
		if b.Question >= 0 {
			kinds[b.Question] = append(kinds[b.Question], b.Kind)
		}
	}
	want := map[int][]BlockKind{
		0: {BlockQuestion, BlockYourAnswer},
		1: {BlockQuestion, BlockYourAnswer, BlockCorrectAnswer, BlockExplanation},
		2: {BlockQuestion, BlockYourAnswer, BlockCorrectAnswer, BlockExplanation},
	}
	if !reflect.DeepEqual(kinds, want) {
		t.Errorf("blocks = %v, want %v", kinds, want)
	}
	text := docText(doc)
	for _, s := range []string{"Your answer: Form B", "Correct answer: Form C", "Your answer: Not answered"} {
		if !strings.Contains(text, s) {
			t.Errorf("report text missing %q", s)
		}
	}
}

func TestLayoutFooterOnEveryPage(t *testing.T) {
	in := sampleInput(60, 30)
	doc := englishLayout(t, in, A4)
	if len(doc.Pages) < 3 {
		t.Fatalf("got %d pages, want at least 3", len(doc.Pages))
	}
	for _, p := range doc.Pages {
		want := fmt.Sprintf("Page %d of %d", p.Number, len(doc.Pages))
		texts := pageTexts(p)
		if !contains(texts, want) {
			t.Errorf("page %d missing footer %q", p.Number, want)
		}
		if !contains(texts, "Postal exam preparation platform") {
			t.Errorf("page %d missing footer text", p.Number)
		}
	}
	checkBlocksInsideMargins(t, doc, A4)
}

func TestLayoutThreePages(t *testing.T) {
	// A short page holds the summary on page one and one long question per
	// page after it.
	g := Geometry{Width: 595, Height: 400, Top: 40, Bottom: 60, Left: 40, Right: 40}
	in := sampleInput(2, 2)
	for i := range in.Questions {
		in.Questions[i].QuestionText = strings.Repeat("word ", 180)
	}
	doc := englishLayout(t, in, g)
	if len(doc.Pages) != 3 {
		t.Fatalf("got %d pages, want 3", len(doc.Pages))
	}
	for _, p := range doc.Pages {
		if want := fmt.Sprintf("Page %d of 3", p.Number); !contains(pageTexts(p), want) {
			t.Errorf("page %d missing %q", p.Number, want)
		}
	}
	checkBlocksInsideMargins(t, doc, g)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestLayoutSplitsTallBlocks(t *testing.T) {
	g := Geometry{Width: 300, Height: 300, Top: 30, Bottom: 50, Left: 20, Right: 20}
	in := sampleInput(1, 0)
	var words []string
	for i := range 400 {
		words = append(words, fmt.Sprintf("w%d", i))
	}
	in.Questions[0].Explanation = strings.Join(words, " ")
	doc := englishLayout(t, in, g)

	continued := 0
	for _, b := range doc.Blocks {
		if b.Kind == BlockExplanation && b.Continued {
			continued++
		}
	}
	if continued == 0 {
		t.Fatal("explanation was not split across pages")
	}
	checkBlocksInsideMargins(t, doc, g)

	// Every word is drawn exactly once.
	text := docText(doc)
	for _, w := range words {
		if strings.Count(" "+strings.ReplaceAll(text, "\n", " ")+" ", " "+w+" ") != 1 {
			t.Fatalf("word %q not drawn exactly once", w)
		}
	}
}

func TestLayoutEmpty(t *testing.T) {
	in := sampleInput(0, 0)
	_, err := Layout(in, NewFallbackShaper(fixedMeasure, nil), Labels(i18n.Translator("en")), A4)
	if !errors.Is(err, ErrEmptyReport) {
		t.Errorf("err = %v, want ErrEmptyReport", err)
	}
}

func TestLayoutDoesNotModifyInput(t *testing.T) {
	in := sampleInput(5, 3)
	in.Attempt.ExamTitle = "امتحان البريد"
	in.Questions[0].QuestionText = "ما هو الرسم؟"

	before := sampleInput(5, 3)
	before.Attempt.ExamTitle = in.Attempt.ExamTitle
	before.Questions[0].QuestionText = in.Questions[0].QuestionText

	englishLayout(t, in, A4)
	if _, err := Layout(in, NewUnicodeShaper(fixedMeasure), Labels(i18n.Translator("ar")), A4); err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if !reflect.DeepEqual(in, before) {
		t.Error("input was modified by Layout")
	}
}

func TestLayoutRightToLeft(t *testing.T) {
	in := sampleInput(2, 1)
	doc, err := Layout(in, NewUnicodeShaper(fixedMeasure), Labels(i18n.Translator("ar")), A4)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	text := docText(doc)
	if !strings.Contains(text, VisualOrder("تقرير نتيجة الامتحان")) {
		t.Errorf("arabic title missing:\n%s", text)
	}
	if !strings.Contains(text, VisualOrder("ناجح")) {
		t.Error("arabic passed banner missing")
	}

	// Labeled rows end at the right edge of their box.
	right := A4.Width - A4.Right - boxPadding
	found := false
	for _, op := range doc.Pages[0].Ops {
		if op.Kind != OpText || !strings.Contains(op.Text, "Form") {
			continue
		}
		found = true
		if end := op.X + fixedMeasure(op.Text, op.Size, op.Bold); end < right-0.001 || end > right+0.001 {
			t.Errorf("row %q ends at %v, want %v", op.Text, end, right)
		}
	}
	if !found {
		t.Error("no answer rows found")
	}
}

func TestFallbackShaper(t *testing.T) {
	lex, err := i18n.Lexicon("ar", "en")
	if err != nil {
		t.Fatalf("Lexicon: %v", err)
	}
	sh := NewFallbackShaper(fixedMeasure, lex)
	if got := sh.Normalize("ناجح"); got != "Passed" {
		t.Errorf("Normalize(ناجح) = %q, want Passed", got)
	}
	if got := sh.Visual("fee كم"); got != "?? fee" {
		t.Errorf("Visual = %q", got)
	}
	if got := sh.Visual("Café"); got != "Café" {
		t.Errorf("Latin-1 text changed: %q", got)
	}
	if n := placeholderCount(sh, "كم ok"); n != 2 {
		t.Errorf("placeholderCount = %d, want 2", n)
	}
	if n := placeholderCount(NewUnicodeShaper(fixedMeasure), "كم"); n != 0 {
		t.Errorf("unicode shaper placeholderCount = %d, want 0", n)
	}
}

func TestFormatPercent(t *testing.T) {
	tests := map[float64]string{80: "80%", 0: "0%", 66.5: "66.5%", 100: "100%"}
	for in, want := range tests {
		if got := FormatPercent(in); got != want {
			t.Errorf("FormatPercent(%v) = %q, want %q", in, got, want)
		}
	}
}
