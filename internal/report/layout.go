package report

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/pavelanni/examprep/internal/model"
)

// Input is everything a report is built from. Render never modifies it.
type Input struct {
	Attempt   model.Attempt
	Questions []model.AnsweredQuestion
	Candidate *model.Candidate
}

// Labels translates a message ID of the report into the report language.
type Labels func(msgID string, data map[string]any) string

type align int

const (
	alignStart align = iota
	alignCenter
)

type style struct {
	size  float64
	bold  bool
	color Color
	align align
}

var (
	styleTitle    = style{size: 18, bold: true, color: colorText, align: alignCenter}
	styleSubtitle = style{size: 12, color: colorMuted, align: alignCenter}
	styleBody     = style{size: 11, color: colorText}
	styleStrong   = style{size: 12, bold: true, color: colorText}
	styleSection  = style{size: 14, bold: true, color: colorText}
	styleBanner   = style{size: 16, bold: true, color: colorWhite, align: alignCenter}
	styleFooter   = style{size: 9, color: colorMuted}
)

const (
	boxPadding = 8
	blockGap   = 8
)

// row is one wrapped logical line and the style it is drawn with.
type row struct {
	text string
	st   style
}

type layouter struct {
	g      Geometry
	sh     Shaper
	labels Labels
	doc    *Document
	page   *Page
	y      float64
}

// Layout places the report on pages. It returns ErrEmptyReport when there
// are no questions.
func Layout(in Input, sh Shaper, labels Labels, g Geometry) (*Document, error) {
	if len(in.Questions) == 0 {
		return nil, ErrEmptyReport
	}
	l := &layouter{
		g:      g,
		sh:     sh,
		labels: labels,
		doc:    &Document{Width: g.Width, Height: g.Height},
	}
	l.newPage()
	l.header()
	l.info(in)
	l.result(in)
	l.section()
	for i, q := range in.Questions {
		l.question(i, q)
	}
	l.footer()
	return l.doc, nil
}

func (l *layouter) newPage() {
	l.page = &Page{Number: len(l.doc.Pages) + 1}
	l.doc.Pages = append(l.doc.Pages, l.page)
	l.y = l.g.Height - l.g.Top
}

func (l *layouter) atPageTop() bool {
	return l.y >= l.g.Height-l.g.Top
}

// ensure starts a new page unless h points fit above the bottom margin.
func (l *layouter) ensure(h float64) {
	if l.y-h < l.g.Bottom && !l.atPageTop() {
		l.newPage()
	}
}

func (l *layouter) space(h float64) {
	if !l.atPageTop() {
		l.y -= h
	}
}

func (l *layouter) t(id string) string { return l.labels(id, nil) }

// rows wraps text to width and tags every line with st.
func (l *layouter) rows(text string, st style, width float64) []row {
	measure := func(s string) float64 {
		return l.sh.Measure(l.sh.Visual(s), st.size, st.bold)
	}
	var out []row
	for _, line := range Wrap(l.sh.Normalize(text), width, measure) {
		out = append(out, row{text: line, st: st})
	}
	return out
}

// labeled wraps "label: value" where value is normalized on its own.
func (l *layouter) labeled(labelID, value string, st style, width float64) []row {
	return l.rows(l.t(labelID)+": "+l.sh.Normalize(value), st, width)
}

func rowsHeight(rows []row) float64 {
	var h float64
	for _, r := range rows {
		h += lineHeight(r.st.size)
	}
	return h
}

func (l *layouter) boxHeight(rows []row, pad float64) float64 {
	return 2*pad + rowsHeight(rows)
}

// box lays out rows inside an optional filled box. A box taller than an
// empty page is split into pieces, each preceded by its own page check.
func (l *layouter) box(kind BlockKind, q int, rows []row, fill *Color, pad float64) {
	if len(rows) == 0 {
		return
	}
	if h := l.boxHeight(rows, pad); h <= l.g.ContentHeight() {
		l.ensure(h)
		l.place(kind, q, rows, fill, pad, false)
		return
	}
	continued := false
	for len(rows) > 0 {
		l.ensure(2*pad + lineHeight(rows[0].st.size))
		avail := l.y - l.g.Bottom - 2*pad
		n, used := 0, 0.0
		for n < len(rows) && used+lineHeight(rows[n].st.size) <= avail {
			used += lineHeight(rows[n].st.size)
			n++
		}
		if n == 0 {
			n = 1
		}
		l.place(kind, q, rows[:n], fill, pad, continued)
		rows = rows[n:]
		continued = true
	}
}

func (l *layouter) place(kind BlockKind, q int, rows []row, fill *Color, pad float64, continued bool) {
	top := l.y
	h := l.boxHeight(rows, pad)
	if fill != nil {
		l.page.Ops = append(l.page.Ops, Op{
			Kind:  OpRect,
			X:     l.g.Left,
			Y:     top - h,
			W:     l.g.ContentWidth(),
			H:     h,
			Color: *fill,
		})
	}
	y := top - pad
	for _, r := range rows {
		l.text(r.text, r.st, l.g.Left+pad, l.g.ContentWidth()-2*pad, y-r.st.size)
		y -= lineHeight(r.st.size)
	}
	l.doc.Blocks = append(l.doc.Blocks, Block{
		Kind:      kind,
		Question:  q,
		Page:      l.page.Number,
		Top:       top,
		Bottom:    top - h,
		Continued: continued,
	})
	l.y = top - h
}

// text draws one wrapped line with its baseline at y inside [x, x+width].
func (l *layouter) text(line string, st style, x, width, y float64) {
	l.textOn(l.page, line, st, x, width, y)
}

func (l *layouter) textOn(p *Page, line string, st style, x, width, y float64) {
	if line == "" {
		return
	}
	visual := l.sh.Visual(line)
	w := l.sh.Measure(visual, st.size, st.bold)
	switch {
	case st.align == alignCenter:
		x += (width - w) / 2
	case l.sh.RightToLeft():
		x += width - w
	}
	p.Ops = append(p.Ops, Op{
		Kind:  OpText,
		X:     x,
		Y:     y,
		Text:  visual,
		Size:  st.size,
		Bold:  st.bold,
		Color: st.color,
	})
}

func (l *layouter) rule(y float64, p *Page) {
	p.Ops = append(p.Ops, Op{
		Kind:  OpLine,
		X:     l.g.Left,
		Y:     y,
		W:     l.g.ContentWidth(),
		Color: colorRule,
	})
}

func (l *layouter) header() {
	w := l.g.ContentWidth()
	rows := l.rows(l.t("ReportTitle"), styleTitle, w)
	rows = append(rows, l.rows(l.t("ReportSubtitle"), styleSubtitle, w)...)
	l.box(BlockHeader, -1, rows, nil, 0)
	l.y -= 6
	l.rule(l.y, l.page)
	l.y -= blockGap
}

func (l *layouter) info(in Input) {
	w := l.g.ContentWidth() - 2*boxPadding
	var rows []row
	if c := in.Candidate; c != nil {
		if c.DisplayName != "" {
			rows = append(rows, l.labeled("CandidateName", c.DisplayName, styleBody, w)...)
		}
		if c.Email != "" {
			rows = append(rows, l.labeled("CandidateEmail", c.Email, styleBody, w)...)
		}
	}
	rows = append(rows, l.labeled("ExamLabel", in.Attempt.ExamTitle, styleBody, w)...)
	rows = append(rows, l.labeled("StartedAt", formatTime(in.Attempt.StartedAt), styleBody, w)...)
	completed := l.t("Unknown")
	if in.Attempt.CompletedAt != nil {
		completed = formatTime(*in.Attempt.CompletedAt)
	}
	rows = append(rows, l.labeled("CompletedAt", completed, styleBody, w)...)

	fill := colorHeaderFill
	l.box(BlockInfo, -1, rows, &fill, boxPadding)
	l.space(blockGap)
}

func (l *layouter) result(in Input) {
	a := in.Attempt
	w := l.g.ContentWidth() - 2*boxPadding
	total := len(in.Questions)

	var rows []row
	rows = append(rows, l.labeled("ScoreLabel", strconv.Itoa(a.Score), styleStrong, w)...)
	rows = append(rows, l.labeled("PercentageLabel", FormatPercent(a.Percentage), styleStrong, w)...)
	rows = append(rows, l.labeled("CorrectAnswersLabel", fmt.Sprintf("%d / %d", a.Score, total), styleBody, w)...)

	verdict, fill := l.t("Failed"), colorFailFill
	if model.Passed(a.Percentage) {
		verdict, fill = l.t("Passed"), colorPassFill
	}
	banner := l.rows(verdict, styleBanner, w)

	// The banner stays with the figures it summarises.
	l.ensure(l.boxHeight(rows, boxPadding) + l.boxHeight(banner, boxPadding))
	note := colorNoteFill
	l.box(BlockResult, -1, rows, &note, boxPadding)
	l.box(BlockResult, -1, banner, &fill, boxPadding)
	l.space(blockGap * 2)
}

func (l *layouter) section() {
	rows := l.rows(l.t("DetailsTitle"), styleSection, l.g.ContentWidth())
	l.ensure(rowsHeight(rows) + 4 + blockGap)
	l.box(BlockSection, -1, rows, nil, 0)
	l.y -= 4
	l.rule(l.y, l.page)
	l.y -= blockGap
}

func (l *layouter) question(i int, q model.AnsweredQuestion) {
	w := l.g.ContentWidth()
	inner := w - 2*boxPadding

	head := l.rows(l.labels("QuestionN", map[string]any{"N": i + 1}), styleStrong, w)
	head = append(head, l.rows(q.QuestionText, styleBody, w)...)

	selected := q.SelectedAnswerText
	if !q.Answered {
		selected = l.t("NotAnswered")
	}
	yourStyle, yourFill := style{size: 11, color: colorBadText}, colorBadFill
	if q.IsCorrect {
		yourStyle, yourFill = style{size: 11, color: colorGoodText}, colorGoodFill
	}
	yours := l.labeled("YourAnswer", selected, yourStyle, inner)

	// Keep the heading on the same page as the first answer box.
	if h := rowsHeight(head) + 4 + l.boxHeight(yours, boxPadding); h <= l.g.ContentHeight() {
		l.ensure(h)
	}
	l.box(BlockQuestion, i, head, nil, 0)
	l.y -= 4

	l.box(BlockYourAnswer, i, yours, &yourFill, boxPadding)

	if !q.IsCorrect {
		l.space(4)
		correct := l.labeled("CorrectAnswer", q.CorrectAnswerText, style{size: 11, color: colorGoodText}, inner)
		fill := colorGoodFill
		l.box(BlockCorrectAnswer, i, correct, &fill, boxPadding)
	}
	if q.Explanation != "" {
		l.space(4)
		expl := l.labeled("Explanation", q.Explanation, style{size: 10, color: colorNoteText}, inner)
		fill := colorNoteFill
		l.box(BlockExplanation, i, expl, &fill, boxPadding)
	}
	l.space(blockGap * 2)
}

// footer stamps every page once the page count is known.
func (l *layouter) footer() {
	total := len(l.doc.Pages)
	w := l.g.ContentWidth()
	y := l.g.Bottom - 30
	for _, p := range l.doc.Pages {
		l.rule(l.g.Bottom-15, p)
		text := l.sh.Normalize(l.t("FooterText"))
		num := l.sh.Normalize(l.labels("PageXofN", map[string]any{"Page": p.Number, "Total": total}))
		// The page number sits on the side opposite the footer text.
		l.textOn(p, text, styleFooter, l.g.Left, w, y)
		if l.sh.RightToLeft() {
			l.textLeft(p, num, styleFooter, l.g.Left, y)
		} else {
			l.textRight(p, num, styleFooter, l.g.Left+w, y)
		}
	}
}

func (l *layouter) textLeft(p *Page, line string, st style, x, y float64) {
	visual := l.sh.Visual(line)
	p.Ops = append(p.Ops, Op{Kind: OpText, X: x, Y: y, Text: visual, Size: st.size, Color: st.color})
}

func (l *layouter) textRight(p *Page, line string, st style, right, y float64) {
	visual := l.sh.Visual(line)
	w := l.sh.Measure(visual, st.size, st.bold)
	p.Ops = append(p.Ops, Op{Kind: OpText, X: right - w, Y: y, Text: visual, Size: st.size, Color: st.color})
}

// FormatPercent formats a percentage without trailing zeros, e.g. "80%".
func FormatPercent(p float64) string {
	if p == math.Trunc(p) {
		return strconv.FormatFloat(p, 'f', 0, 64) + "%"
	}
	return strconv.FormatFloat(p, 'f', 1, 64) + "%"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}
