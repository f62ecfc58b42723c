package report

// Coordinates in this file are in PDF points with the origin at the bottom
// left corner of the page, y growing upwards.

// Color is an RGB color.
type Color struct{ R, G, B uint8 }

var (
	colorText       = Color{33, 33, 33}
	colorMuted      = Color{97, 97, 97}
	colorRule       = Color{189, 189, 189}
	colorWhite      = Color{255, 255, 255}
	colorPassFill   = Color{46, 125, 50}
	colorFailFill   = Color{198, 40, 40}
	colorGoodFill   = Color{232, 245, 233}
	colorGoodText   = Color{27, 94, 32}
	colorBadFill    = Color{255, 235, 238}
	colorBadText    = Color{183, 28, 28}
	colorNoteFill   = Color{245, 245, 245}
	colorNoteText   = Color{66, 66, 66}
	colorHeaderFill = Color{237, 242, 250}
)

// OpKind identifies a drawing operation.
type OpKind int

const (
	OpText OpKind = iota
	OpRect
	OpLine
)

// Op is one absolutely positioned drawing operation.
type Op struct {
	Kind OpKind
	// X, Y is the text baseline origin, the lower left corner of a rect or
	// the start of a line.
	X, Y float64
	// W, H is the size of a rect or the offset of a line's end point.
	W, H float64
	// Text is already in visual order.
	Text  string
	Size  float64
	Bold  bool
	Color Color
}

// Page is one A4 page of drawing operations.
type Page struct {
	Number int
	Ops    []Op
}

// BlockKind names a laid out section of the report.
type BlockKind int

const (
	BlockHeader BlockKind = iota
	BlockInfo
	BlockResult
	BlockSection
	BlockQuestion
	BlockYourAnswer
	BlockCorrectAnswer
	BlockExplanation
)

func (k BlockKind) String() string {
	switch k {
	case BlockHeader:
		return "header"
	case BlockInfo:
		return "info"
	case BlockResult:
		return "result"
	case BlockSection:
		return "section"
	case BlockQuestion:
		return "question"
	case BlockYourAnswer:
		return "your-answer"
	case BlockCorrectAnswer:
		return "correct-answer"
	case BlockExplanation:
		return "explanation"
	}
	return "unknown"
}

// Block records where a section of the report was placed.
type Block struct {
	Kind BlockKind
	// Question is the zero-based question index, or -1.
	Question int
	Page     int
	Top      float64
	Bottom   float64
	// Continued is set on the second and later pieces of a block that was
	// split across pages.
	Continued bool
}

// Document is the laid out report before encoding.
type Document struct {
	Width, Height float64
	Pages         []*Page
	Blocks        []Block
}

// Geometry describes the page and its margins.
type Geometry struct {
	Width, Height float64
	Top, Bottom   float64
	Left, Right   float64
}

// A4 is the page geometry used for reports.
var A4 = Geometry{Width: 595, Height: 842, Top: 50, Bottom: 60, Left: 40, Right: 40}

// ContentWidth is the width available between the side margins.
func (g Geometry) ContentWidth() float64 { return g.Width - g.Left - g.Right }

// ContentHeight is the height available on an empty page.
func (g Geometry) ContentHeight() float64 { return g.Height - g.Top - g.Bottom }

func lineHeight(size float64) float64 { return size + 4 }
