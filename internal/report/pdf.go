package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

const (
	unicodeFamily = "ReportSans"
	coreFamily    = "Helvetica"
)

// pdfFont is the font a report is measured and drawn with.
type pdfFont struct {
	family  string
	hasBold bool
	// tr converts drawn text into the font's encoding.
	tr func(string) string
}

func (f pdfFont) use(pdf *gofpdf.Fpdf, size float64, bold bool) {
	style := ""
	if bold && f.hasBold {
		style = "B"
	}
	pdf.SetFont(f.family, style, size)
}

func (f pdfFont) measure(pdf *gofpdf.Fpdf) MeasureFunc {
	return func(visual string, size float64, bold bool) float64 {
		f.use(pdf, size, bold)
		return pdf.GetStringWidth(f.tr(visual))
	}
}

// newPDF returns a blank document sized to g with ttf registered, or the
// core Helvetica font when ttf is nil.
func newPDF(g Geometry, ttf []byte) (*gofpdf.Fpdf, pdfFont, error) {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: g.Width, Ht: g.Height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCompression(true)

	var font pdfFont
	if ttf != nil {
		pdf.AddUTF8FontFromBytes(unicodeFamily, "", ttf)
		font = pdfFont{family: unicodeFamily, tr: func(s string) string { return s }}
	} else {
		font = pdfFont{family: coreFamily, hasBold: true, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	}
	if err := pdf.Error(); err != nil {
		return nil, pdfFont{}, err
	}
	return pdf, font, nil
}

// checkFont reports whether ttf can be registered with the PDF writer.
func checkFont(g Geometry, ttf []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse font: %v", r)
		}
	}()
	_, _, err = newPDF(g, ttf)
	return err
}

type metadata struct {
	title   string
	subject string
	created time.Time
}

func encode(pdf *gofpdf.Fpdf, font pdfFont, doc *Document, meta metadata) ([]byte, error) {
	pdf.SetTitle(meta.title, true)
	pdf.SetSubject(meta.subject, true)
	pdf.SetAuthor("examprep", false)
	pdf.SetCreator("examprep", false)
	if !meta.created.IsZero() {
		pdf.SetCreationDate(meta.created)
	}
	pdf.SetCatalogSort(true)

	for _, p := range doc.Pages {
		pdf.AddPage()
		for _, op := range p.Ops {
			switch op.Kind {
			case OpRect:
				pdf.SetFillColor(int(op.Color.R), int(op.Color.G), int(op.Color.B))
				pdf.Rect(op.X, doc.Height-op.Y-op.H, op.W, op.H, "F")
			case OpLine:
				pdf.SetDrawColor(int(op.Color.R), int(op.Color.G), int(op.Color.B))
				pdf.SetLineWidth(0.75)
				pdf.Line(op.X, doc.Height-op.Y, op.X+op.W, doc.Height-op.Y-op.H)
			case OpText:
				font.use(pdf, op.Size, op.Bold)
				pdf.SetTextColor(int(op.Color.R), int(op.Color.G), int(op.Color.B))
				pdf.Text(op.X, doc.Height-op.Y, font.tr(op.Text))
			}
		}
		if pdf.Err() {
			return nil, &RenderError{Op: fmt.Sprintf("draw page %d", p.Number), Err: pdf.Error()}
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &RenderError{Op: "encode", Err: err}
	}
	return buf.Bytes(), nil
}
