package recordpdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
)

const (
	coreFamily = "Helvetica"
	utf8Family = "RecordSans"
)

// romanian maps letters the cp1252 core fonts lack to their base letter.
var romanian = strings.NewReplacer(
	"ă", "a", "Ă", "A",
	"ș", "s", "Ș", "S", "ş", "s", "Ş", "S",
	"ț", "t", "Ț", "T", "ţ", "t", "Ţ", "T",
)

// coreTranslator encodes text for the built-in cp1252 fonts. Romanian
// letters outside cp1252 lose their diacritic instead of becoming '.'.
func coreTranslator(pdf *fpdf.Fpdf) func(string) string {
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	return func(s string) string {
		return tr(romanian.Replace(s))
	}
}

// setupFont registers the UTF-8 font when one is configured and returns the
// family to draw with and the matching text translator.
func setupFont(pdf *fpdf.Fpdf, font *fontFace) (string, func(string) string) {
	if font == nil {
		return coreFamily, coreTranslator(pdf)
	}
	bold := font.bold
	if len(bold) == 0 {
		bold = font.regular
	}
	pdf.AddUTF8FontFromBytes(utf8Family, "", font.regular)
	pdf.AddUTF8FontFromBytes(utf8Family, "B", bold)
	return utf8Family, func(s string) string { return s }
}

type textStyle struct {
	size    float64
	fontSty string
	r, g, b int
}

var styles = map[Style]textStyle{
	StyleTitle:        {size: 20, fontSty: "B", r: 40, g: 40, b: 40},
	StyleSection:      {size: 14, fontSty: "B", r: 0, g: 100, b: 200},
	StyleAlertSection: {size: 14, fontSty: "B", r: 200, g: 0, b: 0},
	StyleBody:         {size: 10, r: 60, g: 60, b: 60},
}

// pdfMeasurer measures strings in the body font of an fpdf document.
type pdfMeasurer struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func newPDFMeasurer(pdf *fpdf.Fpdf, family string, tr func(string) string) *pdfMeasurer {
	body := styles[StyleBody]
	pdf.SetFont(family, body.fontSty, body.size)
	return &pdfMeasurer{pdf: pdf, tr: tr}
}

func (m *pdfMeasurer) StringWidth(s string) float64 {
	return m.pdf.GetStringWidth(m.tr(s))
}

func newPDF(p Policy, title string) *fpdf.Fpdf {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: p.PageWidth, Ht: p.PageHeight},
	})
	pdf.SetMargins(p.LeftMargin, p.TopMargin, p.LeftMargin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(title, true)
	pdf.SetCreator("medportal", true)
	return pdf
}

// render draws doc onto pdf and returns the encoded file.
func render(pdf *fpdf.Fpdf, doc *Document, family string, tr func(string) string) ([]byte, error) {
	for _, page := range doc.Pages {
		pdf.AddPage()
		for _, l := range page.Lines {
			st := styles[l.Style]
			pdf.SetFont(family, st.fontSty, st.size)
			pdf.SetTextColor(st.r, st.g, st.b)

			text := tr(strings.TrimRight(l.Text, " \t\r\n"))
			x := l.X
			if l.Center {
				x -= pdf.GetStringWidth(text) / 2
			}
			pdf.Text(x, l.Y, text)
		}
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("compose pdf: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
