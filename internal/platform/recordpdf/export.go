package recordpdf

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var separatorRun = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// Filename returns the download name of a record exported at the given time,
// e.g. Medical_Record_Maria_Popescu_2024-02-01.pdf. Each run of characters
// other than letters and digits becomes one underscore. The date is taken in
// UTC.
func Filename(fullName string, at time.Time) string {
	name := strings.Trim(separatorRun.ReplaceAllString(fullName, "_"), "_")
	return fmt.Sprintf("Medical_Record_%s_%s.pdf", name, at.UTC().Format("2006-01-02"))
}

// Result is a finished export.
type Result struct {
	Filename string
	Pages    int
	Data     []byte
}

type Option func(*Exporter)

// WithPolicy replaces the default layout policy.
func WithPolicy(p Policy) Option {
	return func(e *Exporter) { e.policy = p }
}

// WithClock sets the time source used for the file name.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// WithUTF8Font draws text with the given TrueType font instead of the
// built-in cp1252 fonts, so every diacritic survives. bold may be nil, in
// which case headers use the regular face.
func WithUTF8Font(regular, bold []byte) Option {
	return func(e *Exporter) {
		if len(regular) > 0 {
			e.font = &fontFace{regular: regular, bold: bold}
		}
	}
}

type fontFace struct {
	regular []byte
	bold    []byte
}

// Exporter turns records into PDF files. It holds no per-export state and is
// safe for concurrent use.
type Exporter struct {
	policy Policy
	now    func() time.Time
	font   *fontFace
}

func NewExporter(opts ...Option) *Exporter {
	e := &Exporter{policy: DefaultPolicy(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the layout policy in use.
func (e *Exporter) Policy() Policy {
	return e.policy
}

// Export lays out and renders rec. On error no data is returned.
func (e *Exporter) Export(rec Record) (*Result, error) {
	pdf := newPDF(e.policy, TitleText+" - "+rec.Patient.FullName)
	family, tr := setupFont(pdf, e.font)
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("load font: %w", err)
	}

	doc := Layout(rec, e.policy, newPDFMeasurer(pdf, family, tr))
	data, err := render(pdf, doc, family, tr)
	if err != nil {
		return nil, err
	}

	return &Result{
		Filename: Filename(rec.Patient.FullName, e.now()),
		Pages:    doc.PageCount(),
		Data:     data,
	}, nil
}
