package recordpdf

import (
	"fmt"
	"strings"
)

// Style selects font and colour for a line.
type Style int

const (
	StyleBody Style = iota
	StyleTitle
	StyleSection
	StyleAlertSection
)

const (
	TitleText         = "Medical Record"
	PersonalInfoTitle = "Personal Information"
	AllergiesTitle    = "Allergies & Critical Information"
	NoAllergiesText   = "No known allergies"
	MedicationsTitle  = "Current Medications"
	VaccinationsTitle = "Vaccination History"
	ConsultationTitle = "Medical History & Diagnoses"
	LabResultsTitle   = "Recent Lab Results"
	MedicalImageTitle = "Medical Images"

	bullet      = "• "
	notesPrefix = "  Notes: "
)

// Line is one positioned run of text. Y is the baseline. Lines of a single
// record share a non-zero Group.
type Line struct {
	X      float64
	Y      float64
	Text   string
	Style  Style
	Center bool
	Group  int
}

type Page struct {
	Lines []Line
}

// Document is the result of laying out a Record.
type Document struct {
	Pages []Page
}

// PageCount returns the number of pages in the document.
func (d *Document) PageCount() int {
	return len(d.Pages)
}

// Text returns every line of the document, one per row, in page order.
func (d *Document) Text() string {
	var b strings.Builder
	for _, p := range d.Pages {
		for _, l := range p.Lines {
			b.WriteString(l.Text)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Contains reports whether some line of the document equals text.
func (d *Document) Contains(text string) bool {
	for _, p := range d.Pages {
		for _, l := range p.Lines {
			if l.Text == text {
				return true
			}
		}
	}
	return false
}

// cursor is the write position. It is passed and returned by value.
type cursor struct {
	page int
	y    float64
}

func (c cursor) advance(dy float64) cursor {
	c.y += dy
	return c
}

// builder accumulates the output of a single layout call.
type builder struct {
	policy  Policy
	measure Measurer
	doc     *Document
	group   int // group of the lines being written, 0 outside records
	groups  int
}

// Layout arranges rec on pages according to p. Widths for soft wrapping are
// taken from m.
func Layout(rec Record, p Policy, m Measurer) *Document {
	b := &builder{policy: p, measure: m, doc: &Document{}}

	c := cursor{page: 0, y: p.TopMargin}
	c = b.title(c)
	c = b.personalInfo(c, rec.Patient)
	c = b.allergies(c, rec.Patient.Allergies)
	c = b.medications(c, rec.Medications)
	c = b.vaccinations(c, rec.Vaccinations)
	c = b.consultations(c, rec.Consultations)
	c = b.labResults(c, rec.LabResults)
	b.medicalImages(c, rec.MedicalImages)

	return b.doc
}

// ensureSpace starts a new page when the cursor is below the threshold for
// kind, or when a block whose last baseline sits span below the cursor would
// cross the page bottom. A cursor already at the top margin never breaks.
func (b *builder) ensureSpace(c cursor, kind Kind, span float64) cursor {
	if c.y <= b.policy.TopMargin {
		return c
	}
	rule := b.policy.rule(kind)
	if (rule.Threshold > 0 && c.y > rule.Threshold) || c.y+span > b.policy.PageBottom {
		return cursor{page: c.page + 1, y: b.policy.TopMargin}
	}
	return c
}

// fit caps span at the height of an empty page. A block taller than that
// starts on a fresh page and flows onto continuation pages.
func (b *builder) fit(span float64) float64 {
	if room := b.policy.PageBottom - b.policy.TopMargin; span > room {
		return room
	}
	return span
}

// spill moves a cursor that has run past the page bottom to the top of the
// next page.
func (b *builder) spill(c cursor) cursor {
	if c.y > b.policy.PageBottom {
		return cursor{page: c.page + 1, y: b.policy.TopMargin}
	}
	return c
}

func (b *builder) write(c cursor, l Line) {
	for len(b.doc.Pages) <= c.page {
		b.doc.Pages = append(b.doc.Pages, Page{})
	}
	l.Y = c.y
	if l.X == 0 && !l.Center {
		l.X = b.policy.LeftMargin
	}
	b.doc.Pages[c.page].Lines = append(b.doc.Pages[c.page].Lines, l)
}

func (b *builder) line(c cursor, kind Kind, text string, style Style) cursor {
	b.write(c, Line{Text: text, Style: style, Group: b.group})
	return c.advance(b.policy.rule(kind).Advance)
}

func (b *builder) nextGroup() {
	b.groups++
	b.group = b.groups
}

func (b *builder) title(c cursor) cursor {
	b.write(c, Line{X: b.policy.PageWidth / 2, Text: TitleText, Style: StyleTitle, Center: true})
	return c.advance(b.policy.rule(KindTitle).Advance)
}

// section writes a header. follow is the span of the first record, so a
// header is never left alone at the bottom of a page.
func (b *builder) section(c cursor, title string, style Style, follow float64) cursor {
	span := 0.0
	if follow > 0 {
		span = b.fit(b.policy.rule(KindSection).Advance + follow)
	}
	c = b.ensureSpace(c, KindSection, span)
	b.group = 0
	return b.line(c, KindSection, title, style)
}

func (b *builder) personalInfo(c cursor, p Patient) cursor {
	c = b.section(c, PersonalInfoTitle, StyleSection, 0)
	fields := []string{
		"Full name: " + p.FullName,
		"National ID: " + p.NationalID,
		"Date of birth: " + p.DateOfBirth,
		"Gender: " + p.Gender,
		"Blood type: " + p.BloodType,
	}
	for _, f := range fields {
		c = b.line(c, KindField, f, StyleBody)
	}
	return c.advance(b.policy.BlockSpacing)
}

func (b *builder) allergies(c cursor, allergies []string) cursor {
	c = b.section(c, AllergiesTitle, StyleAlertSection, 0)
	text := NoAllergiesText
	if len(allergies) > 0 {
		text = strings.Join(allergies, ", ")
	}
	c = b.line(c, KindField, text, StyleBody)
	return c.advance(b.policy.BlockSpacing)
}

// items writes a list section whose records are one line each.
func (b *builder) items(c cursor, title string, rows []string) cursor {
	if len(rows) == 0 {
		return c
	}
	c = b.section(c, title, StyleSection, 0)
	for _, row := range rows {
		c = b.ensureSpace(c, KindItem, 0)
		b.nextGroup()
		c = b.line(c, KindItem, bullet+row, StyleBody)
	}
	b.group = 0
	return c.advance(b.policy.SectionSpacing)
}

func (b *builder) medications(c cursor, meds []Medication) cursor {
	rows := make([]string, 0, len(meds))
	for _, m := range meds {
		rows = append(rows, fmt.Sprintf("%s - %s - %s - %d days", m.Name, m.Dose, m.Frequency, m.DurationDays))
	}
	return b.items(c, MedicationsTitle, rows)
}

func (b *builder) vaccinations(c cursor, vacs []Vaccination) cursor {
	rows := make([]string, 0, len(vacs))
	for _, v := range vacs {
		rows = append(rows, fmt.Sprintf("%s - %s - %s", v.Name, v.Date, v.Status))
	}
	return b.items(c, VaccinationsTitle, rows)
}

func (b *builder) labResults(c cursor, labs []LabResult) cursor {
	rows := make([]string, 0, len(labs))
	for _, l := range labs {
		rows = append(rows, fmt.Sprintf("%s: %s - %s - %s", l.Name, l.Value, l.Status, l.Date))
	}
	return b.items(c, LabResultsTitle, rows)
}

func (b *builder) consultations(c cursor, consults []Consultation) cursor {
	if len(consults) == 0 {
		return c
	}
	rowAdvance := b.policy.rule(KindConsultation).Advance
	noteAdvance := b.policy.rule(KindNote).Advance
	wrapped := make([][]string, len(consults))
	for i, cs := range consults {
		wrapped[i] = wrapText(notesPrefix+cs.Notes, b.policy.WrapWidth, b.measure)
	}
	spanOf := func(notes []string) float64 {
		return rowAdvance + float64(len(notes)-1)*noteAdvance
	}

	// The header has already made room for the first block.
	c = b.section(c, ConsultationTitle, StyleSection, spanOf(wrapped[0]))
	for i, cs := range consults {
		notes := wrapped[i]
		if i > 0 {
			c = b.ensureSpace(c, KindConsultation, b.fit(spanOf(notes)))
		}
		b.nextGroup()
		c = b.line(c, KindConsultation, fmt.Sprintf("%s%s - %s - %s", bullet, cs.Diagnosis, cs.DoctorName, cs.Date), StyleBody)
		for _, n := range notes {
			c = b.line(b.spill(c), KindNote, n, StyleBody)
		}
		c = c.advance(b.policy.NoteSpacing)
	}
	b.group = 0
	return c.advance(b.policy.SectionSpacing)
}

func (b *builder) medicalImages(c cursor, images []MedicalImage) cursor {
	if len(images) == 0 {
		return c
	}
	advance := b.policy.rule(KindItem).Advance
	c = b.section(c, MedicalImageTitle, StyleSection, advance)
	for _, img := range images {
		c = b.ensureSpace(c, KindItem, advance)
		b.nextGroup()
		c = b.line(c, KindItem, fmt.Sprintf("%s%s - %s", bullet, img.Type, img.Date), StyleBody)
		c = b.line(c, KindItem, "  "+img.Notes, StyleBody)
	}
	b.group = 0
	return c
}
