package recordpdf

// Kind identifies a type of content for pagination purposes.
type Kind int

const (
	KindTitle Kind = iota
	KindSection
	KindField
	KindItem
	KindConsultation
	KindNote
)

func (k Kind) String() string {
	switch k {
	case KindTitle:
		return "title"
	case KindSection:
		return "section"
	case KindField:
		return "field"
	case KindItem:
		return "item"
	case KindConsultation:
		return "consultation"
	case KindNote:
		return "note"
	}
	return "unknown"
}

// Rule is the pagination rule for one content kind. A page break happens
// before the content when the cursor is already below Threshold. Advance is
// the cursor step after one line of that kind. A zero Threshold disables the
// check.
type Rule struct {
	Threshold float64
	Advance   float64
}

// Policy holds all layout constants, in millimetres on an A4 portrait page.
// The threshold values are tuning knobs: they only need to leave room for
// the content that follows before breaking.
type Policy struct {
	PageWidth  float64
	PageHeight float64
	TopMargin  float64
	LeftMargin float64
	// PageBottom is the lowest baseline any line may sit on.
	PageBottom float64
	// WrapWidth is the fixed soft-wrap width for consultation notes.
	WrapWidth float64

	// BlockSpacing follows the personal information and allergy blocks.
	BlockSpacing float64
	// SectionSpacing follows every list section.
	SectionSpacing float64
	// NoteSpacing follows the wrapped notes of a consultation.
	NoteSpacing float64

	Rules map[Kind]Rule
}

// DefaultPolicy returns the layout used for exported medical records.
func DefaultPolicy() Policy {
	return Policy{
		PageWidth:      210,
		PageHeight:     297,
		TopMargin:      20,
		LeftMargin:     20,
		PageBottom:     287,
		WrapWidth:      170,
		BlockSpacing:   4,
		SectionSpacing: 5,
		NoteSpacing:    3,
		Rules: map[Kind]Rule{
			KindTitle:        {Advance: 15},
			KindSection:      {Threshold: 250, Advance: 8},
			KindField:        {Advance: 6},
			KindItem:         {Threshold: 270, Advance: 6},
			KindConsultation: {Threshold: 260, Advance: 6},
			KindNote:         {Advance: 5},
		},
	}
}

func (p Policy) rule(k Kind) Rule {
	return p.Rules[k]
}
