package recordpdf

import (
	"strings"
	"testing"
	"unicode"
)

func TestWrapText_Lossless(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"short", "Patient stable."},
		{"long prose", strings.Repeat("Patient reports intermittent headaches over the last month. ", 12)},
		{"double spaces", "BP  elevated,   recheck   in two  weeks.  " + strings.Repeat("word ", 60)},
		{"long word", strings.Repeat("a", 300)},
		{"newlines", "line one\nline two\n\n" + strings.Repeat("third line ", 30)},
		{"diacritics", strings.Repeat("Pacientă cu hipertensiune și cefalee ", 10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := wrapText(tt.input, 170, fixedMeasurer(2))
			if got := strings.Join(lines, ""); got != tt.input {
				t.Fatalf("wrapped lines do not reconstruct input\n got: %q\nwant: %q", got, tt.input)
			}
			for _, l := range lines {
				visible := strings.TrimRightFunc(l, unicode.IsSpace)
				if w := fixedMeasurer(2).StringWidth(visible); w > 170 {
					t.Errorf("line %q is %.0f wide, limit 170", l, w)
				}
			}
		})
	}
}

func TestWrapText_MultipleLinesForLongNotes(t *testing.T) {
	notes := strings.Repeat("Monitor glucose daily and adjust insulin dose. ", 8)
	lines := wrapText(notes, 170, fixedMeasurer(2))
	if len(lines) < 2 {
		t.Fatalf("expected notes wider than the page to wrap, got %d line(s)", len(lines))
	}
	for _, l := range lines[:len(lines)-1] {
		if !strings.HasSuffix(l, " ") {
			t.Errorf("expected break after whitespace, got line %q", l)
		}
	}
}

func TestWrapText_ShortTextSingleLine(t *testing.T) {
	lines := wrapText("Rest and fluids.", 170, fixedMeasurer(2))
	if len(lines) != 1 || lines[0] != "Rest and fluids." {
		t.Errorf("unexpected lines: %q", lines)
	}
}

func TestWrapText_HardBreaksLongWord(t *testing.T) {
	lines := wrapText(strings.Repeat("x", 200), 170, fixedMeasurer(2))
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if len(lines[0]) != 85 || len(lines[1]) != 85 || len(lines[2]) != 30 {
		t.Errorf("unexpected line lengths %d/%d/%d", len(lines[0]), len(lines[1]), len(lines[2]))
	}
}
