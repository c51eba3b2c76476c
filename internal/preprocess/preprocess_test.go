package preprocess_test

import (
	"testing"

	"github.com/kisaansahayak/sahayak/internal/preprocess"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "hello", "hello"},
		{"collapse", "  my   wheat \n\n is  yellow\t", "my wheat is yellow"},
		{"zero width", "wh\u200beat\ufeff", "wheat"},
		{"joiners", "a\u200c\u200db", "ab"},
		{"controls", "a\x00b\x07c", "abc"},
		{"only invisible", " \u200b\t\ufeff \u200d\n", ""},
		{"soft hyphen", "fer\u00adtilizer", "fertilizer"},
		{"devanagari kept", " फसल  में कीड़े ", "फसल में कीड़े"},
		{"invisible between spaces", "a \u200b b", "a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := preprocess.Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestClean_WhitespaceAndInvisibleOnly(t *testing.T) {
	runes := []rune{' ', '\t', '\n', '\r', '\u200b', '\u200c', '\u200d', '\ufeff', '\u2060', '\u00ad', 0x01}
	// every combination of length 1..3
	for _, a := range runes {
		for _, b := range runes {
			for _, c := range runes {
				in := string([]rune{a, b, c})
				if got := preprocess.Clean(in); got != "" {
					t.Fatalf("Clean(%q) = %q, want empty", in, got)
				}
			}
		}
	}
}
