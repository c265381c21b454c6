package types_test

import (
	"math"
	"testing"

	"github.com/kolkov/tawk/internal/types"
)

func TestSprintf(t *testing.T) {
	tests := []struct {
		format string
		args   []types.Value
		want   string
	}{
		{"plain", nil, "plain"},
		{"%d%%", []types.Value{types.Int(50)}, "50%"},
		{"%5d|%-5d|%05d", []types.Value{types.Int(42), types.Int(42), types.Int(42)}, "   42|42   |00042"},
		{"%i", []types.Value{types.Double(3.9)}, "3"},
		{"%d", []types.Value{types.StrNum("12abc")}, "12"},
		{"%x %X %o", []types.Value{types.Int(255), types.Int(255), types.Int(8)}, "ff FF 10"},
		{"%u", []types.Value{types.Int(7)}, "7"},
		{"%.2f", []types.Value{types.Double(3.14159)}, "3.14"},
		{"%e", []types.Value{types.Double(1234.5)}, "1.234500e+03"},
		{"%g", []types.Value{types.Double(0.0001)}, "0.0001"},
		{"%s-%s", []types.Value{types.Str("a")}, "a-"},
		{"%.3s", []types.Value{types.Str("abcdef")}, "abc"},
		{"%*d", []types.Value{types.Int(4), types.Int(7)}, "   7"},
		{"%-*d|", []types.Value{types.Int(3), types.Int(7)}, "7  |"},
		{"%.*f", []types.Value{types.Int(1), types.Double(2.25)}, "2.2"},
		{"%c", []types.Value{types.Int(65)}, "A"},
		{"%c", []types.Value{types.Str("hello")}, "h"},
		{"%c", []types.Value{types.Int(0x263A)}, "☺"},
		{"%s", []types.Value{types.Double(0.1)}, "0.1"},
		{"%d", []types.Value{types.Double(math.Inf(1))}, "inf"},
		{"%z", nil, "%z"},
		{"50%", nil, "50%"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			if got := types.Sprintf(tt.format, tt.args, "%.6g"); got != tt.want {
				t.Errorf("Sprintf(%q) = %q, want %q", tt.format, got, tt.want)
			}
		})
	}
}

func TestFormatNum(t *testing.T) {
	tests := []struct {
		n      float64
		format string
		want   string
	}{
		{3, "%d", "3"},
		{3.5, "%.6g", "3.5"},
		{3.5, "%d", "3"},
		{3.5, "%i", "3"},
		{3.5, "%x", "3"},
		{10.5, "%X", "A"},
		{0.5, "%s", "0.5"},
		{0.5, "%.2f", "0.50"},
		{0.5, "<%5.1f>", "<  0.5>"},
		{65.5, "%c", "A"},
		{1.25, "no verb", "no verb"},
		{1.25, "%z", "%z"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			if got := types.FormatNum(tt.n, tt.format); got != tt.want {
				t.Errorf("FormatNum(%v, %q) = %q, want %q", tt.n, tt.format, got, tt.want)
			}
		})
	}
}
