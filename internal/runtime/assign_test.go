package runtime

import "testing"

func TestUnescape(t *testing.T) {
	tests := []struct{ in, want string }{
		{`plain`, "plain"},
		{`a\tb`, "a\tb"},
		{`line\n`, "line\n"},
		{`\101`, "A"},
		{`\\`, `\`},
		{`\q`, `\q`},
		{`end\`, `end\`},
	}
	for _, tt := range tests {
		if got := Unescape(tt.in); got != tt.want {
			t.Errorf("Unescape(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseAssignment(t *testing.T) {
	tests := []struct {
		arg         string
		name, value string
		ok          bool
	}{
		{"x=1", "x", "1", true},
		{"_v=a=b", "_v", "a=b", true},
		{"x=", "x", "", true},
		{"1x=2", "", "", false},
		{"file.txt", "", "", false},
		{"=x", "", "", false},
		{"./a=b", "", "", false},
	}
	for _, tt := range tests {
		name, value, ok := ParseAssignment(tt.arg)
		if name != tt.name || value != tt.value || ok != tt.ok {
			t.Errorf("ParseAssignment(%q) = %q, %q, %v", tt.arg, name, value, ok)
		}
	}
}
