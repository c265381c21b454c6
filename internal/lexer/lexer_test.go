package lexer_test

import (
	"testing"

	"github.com/kolkov/tawk/internal/lexer"
	"github.com/kolkov/tawk/internal/token"
)

func scanAll(l *lexer.Lexer) []lexer.Token {
	var toks []lexer.Token
	for {
		tok := l.Scan()
		toks = append(toks, tok)
		if tok.Type == token.EOF || tok.Type == token.ILLEGAL {
			return toks
		}
	}
}

func TestScanTokens(t *testing.T) {
	tests := []struct {
		input string
		want  []token.Token
	}{
		{"x += 1", []token.Token{token.NAME, token.ADD_ASSIGN, token.NUMBER, token.EOF}},
		{"a^=2", []token.Token{token.NAME, token.POW_ASSIGN, token.NUMBER, token.EOF}},
		{"i++ --j", []token.Token{token.NAME, token.INCR, token.DECR, token.NAME, token.EOF}},
		{"a >> b", []token.Token{token.NAME, token.APPEND, token.NAME, token.EOF}},
		{"$1 !~ r", []token.Token{token.DOLLAR, token.NUMBER, token.NOT_MATCH, token.NAME, token.EOF}},
		{"p && q || !r", []token.Token{token.NAME, token.AND, token.NAME, token.OR, token.NOT, token.NAME, token.EOF}},
		{"c ? 1 : 2", []token.Token{token.NAME, token.QUESTION, token.NUMBER, token.COLON, token.NUMBER, token.EOF}},
		{"(k) in a", []token.Token{token.LPAREN, token.NAME, token.RPAREN, token.IN, token.NAME, token.EOF}},
		{"getline line < f", []token.Token{token.GETLINE, token.NAME, token.LESS, token.NAME, token.EOF}},
		{"\"cmd\" | getline", []token.Token{token.STRING, token.PIPE, token.GETLINE, token.EOF}},
		{"BEGIN { nextfile }", []token.Token{token.BEGIN, token.LBRACE, token.NEXTFILE, token.RBRACE, token.EOF}},
		{"substr(s,1)", []token.Token{token.F_SUBSTR, token.LPAREN, token.NAME, token.COMMA, token.NUMBER, token.RPAREN, token.EOF}},
		{"x # trailing comment\ny", []token.Token{token.NAME, token.NEWLINE, token.NAME, token.EOF}},
		{"a \\\n b", []token.Token{token.NAME, token.NAME, token.EOF}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			toks := scanAll(lexer.NewFromString(tt.input))
			if len(toks) != len(tt.want) {
				t.Fatalf("got %d tokens, want %d: %v", len(toks), len(tt.want), toks)
			}
			for i, want := range tt.want {
				if toks[i].Type != want {
					t.Errorf("token[%d] = %v, want %v", i, toks[i].Type, want)
				}
			}
		})
	}
}

func TestScanNumbers(t *testing.T) {
	for _, in := range []string{"0", "42", "3.25", ".5", "7.", "1e3", "2.5E-2", "0x1F", "0x1.8p1", "0X10P-2"} {
		tok := lexer.NewFromString(in).Scan()
		if tok.Type != token.NUMBER || tok.Value != in {
			t.Errorf("%q: got %v %q", in, tok.Type, tok.Value)
		}
	}

	// "1e+a" is the number 1 followed by the name e.
	toks := scanAll(lexer.NewFromString("1e+a"))
	if toks[0].Value != "1" || toks[1].Type != token.NAME {
		t.Errorf("1e+a: got %v", toks)
	}

	toks = scanAll(lexer.NewFromString("4E2x"))
	if toks[0].Value != "4E2" || toks[1].Type != token.NAME || toks[1].Value != "x" {
		t.Errorf("4E2x: got %v", toks)
	}
}

func TestScanStrings(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"plain"`, "plain"},
		{`""`, ""},
		{`"a\tb\nc"`, "a\tb\nc"},
		{`"q\"q"`, `q"q`},
		{`"back\\slash"`, `back\slash`},
		{`"\/"`, "/"},
		{`"\a\b\f\v\r"`, "\a\b\f\v\r"},
		{`"\101\102"`, "AB"},
		{`"\0"`, "\x00"},
		{`"\x41\x4a"`, "AJ"},
		{`"\x7zz"`, "\x07zz"},
		{`"\q"`, `\q`},
		{`"héllo, 世界"`, "héllo, 世界"},
		{`'single'`, "single"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tok := lexer.NewFromString(tt.input).Scan()
			if tok.Type != token.STRING {
				t.Fatalf("got %v (%s), want STRING", tok.Type, tok.Value)
			}
			if tok.Value != tt.want {
				t.Errorf("got %q, want %q", tok.Value, tt.want)
			}
		})
	}
}

func TestScanLexicalErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"unterminated string", `x = "abc`, "unterminated string"},
		{"newline in string", "x = \"ab\ncd\"", "unterminated string"},
		{"escape at end of line", "x = \"ab\\\ncd\"", "escape sequence truncated by end of line"},
		{"escape at end of input", `x = "ab\`, "escape sequence truncated by end of input"},
		{"unterminated regex", "$0 ~ /abc", "unterminated regex"},
		{"lone ampersand", "a & b", "unexpected '&'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks := scanAll(lexer.NewFromString(tt.input))
			last := toks[len(toks)-1]
			if last.Type != token.ILLEGAL {
				t.Fatalf("got %v, want ILLEGAL", last.Type)
			}
			if last.Value != tt.want {
				t.Errorf("got %q, want %q", last.Value, tt.want)
			}
		})
	}
}

func TestScanRegexContext(t *testing.T) {
	tests := []struct {
		input string
		want  []token.Token
		regex string
	}{
		{"/ab+c/", []token.Token{token.REGEX}, "ab+c"},
		{"x ~ /a\\/b/", []token.Token{token.NAME, token.MATCH, token.REGEX}, `a\/b`},
		{"print /x/", []token.Token{token.PRINT, token.REGEX}, "x"},
		{"a / b / c", []token.Token{token.NAME, token.DIV, token.NAME, token.DIV, token.NAME}, ""},
		{"(n) / 2", []token.Token{token.LPAREN, token.NAME, token.RPAREN, token.DIV, token.NUMBER}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			l := lexer.NewFromString(tt.input)
			for i, want := range tt.want {
				tok := l.Scan()
				if tok.Type != want {
					t.Fatalf("token[%d] = %v, want %v", i, tok.Type, want)
				}
				if want == token.REGEX && tok.Value != tt.regex {
					t.Errorf("regex = %q, want %q", tok.Value, tt.regex)
				}
			}
		})
	}
}

func TestScanRegexOnDemand(t *testing.T) {
	l := lexer.NewFromString("abc")
	tok := l.ScanRegex()
	if tok.Type != token.ILLEGAL || tok.Value != "expected regex" {
		t.Fatalf("got %v %q, want ILLEGAL", tok.Type, tok.Value)
	}

	l = lexer.NewFromString("  /=x/")
	tok = l.ScanRegex()
	if tok.Type != token.REGEX || tok.Value != "=x" {
		t.Errorf("got %v %q, want REGEX \"=x\"", tok.Type, tok.Value)
	}

	// The lexer took the slash for a division; the parser asks again.
	for _, tt := range []struct{ src, want string }{{"a /x+/", "x+"}, {"a /=1/", "=1"}} {
		l = lexer.NewFromString(tt.src)
		l.Scan()
		div := l.Scan()
		tok = l.ScanRegex()
		if tok.Type != token.REGEX || tok.Value != tt.want || tok.Pos != div.Pos {
			t.Errorf("%s: got %v %q at %v", tt.src, tok.Type, tok.Value, tok.Pos)
		}
		if next := l.Scan(); next.Type != token.EOF {
			t.Errorf("%s: trailing %v", tt.src, next.Type)
		}
	}
}

func TestHadSpace(t *testing.T) {
	l := lexer.NewFromString("f(x) g (y)")
	l.Scan() // f
	l.Scan()
	if l.HadSpace() {
		t.Errorf("no space expected before '(' after f")
	}
	l.Scan() // x
	l.Scan() // )
	l.Scan() // g
	l.Scan()
	if !l.HadSpace() {
		t.Errorf("space expected before '(' after g")
	}
}

func TestPositions(t *testing.T) {
	l := lexer.NewFromString("a\n  bb")
	a := l.Scan()
	l.Scan()
	bb := l.Scan()
	if a.Pos.Line != 1 || a.Pos.Column != 1 {
		t.Errorf("a at %v, want 1:1", a.Pos)
	}
	if bb.Pos.Line != 2 || bb.Pos.Column != 3 || bb.Pos.Offset != 4 {
		t.Errorf("bb at %v offset %d, want 2:3 offset 4", bb.Pos, bb.Pos.Offset)
	}
}

func TestMultipleSources(t *testing.T) {
	l := lexer.NewSources([]lexer.Source{
		{Name: "lib.awk", Text: []byte("function f() {}")},
		{Name: "main.awk", Text: []byte("\nBEGIN { f() }\n")},
	})
	toks := scanAll(l)

	var fn, begin lexer.Token
	for _, tok := range toks {
		switch tok.Type {
		case token.FUNCTION:
			fn = tok
		case token.BEGIN:
			begin = tok
		}
	}
	if fn.Pos.Filename != "lib.awk" || fn.Pos.Line != 1 {
		t.Errorf("function at %v, want lib.awk:1", fn.Pos)
	}
	if begin.Pos.Filename != "main.awk" || begin.Pos.Line != 2 {
		t.Errorf("BEGIN at %v, want main.awk:2", begin.Pos)
	}
	if !fn.Pos.Before(begin.Pos) {
		t.Errorf("positions across sources must stay ordered")
	}

	// Sources never glue tokens together.
	l = lexer.NewSources([]lexer.Source{{Name: "a", Text: []byte("x")}, {Name: "b", Text: []byte("y")}})
	toks = scanAll(l)
	if len(toks) != 5 || toks[0].Value != "x" || toks[1].Type != token.NEWLINE || toks[2].Value != "y" {
		t.Errorf("got %v", toks)
	}
}

func BenchmarkScanProgram(b *testing.B) {
	src := []byte(`BEGIN { FS = ":" } $3 > 100 && /sh$/ { n[$1]++; printf "%s %d\n", $1, $3 } END { for (k in n) print k }`)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l := lexer.New(src)
		for l.Scan().Type != token.EOF {
		}
	}
}
