package lexer_test

import (
	"testing"

	"github.com/kolkov/tawk/internal/lexer"
	"github.com/kolkov/tawk/internal/token"
)

// FuzzLexer checks that scanning always terminates and positions never move
// backwards.
func FuzzLexer(f *testing.F) {
	for _, seed := range []string{
		`{ print $1 }`,
		`BEGIN { FS = ":" } END { print NR }`,
		`$1 ~ /a\/b/ && x / 2`,
		`"esc\x41\101\n" 'q'`,
		`"trunc\`,
		"\"nl\\\n\"",
		`0x1F 1e+ .5`,
		"a \\\n b # c",
		"\xff\xfe",
	} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, src string) {
		l := lexer.NewFromString(src)
		last := -1
		for i := 0; i <= len(src)+1; i++ {
			tok := l.Scan()
			if tok.Type == token.EOF {
				return
			}
			if tok.Pos.Offset < last {
				t.Fatalf("position went backwards: %d after %d", tok.Pos.Offset, last)
			}
			last = tok.Pos.Offset
		}
		t.Fatalf("lexer did not reach EOF")
	})
}
