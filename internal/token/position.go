package token

import "fmt"

// Position locates a token in the program text. A program may span several
// sources; Line and Column restart in each one, Offset does not.
type Position struct {
	Filename string // source name, empty for a command line program
	Line     int    // 1-based
	Column   int    // 1-based byte column
	Offset   int    // 0-based byte offset across all sources
}

// String formats the position as "file:line:col", or "line:col" when the
// source has no name.
func (p Position) String() string {
	if p.Filename != "" {
		return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// IsValid reports whether the position was set.
func (p Position) IsValid() bool {
	return p.Line > 0
}

// Before reports whether p comes earlier in the program than other.
func (p Position) Before(other Position) bool {
	return p.Offset < other.Offset
}
