// Package parser provides an AWK recursive descent parser.
package parser

import (
	"fmt"

	"github.com/kolkov/tawk/internal/token"
)

// ParseError represents a syntax error encountered during parsing.
// Parsing stops at the first error, so a failed parse carries exactly one.
type ParseError struct {
	Pos     token.Position // Position where the error occurred
	Message string         // Human-readable error message
	Got     string         // Token/value that was found (optional)
	Want    string         // Token/value that was expected (optional)

	// Lexical is set when the tokenizer rejected the input (bad escape,
	// unterminated string or regex, stray character).
	Lexical bool
}

// Error returns a formatted error message with position information.
func (e *ParseError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s", e.Pos, e.Message)
	}
	return e.Message
}

// bailout is the panic value used to unwind the parser after an error.
type bailout struct{}

func errorf(pos token.Position, format string, args ...any) *ParseError {
	return &ParseError{
		Pos:     pos,
		Message: fmt.Sprintf(format, args...),
	}
}

func expectedError(pos token.Position, want string, got string) *ParseError {
	return &ParseError{
		Pos:     pos,
		Message: fmt.Sprintf("expected %s, got %s", want, got),
		Want:    want,
		Got:     got,
	}
}
