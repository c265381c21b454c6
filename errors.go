package tawk

import (
	"errors"
	"fmt"

	"github.com/kolkov/tawk/internal/codegen"
	"github.com/kolkov/tawk/internal/ir"
	"github.com/kolkov/tawk/internal/parser"
	"github.com/kolkov/tawk/internal/runtime"
	"github.com/kolkov/tawk/internal/semantic"
)

// ErrGeneratorUnavailable is returned when no code generator is registered
// under the requested name. It is a configuration problem, distinct from a
// generator failing on a program ([CompileError]).
var ErrGeneratorUnavailable = codegen.ErrGeneratorUnavailable

// ErrMultipleIR is returned when an intermediate program is supplied
// together with other program sources.
var ErrMultipleIR = errors.New("an intermediate program must be the only program source")

// ParseError represents a syntax error in AWK source code.
type ParseError struct {
	Line    int    // 1-based line number
	Column  int    // 1-based column number
	Message string // Error description

	// Lexical is set when the tokenizer rejected the input.
	Lexical bool
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Column, e.Message)
}

// SemanticError represents a resolution or context error, such as a call
// to an undefined function or a function name used as a variable.
type SemanticError struct {
	Line    int
	Column  int
	Message string
}

func (e *SemanticError) Error() string {
	return fmt.Sprintf("semantic error at %d:%d: %s", e.Line, e.Column, e.Message)
}

// BuildError reports an internal consistency failure while producing or
// loading intermediate code.
type BuildError struct {
	Message string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build error: %s", e.Message)
}

// CompileError reports that the code generator could not compile the
// program.
type CompileError struct {
	Line    int
	Message string
}

func (e *CompileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("compile error at line %d: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("compile error: %s", e.Message)
}

// RuntimeError represents an error during AWK execution.
type RuntimeError struct {
	Line    int    // Source line, 0 when unknown
	Message string // Error description
	Err     error  // Underlying error
}

func (e *RuntimeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("runtime error at line %d: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("runtime error: %s", e.Message)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// ExitError represents a normal exit with a status code.
// This is not an error condition; it indicates the AWK program
// called exit with the given status.
type ExitError struct {
	Code int // Exit status code (0 = success)
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit %d", e.Code)
}

// IsExitError reports whether err is an ExitError and returns the exit code.
// Returns (code, true) if err is an ExitError, or (0, false) otherwise.
func IsExitError(err error) (int, bool) {
	var e *ExitError
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}

// frontError converts a parser or analyzer error to its public type.
func frontError(err error) error {
	var pe *parser.ParseError
	if errors.As(err, &pe) {
		return &ParseError{Line: pe.Pos.Line, Column: pe.Pos.Column, Message: pe.Message, Lexical: pe.Lexical}
	}
	var list semantic.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		return &SemanticError{Line: list[0].Pos.Line, Column: list[0].Pos.Column, Message: list[0].Message}
	}
	var se *semantic.Error
	if errors.As(err, &se) {
		return &SemanticError{Line: se.Pos.Line, Column: se.Pos.Column, Message: se.Message}
	}
	return backError(err)
}

// backError converts a build, compile or run error to its public type.
func backError(err error) error {
	if err == nil {
		return nil
	}
	var be *ir.BuildError
	if errors.As(err, &be) {
		return &BuildError{Message: be.Message}
	}
	var ce *codegen.CompileError
	if errors.As(err, &ce) {
		return &CompileError{Line: ce.Line, Message: ce.Message}
	}
	var re *runtime.Error
	if errors.As(err, &re) {
		return &RuntimeError{Line: re.Line, Message: re.Err.Error(), Err: re.Err}
	}
	return err
}

// exitResult turns a run's status into the error returned by the API.
func exitResult(code int, err error) error {
	if err != nil {
		return backError(err)
	}
	if code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}
