// Package semantic provides semantic analysis for AWK programs.
//
// Analysis never mutates the AST. Resolve produces a Table that binds every
// call expression to its target, assigns a kind to every variable, and maps
// names to scopes; Check validates statement context, lvalues and builtin
// arity. The IR builder consumes the AST and the Table together.
//
// AWK has unique semantics:
//   - Variables are automatically created on first use (global by default)
//   - Function parameters create local scope
//   - Special variables (NR, NF, etc.) are pre-defined
//   - Arrays and scalars are distinguished by usage context
package semantic

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kolkov/tawk/internal/token"
)

// Error represents a semantic analysis error with source location.
type Error struct {
	Pos     token.Position
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Message)
}

// Warning represents a semantic warning (non-fatal issue).
type Warning struct {
	Pos     token.Position
	Message string
}

// String returns the warning as a formatted string.
func (w *Warning) String() string {
	return fmt.Sprintf("%s: warning: %s", w.Pos, w.Message)
}

// ErrorList is a collection of semantic errors.
type ErrorList []*Error

// Add appends an error to the list.
func (el *ErrorList) Add(pos token.Position, format string, args ...any) {
	*el = append(*el, &Error{
		Pos:     pos,
		Message: fmt.Sprintf(format, args...),
	})
}

// Sort orders the list by source position.
func (el ErrorList) Sort() {
	sort.SliceStable(el, func(i, j int) bool {
		return el[i].Pos.Offset < el[j].Pos.Offset
	})
}

// Err returns an error if the list is non-empty, nil otherwise.
func (el ErrorList) Err() error {
	if len(el) == 0 {
		return nil
	}
	return el
}

// Error implements the error interface for ErrorList.
func (el ErrorList) Error() string {
	switch len(el) {
	case 0:
		return "no errors"
	case 1:
		return el[0].Error()
	default:
		var sb strings.Builder
		sb.WriteString(el[0].Error())
		for _, e := range el[1:] {
			sb.WriteByte('\n')
			sb.WriteString(e.Error())
		}
		return sb.String()
	}
}

// WarningList is a collection of semantic warnings.
type WarningList []*Warning

// Add appends a warning to the list.
func (wl *WarningList) Add(pos token.Position, format string, args ...any) {
	*wl = append(*wl, &Warning{
		Pos:     pos,
		Message: fmt.Sprintf(format, args...),
	})
}

// Common error messages as constants for consistency.
const (
	errBreakOutsideLoop    = "break statement must be inside a loop"
	errContinueOutsideLoop = "continue statement must be inside a loop"
	errReturnOutsideFunc   = "return statement must be inside a function"
	errUndefinedFunc       = "undefined function %q"
	errDuplicateFunc       = "function %q already defined"
	errDuplicateParam      = "duplicate parameter %q in function %q"
	errParamShadowsFunc    = "parameter %q shadows function name"
	errParamIsSpecial      = "special variable %q cannot be a parameter of %q"
	errFuncIsKeyword       = "function %q conflicts with extension keyword"
	errFuncIsSpecial       = "special variable %q cannot be a function name"
	errTooManyArgs         = "too many arguments in call to %q"
	errDeleteNonArray      = "cannot delete from non-array %q"
	errAssignToNonLValue   = "cannot assign to non-lvalue"
	errNextInBeginEnd      = "%s cannot be used in BEGIN or END"
	errVarShadowsFunc      = "function %q cannot be used as a variable"
	errArrayScalarConflict = "cannot use %q as both array and scalar"
	errArrayArgRequired    = "argument %d of %s must be an array name"
	errBuiltinArity        = "%s: expected %s, got %d"
	errListOutsidePrint    = "parenthesized list is only allowed in print or before in"
)

// Common warning messages.
const (
	warnUnusedFunc = "function %q is declared but never called"
)
