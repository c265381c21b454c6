package runtime

import "fmt"

// Error is a run-time failure, located at a source line when known.
type Error struct {
	Line int
	Err  error
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("runtime error at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("runtime error: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
