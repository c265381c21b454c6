package ir

import "fmt"

// Address is a symbolic jump or call target. The builder records where each
// address is placed; PostProcess copies that placement into Index.
type Address struct {
	ID    int
	Name  string
	Index int // Absolute tuple index, -1 until resolved
}

// String returns the label as shown in listings.
func (a *Address) String() string {
	if a == nil {
		return "<nil>"
	}
	if a.Index >= 0 {
		return fmt.Sprintf("%s#%d -> %d", a.Name, a.ID, a.Index)
	}
	return fmt.Sprintf("%s#%d", a.Name, a.ID)
}

// Tuple is one IR instruction.
type Tuple struct {
	Op     Opcode
	Args   []int
	Num    float64
	Str    string
	Target *Address
	Line   int // Source line, 0 when unknown
}

// Arg returns Args[i], or 0 when the tuple has fewer arguments.
func (t *Tuple) Arg(i int) int {
	if i < len(t.Args) {
		return t.Args[i]
	}
	return 0
}

// VarArg returns the position in Args of the scope of the variable the
// tuple refers to; the slot follows it. ok is false when the tuple refers
// to no variable.
func (t *Tuple) VarArg() (pos int, ok bool) {
	switch t.Op {
	case Load, PushArray, IndexGet, InArray, Delete, Split, ArrayLength, KeyList, KeyNext:
		return 0, true
	case Assign, AugAssign, IncDec, Getline, Substitute:
		switch LValue(t.Arg(0)) {
		case LVVar, LVIndex:
			return 1, true
		}
	}
	return 0, false
}

// GlobalName returns the global variable name the tuple refers to.
func (t *Tuple) GlobalName() (string, bool) {
	pos, ok := t.VarArg()
	if !ok || Scope(t.Arg(pos)) != ScopeGlobal {
		return "", false
	}
	return t.Str, true
}

// lvOperands is the number of stack values an assignment target uses.
func lvOperands(args []int) int {
	if len(args) < 4 {
		return 0
	}
	switch LValue(args[0]) {
	case LVField:
		return 1
	case LVIndex:
		return args[3]
	}
	return 0
}

// Effect returns the net change in operand stack depth when t executes
// and falls through.
func Effect(t *Tuple) int {
	switch t.Op {
	case PushNum, PushInt, PushStr, PushRegex, MatchRecord, PushUninit,
		Load, PushArray, Dup, ArrayLength, KeyList, RangeActive:
		return 1
	case Pop, IfTrue, IfFalse, Return,
		Add, Sub, Mul, Div, Mod, Pow,
		Eq, Ne, Lt, Le, Gt, Ge, Match, NotMatch:
		return -1
	case IndexGet, InArray:
		return 1 - t.Arg(2)
	case Delete:
		return -t.Arg(2)
	case Assign, AugAssign:
		return -lvOperands(t.Args)
	case IncDec:
		return 1 - lvOperands(t.Args)
	case Concat:
		return 1 - t.Arg(0)
	case Print, Printf:
		n := t.Arg(0)
		if Redirect(t.Arg(1)) != RedirectNone {
			n++
		}
		return -n
	case Getline:
		n := lvOperands(t.Args)
		if t.Arg(4) != GetlineMain {
			n++
		}
		return 1 - n
	case Call:
		return 1 - t.Arg(1)
	case Builtin:
		return 1 - t.Arg(1)
	case Split:
		return 1 - t.Arg(2)
	case Substitute:
		return 1 - 2 - lvOperands(t.Args)
	case Extension:
		return 1 - t.Arg(0)
	case Exit:
		return -t.Arg(0)
	}
	return 0
}

// Global describes one global variable slot.
type Global struct {
	Name  string
	Array bool
}

// Func describes a user-defined function.
type Func struct {
	Name   string
	Entry  *Address
	Params []string
	Arrays []bool // Parameters inferred to be arrays
}

// Program is a complete tuple program.
type Program struct {
	Tuples []Tuple
	Funcs  []Func

	// Globals is indexed by offset once PostProcess has run.
	Globals []Global

	// Arrays names the globals used as arrays.
	Arrays map[string]bool

	// Labels maps an address ID to the tuple index it was placed at.
	Labels []int

	// Ranges is the number of range patterns.
	Ranges int

	// Extensions is set when the program calls extension keywords.
	Extensions bool
}

// GlobalIndex returns the offset of global name, or -1.
func (p *Program) GlobalIndex(name string) int {
	for i, g := range p.Globals {
		if g.Name == name {
			return i
		}
	}
	return -1
}

// BuildError reports an internal consistency failure while building or
// validating a tuple program.
type BuildError struct {
	Message string
}

func (e *BuildError) Error() string {
	return "build error: " + e.Message
}

func buildErrorf(format string, args ...any) *BuildError {
	return &BuildError{Message: fmt.Sprintf(format, args...)}
}
