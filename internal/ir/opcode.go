// Package ir defines the tuple intermediate representation shared by the
// interpreter and the compiler backend, the builder that lowers a resolved
// AST into it, and its binary persistence format.
package ir

import "fmt"

// Opcode identifies a tuple instruction. Stack effects are noted as
// "inputs -> outputs" with the top of stack on the right.
type Opcode int32

const (
	// Nop does nothing.
	Nop Opcode = iota

	// Constants
	PushNum     // -> Double(Num)
	PushInt     // -> Int(Num)
	PushStr     // -> Str
	PushRegex   // -> Str; the string is a regex literal used as an operand
	MatchRecord // -> $0 ~ Str
	PushUninit  // -> uninit

	// Stack
	Pop // v ->
	Dup // v -> v v

	// Variables. Args[0] is the scope, Args[1] the slot; Str names globals.
	Load      // -> v
	PushArray // -> array reference, created on first use
	Field     // n -> $n

	// Arrays. Args: scope slot nsub.
	IndexGet // k1..kn -> arr[k]
	InArray  // k1..kn -> (k in arr)
	Delete   // k1..kn -> ; nsub 0 clears the array

	// Assignment. Args[0:4] describe the target (see LValue).
	Assign    // operands v -> v
	AugAssign // operands v -> v; Args[4] is the arithmetic operator byte
	IncDec    // operands -> v; Args[4] is the delta, Args[5] is 1 for postfix

	// Arithmetic
	Add // a b -> a+b
	Sub // a b -> a-b
	Mul // a b -> a*b
	Div // a b -> a/b
	Mod // a b -> a%b
	Pow // a b -> a^b

	Neg  // a -> -a
	Plus // a -> +a
	Not  // a -> !a

	// Strings and comparison
	Concat   // v1..vn -> s; Args[0] is n
	Eq       // a b -> a==b
	Ne       // a b -> a!=b
	Lt       // a b -> a<b
	Le       // a b -> a<=b
	Gt       // a b -> a>b
	Ge       // a b -> a>=b
	Match    // s re -> s~re
	NotMatch // s re -> s!~re

	// Jumps
	Goto    // ->
	IfTrue  // v ->
	IfFalse // v ->

	// Output. Args: n redirect. The destination, if any, is pushed last.
	Print  // v1..vn [dest] ->
	Printf // fmt v1..vn-1 [dest] ->

	// Getline. Args[0:4] describe the target, Args[4] is the source.
	Getline // [src] operands -> status

	// Functions
	Call     // a1..an -> ret; Args: funcIndex nargs; Target is the entry
	Function // entry marker; Args: funcIndex nparams; Str is the name
	Return   // v -> ; leaves v on the caller's stack

	// Builtins
	Builtin     // a1..an -> v; Args: builtin nargs
	Split       // s [sep] -> n; Args: scope slot nstack
	ArrayLength // -> n; Args: scope slot
	Substitute  // re repl operands -> count; Args[0:4] target, Args[4] is 1 for gsub
	Extension   // a1..an -> v; Args: nargs outermost; Str is the keyword

	// AWK control flow
	Next     // jump to the next-record address
	NextFile // skip the rest of the current file, then as Next
	Exit     // [code] -> ; Args[0] is 1 when a code is on the stack

	// for (k in a). KeyList pushes a snapshot iterator; KeyNext assigns the
	// next key to the scalar in Args[0:2] or jumps to Target when done.
	KeyList // -> iter; Args: scope slot
	KeyNext // iter -> iter

	// Range patterns. Args[0] is the range index.
	RangeActive // -> flag
	RangeSet    // -> ; Args[1] is the new state

	// Sections
	SetExitAddress // exit jumps to Target from now on
	SetNextAddress // next jumps to Target from now on
	GetInputRecord // read the next main input record, jump to Target at EOF
	Halt           // stop

	numOpcodes
)

var opcodeNames = [...]string{
	Nop:            "Nop",
	PushNum:        "PushNum",
	PushInt:        "PushInt",
	PushStr:        "PushStr",
	PushRegex:      "PushRegex",
	MatchRecord:    "MatchRecord",
	PushUninit:     "PushUninit",
	Pop:            "Pop",
	Dup:            "Dup",
	Load:           "Load",
	PushArray:      "PushArray",
	Field:          "Field",
	IndexGet:       "IndexGet",
	InArray:        "InArray",
	Delete:         "Delete",
	Assign:         "Assign",
	AugAssign:      "AugAssign",
	IncDec:         "IncDec",
	Add:            "Add",
	Sub:            "Sub",
	Mul:            "Mul",
	Div:            "Div",
	Mod:            "Mod",
	Pow:            "Pow",
	Neg:            "Neg",
	Plus:           "Plus",
	Not:            "Not",
	Concat:         "Concat",
	Eq:             "Eq",
	Ne:             "Ne",
	Lt:             "Lt",
	Le:             "Le",
	Gt:             "Gt",
	Ge:             "Ge",
	Match:          "Match",
	NotMatch:       "NotMatch",
	Goto:           "Goto",
	IfTrue:         "IfTrue",
	IfFalse:        "IfFalse",
	Print:          "Print",
	Printf:         "Printf",
	Getline:        "Getline",
	Call:           "Call",
	Function:       "Function",
	Return:         "Return",
	Builtin:        "Builtin",
	Split:          "Split",
	ArrayLength:    "ArrayLength",
	Substitute:     "Substitute",
	Extension:      "Extension",
	Next:           "Next",
	NextFile:       "NextFile",
	Exit:           "Exit",
	KeyList:        "KeyList",
	KeyNext:        "KeyNext",
	RangeActive:    "RangeActive",
	RangeSet:       "RangeSet",
	SetExitAddress: "SetExitAddress",
	SetNextAddress: "SetNextAddress",
	GetInputRecord: "GetInputRecord",
	Halt:           "Halt",
}

// String returns a human-readable name for the opcode.
func (op Opcode) String() string {
	if op >= 0 && op < numOpcodes {
		return opcodeNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", op)
}

// Valid reports whether op is a known opcode.
func (op Opcode) Valid() bool {
	return op >= 0 && op < numOpcodes
}

// Jumps reports whether tuples with this opcode carry a Target.
func (op Opcode) Jumps() bool {
	switch op {
	case Goto, IfTrue, IfFalse, Call, KeyNext,
		SetExitAddress, SetNextAddress, GetInputRecord:
		return true
	}
	return false
}

// Scope tells where a variable slot lives.
type Scope int

const (
	ScopeGlobal  Scope = iota // Global variable
	ScopeLocal                // Function parameter
	ScopeSpecial              // Special variable (ARGC, ARGV, etc.)
)

// String returns a human-readable name for the scope.
func (s Scope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeLocal:
		return "local"
	case ScopeSpecial:
		return "special"
	default:
		return fmt.Sprintf("Scope(%d)", s)
	}
}

// LValue is the kind of an assignment target.
type LValue int

const (
	LVVar    LValue = iota // Scalar variable: scope slot
	LVField                // $n: n on the stack
	LVIndex                // arr[k]: scope slot of the array, nsub keys on the stack
	LVRecord               // getline with no target: $0
)

// String returns a human-readable name for the target kind.
func (lv LValue) String() string {
	switch lv {
	case LVVar:
		return "var"
	case LVField:
		return "field"
	case LVIndex:
		return "index"
	case LVRecord:
		return "record"
	default:
		return fmt.Sprintf("LValue(%d)", lv)
	}
}

// Redirect represents I/O redirection type for print and getline.
type Redirect int

const (
	RedirectNone   Redirect = iota // No redirection
	RedirectWrite                  // > file
	RedirectAppend                 // >> file
	RedirectPipe                   // | command
)

// String returns a human-readable name for the redirect type.
func (r Redirect) String() string {
	switch r {
	case RedirectNone:
		return "none"
	case RedirectWrite:
		return ">"
	case RedirectAppend:
		return ">>"
	case RedirectPipe:
		return "|"
	default:
		return fmt.Sprintf("Redirect(%d)", r)
	}
}

// Getline sources.
const (
	GetlineMain    = iota // getline from main input
	GetlineFile           // getline < file
	GetlineCommand        // cmd | getline
)

// BuiltinFunc identifies a builtin handled by the Builtin opcode.
type BuiltinFunc int

const (
	BuiltinAtan2 BuiltinFunc = iota
	BuiltinClose
	BuiltinCos
	BuiltinExp
	BuiltinFflush
	BuiltinIndex
	BuiltinInt
	BuiltinLength
	BuiltinLog
	BuiltinMatch
	BuiltinRand
	BuiltinSin
	BuiltinSprintf
	BuiltinSqrt
	BuiltinSrand
	BuiltinSubstr
	BuiltinSystem
	BuiltinTolower
	BuiltinToupper

	numBuiltins
)

var builtinNames = [...]string{
	BuiltinAtan2:   "atan2",
	BuiltinClose:   "close",
	BuiltinCos:     "cos",
	BuiltinExp:     "exp",
	BuiltinFflush:  "fflush",
	BuiltinIndex:   "index",
	BuiltinInt:     "int",
	BuiltinLength:  "length",
	BuiltinLog:     "log",
	BuiltinMatch:   "match",
	BuiltinRand:    "rand",
	BuiltinSin:     "sin",
	BuiltinSprintf: "sprintf",
	BuiltinSqrt:    "sqrt",
	BuiltinSrand:   "srand",
	BuiltinSubstr:  "substr",
	BuiltinSystem:  "system",
	BuiltinTolower: "tolower",
	BuiltinToupper: "toupper",
}

// String returns the AWK name of the builtin.
func (f BuiltinFunc) String() string {
	if f >= 0 && f < numBuiltins {
		return builtinNames[f]
	}
	return fmt.Sprintf("BuiltinFunc(%d)", f)
}
