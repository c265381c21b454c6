package machine

import "fmt"

// Op is a machine instruction. Operands follow the opcode inline in the
// code stream; jump operands are absolute code offsets.
type Op int32

const (
	Nop Op = iota

	// Constants
	Num         // Num numIndex: push Double
	Int         // Int numIndex: push Int
	Str         // Str strIndex
	MatchRecord // MatchRecord strIndex: push $0 ~ Strs[i]
	Uninit      // push uninitialized

	// Stack
	Drop
	Dupe

	// Variable access
	LoadGlobal  // LoadGlobal slot
	LoadLocal   // LoadLocal slot
	LoadSpecial // LoadSpecial index
	ArrayRef    // ArrayRef scope slot: push the array, created on first use
	Field       // n -> $n

	// Arrays
	IndexGet // IndexGet scope slot nsub
	InArray  // InArray scope slot nsub
	Delete   // Delete scope slot nsub; nsub 0 clears the array

	// Assignment. The first four operands describe the target: kind scope
	// slot nsub.
	Assign    // Assign kind scope slot nsub
	AugAssign // AugAssign kind scope slot nsub op
	IncDec    // IncDec kind scope slot nsub delta post

	// Arithmetic
	Add
	Sub
	Mul
	Div
	Mod
	Pow
	Neg
	Plus
	Not

	// Strings and comparison
	Concat // Concat n
	Equals
	NotEquals
	Less
	LessOrEqual
	Greater
	GreaterOrEqual
	Match
	NotMatch

	// Jumps
	Jump      // Jump addr
	JumpTrue  // JumpTrue addr
	JumpFalse // JumpFalse addr

	// Output and input
	Print   // Print n redirect
	Printf  // Printf n redirect
	Getline // Getline kind scope slot nsub source

	// Functions
	CallUser // CallUser funcIndex nargs
	Return

	// Builtins
	CallBuiltin // CallBuiltin builtin nargs
	Split       // Split scope slot nstack
	ArrayLen    // ArrayLen scope slot
	Substitute  // Substitute kind scope slot nsub global

	// Control flow
	Next
	NextFile
	Exit // Exit hasCode

	// for (k in a)
	KeyList // KeyList scope slot
	KeyNext // KeyNext scope slot done

	// Range patterns
	RangeGet // RangeGet index
	RangeSet // RangeSet index state

	// Sections
	SetExit    // SetExit addr
	SetNext    // SetNext addr
	ReadRecord // ReadRecord eofAddr
	Halt

	numOps
)

var opNames = [...]string{
	Nop:            "Nop",
	Num:            "Num",
	Int:            "Int",
	Str:            "Str",
	MatchRecord:    "MatchRecord",
	Uninit:         "Uninit",
	Drop:           "Drop",
	Dupe:           "Dupe",
	LoadGlobal:     "LoadGlobal",
	LoadLocal:      "LoadLocal",
	LoadSpecial:    "LoadSpecial",
	ArrayRef:       "ArrayRef",
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
	Equals:         "Equals",
	NotEquals:      "NotEquals",
	Less:           "Less",
	LessOrEqual:    "LessOrEqual",
	Greater:        "Greater",
	GreaterOrEqual: "GreaterOrEqual",
	Match:          "Match",
	NotMatch:       "NotMatch",
	Jump:           "Jump",
	JumpTrue:       "JumpTrue",
	JumpFalse:      "JumpFalse",
	Print:          "Print",
	Printf:         "Printf",
	Getline:        "Getline",
	CallUser:       "CallUser",
	Return:         "Return",
	CallBuiltin:    "CallBuiltin",
	Split:          "Split",
	ArrayLen:       "ArrayLen",
	Substitute:     "Substitute",
	Next:           "Next",
	NextFile:       "NextFile",
	Exit:           "Exit",
	KeyList:        "KeyList",
	KeyNext:        "KeyNext",
	RangeGet:       "RangeGet",
	RangeSet:       "RangeSet",
	SetExit:        "SetExit",
	SetNext:        "SetNext",
	ReadRecord:     "ReadRecord",
	Halt:           "Halt",
}

// opOperands is the number of inline operands of each instruction.
var opOperands = [...]int{
	Num:         1,
	Int:         1,
	Str:         1,
	MatchRecord: 1,
	LoadGlobal:  1,
	LoadLocal:   1,
	LoadSpecial: 1,
	ArrayRef:    2,
	IndexGet:    3,
	InArray:     3,
	Delete:      3,
	Assign:      4,
	AugAssign:   5,
	IncDec:      6,
	Concat:      1,
	Jump:        1,
	JumpTrue:    1,
	JumpFalse:   1,
	Print:       2,
	Printf:      2,
	Getline:     5,
	CallUser:    2,
	CallBuiltin: 2,
	Split:       3,
	ArrayLen:    2,
	Substitute:  5,
	Exit:        1,
	KeyList:     2,
	KeyNext:     3,
	RangeGet:    1,
	RangeSet:    2,
	SetExit:     1,
	SetNext:     1,
	ReadRecord:  1,
	numOps:      0,
}

func (op Op) String() string {
	if op >= 0 && op < numOps {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", op)
}

// Valid reports whether op is a known instruction.
func (op Op) Valid() bool {
	return op >= 0 && op < numOps
}

// Operands returns the number of inline operands that follow op.
func (op Op) Operands() int {
	if !op.Valid() {
		return 0
	}
	return opOperands[op]
}

// Size returns the number of code words op occupies, including operands.
func (op Op) Size() int {
	return 1 + op.Operands()
}

// JumpOperand returns the position among op's operands of a code offset,
// or -1 when op does not jump.
func (op Op) JumpOperand() int {
	switch op {
	case Jump, JumpTrue, JumpFalse, SetExit, SetNext, ReadRecord:
		return 0
	case KeyNext:
		return 2
	}
	return -1
}
