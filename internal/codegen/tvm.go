package codegen

import (
	"github.com/kolkov/tawk/internal/ir"
	"github.com/kolkov/tawk/internal/machine"
)

// ScriptName is the image name used when none is given.
const ScriptName = "AwkScript"

// TVM generates tvm images for the machine package.
type TVM struct {
	Name string
}

// Compile implements Generator.
func (g TVM) Compile(prog *ir.Program) ([]byte, error) {
	img, err := g.Image(prog)
	if err != nil {
		return nil, err
	}
	return machine.Marshal(img)
}

// Image compiles prog into an image without encoding it.
//
// The tuples are walked twice. The first walk lays out global storage the
// same way the interpreter does; the second emits one instruction per
// tuple and records jump sites, which are patched once every tuple's code
// offset is known.
func (g TVM) Image(prog *ir.Program) (*machine.Image, error) {
	name := g.Name
	if name == "" {
		name = ScriptName
	}
	e := &emitter{
		img:     machine.NewImage(name),
		prog:    prog,
		nums:    make(map[float64]int32),
		strs:    make(map[string]int32),
		offsets: make([]int32, len(prog.Tuples)),
	}
	e.layout()
	if err := e.emitAll(); err != nil {
		return nil, err
	}
	if err := e.img.Verify(); err != nil {
		return nil, &CompileError{Message: err.Error()}
	}
	return e.img, nil
}

type fixup struct {
	at    int // Code position of the operand
	tuple int // Target tuple index
}

type emitter struct {
	img  *machine.Image
	prog *ir.Program

	slots   map[string]int32
	nums    map[float64]int32
	strs    map[string]int32
	offsets []int32
	fixups  []fixup
	line    int
}

// layout is the first walk: one slot per distinct global name.
func (e *emitter) layout() {
	globals := ir.AssignGlobals(e.prog)
	e.slots = make(map[string]int32, len(globals))
	e.img.Globals = make([]machine.Global, len(globals))
	for i, g := range globals {
		e.slots[g.Name] = int32(i)
		e.img.Globals[i] = machine.Global{Name: g.Name, Array: g.Array}
	}
	e.img.Ranges = e.prog.Ranges
}

func (e *emitter) num(f float64) int32 {
	if i, ok := e.nums[f]; ok {
		return i
	}
	i := int32(len(e.img.Nums))
	e.img.Nums = append(e.img.Nums, f)
	e.nums[f] = i
	return i
}

func (e *emitter) str(s string) int32 {
	if i, ok := e.strs[s]; ok {
		return i
	}
	i := int32(len(e.img.Strs))
	e.img.Strs = append(e.img.Strs, s)
	e.strs[s] = i
	return i
}

func (e *emitter) emit(op machine.Op, args ...int32) {
	e.img.Code = append(e.img.Code, int32(op))
	e.img.Code = append(e.img.Code, args...)
}

// jump emits op followed by args and a code offset referring to tuple
// target.
func (e *emitter) jump(op machine.Op, target *ir.Address, args ...int32) {
	e.img.Code = append(e.img.Code, int32(op))
	e.img.Code = append(e.img.Code, args...)
	e.fixups = append(e.fixups, fixup{at: len(e.img.Code), tuple: target.Index})
	e.img.Code = append(e.img.Code, 0)
}

// args converts tuple arguments, replacing the global slot of t with this
// image's layout.
func (e *emitter) args(t *ir.Tuple, n int) []int32 {
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(t.Arg(i))
	}
	if name, ok := t.GlobalName(); ok {
		pos, _ := t.VarArg()
		out[pos+1] = e.slots[name]
	}
	return out
}

func (e *emitter) emitAll() error {
	for i := range e.prog.Tuples {
		t := &e.prog.Tuples[i]
		e.offsets[i] = int32(len(e.img.Code))
		if t.Line > 0 && t.Line != e.line {
			e.line = t.Line
			e.img.Lines = append(e.img.Lines, machine.Line{PC: e.offsets[i], Line: int32(t.Line)})
		}
		if err := e.tuple(t); err != nil {
			return err
		}
	}
	for _, f := range e.fixups {
		e.img.Code[f.at] = e.offsets[f.tuple]
	}
	for _, f := range e.prog.Funcs {
		e.img.Funcs = append(e.img.Funcs, machine.Func{
			Name:   f.Name,
			Entry:  e.offsets[f.Entry.Index],
			Params: f.Params,
		})
	}
	return nil
}

// simple maps operand-free tuples to instructions.
var simple = map[ir.Opcode]machine.Op{
	ir.PushUninit: machine.Uninit,
	ir.Pop:        machine.Drop,
	ir.Dup:        machine.Dupe,
	ir.Field:      machine.Field,
	ir.Add:        machine.Add,
	ir.Sub:        machine.Sub,
	ir.Mul:        machine.Mul,
	ir.Div:        machine.Div,
	ir.Mod:        machine.Mod,
	ir.Pow:        machine.Pow,
	ir.Neg:        machine.Neg,
	ir.Plus:       machine.Plus,
	ir.Not:        machine.Not,
	ir.Eq:         machine.Equals,
	ir.Ne:         machine.NotEquals,
	ir.Lt:         machine.Less,
	ir.Le:         machine.LessOrEqual,
	ir.Gt:         machine.Greater,
	ir.Ge:         machine.GreaterOrEqual,
	ir.Match:      machine.Match,
	ir.NotMatch:   machine.NotMatch,
	ir.Return:     machine.Return,
	ir.Next:       machine.Next,
	ir.NextFile:   machine.NextFile,
	ir.Halt:       machine.Halt,
}

// withArgs maps tuples whose arguments carry over unchanged.
var withArgs = map[ir.Opcode]machine.Op{
	ir.PushArray:   machine.ArrayRef,
	ir.IndexGet:    machine.IndexGet,
	ir.InArray:     machine.InArray,
	ir.Delete:      machine.Delete,
	ir.Assign:      machine.Assign,
	ir.AugAssign:   machine.AugAssign,
	ir.IncDec:      machine.IncDec,
	ir.Concat:      machine.Concat,
	ir.Print:       machine.Print,
	ir.Printf:      machine.Printf,
	ir.Getline:     machine.Getline,
	ir.Builtin:     machine.CallBuiltin,
	ir.Split:       machine.Split,
	ir.ArrayLength: machine.ArrayLen,
	ir.Substitute:  machine.Substitute,
	ir.Exit:        machine.Exit,
	ir.KeyList:     machine.KeyList,
	ir.RangeActive: machine.RangeGet,
	ir.RangeSet:    machine.RangeSet,
}

func (e *emitter) tuple(t *ir.Tuple) error {
	if op, ok := simple[t.Op]; ok {
		e.emit(op)
		return nil
	}
	if op, ok := withArgs[t.Op]; ok {
		e.emit(op, e.args(t, op.Operands())...)
		return nil
	}

	switch t.Op {
	case ir.Nop, ir.Function:
		// Function entries are recorded in the function table.
	case ir.PushNum:
		e.emit(machine.Num, e.num(t.Num))
	case ir.PushInt:
		e.emit(machine.Int, e.num(t.Num))
	case ir.PushStr, ir.PushRegex:
		e.emit(machine.Str, e.str(t.Str))
	case ir.MatchRecord:
		e.emit(machine.MatchRecord, e.str(t.Str))
	case ir.Load:
		a := e.args(t, 2)
		switch ir.Scope(a[0]) {
		case ir.ScopeGlobal:
			e.emit(machine.LoadGlobal, a[1])
		case ir.ScopeLocal:
			e.emit(machine.LoadLocal, a[1])
		default:
			e.emit(machine.LoadSpecial, a[1])
		}
	case ir.Goto:
		e.jump(machine.Jump, t.Target)
	case ir.IfTrue:
		e.jump(machine.JumpTrue, t.Target)
	case ir.IfFalse:
		e.jump(machine.JumpFalse, t.Target)
	case ir.Call:
		e.emit(machine.CallUser, int32(t.Arg(0)), int32(t.Arg(1)))
	case ir.KeyNext:
		e.jump(machine.KeyNext, t.Target, e.args(t, 2)...)
	case ir.SetExitAddress:
		e.jump(machine.SetExit, t.Target)
	case ir.SetNextAddress:
		e.jump(machine.SetNext, t.Target)
	case ir.GetInputRecord:
		e.jump(machine.ReadRecord, t.Target)
	case ir.Extension:
		return &CompileError{Line: t.Line, Message: "extension " + t.Str + " is only available to the interpreter"}
	default:
		return &CompileError{Line: t.Line, Message: "no instruction for " + t.Op.String()}
	}
	return nil
}
