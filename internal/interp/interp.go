// Package interp executes tuple programs directly: a stack machine with an
// operand stack, a frame per active function call and the run-time state
// shared with compiled scripts.
package interp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kolkov/tawk/internal/block"
	"github.com/kolkov/tawk/internal/ext"
	"github.com/kolkov/tawk/internal/ir"
	"github.com/kolkov/tawk/internal/runtime"
	"github.com/kolkov/tawk/internal/types"
)

// maxCallDepth bounds user function recursion.
const maxCallDepth = 100000

// checkInterval is how many tuples run between cancellation checks.
const checkInterval = 1024

// frame is one active user function call.
type frame struct {
	locals []types.Value
	ret    int // Tuple index to resume at
	base   int // Operand stack depth at entry, after the arguments
}

// keyIter is the snapshot walked by a for-in loop.
type keyIter struct {
	keys []string
	pos  int
}

// Interpreter runs one tuple program once.
type Interpreter struct {
	prog  *ir.Program
	rt    *runtime.Runtime
	exts  *ext.Registry
	coord *block.Coordinator
	log   *slog.Logger

	stackData []types.Value
	sp        int

	frames  []frame
	globals []types.Value
	ranges  []bool

	exitAddr  int
	nextAddr  int // -1 outside the main input loop
	mainDepth int
	exitCode  int
}

// New prepares prog for a run with settings. exts may be nil when the
// program calls no extensions.
func New(prog *ir.Program, settings *runtime.Settings, exts *ext.Registry) (*Interpreter, error) {
	in := &Interpreter{
		prog:      prog,
		exts:      exts,
		stackData: make([]types.Value, 256),
		globals:   make([]types.Value, len(prog.Globals)),
		ranges:    make([]bool, prog.Ranges),
		exitAddr:  -1,
		nextAddr:  -1,
	}
	rt, err := runtime.New(settings, in.assign)
	if err != nil {
		return nil, err
	}
	in.rt = rt
	in.log = rt.Logger()
	in.coord = block.NewCoordinator(in.log)
	for i, g := range prog.Globals {
		if g.Array {
			in.globals[i] = types.ArrayValue(rt.NewArray())
		}
	}
	return in, nil
}

// assign stores a command-line assignment in a scalar global.
func (in *Interpreter) assign(name string, v types.Value) bool {
	idx := in.prog.GlobalIndex(name)
	if idx < 0 || in.prog.Globals[idx].Array {
		return false
	}
	in.globals[idx] = v
	return true
}

// Run executes the program and returns its exit status. Extension
// resources and all I/O are closed before Run returns, whether or not the
// program failed.
func (in *Interpreter) Run(ctx context.Context) (code int, err error) {
	defer func() {
		closeErr := in.exts.Close()
		if rtErr := in.rt.Close(); closeErr == nil {
			closeErr = rtErr
		}
		if err == nil && closeErr != nil {
			err = closeErr
		}
	}()

	if in.exts != nil {
		env := &ext.Env{
			Vars:     in.rt,
			NewArray: in.rt.NewArray,
			Stdin:    in.rt.Settings().Stdin,
			Output:   in.rt.IO().Stdout(),
			Logger:   in.log,
		}
		if err := in.exts.Init(env); err != nil {
			return 2, err
		}
	}

	err = in.execute(ctx)
	var halt *ext.HaltError
	if errors.As(err, &halt) {
		in.log.Debug("halted", "code", halt.Code)
		return halt.Code, nil
	}
	if err != nil {
		return 2, err
	}
	return in.exitCode, nil
}

// Run is a convenience wrapper around New and Interpreter.Run.
func Run(ctx context.Context, prog *ir.Program, settings *runtime.Settings, exts *ext.Registry) (int, error) {
	in, err := New(prog, settings, exts)
	if err != nil {
		return 2, err
	}
	return in.Run(ctx)
}

// Stack

func (in *Interpreter) push(v types.Value) {
	if in.sp >= len(in.stackData) {
		grown := make([]types.Value, len(in.stackData)*2)
		copy(grown, in.stackData)
		in.stackData = grown
	}
	in.stackData[in.sp] = v
	in.sp++
}

func (in *Interpreter) pop() types.Value {
	in.sp--
	return in.stackData[in.sp]
}

func (in *Interpreter) peek() types.Value {
	return in.stackData[in.sp-1]
}

// popN returns a view of the top n values. The view is only valid until
// the next push.
func (in *Interpreter) popN(n int) []types.Value {
	in.sp -= n
	return in.stackData[in.sp : in.sp+n]
}

// popPair pops b then a, for binary operators "a b -> r".
func (in *Interpreter) popPair() (types.Value, types.Value) {
	b := in.pop()
	a := in.pop()
	return a, b
}

// Variables

func (in *Interpreter) locals() []types.Value {
	return in.frames[len(in.frames)-1].locals
}

func (in *Interpreter) load(scope ir.Scope, slot int, name string) (types.Value, error) {
	var v types.Value
	switch scope {
	case ir.ScopeGlobal:
		v = in.globals[slot]
	case ir.ScopeLocal:
		v = in.locals()[slot]
	case ir.ScopeSpecial:
		return in.rt.Special(slot), nil
	}
	if v.IsArray() {
		return types.Uninit(), fmt.Errorf("can't use array %s in a scalar context", name)
	}
	return v, nil
}

func (in *Interpreter) store(scope ir.Scope, slot int, name string, v types.Value) error {
	var cell *types.Value
	switch scope {
	case ir.ScopeGlobal:
		cell = &in.globals[slot]
	case ir.ScopeLocal:
		cell = &in.locals()[slot]
	case ir.ScopeSpecial:
		return in.rt.SetSpecial(slot, v)
	}
	if cell.IsArray() {
		return fmt.Errorf("can't assign to %s; it's an array name", name)
	}
	*cell = v
	return nil
}

// array returns the array in a slot, creating it on first use.
func (in *Interpreter) array(scope ir.Scope, slot int, name string) (*types.Array, error) {
	var cell *types.Value
	switch scope {
	case ir.ScopeGlobal:
		cell = &in.globals[slot]
	case ir.ScopeLocal:
		cell = &in.locals()[slot]
	case ir.ScopeSpecial:
		return in.rt.SpecialArray(slot), nil
	}
	if arr := cell.Array(); arr != nil {
		return arr, nil
	}
	if !cell.IsUninit() {
		return nil, fmt.Errorf("can't use scalar %s as an array", name)
	}
	arr := in.rt.NewArray()
	*cell = types.ArrayValue(arr)
	return arr, nil
}

// key pops n subscripts and joins them with SUBSEP.
func (in *Interpreter) key(n int) string {
	return in.rt.Key(in.popN(n))
}

// lref is an assignment target whose stack operands have been popped.
type lref struct {
	kind  ir.LValue
	scope ir.Scope
	slot  int
	name  string
	field int
	arr   *types.Array
	key   string
}

func (in *Interpreter) lvalue(t *ir.Tuple) (lref, error) {
	lr := lref{kind: ir.LValue(t.Arg(0)), scope: ir.Scope(t.Arg(1)), slot: t.Arg(2), name: t.Str}
	switch lr.kind {
	case ir.LVField:
		lr.field = int(in.pop().AsInt())
	case ir.LVIndex:
		lr.key = in.key(t.Arg(3))
		arr, err := in.array(lr.scope, lr.slot, lr.name)
		if err != nil {
			return lr, err
		}
		lr.arr = arr
	}
	return lr, nil
}

func (in *Interpreter) get(lr lref) (types.Value, error) {
	switch lr.kind {
	case ir.LVVar:
		return in.load(lr.scope, lr.slot, lr.name)
	case ir.LVField:
		return in.rt.Field(lr.field)
	case ir.LVIndex:
		return lr.arr.Ref(lr.key), nil
	}
	return types.StrNum(in.rt.Record()), nil
}

func (in *Interpreter) set(lr lref, v types.Value) error {
	if v.IsArray() {
		return errors.New("can't assign an array to a scalar")
	}
	switch lr.kind {
	case ir.LVVar:
		return in.store(lr.scope, lr.slot, lr.name, v)
	case ir.LVField:
		return in.rt.SetField(lr.field, in.rt.ToStr(v))
	case ir.LVIndex:
		lr.arr.Set(lr.key, v)
		return nil
	}
	in.rt.SetRecord(in.rt.ToStr(v))
	return nil
}

// fail attaches the source line of t to err. Halting passes through.
func fail(t *ir.Tuple, err error) error {
	var halt *ext.HaltError
	if errors.As(err, &halt) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &runtime.Error{Line: t.Line, Err: err}
}

// execute runs tuples from the start until Halt.
func (in *Interpreter) execute(ctx context.Context) error {
	code := in.prog.Tuples
	pc := 0
	for steps := 0; ; steps++ {
		if steps%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if pc < 0 || pc >= len(code) {
			return &runtime.Error{Err: fmt.Errorf("jump out of range: %d", pc)}
		}
		t := &code[pc]
		pc++

		switch t.Op {
		case ir.Nop, ir.Function:

		case ir.PushNum:
			in.push(types.Double(t.Num))
		case ir.PushInt:
			in.push(types.Int(int64(t.Num)))
		case ir.PushStr, ir.PushRegex:
			in.push(types.Str(t.Str))
		case ir.PushUninit:
			in.push(types.Uninit())
		case ir.MatchRecord:
			ok, err := in.rt.Match(in.rt.Record(), t.Str)
			if err != nil {
				return fail(t, err)
			}
			in.push(types.Bool(ok))

		case ir.Pop:
			in.sp--
		case ir.Dup:
			in.push(in.peek())

		case ir.Load:
			v, err := in.load(ir.Scope(t.Arg(0)), t.Arg(1), t.Str)
			if err != nil {
				return fail(t, err)
			}
			in.push(v)
		case ir.PushArray:
			arr, err := in.array(ir.Scope(t.Arg(0)), t.Arg(1), t.Str)
			if err != nil {
				return fail(t, err)
			}
			in.push(types.ArrayValue(arr))
		case ir.Field:
			v, err := in.rt.Field(int(in.pop().AsInt()))
			if err != nil {
				return fail(t, err)
			}
			in.push(v)

		case ir.IndexGet, ir.InArray, ir.Delete:
			n := t.Arg(2)
			var k string
			if n > 0 {
				k = in.key(n)
			}
			arr, err := in.array(ir.Scope(t.Arg(0)), t.Arg(1), t.Str)
			if err != nil {
				return fail(t, err)
			}
			switch {
			case t.Op == ir.IndexGet:
				in.push(arr.Ref(k))
			case t.Op == ir.InArray:
				in.push(types.Bool(arr.Has(k)))
			case n == 0:
				arr.Clear()
			default:
				arr.Delete(k)
			}

		case ir.Assign:
			v := in.pop()
			lr, err := in.lvalue(t)
			if err == nil {
				err = in.set(lr, v)
			}
			if err != nil {
				return fail(t, err)
			}
			in.push(v)
		case ir.AugAssign:
			v := in.pop()
			lr, err := in.lvalue(t)
			if err != nil {
				return fail(t, err)
			}
			cur, err := in.get(lr)
			if err != nil {
				return fail(t, err)
			}
			res, err := types.Arith(byte(t.Arg(4)), cur, v)
			if err == nil {
				err = in.set(lr, res)
			}
			if err != nil {
				return fail(t, err)
			}
			in.push(res)
		case ir.IncDec:
			lr, err := in.lvalue(t)
			if err != nil {
				return fail(t, err)
			}
			cur, err := in.get(lr)
			if err != nil {
				return fail(t, err)
			}
			res := types.Add(cur, types.Int(int64(t.Arg(4))))
			if err := in.set(lr, res); err != nil {
				return fail(t, err)
			}
			if t.Arg(5) == 1 {
				in.push(types.Plus(cur))
			} else {
				in.push(res)
			}

		case ir.Add:
			a, b := in.popPair()
			in.push(types.Add(a, b))
		case ir.Sub:
			a, b := in.popPair()
			in.push(types.Sub(a, b))
		case ir.Mul:
			a, b := in.popPair()
			in.push(types.Mul(a, b))
		case ir.Div:
			a, b := in.popPair()
			v, err := types.Div(a, b)
			if err != nil {
				return fail(t, err)
			}
			in.push(v)
		case ir.Mod:
			a, b := in.popPair()
			v, err := types.Mod(a, b)
			if err != nil {
				return fail(t, err)
			}
			in.push(v)
		case ir.Pow:
			a, b := in.popPair()
			in.push(types.Pow(a, b))
		case ir.Neg:
			in.push(types.Neg(in.pop()))
		case ir.Plus:
			in.push(types.Plus(in.pop()))
		case ir.Not:
			in.push(types.Bool(!in.pop().AsBool()))

		case ir.Concat:
			parts := in.popN(t.Arg(0))
			var sb strings.Builder
			for _, p := range parts {
				sb.WriteString(in.rt.ToStr(p))
			}
			in.push(types.Str(sb.String()))
		case ir.Eq, ir.Ne, ir.Lt, ir.Le, ir.Gt, ir.Ge:
			a, b := in.popPair()
			in.push(types.Bool(compare(t.Op, types.Compare(a, b, in.rt.CONVFMT()))))
		case ir.Match, ir.NotMatch:
			re := in.pop()
			s := in.pop()
			ok, err := in.rt.Match(in.rt.ToStr(s), in.rt.ToStr(re))
			if err != nil {
				return fail(t, err)
			}
			in.push(types.Bool(ok == (t.Op == ir.Match)))

		case ir.Goto:
			pc = t.Target.Index
		case ir.IfTrue:
			if in.pop().AsBool() {
				pc = t.Target.Index
			}
		case ir.IfFalse:
			if !in.pop().AsBool() {
				pc = t.Target.Index
			}

		case ir.Print, ir.Printf:
			redirect := ir.Redirect(t.Arg(1))
			var dest string
			if redirect != ir.RedirectNone {
				dest = in.rt.ToStr(in.pop())
			}
			args := in.popN(t.Arg(0))
			var err error
			if t.Op == ir.Print {
				err = in.rt.Print(args, redirect, dest)
			} else {
				err = in.rt.Printf(args, redirect, dest)
			}
			if err != nil {
				return fail(t, err)
			}

		case ir.Getline:
			lr, err := in.lvalue(t)
			if err != nil {
				return fail(t, err)
			}
			src := t.Arg(4)
			var name string
			if src != ir.GetlineMain {
				name = in.rt.ToStr(in.pop())
			}
			rec, status := in.rt.Getline(src, name)
			if status == 1 {
				if lr.kind == ir.LVRecord {
					in.rt.SetRecord(rec)
				} else if err := in.set(lr, types.StrNum(rec)); err != nil {
					return fail(t, err)
				}
			}
			in.push(types.Int(int64(status)))

		case ir.Call:
			if len(in.frames) >= maxCallDepth {
				return fail(t, fmt.Errorf("function call nesting too deep"))
			}
			fn := &in.prog.Funcs[t.Arg(0)]
			nargs := t.Arg(1)
			locals := make([]types.Value, max(len(fn.Params), nargs))
			copy(locals, in.popN(nargs))
			in.frames = append(in.frames, frame{locals: locals, ret: pc, base: in.sp})
			pc = t.Target.Index
		case ir.Return:
			v := in.pop()
			if len(in.frames) == 0 {
				return fail(t, errors.New("return outside a function"))
			}
			f := in.frames[len(in.frames)-1]
			in.frames = in.frames[:len(in.frames)-1]
			in.sp = f.base
			in.push(v)
			pc = f.ret

		case ir.Builtin:
			v, err := in.rt.Builtin(ir.BuiltinFunc(t.Arg(0)), in.popN(t.Arg(1)))
			if err != nil {
				return fail(t, err)
			}
			in.push(v)
		case ir.Split:
			var sep *string
			if t.Arg(2) == 2 {
				s := in.rt.ToStr(in.pop())
				sep = &s
			}
			s := in.rt.ToStr(in.pop())
			arr, err := in.array(ir.Scope(t.Arg(0)), t.Arg(1), t.Str)
			if err != nil {
				return fail(t, err)
			}
			n, err := in.rt.Split(s, arr, sep)
			if err != nil {
				return fail(t, err)
			}
			in.push(types.Int(int64(n)))
		case ir.ArrayLength:
			arr, err := in.array(ir.Scope(t.Arg(0)), t.Arg(1), t.Str)
			if err != nil {
				return fail(t, err)
			}
			in.push(types.Int(int64(arr.Len())))
		case ir.Substitute:
			lr, err := in.lvalue(t)
			if err != nil {
				return fail(t, err)
			}
			repl := in.pop()
			re := in.pop()
			cur, err := in.get(lr)
			if err != nil {
				return fail(t, err)
			}
			out, n, err := in.rt.Substitute(in.rt.ToStr(re), in.rt.ToStr(repl), in.rt.ToStr(cur), t.Arg(4) == 1)
			if err != nil {
				return fail(t, err)
			}
			if n > 0 {
				if err := in.set(lr, types.Str(out)); err != nil {
					return fail(t, err)
				}
			}
			in.push(types.Int(int64(n)))
		case ir.Extension:
			v, err := in.extension(ctx, t)
			if err != nil {
				return fail(t, err)
			}
			in.push(v)

		case ir.Next, ir.NextFile:
			if in.nextAddr < 0 {
				return fail(t, fmt.Errorf("%s used in BEGIN or END", strings.ToLower(t.Op.String())))
			}
			if t.Op == ir.NextFile {
				in.rt.NextFile()
			}
			in.frames = in.frames[:0]
			in.sp = in.mainDepth
			pc = in.nextAddr
		case ir.Exit:
			if t.Arg(0) == 1 {
				in.exitCode = int(in.pop().AsInt())
			}
			in.frames = in.frames[:0]
			in.sp = 0
			pc = in.exitAddr

		case ir.KeyList:
			arr, err := in.array(ir.Scope(t.Arg(0)), t.Arg(1), t.Str)
			if err != nil {
				return fail(t, err)
			}
			in.push(types.Opaque(&keyIter{keys: arr.Keys()}))
		case ir.KeyNext:
			it, ok := in.peek().Object().(*keyIter)
			if !ok {
				return fail(t, errors.New("for-in iterator missing"))
			}
			if it.pos >= len(it.keys) {
				pc = t.Target.Index
				break
			}
			k := it.keys[it.pos]
			it.pos++
			if err := in.store(ir.Scope(t.Arg(0)), t.Arg(1), t.Str, types.StrNum(k)); err != nil {
				return fail(t, err)
			}

		case ir.RangeActive:
			in.push(types.Bool(in.ranges[t.Arg(0)]))
		case ir.RangeSet:
			in.ranges[t.Arg(0)] = t.Arg(1) == 1

		case ir.SetExitAddress:
			in.exitAddr = t.Target.Index
			in.nextAddr = -1
		case ir.SetNextAddress:
			in.nextAddr = t.Target.Index
			in.mainDepth = in.sp
		case ir.GetInputRecord:
			ok, err := in.rt.NextRecord()
			if err != nil {
				return fail(t, err)
			}
			if !ok {
				pc = t.Target.Index
			}
		case ir.Halt:
			return nil

		default:
			return fail(t, fmt.Errorf("unknown opcode %s", t.Op))
		}
	}
}

// extension invokes an extension keyword. When the outermost call of an
// expression yields a block object, the script waits here until one of its
// conditions is met and continues with that condition's tag.
func (in *Interpreter) extension(ctx context.Context, t *ir.Tuple) (types.Value, error) {
	args := append([]types.Value(nil), in.popN(t.Arg(0))...)
	v, err := in.exts.Invoke(ctx, t.Str, args)
	if err != nil {
		return types.Uninit(), err
	}
	if t.Arg(1) != 1 {
		return v, nil
	}
	obj, ok := v.Object().(block.Object)
	if !ok {
		return v, nil
	}
	if err := in.rt.IO().FlushAll(); err != nil {
		return types.Uninit(), err
	}
	tag, err := in.coord.Block(ctx, obj)
	if err != nil {
		return types.Uninit(), err
	}
	return types.Str(tag), nil
}

func compare(op ir.Opcode, c int) bool {
	switch op {
	case ir.Eq:
		return c == 0
	case ir.Ne:
		return c != 0
	case ir.Lt:
		return c < 0
	case ir.Le:
		return c <= 0
	case ir.Gt:
		return c > 0
	}
	return c >= 0
}
