package machine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kolkov/tawk/internal/ir"
	"github.com/kolkov/tawk/internal/runtime"
	"github.com/kolkov/tawk/internal/types"
)

// DefaultStackSize is the initial operand stack capacity.
const DefaultStackSize = 256

const (
	maxCallDepth  = 100000
	checkInterval = 1024
)

// Script is a loaded image. A Script can be run any number of times; each
// run gets fresh state.
type Script struct {
	img *Image
}

// NewScript wraps a verified image.
func NewScript(img *Image) *Script {
	return &Script{img: img}
}

// Image returns the image the script runs.
func (s *Script) Image() *Image {
	return s.img
}

// Run executes the script with settings and returns its exit status.
func (s *Script) Run(ctx context.Context, settings *runtime.Settings) (code int, err error) {
	vm := &VM{
		img:       s.img,
		stackData: make([]types.Value, DefaultStackSize),
		frames:    make([]CallFrame, 0, 16),
		globals:   make([]types.Value, len(s.img.Globals)),
		ranges:    make([]bool, s.img.Ranges),
		exitPC:    -1,
		nextPC:    -1,
	}
	rt, err := runtime.New(settings, vm.assign)
	if err != nil {
		return 2, err
	}
	vm.rt = rt
	defer func() {
		if cerr := rt.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	for i, g := range s.img.Globals {
		if g.Array {
			vm.globals[i] = types.ArrayValue(rt.NewArray())
		}
	}
	rt.Logger().Debug("script started", "name", s.img.Name, "build", s.img.BuildID)
	if err := vm.execute(ctx); err != nil {
		return 2, err
	}
	return vm.exitCode, nil
}

// VM is the state of one script run.
type VM struct {
	img *Image
	rt  *runtime.Runtime

	stackData []types.Value
	sp        int

	frames  []CallFrame
	globals []types.Value
	ranges  []bool

	exitPC    int
	nextPC    int
	mainDepth int
	exitCode  int
}

// CallFrame represents a function call on the call stack.
type CallFrame struct {
	fn     *Func
	ip     int // Saved instruction pointer
	bp     int // Stack depth after the arguments were taken
	locals []types.Value
}

type keyIter struct {
	keys []string
	pos  int
}

func (vm *VM) assign(name string, v types.Value) bool {
	for i, g := range vm.img.Globals {
		if g.Name == name {
			if g.Array {
				return false
			}
			vm.globals[i] = v
			return true
		}
	}
	return false
}

func (vm *VM) push(v types.Value) {
	if vm.sp >= len(vm.stackData) {
		grown := make([]types.Value, len(vm.stackData)*2)
		copy(grown, vm.stackData)
		vm.stackData = grown
	}
	vm.stackData[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() types.Value {
	vm.sp--
	return vm.stackData[vm.sp]
}

func (vm *VM) peek() types.Value {
	return vm.stackData[vm.sp-1]
}

func (vm *VM) popN(n int) []types.Value {
	vm.sp -= n
	return vm.stackData[vm.sp : vm.sp+n]
}

func (vm *VM) pop2() (types.Value, types.Value) {
	b := vm.pop()
	a := vm.pop()
	return a, b
}

func (vm *VM) frame() *CallFrame {
	return &vm.frames[len(vm.frames)-1]
}

func (vm *VM) name(scope ir.Scope, slot int) string {
	switch scope {
	case ir.ScopeGlobal:
		return vm.img.Globals[slot].Name
	case ir.ScopeLocal:
		if f := vm.frame(); slot < len(f.fn.Params) {
			return f.fn.Params[slot]
		}
	}
	return "?"
}

// cell returns the storage of a global or local slot.
func (vm *VM) cell(scope ir.Scope, slot int) *types.Value {
	if scope == ir.ScopeLocal {
		return &vm.frame().locals[slot]
	}
	return &vm.globals[slot]
}

func (vm *VM) load(scope ir.Scope, slot int) (types.Value, error) {
	if scope == ir.ScopeSpecial {
		return vm.rt.Special(slot), nil
	}
	v := *vm.cell(scope, slot)
	if v.IsArray() {
		return types.Uninit(), fmt.Errorf("can't use array %s in a scalar context", vm.name(scope, slot))
	}
	return v, nil
}

func (vm *VM) store(scope ir.Scope, slot int, v types.Value) error {
	if scope == ir.ScopeSpecial {
		return vm.rt.SetSpecial(slot, v)
	}
	c := vm.cell(scope, slot)
	if c.IsArray() {
		return fmt.Errorf("can't assign to %s; it's an array name", vm.name(scope, slot))
	}
	*c = v
	return nil
}

func (vm *VM) array(scope ir.Scope, slot int) (*types.Array, error) {
	if scope == ir.ScopeSpecial {
		return vm.rt.SpecialArray(slot), nil
	}
	c := vm.cell(scope, slot)
	if arr := c.Array(); arr != nil {
		return arr, nil
	}
	if !c.IsUninit() {
		return nil, fmt.Errorf("can't use scalar %s as an array", vm.name(scope, slot))
	}
	arr := vm.rt.NewArray()
	*c = types.ArrayValue(arr)
	return arr, nil
}

// target is an assignment destination decoded from four operands.
type target struct {
	kind  ir.LValue
	scope ir.Scope
	slot  int
	field int
	arr   *types.Array
	key   string
}

func (vm *VM) target(args []int32) (target, error) {
	t := target{kind: ir.LValue(args[0]), scope: ir.Scope(args[1]), slot: int(args[2])}
	switch t.kind {
	case ir.LVField:
		t.field = int(vm.pop().AsInt())
	case ir.LVIndex:
		t.key = vm.rt.Key(vm.popN(int(args[3])))
		arr, err := vm.array(t.scope, t.slot)
		if err != nil {
			return t, err
		}
		t.arr = arr
	}
	return t, nil
}

func (vm *VM) get(t target) (types.Value, error) {
	switch t.kind {
	case ir.LVVar:
		return vm.load(t.scope, t.slot)
	case ir.LVField:
		return vm.rt.Field(t.field)
	case ir.LVIndex:
		return t.arr.Ref(t.key), nil
	}
	return types.StrNum(vm.rt.Record()), nil
}

func (vm *VM) set(t target, v types.Value) error {
	if v.IsArray() {
		return errors.New("can't assign an array to a scalar")
	}
	switch t.kind {
	case ir.LVVar:
		return vm.store(t.scope, t.slot, v)
	case ir.LVField:
		return vm.rt.SetField(t.field, vm.rt.ToStr(v))
	case ir.LVIndex:
		t.arr.Set(t.key, v)
		return nil
	}
	vm.rt.SetRecord(vm.rt.ToStr(v))
	return nil
}

func (vm *VM) execute(ctx context.Context) error {
	code := vm.img.Code
	ip := 0
	var (
		op    Op
		start int
	)
	fail := func(err error) error {
		return &runtime.Error{Line: vm.img.LineAt(start), Err: err}
	}

	for steps := 0; ; steps++ {
		if steps%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if ip < 0 || ip >= len(code) {
			return fail(fmt.Errorf("instruction pointer out of range: %d", ip))
		}
		start = ip
		op = Op(code[ip])
		args := code[ip+1 : ip+op.Size()]
		ip += op.Size()

		switch op {
		case Nop:

		case Num:
			vm.push(types.Double(vm.img.Nums[args[0]]))
		case Int:
			vm.push(types.Int(int64(vm.img.Nums[args[0]])))
		case Str:
			vm.push(types.Str(vm.img.Strs[args[0]]))
		case MatchRecord:
			ok, err := vm.rt.Match(vm.rt.Record(), vm.img.Strs[args[0]])
			if err != nil {
				return fail(err)
			}
			vm.push(types.Bool(ok))
		case Uninit:
			vm.push(types.Uninit())

		case Drop:
			vm.sp--
		case Dupe:
			vm.push(vm.peek())

		case LoadGlobal:
			v := vm.globals[args[0]]
			if v.IsArray() {
				return fail(fmt.Errorf("can't use array %s in a scalar context", vm.img.Globals[args[0]].Name))
			}
			vm.push(v)
		case LoadLocal:
			v, err := vm.load(ir.ScopeLocal, int(args[0]))
			if err != nil {
				return fail(err)
			}
			vm.push(v)
		case LoadSpecial:
			vm.push(vm.rt.Special(int(args[0])))
		case ArrayRef:
			arr, err := vm.array(ir.Scope(args[0]), int(args[1]))
			if err != nil {
				return fail(err)
			}
			vm.push(types.ArrayValue(arr))
		case Field:
			v, err := vm.rt.Field(int(vm.pop().AsInt()))
			if err != nil {
				return fail(err)
			}
			vm.push(v)

		case IndexGet, InArray, Delete:
			n := int(args[2])
			var k string
			if n > 0 {
				k = vm.rt.Key(vm.popN(n))
			}
			arr, err := vm.array(ir.Scope(args[0]), int(args[1]))
			if err != nil {
				return fail(err)
			}
			switch {
			case op == IndexGet:
				vm.push(arr.Ref(k))
			case op == InArray:
				vm.push(types.Bool(arr.Has(k)))
			case n == 0:
				arr.Clear()
			default:
				arr.Delete(k)
			}

		case Assign:
			v := vm.pop()
			t, err := vm.target(args)
			if err == nil {
				err = vm.set(t, v)
			}
			if err != nil {
				return fail(err)
			}
			vm.push(v)
		case AugAssign:
			v := vm.pop()
			t, err := vm.target(args)
			if err != nil {
				return fail(err)
			}
			cur, err := vm.get(t)
			if err != nil {
				return fail(err)
			}
			res, err := types.Arith(byte(args[4]), cur, v)
			if err == nil {
				err = vm.set(t, res)
			}
			if err != nil {
				return fail(err)
			}
			vm.push(res)
		case IncDec:
			t, err := vm.target(args)
			if err != nil {
				return fail(err)
			}
			cur, err := vm.get(t)
			if err != nil {
				return fail(err)
			}
			res := types.Add(cur, types.Int(int64(args[4])))
			if err := vm.set(t, res); err != nil {
				return fail(err)
			}
			if args[5] == 1 {
				vm.push(types.Plus(cur))
			} else {
				vm.push(res)
			}

		case Add:
			a, b := vm.pop2()
			vm.push(types.Add(a, b))
		case Sub:
			a, b := vm.pop2()
			vm.push(types.Sub(a, b))
		case Mul:
			a, b := vm.pop2()
			vm.push(types.Mul(a, b))
		case Div, Mod:
			a, b := vm.pop2()
			var (
				v   types.Value
				err error
			)
			if op == Div {
				v, err = types.Div(a, b)
			} else {
				v, err = types.Mod(a, b)
			}
			if err != nil {
				return fail(err)
			}
			vm.push(v)
		case Pow:
			a, b := vm.pop2()
			vm.push(types.Pow(a, b))
		case Neg:
			vm.push(types.Neg(vm.pop()))
		case Plus:
			vm.push(types.Plus(vm.pop()))
		case Not:
			vm.push(types.Bool(!vm.pop().AsBool()))

		case Concat:
			var sb strings.Builder
			for _, v := range vm.popN(int(args[0])) {
				sb.WriteString(vm.rt.ToStr(v))
			}
			vm.push(types.Str(sb.String()))
		case Equals, NotEquals, Less, LessOrEqual, Greater, GreaterOrEqual:
			a, b := vm.pop2()
			c := types.Compare(a, b, vm.rt.CONVFMT())
			var r bool
			switch op {
			case Equals:
				r = c == 0
			case NotEquals:
				r = c != 0
			case Less:
				r = c < 0
			case LessOrEqual:
				r = c <= 0
			case Greater:
				r = c > 0
			default:
				r = c >= 0
			}
			vm.push(types.Bool(r))
		case Match, NotMatch:
			re := vm.pop()
			s := vm.pop()
			ok, err := vm.rt.Match(vm.rt.ToStr(s), vm.rt.ToStr(re))
			if err != nil {
				return fail(err)
			}
			vm.push(types.Bool(ok == (op == Match)))

		case Jump:
			ip = int(args[0])
		case JumpTrue:
			if vm.pop().AsBool() {
				ip = int(args[0])
			}
		case JumpFalse:
			if !vm.pop().AsBool() {
				ip = int(args[0])
			}

		case Print, Printf:
			redirect := ir.Redirect(args[1])
			var dest string
			if redirect != ir.RedirectNone {
				dest = vm.rt.ToStr(vm.pop())
			}
			vals := vm.popN(int(args[0]))
			var err error
			if op == Print {
				err = vm.rt.Print(vals, redirect, dest)
			} else {
				err = vm.rt.Printf(vals, redirect, dest)
			}
			if err != nil {
				return fail(err)
			}
		case Getline:
			t, err := vm.target(args)
			if err != nil {
				return fail(err)
			}
			src := int(args[4])
			var name string
			if src != ir.GetlineMain {
				name = vm.rt.ToStr(vm.pop())
			}
			rec, status := vm.rt.Getline(src, name)
			if status == 1 {
				if t.kind == ir.LVRecord {
					vm.rt.SetRecord(rec)
				} else if err := vm.set(t, types.StrNum(rec)); err != nil {
					return fail(err)
				}
			}
			vm.push(types.Int(int64(status)))

		case CallUser:
			if len(vm.frames) >= maxCallDepth {
				return fail(errors.New("function call nesting too deep"))
			}
			fn := &vm.img.Funcs[args[0]]
			nargs := int(args[1])
			locals := make([]types.Value, max(len(fn.Params), nargs))
			copy(locals, vm.popN(nargs))
			vm.frames = append(vm.frames, CallFrame{fn: fn, ip: ip, bp: vm.sp, locals: locals})
			ip = int(fn.Entry)
		case Return:
			v := vm.pop()
			if len(vm.frames) == 0 {
				return fail(errors.New("return outside a function"))
			}
			f := vm.frames[len(vm.frames)-1]
			vm.frames = vm.frames[:len(vm.frames)-1]
			vm.sp = f.bp
			vm.push(v)
			ip = f.ip

		case CallBuiltin:
			v, err := vm.rt.Builtin(ir.BuiltinFunc(args[0]), vm.popN(int(args[1])))
			if err != nil {
				return fail(err)
			}
			vm.push(v)
		case Split:
			var sep *string
			if args[2] == 2 {
				s := vm.rt.ToStr(vm.pop())
				sep = &s
			}
			s := vm.rt.ToStr(vm.pop())
			arr, err := vm.array(ir.Scope(args[0]), int(args[1]))
			if err != nil {
				return fail(err)
			}
			n, err := vm.rt.Split(s, arr, sep)
			if err != nil {
				return fail(err)
			}
			vm.push(types.Int(int64(n)))
		case ArrayLen:
			arr, err := vm.array(ir.Scope(args[0]), int(args[1]))
			if err != nil {
				return fail(err)
			}
			vm.push(types.Int(int64(arr.Len())))
		case Substitute:
			t, err := vm.target(args)
			if err != nil {
				return fail(err)
			}
			repl := vm.pop()
			re := vm.pop()
			cur, err := vm.get(t)
			if err != nil {
				return fail(err)
			}
			out, n, err := vm.rt.Substitute(vm.rt.ToStr(re), vm.rt.ToStr(repl), vm.rt.ToStr(cur), args[4] == 1)
			if err != nil {
				return fail(err)
			}
			if n > 0 {
				if err := vm.set(t, types.Str(out)); err != nil {
					return fail(err)
				}
			}
			vm.push(types.Int(int64(n)))

		case Next, NextFile:
			if vm.nextPC < 0 {
				return fail(fmt.Errorf("%s used in BEGIN or END", strings.ToLower(op.String())))
			}
			if op == NextFile {
				vm.rt.NextFile()
			}
			vm.frames = vm.frames[:0]
			vm.sp = vm.mainDepth
			ip = vm.nextPC
		case Exit:
			if args[0] == 1 {
				vm.exitCode = int(vm.pop().AsInt())
			}
			vm.frames = vm.frames[:0]
			vm.sp = 0
			ip = vm.exitPC

		case KeyList:
			arr, err := vm.array(ir.Scope(args[0]), int(args[1]))
			if err != nil {
				return fail(err)
			}
			vm.push(types.Opaque(&keyIter{keys: arr.Keys()}))
		case KeyNext:
			it, ok := vm.peek().Object().(*keyIter)
			if !ok {
				return fail(errors.New("for-in iterator missing"))
			}
			if it.pos >= len(it.keys) {
				ip = int(args[2])
				break
			}
			k := it.keys[it.pos]
			it.pos++
			if err := vm.store(ir.Scope(args[0]), int(args[1]), types.StrNum(k)); err != nil {
				return fail(err)
			}

		case RangeGet:
			vm.push(types.Bool(vm.ranges[args[0]]))
		case RangeSet:
			vm.ranges[args[0]] = args[1] == 1

		case SetExit:
			vm.exitPC = int(args[0])
			vm.nextPC = -1
		case SetNext:
			vm.nextPC = int(args[0])
			vm.mainDepth = vm.sp
		case ReadRecord:
			ok, err := vm.rt.NextRecord()
			if err != nil {
				return fail(err)
			}
			if !ok {
				ip = int(args[0])
			}
		case Halt:
			return nil

		default:
			return fail(fmt.Errorf("invalid instruction %s", op))
		}
	}
}
