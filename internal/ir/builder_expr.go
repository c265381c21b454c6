package ir

import (
	"github.com/kolkov/tawk/internal/ast"
	"github.com/kolkov/tawk/internal/semantic"
	"github.com/kolkov/tawk/internal/token"
)

// varRef is a variable operand: scope, slot, and for globals the name
// (the slot is assigned later by PostProcess).
type varRef struct {
	scope int
	slot  int
	name  string
	array bool
}

func (b *builder) ref(name string) varRef {
	r := b.table.Lookup(b.fn, name)
	v := varRef{slot: r.Index, array: r.Type == semantic.TypeArray}
	switch r.Scope {
	case semantic.ScopeLocal:
		v.scope = int(ScopeLocal)
	case semantic.ScopeSpecial:
		v.scope = int(ScopeSpecial)
	default:
		v.scope = int(ScopeGlobal)
		v.name = name
		v.slot = -1
	}
	return v
}

// target describes an assignment target whose stack operands have been
// pushed.
type target struct {
	kind LValue
	ref  varRef
	nsub int
}

// args returns the target descriptor followed by extra arguments.
func (t target) args(extra ...int) []int {
	return append([]int{int(t.kind), t.ref.scope, t.ref.slot, t.nsub}, extra...)
}

// lvalue pushes the operands of an assignment target.
func (b *builder) lvalue(e ast.Expr) target {
	switch e := ast.Unparen(e).(type) {
	case *ast.Ident:
		return target{kind: LVVar, ref: b.ref(e.Name)}
	case *ast.FieldExpr:
		b.expr(e.Index)
		return target{kind: LVField}
	case *ast.IndexExpr:
		for _, idx := range e.Index {
			b.expr(idx)
		}
		return target{kind: LVIndex, ref: b.ref(e.Array.Name), nsub: len(e.Index)}
	}
	b.fail("cannot assign to %T", e)
	return target{}
}

func (b *builder) emitTarget(op Opcode, t target, extra ...int) {
	b.emit(Tuple{Op: op, Args: t.args(extra...), Str: t.ref.name})
}

// regexOperand pushes a pattern operand: regex literals are pushed as their
// source text, anything else is evaluated.
func (b *builder) regexOperand(e ast.Expr) {
	if re, ok := e.(*ast.RegexLit); ok {
		b.emit(Tuple{Op: PushRegex, Str: re.Pattern})
		return
	}
	b.expr(e)
}

var binaryOps = map[token.Token]Opcode{
	token.ADD:        Add,
	token.SUB:        Sub,
	token.MUL:        Mul,
	token.DIV:        Div,
	token.MOD:        Mod,
	token.POW:        Pow,
	token.EQUALS:     Eq,
	token.NOT_EQUALS: Ne,
	token.LESS:       Lt,
	token.LTE:        Le,
	token.GREATER:    Gt,
	token.GTE:        Ge,
}

var augOps = map[token.Token]byte{
	token.ADD_ASSIGN: '+',
	token.SUB_ASSIGN: '-',
	token.MUL_ASSIGN: '*',
	token.DIV_ASSIGN: '/',
	token.MOD_ASSIGN: '%',
	token.POW_ASSIGN: '^',
}

var builtinOps = map[token.Token]BuiltinFunc{
	token.F_ATAN2:   BuiltinAtan2,
	token.F_CLOSE:   BuiltinClose,
	token.F_COS:     BuiltinCos,
	token.F_EXP:     BuiltinExp,
	token.F_FFLUSH:  BuiltinFflush,
	token.F_INDEX:   BuiltinIndex,
	token.F_INT:     BuiltinInt,
	token.F_LENGTH:  BuiltinLength,
	token.F_LOG:     BuiltinLog,
	token.F_MATCH:   BuiltinMatch,
	token.F_RAND:    BuiltinRand,
	token.F_SIN:     BuiltinSin,
	token.F_SPRINTF: BuiltinSprintf,
	token.F_SQRT:    BuiltinSqrt,
	token.F_SRAND:   BuiltinSrand,
	token.F_SUBSTR:  BuiltinSubstr,
	token.F_SYSTEM:  BuiltinSystem,
	token.F_TOLOWER: BuiltinTolower,
	token.F_TOUPPER: BuiltinToupper,
}

// expr pushes exactly one value.
func (b *builder) expr(expr ast.Expr) {
	switch e := expr.(type) {
	case *ast.NumLit:
		if e.IsInt() {
			b.emit(Tuple{Op: PushInt, Num: e.Value})
		} else {
			b.emit(Tuple{Op: PushNum, Num: e.Value})
		}

	case *ast.StrLit:
		b.emit(Tuple{Op: PushStr, Str: e.Value})

	case *ast.RegexLit:
		b.emit(Tuple{Op: MatchRecord, Str: e.Pattern})

	case *ast.Ident:
		v := b.ref(e.Name)
		if v.array {
			b.fail("array %q used as a value", e.Name)
		}
		b.emit(Tuple{Op: Load, Args: []int{v.scope, v.slot}, Str: v.name})

	case *ast.FieldExpr:
		b.expr(e.Index)
		b.op(Field)

	case *ast.IndexExpr:
		for _, idx := range e.Index {
			b.expr(idx)
		}
		arr := b.ref(e.Array.Name)
		b.emit(Tuple{Op: IndexGet, Args: []int{arr.scope, arr.slot, len(e.Index)}, Str: arr.name})

	case *ast.InExpr:
		for _, idx := range e.Index {
			b.expr(idx)
		}
		arr := b.ref(e.Array.Name)
		b.emit(Tuple{Op: InArray, Args: []int{arr.scope, arr.slot, len(e.Index)}, Str: arr.name})

	case *ast.GroupExpr:
		b.expr(e.Expr)

	case *ast.BinaryExpr:
		b.binary(e)

	case *ast.UnaryExpr:
		switch e.Op {
		case token.INCR, token.DECR:
			delta, post := 1, 0
			if e.Op == token.DECR {
				delta = -1
			}
			if e.Post {
				post = 1
			}
			t := b.lvalue(e.Expr)
			b.emitTarget(IncDec, t, delta, post)
		case token.SUB:
			b.expr(e.Expr)
			b.op(Neg)
		case token.ADD:
			b.expr(e.Expr)
			b.op(Plus)
		case token.NOT:
			b.expr(e.Expr)
			b.op(Not)
		default:
			b.fail("unexpected unary operator %s", e.Op)
		}

	case *ast.TernaryExpr:
		elseAddr := b.newAddress("cond_else")
		done := b.newAddress("cond_end")
		b.expr(e.Cond)
		b.jump(IfFalse, elseAddr)
		b.expr(e.Then)
		b.jump(Goto, done)
		b.depth-- // The else branch starts without the then value.
		b.place(elseAddr)
		b.expr(e.Else)
		b.place(done)

	case *ast.AssignExpr:
		t := b.lvalue(e.Left)
		b.expr(e.Right)
		if e.Op == token.ASSIGN {
			b.emitTarget(Assign, t)
			return
		}
		op, ok := augOps[e.Op]
		if !ok {
			b.fail("unexpected assignment operator %s", e.Op)
		}
		b.emitTarget(AugAssign, t, int(op))

	case *ast.ConcatExpr:
		for _, part := range e.Exprs {
			b.expr(part)
		}
		b.op(Concat, len(e.Exprs))

	case *ast.MatchExpr:
		b.expr(e.Expr)
		b.regexOperand(e.Pattern)
		if e.Op == token.NOT_MATCH {
			b.op(NotMatch)
		} else {
			b.op(Match)
		}

	case *ast.CallExpr:
		b.call(e)

	case *ast.BuiltinExpr:
		b.builtin(e)

	case *ast.GetlineExpr:
		src := GetlineMain
		switch {
		case e.Command != nil:
			b.expr(e.Command)
			src = GetlineCommand
		case e.File != nil:
			b.expr(e.File)
			src = GetlineFile
		}
		t := target{kind: LVRecord}
		if e.Target != nil {
			t = b.lvalue(e.Target)
		}
		b.emitTarget(Getline, t, src)

	default:
		b.fail("unexpected expression %T", expr)
	}
}

func (b *builder) binary(e *ast.BinaryExpr) {
	switch e.Op {
	case token.AND, token.OR:
		// Short circuit: the result is always 0 or 1.
		short := b.newAddress("short")
		done := b.newAddress("logic_end")
		branch, shortVal := IfFalse, 0
		if e.Op == token.OR {
			branch, shortVal = IfTrue, 1
		}
		b.expr(e.Left)
		b.jump(branch, short)
		b.expr(e.Right)
		b.jump(branch, short)
		b.emit(Tuple{Op: PushInt, Num: float64(1 - shortVal)})
		b.jump(Goto, done)
		b.depth--
		b.place(short)
		b.emit(Tuple{Op: PushInt, Num: float64(shortVal)})
		b.place(done)
		return
	}
	op, ok := binaryOps[e.Op]
	if !ok {
		b.fail("unexpected binary operator %s", e.Op)
	}
	b.expr(e.Left)
	b.expr(e.Right)
	b.op(op)
}

func (b *builder) call(e *ast.CallExpr) {
	link, ok := b.table.Link(e)
	if !ok {
		b.fail("call to %q is not resolved", e.Name)
	}

	if link.Ext {
		b.prog.Extensions = true
		outermost := 0
		if b.extDepth == 0 {
			outermost = 1
		}
		b.extDepth++
		for _, arg := range e.Args {
			b.argument(arg, false)
		}
		b.extDepth--
		b.emit(Tuple{Op: Extension, Args: []int{len(e.Args), outermost}, Str: link.Keyword})
		return
	}

	fn := link.Func
	for i, arg := range e.Args {
		b.argument(arg, i < len(fn.Kinds) && fn.Kinds[i] == semantic.TypeArray)
	}
	b.emit(Tuple{Op: Call, Args: []int{fn.Index, len(e.Args)}, Target: b.entries[fn.Index]})
}

// argument pushes a call argument. Names bound to arrays are passed by
// reference.
func (b *builder) argument(arg ast.Expr, wantArray bool) {
	if id, ok := arg.(*ast.Ident); ok {
		v := b.ref(id.Name)
		if v.array || wantArray {
			b.emit(Tuple{Op: PushArray, Args: []int{v.scope, v.slot}, Str: v.name})
			return
		}
	}
	b.expr(arg)
}

func (b *builder) builtin(e *ast.BuiltinExpr) {
	switch e.Func {
	case token.F_LENGTH:
		if len(e.Args) == 1 {
			if id, ok := e.Args[0].(*ast.Ident); ok {
				if v := b.ref(id.Name); v.array {
					b.emit(Tuple{Op: ArrayLength, Args: []int{v.scope, v.slot}, Str: v.name})
					return
				}
			}
		}

	case token.F_SPLIT:
		id, ok := e.Args[1].(*ast.Ident)
		if !ok {
			b.fail("split target is not an array name")
		}
		b.expr(e.Args[0])
		if len(e.Args) > 2 {
			b.regexOperand(e.Args[2])
		}
		arr := b.ref(id.Name)
		b.emit(Tuple{Op: Split, Args: []int{arr.scope, arr.slot, len(e.Args) - 1}, Str: arr.name})
		return

	case token.F_SUB, token.F_GSUB:
		b.regexOperand(e.Args[0])
		b.expr(e.Args[1])
		var t target
		if len(e.Args) > 2 {
			t = b.lvalue(e.Args[2])
		} else {
			b.emit(Tuple{Op: PushInt, Num: 0})
			t = target{kind: LVField}
		}
		global := 0
		if e.Func == token.F_GSUB {
			global = 1
		}
		b.emitTarget(Substitute, t, global)
		return

	case token.F_MATCH:
		b.expr(e.Args[0])
		b.regexOperand(e.Args[1])
		b.op(Builtin, int(BuiltinMatch), 2)
		return
	}

	fn, ok := builtinOps[e.Func]
	if !ok {
		b.fail("unexpected builtin %s", e.Func)
	}
	for _, arg := range e.Args {
		b.expr(arg)
	}
	b.op(Builtin, int(fn), len(e.Args))
}
