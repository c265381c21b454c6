package ir

import (
	"github.com/kolkov/tawk/internal/ast"
	"github.com/kolkov/tawk/internal/semantic"
	"github.com/kolkov/tawk/internal/token"
)

// Build lowers a resolved program into tuples, verifies the stack balance
// and resolves addresses and global offsets.
func Build(prog *ast.Program, table *semantic.Table) (*Program, error) {
	p, depth, err := PopulateTuples(prog, table)
	if err != nil {
		return nil, err
	}
	if depth != 0 {
		return nil, buildErrorf("net stack effect is %d, want 0", depth)
	}
	if err := PostProcess(p); err != nil {
		return nil, err
	}
	return p, nil
}

// loop holds the jump targets of the innermost loop.
type loop struct {
	brk  *Address
	cont *Address
}

// builder emits tuples for one program.
type builder struct {
	prog  *Program
	table *semantic.Table

	fn       *semantic.FuncInfo // Function being lowered, nil outside functions
	entries  []*Address         // Function entry addresses by index
	loops    []loop
	ranges   int
	extDepth int
	depth    int
	line     int
	err      error
}

// bailout unwinds the builder after an internal error.
type bailout struct{}

// PopulateTuples walks prog once and emits its tuples. It returns the net
// stack effect of everything emitted, which must be zero for a well-formed
// program.
func PopulateTuples(prog *ast.Program, table *semantic.Table) (p *Program, depth int, err error) {
	b := &builder{
		prog:  &Program{Arrays: make(map[string]bool)},
		table: table,
	}
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
			p, depth, err = nil, 0, b.err
		}
	}()

	for _, fn := range table.Funcs {
		arrays := make([]bool, len(fn.Kinds))
		for i, k := range fn.Kinds {
			arrays[i] = k == semantic.TypeArray
		}
		entry := b.newAddress("func_" + fn.Name)
		b.entries = append(b.entries, entry)
		b.prog.Funcs = append(b.prog.Funcs, Func{
			Name:   fn.Name,
			Entry:  entry,
			Params: fn.Params,
			Arrays: arrays,
		})
	}
	for _, name := range table.GlobalNames {
		if table.GlobalType(name) == semantic.TypeArray {
			b.prog.Arrays[name] = true
		}
	}

	b.program(prog)
	b.prog.Ranges = b.ranges
	return b.prog, b.depth, nil
}

func (b *builder) fail(format string, args ...any) {
	b.err = buildErrorf(format, args...)
	panic(bailout{})
}

func (b *builder) newAddress(name string) *Address {
	a := &Address{ID: len(b.prog.Labels), Name: name, Index: -1}
	b.prog.Labels = append(b.prog.Labels, -1)
	return a
}

// place binds a to the next tuple to be emitted.
func (b *builder) place(a *Address) {
	b.prog.Labels[a.ID] = len(b.prog.Tuples)
}

func (b *builder) emit(t Tuple) {
	t.Line = b.line
	b.depth += Effect(&t)
	b.prog.Tuples = append(b.prog.Tuples, t)
}

func (b *builder) op(op Opcode, args ...int) {
	b.emit(Tuple{Op: op, Args: args})
}

func (b *builder) jump(op Opcode, target *Address) {
	b.emit(Tuple{Op: op, Target: target})
}

func (b *builder) at(n ast.Node) {
	if line := n.Pos().Line; line > 0 {
		b.line = line
	}
}

// program lays out BEGIN, the main input loop, END, Halt and then the
// function bodies.
func (b *builder) program(prog *ast.Program) {
	end := b.newAddress("end")
	halt := b.newAddress("halt")

	b.jump(SetExitAddress, end)
	for _, block := range prog.Begin {
		b.block(block)
	}

	if len(prog.Rules) > 0 || len(prog.EndBlocks) > 0 {
		next := b.newAddress("next_record")
		b.jump(SetNextAddress, next)
		b.place(next)
		b.jump(GetInputRecord, end)
		for _, rule := range prog.Rules {
			b.rule(rule)
		}
		b.jump(Goto, next)
	}

	b.place(end)
	b.jump(SetExitAddress, halt)
	for _, block := range prog.EndBlocks {
		b.block(block)
	}
	b.place(halt)
	b.op(Halt)

	for _, decl := range prog.Functions {
		b.function(decl)
	}
}

func (b *builder) rule(rule *ast.Rule) {
	b.at(rule)
	skip := b.newAddress("skip_rule")

	switch pat := rule.Pattern.(type) {
	case nil:
	case *ast.CommaExpr:
		idx := b.ranges
		b.ranges++
		inRange := b.newAddress("in_range")
		run := b.newAddress("range_action")

		b.op(RangeActive, idx)
		b.jump(IfTrue, inRange)
		b.cond(pat.Left)
		b.jump(IfFalse, skip)
		b.op(RangeSet, idx, 1)
		b.place(inRange)
		b.cond(pat.Right)
		b.jump(IfFalse, run)
		b.op(RangeSet, idx, 0)
		b.place(run)
	default:
		b.cond(pat)
		b.jump(IfFalse, skip)
	}

	if rule.Action == nil {
		b.op(Print, 0, int(RedirectNone))
	} else {
		b.block(rule.Action)
	}
	// Lands on the next rule or on the main loop's Goto.
	b.place(skip)
}

func (b *builder) function(decl *ast.FuncDecl) {
	fn := b.table.Func(decl.Name)
	if fn == nil || fn.Decl != decl {
		b.fail("function %q is not resolved", decl.Name)
	}
	b.fn = fn
	b.at(decl)
	b.place(b.entries[fn.Index])
	b.emit(Tuple{Op: Function, Args: []int{fn.Index, len(fn.Params)}, Str: fn.Name})
	b.block(decl.Body)
	b.op(PushUninit)
	b.op(Return)
	b.fn = nil
}

// cond pushes the truth value of a pattern or condition. A bare regex
// matches against $0.
func (b *builder) cond(e ast.Expr) {
	b.expr(e)
}

func (b *builder) block(block *ast.BlockStmt) {
	if block == nil {
		return
	}
	for _, s := range block.Stmts {
		b.stmt(s)
	}
}

func (b *builder) stmt(stmt ast.Stmt) {
	if stmt == nil {
		return
	}
	b.at(stmt)
	switch s := stmt.(type) {
	case *ast.ExprStmt:
		b.expr(s.Expr)
		b.op(Pop)

	case *ast.PrintStmt:
		for _, arg := range s.Args {
			b.expr(arg)
		}
		redirect := RedirectNone
		switch s.Redirect {
		case token.GREATER:
			redirect = RedirectWrite
		case token.APPEND:
			redirect = RedirectAppend
		case token.PIPE:
			redirect = RedirectPipe
		}
		if redirect != RedirectNone {
			b.expr(s.Dest)
		}
		op := Print
		if s.Printf {
			op = Printf
		}
		b.op(op, len(s.Args), int(redirect))

	case *ast.BlockStmt:
		b.block(s)

	case *ast.IfStmt:
		elseAddr := b.newAddress("else")
		b.cond(s.Cond)
		b.jump(IfFalse, elseAddr)
		b.stmt(s.Then)
		if s.Else == nil {
			b.place(elseAddr)
			return
		}
		done := b.newAddress("endif")
		b.jump(Goto, done)
		b.place(elseAddr)
		b.stmt(s.Else)
		b.place(done)

	case *ast.WhileStmt:
		top := b.newAddress("while")
		brk := b.newAddress("endwhile")
		b.place(top)
		b.cond(s.Cond)
		b.jump(IfFalse, brk)
		b.loopBody(s.Body, brk, top)
		b.jump(Goto, top)
		b.place(brk)

	case *ast.DoWhileStmt:
		top := b.newAddress("do")
		cont := b.newAddress("do_cond")
		brk := b.newAddress("enddo")
		b.place(top)
		b.loopBody(s.Body, brk, cont)
		b.place(cont)
		b.cond(s.Cond)
		b.jump(IfTrue, top)
		b.place(brk)

	case *ast.ForStmt:
		top := b.newAddress("for")
		cont := b.newAddress("for_post")
		brk := b.newAddress("endfor")
		b.stmt(s.Init)
		b.place(top)
		if s.Cond != nil {
			b.cond(s.Cond)
			b.jump(IfFalse, brk)
		}
		b.loopBody(s.Body, brk, cont)
		b.place(cont)
		b.stmt(s.Post)
		b.jump(Goto, top)
		b.place(brk)

	case *ast.ForInStmt:
		cont := b.newAddress("forin")
		done := b.newAddress("endforin")
		arr := b.ref(s.Array.Name)
		b.emit(Tuple{Op: KeyList, Args: []int{arr.scope, arr.slot}, Str: arr.name})
		b.place(cont)
		v := b.ref(s.Var.Name)
		b.emit(Tuple{Op: KeyNext, Args: []int{v.scope, v.slot}, Str: v.name, Target: done})
		b.loopBody(s.Body, done, cont)
		b.jump(Goto, cont)
		b.place(done)
		b.op(Pop)

	case *ast.BreakStmt:
		if len(b.loops) == 0 {
			b.fail("break outside loop")
		}
		b.jump(Goto, b.loops[len(b.loops)-1].brk)

	case *ast.ContinueStmt:
		if len(b.loops) == 0 {
			b.fail("continue outside loop")
		}
		b.jump(Goto, b.loops[len(b.loops)-1].cont)

	case *ast.NextStmt:
		b.op(Next)

	case *ast.NextFileStmt:
		b.op(NextFile)

	case *ast.ReturnStmt:
		if s.Value != nil {
			b.expr(s.Value)
		} else {
			b.op(PushUninit)
		}
		b.op(Return)

	case *ast.ExitStmt:
		if s.Code != nil {
			b.expr(s.Code)
			b.op(Exit, 1)
		} else {
			b.op(Exit, 0)
		}

	case *ast.DeleteStmt:
		for _, idx := range s.Index {
			b.expr(idx)
		}
		arr := b.ref(s.Array.Name)
		b.emit(Tuple{Op: Delete, Args: []int{arr.scope, arr.slot, len(s.Index)}, Str: arr.name})

	default:
		b.fail("unexpected statement %T", stmt)
	}
}

func (b *builder) loopBody(body ast.Stmt, brk, cont *Address) {
	b.loops = append(b.loops, loop{brk: brk, cont: cont})
	b.stmt(body)
	b.loops = b.loops[:len(b.loops)-1]
}
