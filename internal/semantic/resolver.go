package semantic

import (
	"github.com/kolkov/tawk/internal/ast"
	"github.com/kolkov/tawk/internal/token"
)

// varKey identifies a variable: a global or special when fn is empty,
// otherwise a parameter of function fn.
type varKey struct {
	fn   string
	name string
}

// edge records that a bare name was passed for a function parameter, so the
// two must end up with the same kind.
type edge struct {
	arg   varKey
	param varKey
	pos   token.Position
}

// resolver carries the state shared by both walks.
type resolver struct {
	table *Table
	exts  Extensions

	fn    *FuncInfo                   // Function being walked, nil outside functions
	decls map[*ast.FuncDecl]*FuncInfo // Includes duplicates, which are not in table.funcs

	kinds    map[varKey]VarType
	edges    []edge
	reported map[varKey]bool
	errs     ErrorList
}

// Resolve performs name resolution and kind inference on prog.
//
// It makes exactly two walks over the AST. The first records how every
// variable is used and binds calls to extension keywords and to functions
// declared before the call site. The second binds calls to functions
// declared later. Argument-to-parameter edges from both walks are then
// solved to a fixpoint; anything still unknown becomes a scalar.
//
// exts may be nil when no extensions are loaded.
func Resolve(prog *ast.Program, exts Extensions) (*Table, error) {
	r := &resolver{
		table:    newTable(),
		exts:     exts,
		decls:    make(map[*ast.FuncDecl]*FuncInfo),
		kinds:    make(map[varKey]VarType),
		reported: make(map[varKey]bool),
	}
	for name := range specialVars {
		typ := TypeScalar
		if IsSpecialArray(name) {
			typ = TypeArray
		}
		r.kinds[varKey{name: name}] = typ
	}

	r.declare(prog)
	r.walkProgram(prog)
	r.bindLate(prog)
	r.infer()
	r.finalize()

	r.errs.Sort()
	if err := r.errs.Err(); err != nil {
		return nil, err
	}
	return r.table, nil
}

// declare registers functions and validates their signatures.
func (r *resolver) declare(prog *ast.Program) {
	for _, decl := range prog.Functions {
		info := &FuncInfo{
			Name:   decl.Name,
			Decl:   decl,
			Params: decl.Params,
			Kinds:  make([]VarType, len(decl.Params)),
		}
		r.decls[decl] = info

		switch {
		case r.table.funcs[decl.Name] != nil:
			r.errs.Add(decl.NamePos, errDuplicateFunc, decl.Name)
			continue
		case IsSpecialVar(decl.Name):
			r.errs.Add(decl.NamePos, errFuncIsSpecial, decl.Name)
		case r.exts != nil && r.exts.Lookup(decl.Name):
			r.errs.Add(decl.NamePos, errFuncIsKeyword, decl.Name)
		}
		info.Index = len(r.table.Funcs)
		r.table.Funcs = append(r.table.Funcs, info)
		r.table.funcs[decl.Name] = info
	}

	for _, decl := range prog.Functions {
		seen := make(map[string]bool, len(decl.Params))
		for _, p := range decl.Params {
			switch {
			case seen[p]:
				r.errs.Add(decl.NamePos, errDuplicateParam, p, decl.Name)
			case r.table.funcs[p] != nil:
				r.errs.Add(decl.NamePos, errParamShadowsFunc, p)
			case IsSpecialVar(p):
				r.errs.Add(decl.NamePos, errParamIsSpecial, p, decl.Name)
			}
			seen[p] = true
		}
	}
}

// walkProgram is the first walk.
func (r *resolver) walkProgram(prog *ast.Program) {
	for _, b := range prog.Begin {
		r.stmt(b)
	}
	for _, rule := range prog.Rules {
		r.expr(rule.Pattern)
		if rule.Action != nil {
			r.stmt(rule.Action)
		}
	}
	for _, b := range prog.EndBlocks {
		r.stmt(b)
	}
	for _, decl := range prog.Functions {
		r.fn = r.decls[decl]
		r.stmt(decl.Body)
	}
	r.fn = nil
}

// bindLate is the second walk. It only looks at calls the first walk
// could not bind.
func (r *resolver) bindLate(prog *ast.Program) {
	visit := func(n ast.Node) bool {
		if call, ok := n.(*ast.CallExpr); ok {
			r.bind(call, false)
		}
		return true
	}
	r.fn = nil
	for _, b := range prog.Begin {
		ast.Walk(b, visit)
	}
	for _, rule := range prog.Rules {
		ast.Walk(rule, visit)
	}
	for _, b := range prog.EndBlocks {
		ast.Walk(b, visit)
	}
	for _, decl := range prog.Functions {
		r.fn = r.decls[decl]
		ast.Walk(decl, visit)
	}
	r.fn = nil
}

func (r *resolver) stmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case nil:
	case *ast.ExprStmt:
		r.expr(s.Expr)
	case *ast.PrintStmt:
		r.exprs(s.Args)
		r.expr(s.Dest)
	case *ast.BlockStmt:
		if s == nil {
			return
		}
		for _, st := range s.Stmts {
			r.stmt(st)
		}
	case *ast.IfStmt:
		r.expr(s.Cond)
		r.stmt(s.Then)
		r.stmt(s.Else)
	case *ast.WhileStmt:
		r.expr(s.Cond)
		r.stmt(s.Body)
	case *ast.DoWhileStmt:
		r.stmt(s.Body)
		r.expr(s.Cond)
	case *ast.ForStmt:
		r.stmt(s.Init)
		r.expr(s.Cond)
		r.stmt(s.Post)
		r.stmt(s.Body)
	case *ast.ForInStmt:
		r.use(s.Var.Name, TypeScalar, s.Var.Pos())
		r.use(s.Array.Name, TypeArray, s.Array.Pos())
		r.stmt(s.Body)
	case *ast.ReturnStmt:
		r.expr(s.Value)
	case *ast.ExitStmt:
		r.expr(s.Code)
	case *ast.DeleteStmt:
		r.use(s.Array.Name, TypeArray, s.Array.Pos())
		r.exprs(s.Index)
	}
}

func (r *resolver) exprs(list []ast.Expr) {
	for _, e := range list {
		r.expr(e)
	}
}

func (r *resolver) expr(expr ast.Expr) {
	switch e := expr.(type) {
	case nil:
	case *ast.Ident:
		r.use(e.Name, TypeScalar, e.Pos())
	case *ast.FieldExpr:
		r.expr(e.Index)
	case *ast.IndexExpr:
		r.use(e.Array.Name, TypeArray, e.Array.Pos())
		r.exprs(e.Index)
	case *ast.InExpr:
		r.exprs(e.Index)
		r.use(e.Array.Name, TypeArray, e.Array.Pos())
	case *ast.BinaryExpr:
		r.expr(e.Left)
		r.expr(e.Right)
	case *ast.UnaryExpr:
		r.expr(e.Expr)
	case *ast.TernaryExpr:
		r.expr(e.Cond)
		r.expr(e.Then)
		r.expr(e.Else)
	case *ast.AssignExpr:
		r.expr(e.Left)
		r.expr(e.Right)
	case *ast.ConcatExpr:
		r.exprs(e.Exprs)
	case *ast.GroupExpr:
		r.expr(e.Expr)
	case *ast.ListExpr:
		r.exprs(e.Exprs)
	case *ast.MatchExpr:
		r.expr(e.Expr)
		r.expr(e.Pattern)
	case *ast.CommaExpr:
		r.expr(e.Left)
		r.expr(e.Right)
	case *ast.GetlineExpr:
		r.expr(e.Command)
		r.expr(e.Target)
		r.expr(e.File)
	case *ast.BuiltinExpr:
		r.builtin(e)
	case *ast.CallExpr:
		for _, arg := range e.Args {
			if id, ok := arg.(*ast.Ident); ok {
				r.use(id.Name, TypeUnknown, id.Pos())
				continue
			}
			r.expr(arg)
		}
		r.bind(e, true)
	}
}

func (r *resolver) builtin(e *ast.BuiltinExpr) {
	switch e.Func {
	case token.F_SPLIT:
		if len(e.Args) >= 2 {
			r.expr(e.Args[0])
			if id, ok := e.Args[1].(*ast.Ident); ok {
				r.use(id.Name, TypeArray, id.Pos())
			} else {
				r.errs.Add(e.Args[1].Pos(), errArrayArgRequired, 2, "split")
			}
			r.exprs(e.Args[2:])
			return
		}
	case token.F_LENGTH:
		if len(e.Args) == 1 {
			if id, ok := e.Args[0].(*ast.Ident); ok {
				r.use(id.Name, TypeUnknown, id.Pos())
				return
			}
		}
	}
	r.exprs(e.Args)
}

// key returns the variable name refers to in the current context.
func (r *resolver) key(name string) varKey {
	if r.fn != nil && r.fn.Decl.ParamIndex(name) >= 0 {
		return varKey{fn: r.fn.Name, name: name}
	}
	return varKey{name: name}
}

// use records one occurrence of name with the kind its context demands.
func (r *resolver) use(name string, typ VarType, pos token.Position) {
	key := r.key(name)
	if key.fn == "" && r.table.funcs[name] != nil {
		if !r.reported[key] {
			r.reported[key] = true
			r.errs.Add(pos, errVarShadowsFunc, name)
		}
		return
	}
	if _, ok := r.kinds[key]; !ok {
		r.kinds[key] = TypeUnknown
		if key.fn == "" {
			r.table.GlobalNames = append(r.table.GlobalNames, name)
		}
	}
	r.setKind(key, typ, pos)
}

func (r *resolver) setKind(key varKey, typ VarType, pos token.Position) {
	cur := r.kinds[key]
	switch {
	case typ == TypeUnknown || cur == typ:
	case cur == TypeUnknown:
		r.kinds[key] = typ
	default:
		r.conflict(key, pos)
	}
}

func (r *resolver) conflict(key varKey, pos token.Position) {
	if r.reported[key] {
		return
	}
	r.reported[key] = true
	r.errs.Add(pos, errArrayScalarConflict, key.name)
}

// bind links call to its target. In the first walk only earlier functions
// and extension keywords are eligible; in the second walk anything still
// unbound is an error.
func (r *resolver) bind(call *ast.CallExpr, early bool) {
	if _, done := r.table.links[call]; done {
		return
	}
	if fn := r.table.funcs[call.Name]; fn != nil {
		if early && fn.Decl.Pos().Offset > call.Pos().Offset {
			return
		}
		r.linkFunc(call, fn)
		return
	}
	if r.exts != nil && r.exts.Lookup(call.Name) {
		r.linkExt(call)
		return
	}
	if !early {
		r.errs.Add(call.Pos(), errUndefinedFunc, call.Name)
	}
}

func (r *resolver) linkFunc(call *ast.CallExpr, fn *FuncInfo) {
	r.table.links[call] = Link{Func: fn}
	fn.Called = true
	if len(call.Args) > len(fn.Params) {
		r.errs.Add(call.Pos(), errTooManyArgs, call.Name)
		return
	}
	for i, arg := range call.Args {
		param := varKey{fn: fn.Name, name: fn.Params[i]}
		if id, ok := arg.(*ast.Ident); ok {
			if r.table.funcs[id.Name] == nil || r.key(id.Name).fn != "" {
				r.edges = append(r.edges, edge{arg: r.key(id.Name), param: param, pos: id.Pos()})
			}
			continue
		}
		r.setKind(param, TypeScalar, arg.Pos())
	}
}

func (r *resolver) linkExt(call *ast.CallExpr) {
	r.table.links[call] = Link{Keyword: call.Name, Ext: true}
	for _, idx := range r.exts.ArrayParams(call.Name, len(call.Args)) {
		if idx < 0 || idx >= len(call.Args) {
			continue
		}
		id, ok := call.Args[idx].(*ast.Ident)
		if !ok {
			r.errs.Add(call.Args[idx].Pos(), errArrayArgRequired, idx+1, call.Name)
			continue
		}
		r.setKind(r.key(id.Name), TypeArray, id.Pos())
	}
}

// infer propagates kinds along call edges until nothing changes.
func (r *resolver) infer() {
	for changed := true; changed; {
		changed = false
		for _, e := range r.edges {
			a, p := r.kinds[e.arg], r.kinds[e.param]
			switch {
			case a == p:
			case a == TypeUnknown:
				r.kinds[e.arg] = p
				changed = true
			case p == TypeUnknown:
				r.kinds[e.param] = a
				changed = true
			default:
				r.conflict(e.arg, e.pos)
			}
		}
	}
}

// finalize copies inferred kinds into the table, defaulting to scalar.
func (r *resolver) finalize() {
	for _, name := range r.table.GlobalNames {
		typ := r.kinds[varKey{name: name}]
		if typ == TypeUnknown {
			typ = TypeScalar
		}
		r.table.globals[name] = typ
	}
	for _, fn := range r.decls {
		for i, p := range fn.Params {
			typ := r.kinds[varKey{fn: fn.Name, name: p}]
			if typ == TypeUnknown {
				typ = TypeScalar
			}
			fn.Kinds[i] = typ
		}
	}
	for _, fn := range r.table.Funcs {
		if !fn.Called {
			r.table.Warnings.Add(fn.Decl.NamePos, warnUnusedFunc, fn.Name)
		}
	}
}
