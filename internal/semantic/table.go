package semantic

import "github.com/kolkov/tawk/internal/ast"

// Table is the result of name resolution. It sits beside the AST and is
// keyed by node identity, so the AST itself is never annotated.
type Table struct {
	// Funcs lists user functions in declaration order; FuncInfo.Index is
	// the position in this slice.
	Funcs []*FuncInfo

	// GlobalNames lists global variables in order of first appearance.
	GlobalNames []string

	// Warnings collects non-fatal findings such as uncalled functions.
	Warnings WarningList

	funcs   map[string]*FuncInfo
	links   map[*ast.CallExpr]Link
	globals map[string]VarType
}

func newTable() *Table {
	return &Table{
		funcs:   make(map[string]*FuncInfo),
		links:   make(map[*ast.CallExpr]Link),
		globals: make(map[string]VarType),
	}
}

// Func returns the function named name, or nil.
func (t *Table) Func(name string) *FuncInfo {
	return t.funcs[name]
}

// Link returns the resolved target of call.
func (t *Table) Link(call *ast.CallExpr) (Link, bool) {
	l, ok := t.links[call]
	return l, ok
}

// GlobalType returns the inferred kind of global variable name.
func (t *Table) GlobalType(name string) VarType {
	if typ, ok := t.globals[name]; ok {
		return typ
	}
	return TypeScalar
}

// Lookup resolves name as seen from inside fn. A nil fn means rule, BEGIN
// or END context.
func (t *Table) Lookup(fn *FuncInfo, name string) Ref {
	if fn != nil {
		if idx := fn.Decl.ParamIndex(name); idx >= 0 {
			return Ref{Name: name, Scope: ScopeLocal, Index: idx, Type: fn.Kinds[idx]}
		}
	}
	if idx := SpecialVarIndex(name); idx >= 0 {
		typ := TypeScalar
		if IsSpecialArray(name) {
			typ = TypeArray
		}
		return Ref{Name: name, Scope: ScopeSpecial, Index: idx, Type: typ}
	}
	return Ref{Name: name, Scope: ScopeGlobal, Index: -1, Type: t.GlobalType(name)}
}
