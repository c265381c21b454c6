package semantic

import (
	"fmt"

	"github.com/kolkov/tawk/internal/ast"
	"github.com/kolkov/tawk/internal/token"
)

type section int

const (
	sectionBegin section = iota
	sectionRule
	sectionEnd
	sectionFunc
)

// Checker performs additional semantic validation after resolution.
// It checks for errors that require knowing the statement context.
type Checker struct {
	table  *Table
	errors ErrorList

	section section
	fn      *FuncInfo
	inLoop  int
}

// Check performs semantic validation on a resolved program.
// This is called after Resolve to catch context errors.
func Check(prog *ast.Program, table *Table) error {
	c := &Checker{table: table}

	c.section = sectionBegin
	for _, b := range prog.Begin {
		c.checkStmt(b)
	}
	c.section = sectionRule
	for _, rule := range prog.Rules {
		c.checkExpr(rule.Pattern)
		if rule.Action != nil {
			c.checkStmt(rule.Action)
		}
	}
	c.section = sectionEnd
	for _, b := range prog.EndBlocks {
		c.checkStmt(b)
	}
	c.section = sectionFunc
	for _, decl := range prog.Functions {
		c.fn = table.Func(decl.Name)
		if decl.Body != nil {
			c.checkStmt(decl.Body)
		}
	}
	c.fn = nil

	c.errors.Sort()
	return c.errors.Err()
}

// Analyze runs Resolve followed by Check.
func Analyze(prog *ast.Program, exts Extensions) (*Table, error) {
	table, err := Resolve(prog, exts)
	if err != nil {
		return nil, err
	}
	if err := Check(prog, table); err != nil {
		return nil, err
	}
	return table, nil
}

func (c *Checker) checkStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case nil:
	case *ast.BreakStmt:
		if c.inLoop == 0 {
			c.errors.Add(s.Pos(), errBreakOutsideLoop)
		}
	case *ast.ContinueStmt:
		if c.inLoop == 0 {
			c.errors.Add(s.Pos(), errContinueOutsideLoop)
		}
	case *ast.NextStmt:
		if c.section == sectionBegin || c.section == sectionEnd {
			c.errors.Add(s.Pos(), errNextInBeginEnd, "next")
		}
	case *ast.NextFileStmt:
		if c.section == sectionBegin || c.section == sectionEnd {
			c.errors.Add(s.Pos(), errNextInBeginEnd, "nextfile")
		}
	case *ast.ReturnStmt:
		if c.fn == nil {
			c.errors.Add(s.Pos(), errReturnOutsideFunc)
		}
		c.checkExpr(s.Value)
	case *ast.DeleteStmt:
		if c.table.Lookup(c.fn, s.Array.Name).Type != TypeArray {
			c.errors.Add(s.Array.Pos(), errDeleteNonArray, s.Array.Name)
		}
		c.checkExprs(s.Index)
	case *ast.PrintStmt:
		c.checkExprs(s.Args)
		c.checkExpr(s.Dest)
	case *ast.WhileStmt:
		c.checkExpr(s.Cond)
		c.loop(s.Body)
	case *ast.DoWhileStmt:
		c.loop(s.Body)
		c.checkExpr(s.Cond)
	case *ast.ForStmt:
		c.checkStmt(s.Init)
		c.checkExpr(s.Cond)
		c.checkStmt(s.Post)
		c.loop(s.Body)
	case *ast.ForInStmt:
		c.loop(s.Body)
	default:
		for _, child := range ast.Children(stmt) {
			switch n := child.(type) {
			case ast.Stmt:
				c.checkStmt(n)
			case ast.Expr:
				c.checkExpr(n)
			}
		}
	}
}

func (c *Checker) loop(body ast.Stmt) {
	c.inLoop++
	c.checkStmt(body)
	c.inLoop--
}

func (c *Checker) checkExprs(list []ast.Expr) {
	for _, e := range list {
		c.checkExpr(e)
	}
}

func (c *Checker) checkExpr(expr ast.Expr) {
	switch e := expr.(type) {
	case nil:
		return
	case *ast.ListExpr:
		c.errors.Add(e.Pos(), errListOutsidePrint)
	case *ast.AssignExpr:
		if !ast.IsLValue(e.Left) {
			c.errors.Add(e.Pos(), errAssignToNonLValue)
		}
	case *ast.UnaryExpr:
		if (e.Op == token.INCR || e.Op == token.DECR) && !ast.IsLValue(e.Expr) {
			c.errors.Add(e.Pos(), errAssignToNonLValue)
		}
	case *ast.GetlineExpr:
		if e.Target != nil && !ast.IsLValue(e.Target) {
			c.errors.Add(e.Target.Pos(), errAssignToNonLValue)
		}
	case *ast.BuiltinExpr:
		c.checkBuiltin(e)
	}
	for _, child := range ast.Children(expr) {
		if ce, ok := child.(ast.Expr); ok {
			c.checkExpr(ce)
		}
	}
}

func (c *Checker) checkBuiltin(e *ast.BuiltinExpr) {
	info, ok := GetBuiltinInfo(e.Func)
	if !ok {
		return
	}
	n := len(e.Args)
	if n < info.MinArgs || (info.MaxArgs >= 0 && n > info.MaxArgs) {
		c.errors.Add(e.Pos(), errBuiltinArity, info.Name, arity(info), n)
	}
	switch e.Func {
	case token.F_SUB, token.F_GSUB:
		if n >= 3 && !ast.IsLValue(e.Args[2]) {
			c.errors.Add(e.Args[2].Pos(), errAssignToNonLValue)
		}
	}
}

// arity describes the accepted argument counts of a builtin.
func arity(info BuiltinInfo) string {
	plural := func(n int) string {
		if n == 1 {
			return "1 argument"
		}
		return fmt.Sprintf("%d arguments", n)
	}
	switch {
	case info.MaxArgs < 0:
		return "at least " + plural(info.MinArgs)
	case info.MinArgs == info.MaxArgs:
		return plural(info.MinArgs)
	default:
		return fmt.Sprintf("%d to %d arguments", info.MinArgs, info.MaxArgs)
	}
}
