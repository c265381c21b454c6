package ast

import "github.com/kolkov/tawk/internal/token"

// Program represents a complete AWK program, possibly assembled from
// several source files.
type Program struct {
	Begin     []*BlockStmt // BEGIN blocks in source order
	Rules     []*Rule      // Pattern-action rules in source order
	EndBlocks []*BlockStmt // END blocks (named to avoid clashing with End())
	Functions []*FuncDecl  // Function declarations in source order

	// Position information for the entire program.
	StartPos token.Position
	EndPos   token.Position
}

// Pos returns the position of the first token in the program.
func (p *Program) Pos() token.Position { return p.StartPos }

// End returns the position after the last token in the program.
func (p *Program) End() token.Position { return p.EndPos }

// Rule represents a pattern-action rule. A nil Pattern matches every
// record; a range pattern is a *CommaExpr. A nil Action prints $0.
type Rule struct {
	Pattern Expr
	Action  *BlockStmt

	StartPos token.Position
	EndPos   token.Position
}

// Pos returns the position of the first token in the rule.
func (r *Rule) Pos() token.Position { return r.StartPos }

// End returns the position after the last token in the rule.
func (r *Rule) End() token.Position { return r.EndPos }

// FuncDecl represents a user-defined function declaration. Locals are
// declared AWK-style as extra parameters, so Params covers both.
type FuncDecl struct {
	BaseDecl
	Name    string
	Params  []string
	Body    *BlockStmt
	NamePos token.Position
}

// ParamIndex returns the slot of name in the function frame, or -1.
func (f *FuncDecl) ParamIndex(name string) int {
	for i, p := range f.Params {
		if p == name {
			return i
		}
	}
	return -1
}

var (
	_ Node = (*Program)(nil)
	_ Node = (*Rule)(nil)
	_ Decl = (*FuncDecl)(nil)
)
