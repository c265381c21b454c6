package ast

import "github.com/kolkov/tawk/internal/token"

// ExprStmt is an expression evaluated for its side effects.
type ExprStmt struct {
	BaseStmt
	Expr Expr
}

// PrintStmt is print or printf with optional output redirection.
type PrintStmt struct {
	BaseStmt
	Printf   bool
	Args     []Expr      // empty print means print $0
	Redirect token.Token // GREATER, APPEND, PIPE, or ILLEGAL for none
	Dest     Expr
}

// BlockStmt is { stmts }.
type BlockStmt struct {
	BaseStmt
	Stmts []Stmt
}

// IfStmt is if (cond) then [else else].
type IfStmt struct {
	BaseStmt
	Cond Expr
	Then Stmt
	Else Stmt // nil without else
}

// WhileStmt is while (cond) body.
type WhileStmt struct {
	BaseStmt
	Cond Expr
	Body Stmt
}

// DoWhileStmt is do body while (cond).
type DoWhileStmt struct {
	BaseStmt
	Body Stmt
	Cond Expr
}

// ForStmt is for (init; cond; post) body. Any part may be nil.
type ForStmt struct {
	BaseStmt
	Init Stmt
	Cond Expr
	Post Stmt
	Body Stmt
}

// ForInStmt is for (var in array) body.
type ForInStmt struct {
	BaseStmt
	Var   *Ident
	Array *Ident
	Body  Stmt
}

type BreakStmt struct {
	BaseStmt
}

type ContinueStmt struct {
	BaseStmt
}

// NextStmt stops processing the current record.
type NextStmt struct {
	BaseStmt
}

// NextFileStmt stops processing the current input file.
type NextFileStmt struct {
	BaseStmt
}

// ReturnStmt returns from a function, with an optional value.
type ReturnStmt struct {
	BaseStmt
	Value Expr
}

// ExitStmt ends the program, with an optional status.
type ExitStmt struct {
	BaseStmt
	Code Expr
}

// DeleteStmt is delete arr[k] or delete arr (whole array when Index is empty).
type DeleteStmt struct {
	BaseStmt
	Array *Ident
	Index []Expr
}

var (
	_ Stmt = (*ExprStmt)(nil)
	_ Stmt = (*PrintStmt)(nil)
	_ Stmt = (*BlockStmt)(nil)
	_ Stmt = (*IfStmt)(nil)
	_ Stmt = (*WhileStmt)(nil)
	_ Stmt = (*DoWhileStmt)(nil)
	_ Stmt = (*ForStmt)(nil)
	_ Stmt = (*ForInStmt)(nil)
	_ Stmt = (*BreakStmt)(nil)
	_ Stmt = (*ContinueStmt)(nil)
	_ Stmt = (*NextStmt)(nil)
	_ Stmt = (*NextFileStmt)(nil)
	_ Stmt = (*ReturnStmt)(nil)
	_ Stmt = (*ExitStmt)(nil)
	_ Stmt = (*DeleteStmt)(nil)
)
