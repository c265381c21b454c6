// Package ast defines the abstract syntax tree for AWK programs.
//
// The tree is built once by the parser and never modified afterwards. Name
// resolution results live in a separate table (see package semantic), so a
// parsed program can be shared freely.
package ast

import "github.com/kolkov/tawk/internal/token"

// Node is the interface implemented by all AST nodes.
// It provides source position information for error reporting
// and the basis for the visitor pattern.
type Node interface {
	// Pos returns the position of the first character belonging to this node.
	Pos() token.Position

	// End returns the position of the first character immediately after this node.
	End() token.Position
}

// Expr is the interface for all expression nodes.
// Expressions are AST nodes that evaluate to a value.
type Expr interface {
	Node
	exprNode() // marker method to prevent external implementations
}

// Stmt is the interface for all statement nodes.
// Statements are AST nodes that perform actions.
type Stmt interface {
	Node
	stmtNode() // marker method to prevent external implementations
}

// Decl is the interface for declarations (functions).
type Decl interface {
	Node
	declNode() // marker method to prevent external implementations
}

// BaseExpr provides common fields for all expression nodes.
// Embedded in concrete expression types for position tracking.
type BaseExpr struct {
	StartPos token.Position // Position of first token
	EndPos   token.Position // Position after last token
}

func (b *BaseExpr) Pos() token.Position { return b.StartPos }
func (b *BaseExpr) End() token.Position { return b.EndPos }
func (b *BaseExpr) exprNode()           {}

// BaseStmt provides common fields for all statement nodes.
// Embedded in concrete statement types for position tracking.
type BaseStmt struct {
	StartPos token.Position // Position of first token
	EndPos   token.Position // Position after last token
}

func (b *BaseStmt) Pos() token.Position { return b.StartPos }
func (b *BaseStmt) End() token.Position { return b.EndPos }
func (b *BaseStmt) stmtNode()           {}

// BaseDecl provides common fields for declaration nodes.
type BaseDecl struct {
	StartPos token.Position
	EndPos   token.Position
}

func (b *BaseDecl) Pos() token.Position { return b.StartPos }
func (b *BaseDecl) End() token.Position { return b.EndPos }
func (b *BaseDecl) declNode()           {}

// IsLValue returns true if the expression can be assigned to.
// Parentheses around an lvalue keep it an lvalue: (x)++ is valid.
func IsLValue(e Expr) bool {
	switch e := e.(type) {
	case *Ident, *FieldExpr, *IndexExpr:
		return true
	case *GroupExpr:
		return IsLValue(e.Expr)
	default:
		return false
	}
}

// Unparen strips any parentheses around e.
func Unparen(e Expr) Expr {
	for {
		g, ok := e.(*GroupExpr)
		if !ok {
			return e
		}
		e = g.Expr
	}
}

// MakeBaseExpr creates a BaseExpr with the given positions.
func MakeBaseExpr(start, end token.Position) BaseExpr {
	return BaseExpr{StartPos: start, EndPos: end}
}

// MakeBaseStmt creates a BaseStmt with the given positions.
func MakeBaseStmt(start, end token.Position) BaseStmt {
	return BaseStmt{StartPos: start, EndPos: end}
}

// MakeBaseDecl creates a BaseDecl with the given positions.
func MakeBaseDecl(start, end token.Position) BaseDecl {
	return BaseDecl{StartPos: start, EndPos: end}
}
