package ast

import "github.com/kolkov/tawk/internal/token"

// NumLit is a numeric literal: 42, 3.14, 1e10, 0x1F.
type NumLit struct {
	BaseExpr
	Value float64
	Raw   string // source text
}

// IsInt reports whether the literal was written as a decimal integer that
// fits in 64 bits.
func (n *NumLit) IsInt() bool {
	if n.Raw == "" || n.Value != float64(int64(n.Value)) {
		return false
	}
	for i := 0; i < len(n.Raw); i++ {
		if n.Raw[i] < '0' || n.Raw[i] > '9' {
			return false
		}
	}
	return len(n.Raw) < 19
}

// StrLit is a string literal with escapes already decoded.
type StrLit struct {
	BaseExpr
	Value string
}

// RegexLit is a /regex/ literal. In value position it matches $0.
type RegexLit struct {
	BaseExpr
	Pattern string // without delimiters
}

// Ident is a variable name.
type Ident struct {
	BaseExpr
	Name string
}

// FieldExpr is $expr.
type FieldExpr struct {
	BaseExpr
	Index Expr
}

// IndexExpr is an array element: arr[k] or arr[i, j].
type IndexExpr struct {
	BaseExpr
	Array *Ident
	Index []Expr
}

// BinaryExpr is an arithmetic, comparison or logical operation.
type BinaryExpr struct {
	BaseExpr
	Left  Expr
	Op    token.Token
	Right Expr
}

// UnaryExpr is -x, +x, !x, or a prefix/postfix increment or decrement.
type UnaryExpr struct {
	BaseExpr
	Op   token.Token // SUB, ADD, NOT, INCR, DECR
	Expr Expr
	Post bool // postfix form (i++)
}

// TernaryExpr is cond ? a : b.
type TernaryExpr struct {
	BaseExpr
	Cond Expr
	Then Expr
	Else Expr
}

// AssignExpr is an assignment, plain or augmented (x += 1).
type AssignExpr struct {
	BaseExpr
	Left  Expr // Ident, IndexExpr or FieldExpr
	Op    token.Token
	Right Expr
}

// ConcatExpr is implicit concatenation of two or more expressions.
type ConcatExpr struct {
	BaseExpr
	Exprs []Expr
}

// GroupExpr is a parenthesized expression.
type GroupExpr struct {
	BaseExpr
	Expr Expr
}

// ListExpr is a parenthesized expression list, (a, b). It is only valid as
// the argument list of print or printf, where it is unwrapped.
type ListExpr struct {
	BaseExpr
	Exprs []Expr
}

// CallExpr is a call by name: a user-defined function or an extension
// keyword. Which one is decided by semantic analysis.
type CallExpr struct {
	BaseExpr
	Name string
	Args []Expr
}

// BuiltinExpr is a call of a built-in function.
type BuiltinExpr struct {
	BaseExpr
	Func token.Token // F_LENGTH, F_SUBSTR, ...
	Args []Expr
}

// GetlineExpr covers every getline form:
//
//	getline [var]
//	getline [var] < file
//	cmd | getline [var]
type GetlineExpr struct {
	BaseExpr
	Target  Expr // nil means $0
	File    Expr
	Command Expr
}

// InExpr is key in arr or (i, j) in arr.
type InExpr struct {
	BaseExpr
	Index []Expr
	Array *Ident
}

// MatchExpr is expr ~ re or expr !~ re.
type MatchExpr struct {
	BaseExpr
	Expr    Expr
	Op      token.Token // MATCH or NOT_MATCH
	Pattern Expr        // RegexLit or a dynamic expression
}

// CommaExpr joins the two patterns of a range rule.
type CommaExpr struct {
	BaseExpr
	Left  Expr
	Right Expr
}

var (
	_ Expr = (*NumLit)(nil)
	_ Expr = (*StrLit)(nil)
	_ Expr = (*RegexLit)(nil)
	_ Expr = (*Ident)(nil)
	_ Expr = (*FieldExpr)(nil)
	_ Expr = (*IndexExpr)(nil)
	_ Expr = (*BinaryExpr)(nil)
	_ Expr = (*UnaryExpr)(nil)
	_ Expr = (*TernaryExpr)(nil)
	_ Expr = (*AssignExpr)(nil)
	_ Expr = (*ConcatExpr)(nil)
	_ Expr = (*GroupExpr)(nil)
	_ Expr = (*ListExpr)(nil)
	_ Expr = (*CallExpr)(nil)
	_ Expr = (*BuiltinExpr)(nil)
	_ Expr = (*GetlineExpr)(nil)
	_ Expr = (*InExpr)(nil)
	_ Expr = (*MatchExpr)(nil)
	_ Expr = (*CommaExpr)(nil)
)
