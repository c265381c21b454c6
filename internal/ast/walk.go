package ast

// Walk traverses an AST in depth-first order, calling fn for each node.
// If fn returns false, the children of that node are skipped.
func Walk(node Node, fn func(Node) bool) {
	if node == nil || !fn(node) {
		return
	}
	for _, c := range Children(node) {
		Walk(c, fn)
	}
}

// Children returns the direct children of node in source order.
func Children(node Node) []Node {
	var out []Node
	expr := func(es ...Expr) {
		for _, e := range es {
			if e != nil {
				out = append(out, e)
			}
		}
	}
	stmt := func(ss ...Stmt) {
		for _, s := range ss {
			if s != nil {
				out = append(out, s)
			}
		}
	}

	switch n := node.(type) {
	case *Program:
		for _, b := range n.Begin {
			out = append(out, b)
		}
		for _, r := range n.Rules {
			out = append(out, r)
		}
		for _, b := range n.EndBlocks {
			out = append(out, b)
		}
		for _, f := range n.Functions {
			out = append(out, f)
		}
	case *Rule:
		expr(n.Pattern)
		if n.Action != nil {
			out = append(out, n.Action)
		}
	case *FuncDecl:
		if n.Body != nil {
			out = append(out, n.Body)
		}

	case *FieldExpr:
		expr(n.Index)
	case *IndexExpr:
		out = append(out, n.Array)
		expr(n.Index...)
	case *BinaryExpr:
		expr(n.Left, n.Right)
	case *UnaryExpr:
		expr(n.Expr)
	case *TernaryExpr:
		expr(n.Cond, n.Then, n.Else)
	case *AssignExpr:
		expr(n.Left, n.Right)
	case *ConcatExpr:
		expr(n.Exprs...)
	case *GroupExpr:
		expr(n.Expr)
	case *ListExpr:
		expr(n.Exprs...)
	case *CallExpr:
		expr(n.Args...)
	case *BuiltinExpr:
		expr(n.Args...)
	case *GetlineExpr:
		expr(n.Command, n.Target, n.File)
	case *InExpr:
		expr(n.Index...)
		out = append(out, n.Array)
	case *MatchExpr:
		expr(n.Expr, n.Pattern)
	case *CommaExpr:
		expr(n.Left, n.Right)

	case *ExprStmt:
		expr(n.Expr)
	case *PrintStmt:
		expr(n.Args...)
		expr(n.Dest)
	case *BlockStmt:
		stmt(n.Stmts...)
	case *IfStmt:
		expr(n.Cond)
		stmt(n.Then, n.Else)
	case *WhileStmt:
		expr(n.Cond)
		stmt(n.Body)
	case *DoWhileStmt:
		stmt(n.Body)
		expr(n.Cond)
	case *ForStmt:
		stmt(n.Init)
		expr(n.Cond)
		stmt(n.Post, n.Body)
	case *ForInStmt:
		out = append(out, n.Var, n.Array)
		stmt(n.Body)
	case *ReturnStmt:
		expr(n.Value)
	case *ExitStmt:
		expr(n.Code)
	case *DeleteStmt:
		out = append(out, n.Array)
		expr(n.Index...)
	}
	return out
}
