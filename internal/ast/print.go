package ast

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kolkov/tawk/internal/token"
)

// Fprint writes an indented syntax tree listing of node to w, one node per
// line with its source position.
func Fprint(w io.Writer, node Node) error {
	p := &printer{w: w}
	p.print(node, 0)
	return p.err
}

// String returns the syntax tree listing of node.
func String(node Node) string {
	var sb strings.Builder
	_ = Fprint(&sb, node)
	return sb.String()
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) print(node Node, depth int) {
	if p.err != nil {
		return
	}
	label := Describe(node)
	if pos := node.Pos(); pos.IsValid() {
		label += " @" + pos.String()
	}
	p.line(depth, label)
	if prog, ok := node.(*Program); ok {
		p.section(depth+1, "BEGIN", prog.Begin)
		for _, r := range prog.Rules {
			p.print(r, depth+1)
		}
		p.section(depth+1, "END", prog.EndBlocks)
		for _, f := range prog.Functions {
			p.print(f, depth+1)
		}
		return
	}
	for _, c := range Children(node) {
		p.print(c, depth+1)
	}
}

func (p *printer) section(depth int, name string, blocks []*BlockStmt) {
	for _, b := range blocks {
		p.line(depth, name)
		p.print(b, depth+1)
	}
}

func (p *printer) line(depth int, text string) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, "%s%s\n", strings.Repeat("  ", depth), text)
}

// Describe returns a one-line description of node without its children.
func Describe(node Node) string {
	switch n := node.(type) {
	case *Program:
		return "Program"
	case *Rule:
		switch {
		case n.Pattern == nil:
			return "Rule"
		case isRange(n.Pattern):
			return "Rule range"
		}
		return "Rule pattern"
	case *FuncDecl:
		return fmt.Sprintf("Function %s(%s)", n.Name, strings.Join(n.Params, ", "))
	case *NumLit:
		if n.Raw != "" {
			return "Number " + n.Raw
		}
		return "Number " + strconv.FormatFloat(n.Value, 'g', -1, 64)
	case *StrLit:
		return "String " + strconv.Quote(n.Value)
	case *RegexLit:
		return "Regex /" + n.Pattern + "/"
	case *Ident:
		return "Name " + n.Name
	case *FieldExpr:
		return "Field"
	case *IndexExpr:
		return "Index"
	case *BinaryExpr:
		return "Binary " + n.Op.String()
	case *UnaryExpr:
		if n.Post {
			return "Postfix " + n.Op.String()
		}
		return "Unary " + n.Op.String()
	case *TernaryExpr:
		return "Ternary"
	case *AssignExpr:
		return "Assign " + n.Op.String()
	case *ConcatExpr:
		return "Concat"
	case *GroupExpr:
		return "Group"
	case *ListExpr:
		return "List"
	case *CallExpr:
		return fmt.Sprintf("Call %s/%d", n.Name, len(n.Args))
	case *BuiltinExpr:
		return "Builtin " + n.Func.String()
	case *GetlineExpr:
		switch {
		case n.Command != nil:
			return "Getline pipe"
		case n.File != nil:
			return "Getline file"
		}
		return "Getline"
	case *InExpr:
		return "In"
	case *MatchExpr:
		return "Match " + n.Op.String()
	case *CommaExpr:
		return "Range"
	case *ExprStmt:
		return "ExprStmt"
	case *PrintStmt:
		name := "Print"
		if n.Printf {
			name = "Printf"
		}
		if n.Redirect != token.ILLEGAL {
			name += " " + n.Redirect.String()
		}
		return name
	case *BlockStmt:
		return "Block"
	case *IfStmt:
		return "If"
	case *WhileStmt:
		return "While"
	case *DoWhileStmt:
		return "DoWhile"
	case *ForStmt:
		return "For"
	case *ForInStmt:
		return "ForIn"
	case *BreakStmt:
		return "Break"
	case *ContinueStmt:
		return "Continue"
	case *NextStmt:
		return "Next"
	case *NextFileStmt:
		return "NextFile"
	case *ReturnStmt:
		return "Return"
	case *ExitStmt:
		return "Exit"
	case *DeleteStmt:
		return "Delete"
	default:
		return fmt.Sprintf("%T", node)
	}
}

func isRange(e Expr) bool {
	_, ok := e.(*CommaExpr)
	return ok
}
