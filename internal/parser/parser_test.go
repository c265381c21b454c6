package parser_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/kolkov/tawk/internal/ast"
	"github.com/kolkov/tawk/internal/lexer"
	"github.com/kolkov/tawk/internal/parser"
	"github.com/kolkov/tawk/internal/token"
)

// sexp renders an expression as a compact prefix form for comparisons.
func sexp(e ast.Expr) string {
	switch e := e.(type) {
	case nil:
		return "<nil>"
	case *ast.NumLit:
		return e.Raw
	case *ast.StrLit:
		return fmt.Sprintf("%q", e.Value)
	case *ast.RegexLit:
		return "/" + e.Pattern + "/"
	case *ast.Ident:
		return e.Name
	case *ast.FieldExpr:
		return "($ " + sexp(e.Index) + ")"
	case *ast.IndexExpr:
		return e.Array.Name + "[" + list(e.Index) + "]"
	case *ast.BinaryExpr:
		return fmt.Sprintf("(%s %s %s)", e.Op, sexp(e.Left), sexp(e.Right))
	case *ast.UnaryExpr:
		if e.Post {
			return fmt.Sprintf("(%s %s)", sexp(e.Expr), e.Op)
		}
		return fmt.Sprintf("(%s %s)", e.Op, sexp(e.Expr))
	case *ast.TernaryExpr:
		return fmt.Sprintf("(?: %s %s %s)", sexp(e.Cond), sexp(e.Then), sexp(e.Else))
	case *ast.AssignExpr:
		return fmt.Sprintf("(%s %s %s)", e.Op, sexp(e.Left), sexp(e.Right))
	case *ast.ConcatExpr:
		parts := make([]string, len(e.Exprs))
		for i, x := range e.Exprs {
			parts[i] = sexp(x)
		}
		return "(concat " + strings.Join(parts, " ") + ")"
	case *ast.GroupExpr:
		return "(group " + sexp(e.Expr) + ")"
	case *ast.ListExpr:
		return "(list " + list(e.Exprs) + ")"
	case *ast.CallExpr:
		return e.Name + "(" + list(e.Args) + ")"
	case *ast.BuiltinExpr:
		return e.Func.String() + "(" + list(e.Args) + ")"
	case *ast.GetlineExpr:
		s := "getline"
		if e.Target != nil {
			s += " " + sexp(e.Target)
		}
		if e.File != nil {
			s += " < " + sexp(e.File)
		}
		if e.Command != nil {
			s = sexp(e.Command) + " | " + s
		}
		return "(" + s + ")"
	case *ast.InExpr:
		return "((" + list(e.Index) + ") in " + e.Array.Name + ")"
	case *ast.MatchExpr:
		return fmt.Sprintf("(%s %s %s)", e.Op, sexp(e.Expr), sexp(e.Pattern))
	case *ast.CommaExpr:
		return fmt.Sprintf("(range %s %s)", sexp(e.Left), sexp(e.Right))
	}
	return fmt.Sprintf("<%T>", e)
}

func list(exprs []ast.Expr) string {
	parts := make([]string, len(exprs))
	for i, x := range exprs {
		parts[i] = sexp(x)
	}
	return strings.Join(parts, ", ")
}

func TestParseEmpty(t *testing.T) {
	prog, err := parser.Parse("")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(prog.Begin)+len(prog.Rules)+len(prog.EndBlocks)+len(prog.Functions) != 0 {
		t.Errorf("empty source produced items: %+v", prog)
	}
}

func TestParseProgram(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		wantBegin int
		wantRules int
		wantEnd   int
		wantFuncs int
	}{
		{name: "begin block", src: "BEGIN { print }", wantBegin: 1},
		{name: "end block", src: "END { print }", wantEnd: 1},
		{name: "pattern-action", src: "/foo/ { print }", wantRules: 1},
		{name: "action only", src: "{ print $1 }", wantRules: 1},
		{name: "pattern only", src: "/foo/", wantRules: 1},
		{name: "two patterns", src: "/a/; /b/\n/c/", wantRules: 3},
		{name: "function", src: "function add(a, b) { return a + b }", wantFuncs: 1},
		{
			name:      "multiple items",
			src:       "BEGIN { x = 0 }\n{ x += $1 }\nEND { print x }",
			wantBegin: 1,
			wantRules: 1,
			wantEnd:   1,
		},
		{name: "two begins", src: "BEGIN { a = 1 } BEGIN { b = 2 }", wantBegin: 2},
		{name: "range pattern", src: "/start/,/end/ { print }", wantRules: 1},
		{name: "comments and blank lines", src: "# c\n\nBEGIN { }\n\n# d\n", wantBegin: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := parser.Parse(tt.src)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if len(prog.Begin) != tt.wantBegin {
				t.Errorf("Begin blocks = %d, want %d", len(prog.Begin), tt.wantBegin)
			}
			if len(prog.Rules) != tt.wantRules {
				t.Errorf("Rules = %d, want %d", len(prog.Rules), tt.wantRules)
			}
			if len(prog.EndBlocks) != tt.wantEnd {
				t.Errorf("End blocks = %d, want %d", len(prog.EndBlocks), tt.wantEnd)
			}
			if len(prog.Functions) != tt.wantFuncs {
				t.Errorf("Functions = %d, want %d", len(prog.Functions), tt.wantFuncs)
			}
		})
	}
}

func TestParseExpr(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"42", "42"},
		{`"hi"`, `"hi"`},
		{"$1", "($ 1)"},
		{"$NF-1", "(- ($ NF) 1)"},
		{"$-1", "($ (- 1))"},
		{"$i++", "(($ i) ++)"},
		{"$++i", "($ (++ i))"},
		{"1 + 2 * 3", "(+ 1 (* 2 3))"},
		{"1 - 2 - 3", "(- (- 1 2) 3)"},
		{"2 ^ 3 ^ 2", "(^ 2 (^ 3 2))"},
		{"-2 ^ 2", "(- (^ 2 2))"},
		{"2 ^ -1", "(^ 2 (- 1))"},
		{"!x", "(! x)"},
		{"1 / 2", "(/ 1 2)"},
		{"a b c", "(concat a b c)"},
		{"a - 1", "(- a 1)"},
		{`a " " b`, `(concat a " " b)`},
		{"a < b", "(< a b)"},
		{"a && b || c", "(|| (&& a b) c)"},
		{"x = y = 1", "(= x (= y 1))"},
		{"x += 2", "(+= x 2)"},
		{"x == 1 && y = 2", "(&& (== x 1) (= y 2))"},
		{"a ? b : c ? d : e", "(?: a b (?: c d e))"},
		{"$1 ~ /x/", "(~ ($ 1) /x/)"},
		{`s !~ "a"`, `(!~ s "a")`},
		{"k in arr", "((k) in arr)"},
		{"(i, j) in arr", "((i, j) in arr)"},
		{"(a, b)", "(list a, b)"},
		{"(a)", "(group a)"},
		{"a[1, 2]", "a[1, 2]"},
		{"++a[i]", "(++ a[i])"},
		{"x--", "(x --)"},
		{"f(a, b)", "f(a, b)"},
		{"f()", "f()"},
		{"f (a)", "(concat f (group a))"},
		{"length", "length()"},
		{"length($0)", "length(($ 0))"},
		{"substr(s, 2)", "substr(s, 2)"},
		{"getline", "(getline)"},
		{"getline line", "(getline line)"},
		{`getline line < "f"`, `(getline line < "f")`},
		{`"cmd" | getline`, `("cmd" | getline)`},
		{`"cmd" | getline $2`, `("cmd" | getline ($ 2))`},
		{`"cmd" | getline > 0`, `(> ("cmd" | getline) 0)`},
		{"(getline line) > 0", "(> (group (getline line)) 0)"},
		{"0x1A + 1", "(+ 0x1A 1)"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			expr, err := parser.ParseExpr(tt.src)
			if err != nil {
				t.Fatalf("ParseExpr(%q) error = %v", tt.src, err)
			}
			if got := sexp(expr); got != tt.want {
				t.Errorf("ParseExpr(%q) = %s, want %s", tt.src, got, tt.want)
			}
		})
	}
}

func TestNumberValues(t *testing.T) {
	tests := []struct {
		src  string
		want float64
	}{
		{"42", 42},
		{"3.14", 3.14},
		{"1e3", 1000},
		{".5", 0.5},
		{"0x1A", 26},
		{"0x10", 16},
	}
	for _, tt := range tests {
		expr, err := parser.ParseExpr(tt.src)
		if err != nil {
			t.Fatalf("ParseExpr(%q) error = %v", tt.src, err)
		}
		n, ok := expr.(*ast.NumLit)
		if !ok || n.Value != tt.want {
			t.Errorf("ParseExpr(%q) = %s, want number %v", tt.src, sexp(expr), tt.want)
		}
	}
}

// firstStmt parses src as a BEGIN body and returns its first statement.
func firstStmt(t *testing.T, body string) ast.Stmt {
	t.Helper()
	prog, err := parser.Parse("BEGIN {\n" + body + "\n}")
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", body, err)
	}
	stmts := prog.Begin[0].Stmts
	if len(stmts) == 0 {
		t.Fatalf("Parse(%q): no statements", body)
	}
	return stmts[0]
}

func TestParseStmt(t *testing.T) {
	tests := []struct {
		src   string
		check func(t *testing.T, s ast.Stmt)
	}{
		{"print", func(t *testing.T, s ast.Stmt) {
			p := s.(*ast.PrintStmt)
			if p.Printf || len(p.Args) != 0 || p.Dest != nil {
				t.Errorf("got %+v", p)
			}
		}},
		{`print a, b > "out"`, func(t *testing.T, s ast.Stmt) {
			p := s.(*ast.PrintStmt)
			if len(p.Args) != 2 || p.Redirect != token.GREATER || sexp(p.Dest) != `"out"` {
				t.Errorf("got args=%s redirect=%v dest=%s", list(p.Args), p.Redirect, sexp(p.Dest))
			}
		}},
		{`print (a, b) >> "out" ".txt"`, func(t *testing.T, s ast.Stmt) {
			p := s.(*ast.PrintStmt)
			if list(p.Args) != "a, b" || p.Redirect != token.APPEND || sexp(p.Dest) != `(concat "out" ".txt")` {
				t.Errorf("got args=%s redirect=%v dest=%s", list(p.Args), p.Redirect, sexp(p.Dest))
			}
		}},
		{`print (a > b)`, func(t *testing.T, s ast.Stmt) {
			p := s.(*ast.PrintStmt)
			if list(p.Args) != "(group (> a b))" || p.Dest != nil {
				t.Errorf("got args=%s", list(p.Args))
			}
		}},
		{`printf "%d\n", x | "sort"`, func(t *testing.T, s ast.Stmt) {
			p := s.(*ast.PrintStmt)
			if !p.Printf || len(p.Args) != 2 || p.Redirect != token.PIPE {
				t.Errorf("got %+v", p)
			}
		}},
		{"if (x) y = 1; else y = 2", func(t *testing.T, s ast.Stmt) {
			i := s.(*ast.IfStmt)
			if i.Then == nil || i.Else == nil {
				t.Errorf("got then=%v else=%v", i.Then, i.Else)
			}
		}},
		{"if (x)\n  y = 1\nelse\n  y = 2", func(t *testing.T, s ast.Stmt) {
			if s.(*ast.IfStmt).Else == nil {
				t.Error("else branch lost across newlines")
			}
		}},
		{"if (x) ; else y = 2", func(t *testing.T, s ast.Stmt) {
			i := s.(*ast.IfStmt)
			if i.Then != nil || i.Else == nil {
				t.Errorf("got then=%v else=%v", i.Then, i.Else)
			}
		}},
		{"while (i < 3) i++", func(t *testing.T, s ast.Stmt) {
			w := s.(*ast.WhileStmt)
			if sexp(w.Cond) != "(< i 3)" || w.Body == nil {
				t.Errorf("got %+v", w)
			}
		}},
		{"do i++; while (i < 3)", func(t *testing.T, s ast.Stmt) {
			d := s.(*ast.DoWhileStmt)
			if sexp(d.Cond) != "(< i 3)" {
				t.Errorf("cond = %s", sexp(d.Cond))
			}
		}},
		{"for (i = 0; i < 3; i++) print i", func(t *testing.T, s ast.Stmt) {
			f := s.(*ast.ForStmt)
			if f.Init == nil || sexp(f.Cond) != "(< i 3)" || f.Post == nil || f.Body == nil {
				t.Errorf("got %+v", f)
			}
		}},
		{"for (;;) break", func(t *testing.T, s ast.Stmt) {
			f := s.(*ast.ForStmt)
			if f.Init != nil || f.Cond != nil || f.Post != nil {
				t.Errorf("got %+v", f)
			}
		}},
		{"for (k in a) delete a[k]", func(t *testing.T, s ast.Stmt) {
			f := s.(*ast.ForInStmt)
			if f.Var.Name != "k" || f.Array.Name != "a" {
				t.Errorf("got %s in %s", f.Var.Name, f.Array.Name)
			}
			if d := f.Body.(*ast.DeleteStmt); d.Array.Name != "a" || len(d.Index) != 1 {
				t.Errorf("body = %+v", d)
			}
		}},
		{"delete a", func(t *testing.T, s ast.Stmt) {
			if d := s.(*ast.DeleteStmt); d.Index != nil {
				t.Errorf("index = %s", list(d.Index))
			}
		}},
		{"exit 2", func(t *testing.T, s ast.Stmt) {
			if e := s.(*ast.ExitStmt); sexp(e.Code) != "2" {
				t.Errorf("code = %s", sexp(e.Code))
			}
		}},
		{"exit", func(t *testing.T, s ast.Stmt) {
			if e := s.(*ast.ExitStmt); e.Code != nil {
				t.Errorf("code = %s", sexp(e.Code))
			}
		}},
		{"{ x = 1; y = 2 }", func(t *testing.T, s ast.Stmt) {
			if b := s.(*ast.BlockStmt); len(b.Stmts) != 2 {
				t.Errorf("block has %d statements", len(b.Stmts))
			}
		}},
		{"x = a &&\nb", func(t *testing.T, s ast.Stmt) {
			if got := sexp(s.(*ast.ExprStmt).Expr); got != "(= x (&& a b))" {
				t.Errorf("got %s", got)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			tt.check(t, firstStmt(t, tt.src))
		})
	}
}

func TestParseFunction(t *testing.T) {
	prog, err := parser.Parse("function f(a, b,\n  tmp) {\n  return a + b\n}\nBEGIN { print f(1, 2) }")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(prog.Functions) != 1 {
		t.Fatalf("Functions = %d, want 1", len(prog.Functions))
	}
	fn := prog.Functions[0]
	if fn.Name != "f" || strings.Join(fn.Params, ",") != "a,b,tmp" {
		t.Errorf("got %s(%s)", fn.Name, strings.Join(fn.Params, ","))
	}
	if fn.NamePos.Line != 1 || fn.NamePos.Column != 10 {
		t.Errorf("NamePos = %v, want 1:10", fn.NamePos)
	}
	ret := fn.Body.Stmts[0].(*ast.ReturnStmt)
	if sexp(ret.Value) != "(+ a b)" {
		t.Errorf("return value = %s", sexp(ret.Value))
	}
}

// Context rules such as break outside a loop are not syntax errors; the
// parser accepts them and leaves the check to the semantic pass.
func TestParseAcceptsContextErrors(t *testing.T) {
	for _, src := range []string{
		"BEGIN { break }",
		"BEGIN { next }",
		"BEGIN { return 1 }",
		"function f(a, a) { }",
		"BEGIN { x = (1, 2) }",
	} {
		if _, err := parser.Parse(src); err != nil {
			t.Errorf("Parse(%q) error = %v", src, err)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		lexical bool
	}{
		{"unclosed brace", "BEGIN {", false},
		{"unclosed paren", "BEGIN { print(1 }", false},
		{"missing condition", "BEGIN { if () print }", false},
		{"missing terminator", "BEGIN { x = 1 y = 2 }", false},
		{"assign to constant", "BEGIN { 1 = 2 }", false},
		{"pattern without separator", "/a/ /b/ /c/ BEGIN { }", false},
		{"getline expected", `BEGIN { "cmd" | print }`, false},
		{"bad for-in", "BEGIN { for (1 in a) print }", false},
		{"printf without args", "BEGIN { printf }", false},
		{"unterminated string", `BEGIN { print "abc }`, true},
		{"unterminated regex", "/abc", true},
		{"stray character", "BEGIN { x = 1 ` }", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse(tt.src)
			if err == nil {
				t.Fatalf("Parse(%q) expected error, got none", tt.src)
			}
			var pe *parser.ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error %T is not a *ParseError", err)
			}
			if pe.Lexical != tt.lexical {
				t.Errorf("Lexical = %v, want %v (%v)", pe.Lexical, tt.lexical, err)
			}
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := parser.Parse("BEGIN {\n  print( }")
	if err == nil {
		t.Fatal("expected error")
	}
	var pe *parser.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error %T is not a *ParseError", err)
	}
	if pe.Pos.Line != 2 {
		t.Errorf("error line = %d, want 2 (%v)", pe.Pos.Line, err)
	}
	if !strings.HasPrefix(err.Error(), "2:") {
		t.Errorf("error %q does not start with its position", err)
	}
}

func TestParseSources(t *testing.T) {
	prog, err := parser.ParseSources([]lexer.Source{
		{Name: "lib.awk", Text: []byte("function twice(x) { return 2 * x }")},
		{Name: "main.awk", Text: []byte("BEGIN { print twice(2) }")},
	})
	if err != nil {
		t.Fatalf("ParseSources() error = %v", err)
	}
	if len(prog.Functions) != 1 || len(prog.Begin) != 1 {
		t.Fatalf("got %d functions and %d BEGIN blocks", len(prog.Functions), len(prog.Begin))
	}
	if pos := prog.Begin[0].Pos(); pos.Filename != "main.awk" || pos.Line != 1 {
		t.Errorf("BEGIN block at %v, want main.awk:1", pos)
	}

	_, err = parser.ParseSources([]lexer.Source{
		{Name: "ok.awk", Text: []byte("BEGIN { }")},
		{Name: "bad.awk", Text: []byte("\n\nBEGIN { print ( }")},
	})
	if err == nil || !strings.HasPrefix(err.Error(), "bad.awk:3:") {
		t.Errorf("error = %v, want it located in bad.awk line 3", err)
	}
}

func TestBuiltinFunctions(t *testing.T) {
	builtins := []string{
		"length($0)",
		"length",
		"substr(s, 1)",
		"substr(s, 1, 5)",
		"index(s, t)",
		"split(s, a)",
		`split(s, a, ":")`,
		"split(s, a, /,/)",
		"sprintf(\"%d\", x)",
		"sub(/re/, r)",
		"sub(/re/, r, s)",
		"gsub(/re/, r)",
		"gsub(/re/, r, s)",
		"match(s, /re/)",
		"tolower(s)",
		"toupper(s)",
		"int(x)",
		"sqrt(x)",
		"exp(x)",
		"log(x)",
		"sin(x)",
		"cos(x)",
		"atan2(y, x)",
		"rand()",
		"srand()",
		"srand(x)",
		"system(cmd)",
		"close(f)",
		"fflush()",
		"fflush(f)",
	}

	for _, src := range builtins {
		t.Run(src, func(t *testing.T) {
			expr, err := parser.ParseExpr(src)
			if err != nil {
				t.Fatalf("ParseExpr(%q) error = %v", src, err)
			}
			if _, ok := expr.(*ast.BuiltinExpr); !ok {
				t.Errorf("ParseExpr(%q) = %T, want *BuiltinExpr", src, expr)
			}
		})
	}
}

func TestRegexAfterBlock(t *testing.T) {
	// After a closing brace the lexer reads / as division; the parser asks
	// for a regex where a pattern must start.
	prog, err := parser.Parse("/a/ { x = 1 } /b/ { x = 2 } /=c/")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	var got []string
	for _, r := range prog.Rules {
		got = append(got, sexp(r.Pattern))
	}
	if want := "/a/ /b/ /=c/"; strings.Join(got, " ") != want {
		t.Errorf("patterns = %s, want %s", strings.Join(got, " "), want)
	}
}
