package semantic

import (
	"slices"
	"strings"
	"testing"

	"github.com/kolkov/tawk/internal/ast"
	"github.com/kolkov/tawk/internal/parser"
)

// fakeExts maps an extension keyword to its array argument positions.
type fakeExts map[string][]int

func (f fakeExts) Lookup(keyword string) bool {
	_, ok := f[keyword]
	return ok
}

func (f fakeExts) ArrayParams(keyword string, argc int) []int {
	return f[keyword]
}

func parse(t *testing.T, code string) *ast.Program {
	t.Helper()
	prog, err := parser.Parse(code)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return prog
}

// Helper to check for expected error
func expectError(t *testing.T, code string, exts Extensions, errSubstr string) {
	t.Helper()
	_, err := Analyze(parse(t, code), exts)
	if err == nil {
		t.Errorf("expected error containing %q, got no error", errSubstr)
		return
	}
	if !strings.Contains(err.Error(), errSubstr) {
		t.Errorf("expected error containing %q, got: %v", errSubstr, err)
	}
}

// Helper to check no errors
func expectNoError(t *testing.T, code string, exts Extensions) (*ast.Program, *Table) {
	t.Helper()
	prog := parse(t, code)
	table, err := Analyze(prog, exts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return prog, table
}

func TestResolveGlobals(t *testing.T) {
	tests := []struct {
		name   string
		code   string
		vars   []string // Expected globals in order of appearance
		arrays []string // Expected arrays
	}{
		{"simple assignment", `BEGIN { x = 1 }`, []string{"x"}, nil},
		{"multiple globals", `BEGIN { y = 1; x = 2 } { z[1] }`, []string{"y", "x", "z"}, []string{"z"}},
		{"auto-create on read", `BEGIN { print x }`, []string{"x"}, nil},
		{"specials are not globals", `{ print NR, $1; n = NF }`, []string{"n"}, nil},
		{"for in", `END { for (k in seen) print k }`, []string{"k", "seen"}, []string{"seen"}},
		{"delete", `{ delete a[$1]; delete b }`, []string{"a", "b"}, []string{"a", "b"}},
		{"in operator", `{ if (($1, $2) in pairs) n++ }`, []string{"pairs", "n"}, []string{"pairs"}},
		{"split target", `{ split($0, parts, ":") }`, []string{"parts"}, []string{"parts"}},
		{"length of array", `BEGIN { a[1]; print length(a) }`, []string{"a"}, []string{"a"}},
		{"length of scalar", `BEGIN { s = "abc"; print length(s) }`, []string{"s"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, table := expectNoError(t, tt.code, nil)
			if !slices.Equal(table.GlobalNames, tt.vars) {
				t.Errorf("globals = %v, want %v", table.GlobalNames, tt.vars)
			}
			var arrays []string
			for _, name := range table.GlobalNames {
				if table.GlobalType(name) == TypeArray {
					arrays = append(arrays, name)
				}
			}
			if !slices.Equal(arrays, tt.arrays) {
				t.Errorf("arrays = %v, want %v", arrays, tt.arrays)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	_, table := expectNoError(t, `function f(a, b) { b[1] = a; return NR + g }`, nil)
	fn := table.Func("f")
	if fn == nil {
		t.Fatal("function f not found")
	}

	tests := []struct {
		fn    *FuncInfo
		name  string
		scope Scope
		index int
		typ   VarType
	}{
		{fn, "a", ScopeLocal, 0, TypeScalar},
		{fn, "b", ScopeLocal, 1, TypeArray},
		{fn, "NR", ScopeSpecial, SpecNR, TypeScalar},
		{fn, "g", ScopeGlobal, -1, TypeScalar},
		{nil, "a", ScopeGlobal, -1, TypeScalar},
		{nil, "ENVIRON", ScopeSpecial, SpecENVIRON, TypeArray},
	}
	for _, tt := range tests {
		ref := table.Lookup(tt.fn, tt.name)
		if ref.Scope != tt.scope || ref.Index != tt.index || ref.Type != tt.typ {
			t.Errorf("Lookup(%s) = %s/%d/%s, want %s/%d/%s", tt.name,
				ref.Scope, ref.Index, ref.Type, tt.scope, tt.index, tt.typ)
		}
	}
}

func TestResolveFunctions(t *testing.T) {
	_, table := expectNoError(t, `
function first(x) { return x }
function second(a, b) { return first(a) + b }
BEGIN { print second(1, 2) }`, nil)

	if len(table.Funcs) != 2 {
		t.Fatalf("got %d functions, want 2", len(table.Funcs))
	}
	for i, name := range []string{"first", "second"} {
		fn := table.Funcs[i]
		if fn.Name != name || fn.Index != i {
			t.Errorf("Funcs[%d] = %s (index %d), want %s", i, fn.Name, fn.Index, name)
		}
		if !fn.Called {
			t.Errorf("%s should be marked called", name)
		}
	}
	if len(table.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", table.Warnings)
	}
}

func TestUncalledFunctionWarning(t *testing.T) {
	_, table := expectNoError(t, `function unused() { } BEGIN { }`, nil)
	if len(table.Warnings) != 1 || !strings.Contains(table.Warnings[0].String(), "unused") {
		t.Errorf("warnings = %v", table.Warnings)
	}
}

func TestCallLinks(t *testing.T) {
	prog, table := expectNoError(t, `
function early(v) { return v }
BEGIN { early(1); late(2); Dump(3) }
function late(v) { return early(v) }`, fakeExts{"Dump": nil})

	got := map[string]string{}
	ast.Walk(prog, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		link, ok := table.Link(call)
		switch {
		case !ok:
			got[call.Name] = "unbound"
		case link.Ext:
			got[call.Name] = "ext:" + link.Keyword
		default:
			got[call.Name] = "func:" + link.Func.Name
		}
		return true
	})

	want := map[string]string{"early": "func:early", "late": "func:late", "Dump": "ext:Dump"}
	for name, w := range want {
		if got[name] != w {
			t.Errorf("%s linked to %q, want %q", name, got[name], w)
		}
	}
}

func TestFunctionArgumentTypeInference(t *testing.T) {
	tests := []struct {
		name   string
		code   string
		global string
		want   VarType
		fn     string
		param  int
		pwant  VarType
	}{
		{
			name:   "array passed to earlier function",
			code:   `function fill(arr) { arr[1] = 1 } BEGIN { fill(data) }`,
			global: "data", want: TypeArray,
			fn: "fill", param: 0, pwant: TypeArray,
		},
		{
			name:   "array passed to later function",
			code:   `BEGIN { fill(data) } function fill(arr) { arr[1] = 1 }`,
			global: "data", want: TypeArray,
			fn: "fill", param: 0, pwant: TypeArray,
		},
		{
			name:   "param learns from caller",
			code:   `BEGIN { data[1] = 1; show(data) } function show(a) { }`,
			global: "data", want: TypeArray,
			fn: "show", param: 0, pwant: TypeArray,
		},
		{
			name: "chain through two functions",
			code: `function g(x) { h(x) }
function h(y) { y["k"] = 1 }
BEGIN { g(z) }`,
			global: "z", want: TypeArray,
			fn: "g", param: 0, pwant: TypeArray,
		},
		{
			name:   "expression argument makes scalar",
			code:   `function f(p) { return p } BEGIN { f(1 + 2) }`,
			global: "", fn: "f", param: 0, pwant: TypeScalar,
		},
		{
			name:   "unused defaults to scalar",
			code:   `function f(p, q) { return p } BEGIN { f(u) }`,
			global: "u", want: TypeScalar,
			fn: "f", param: 1, pwant: TypeScalar,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, table := expectNoError(t, tt.code, nil)
			if tt.global != "" {
				if got := table.GlobalType(tt.global); got != tt.want {
					t.Errorf("%s is %s, want %s", tt.global, got, tt.want)
				}
			}
			fn := table.Func(tt.fn)
			if got := fn.Kinds[tt.param]; got != tt.pwant {
				t.Errorf("%s param %d is %s, want %s", tt.fn, tt.param, got, tt.pwant)
			}
		})
	}
}

func TestExtensionArrayParams(t *testing.T) {
	exts := fakeExts{"Collect": {1}}
	_, table := expectNoError(t, `BEGIN { Collect("x", bag) }`, exts)
	if got := table.GlobalType("bag"); got != TypeArray {
		t.Errorf("bag is %s, want array", got)
	}

	expectError(t, `BEGIN { Collect("x", 1) }`, exts, "argument 2 of Collect must be an array name")
	expectError(t, `BEGIN { bag = 1; Collect("x", bag) }`, exts, `cannot use "bag" as both array and scalar`)
	expectError(t, `function Collect(a) { } BEGIN { }`, exts, "conflicts with extension keyword")
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
		err  string
	}{
		{"undefined function", `BEGIN { nosuch(1) }`, `undefined function "nosuch"`},
		{"duplicate function", `function f() { } function f() { }`, `function "f" already defined`},
		{"duplicate param", `function f(a, a) { }`, `duplicate parameter "a"`},
		{"param shadows function", `function f(f) { }`, `parameter "f" shadows function name`},
		{"param is special", `function f(NR) { }`, `special variable "NR" cannot be a parameter`},
		{"function is special", `function NF() { }`, `special variable "NF" cannot be a function name`},
		{"function used as variable", `function f() { } BEGIN { f = 1 }`, `function "f" cannot be used as a variable`},
		{"too many arguments", `function f(a) { } BEGIN { f(1, 2) }`, `too many arguments in call to "f"`},
		{"scalar then array", `BEGIN { x = 1; x[1] = 2 }`, `cannot use "x" as both array and scalar`},
		{"array then scalar", `BEGIN { a[1] = 1; print a }`, `cannot use "a" as both array and scalar`},
		{"special array as scalar", `BEGIN { ARGV = 1 }`, `cannot use "ARGV" as both array and scalar`},
		{"special scalar as array", `BEGIN { NR[1] = 1 }`, `cannot use "NR" as both array and scalar`},
		{"delete special scalar", `BEGIN { delete NR }`, `"NR"`},
		{"scalar passed for array param", `function f(a) { a[1] = 1 } BEGIN { x = 1; f(x) }`, `cannot use "x" as both array and scalar`},
		{"literal passed for array param", `function f(a) { a[1] = 1 } BEGIN { f(1) }`, `cannot use "a" as both array and scalar`},
		{"split needs array", `BEGIN { split("a b", 1) }`, "argument 2 of split must be an array name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, tt.code, nil, tt.err)
		})
	}
}

func TestCheckErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
		err  string
	}{
		{"break outside loop", `BEGIN { break }`, errBreakOutsideLoop},
		{"continue outside loop", `{ continue }`, errContinueOutsideLoop},
		{"break in if", `{ if (1) break }`, errBreakOutsideLoop},
		{"return in rule", `{ return 1 }`, errReturnOutsideFunc},
		{"next in BEGIN", `BEGIN { next }`, "next cannot be used in BEGIN or END"},
		{"nextfile in END", `END { nextfile }`, "nextfile cannot be used in BEGIN or END"},
		{"builtin too few", `BEGIN { print substr("x") }`, "substr: expected 2 to 3 arguments, got 1"},
		{"builtin too many", `BEGIN { print index("a", "b", "c") }`, "index: expected 2 arguments, got 3"},
		{"builtin none allowed", `BEGIN { print rand(1) }`, "rand: expected 0 arguments, got 1"},
		{"sprintf needs format", `BEGIN { x = sprintf() }`, "sprintf: expected at least 1 argument, got 0"},
		{"sub target", `{ sub(/a/, "b", "literal") }`, errAssignToNonLValue},
		{"list as value", `BEGIN { x = (1, 2) }`, errListOutsidePrint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, tt.code, nil, tt.err)
		})
	}
}

func TestCheckValid(t *testing.T) {
	tests := []string{
		`BEGIN { while (1) { if (x) break; continue } }`,
		`BEGIN { for (;;) break; do { continue } while (0) }`,
		`END { for (k in a) { delete a[k]; break } }`,
		`function skip() { next } { skip() }`,
		`function f(x) { return x * 2 } { print f($1) }`,
		`{ print ($1, $2) > "out" }`,
		`{ sub(/a/, "b"); gsub(/x/, "y", $2); sub(/q/, "r", arr[1]) }`,
		`{ "date" | getline now; getline line < "file"; getline }`,
		`BEGIN { print length(), length("abc"), length }`,
		`{ $1 = "x"; $(NF+1)++; --n }`,
	}
	for _, code := range tests {
		expectNoError(t, code, nil)
	}
}

func TestIsSpecialVar(t *testing.T) {
	for name := range specialVars {
		if !IsSpecialVar(name) {
			t.Errorf("IsSpecialVar(%q) = false", name)
		}
		if SpecialVarName(SpecialVarIndex(name)) != name {
			t.Errorf("index round trip failed for %s", name)
		}
	}
	for _, name := range []string{"x", "nr", "Nr", "ARGV2", ""} {
		if IsSpecialVar(name) {
			t.Errorf("IsSpecialVar(%q) = true", name)
		}
	}
	if SpecialVarIndex("foo") != -1 {
		t.Error("SpecialVarIndex of ordinary name should be -1")
	}
}
