package ir_test

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/MakeNowJust/heredoc"

	"github.com/kolkov/tawk/internal/ir"
	"github.com/kolkov/tawk/internal/parser"
	"github.com/kolkov/tawk/internal/semantic"
)

func build(t *testing.T, src string) *ir.Program {
	t.Helper()
	prog, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	table, err := semantic.Analyze(prog, nil)
	if err != nil {
		t.Fatalf("semantic error: %v", err)
	}
	p, err := ir.Build(prog, table)
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	return p
}

func ops(p *ir.Program) []ir.Opcode {
	out := make([]ir.Opcode, len(p.Tuples))
	for i, t := range p.Tuples {
		out[i] = t.Op
	}
	return out
}

var balancedPrograms = []string{
	`BEGIN { }`,
	`BEGIN { print "x" }`,
	`{ print $1, $2 > "out"; printf "%s\n", $0 | "cat" }`,
	`/a/,/b/ { n++ } END { print n }`,
	`{ x = y = $1; a[$1] += 2; $3 = "z"; i++; --j }`,
	`{ print (x > 1 ? "big" : "small"), (x && y), (x || !y) }`,
	`BEGIN { for (i = 0; i < 3; i++) { if (i == 1) continue; if (i == 2) break } }`,
	`BEGIN { while (1) break; do { n++ } while (n < 3) }`,
	`{ for (k in seen) { if (k) break; delete seen[k] } delete seen }`,
	`{ if (($1, $2) in pairs) print pairs[$1, $2] }`,
	`{ n = split($0, parts, /,/); sub(/a/, "b"); gsub("x", "y", parts[1]) }`,
	`{ "date" | getline now; getline line < "file"; getline; getline $2 }`,
	`function f(a, b) { b[1] = a; return length(b) } { print f($1) }`,
	`function fact(n) { return n <= 1 ? 1 : n * fact(n - 1) } BEGIN { print fact(5) }`,
	`BEGIN { exit } END { exit 3 }`,
	`{ next } { nextfile }`,
	`BEGIN { print substr("hello", 2, 3), index("abc", "b"), length(), match("x", /x/) }`,
	`BEGIN { srand(1); x = rand(); print int(3.9), sqrt(4), sin(0), cos(0), atan2(0, 1), exp(0), log(1) }`,
	`BEGIN { printf("%d %s\n", 1, "a"); system("true"); close("f"); fflush() }`,
	`BEGIN { s = sprintf("%c", 65) tolower("A") toupper("b") }`,
}

func TestBuildBalancedStack(t *testing.T) {
	for _, src := range balancedPrograms {
		t.Run(src, func(t *testing.T) {
			prog, err := parser.Parse(src)
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			table, err := semantic.Analyze(prog, nil)
			if err != nil {
				t.Fatalf("semantic error: %v", err)
			}
			p, depth, err := ir.PopulateTuples(prog, table)
			if err != nil {
				t.Fatalf("populate: %v", err)
			}
			if depth != 0 {
				t.Fatalf("net stack effect %d, want 0", depth)
			}
			if err := ir.PostProcess(p); err != nil {
				t.Fatalf("post-process: %v", err)
			}
			if err := ir.Validate(p); err != nil {
				t.Fatalf("validate: %v", err)
			}
		})
	}
}

func TestLayout(t *testing.T) {
	p := build(t, `function f() { return 1 } BEGIN { x = 1 } { print } END { print f() }`)
	got := ops(p)

	if got[0] != ir.SetExitAddress {
		t.Errorf("first tuple is %s, want SetExitAddress", got[0])
	}
	halt := slices.Index(got, ir.Halt)
	fn := slices.Index(got, ir.Function)
	input := slices.Index(got, ir.GetInputRecord)
	if halt < 0 || fn < 0 || input < 0 {
		t.Fatalf("missing Halt, Function or GetInputRecord in %v", got)
	}
	if !(input < halt && halt < fn) {
		t.Errorf("want main loop < Halt < functions, got %d, %d, %d", input, halt, fn)
	}
	if got[len(got)-1] != ir.Return {
		t.Errorf("last tuple is %s, want Return", got[len(got)-1])
	}
	if p.Funcs[0].Entry.Index != fn {
		t.Errorf("function entry %d, want %d", p.Funcs[0].Entry.Index, fn)
	}
}

func TestNoMainLoopWithoutRules(t *testing.T) {
	p := build(t, `BEGIN { print 1 }`)
	if slices.Contains(ops(p), ir.GetInputRecord) {
		t.Error("BEGIN-only program should not read input")
	}

	p = build(t, `END { print NR }`)
	if !slices.Contains(ops(p), ir.GetInputRecord) {
		t.Error("END block needs the main input loop")
	}
}

func TestGlobalOffsets(t *testing.T) {
	p := build(t, `BEGIN { b = 1; a = 2; b = 3; c[1] = a; print NR }`)

	want := []ir.Global{{Name: "b"}, {Name: "a"}, {Name: "c", Array: true}}
	if !slices.Equal(p.Globals, want) {
		t.Fatalf("globals = %v, want %v", p.Globals, want)
	}
	for i, tu := range p.Tuples {
		name, ok := tu.GlobalName()
		if !ok {
			continue
		}
		pos, _ := tu.VarArg()
		if got := tu.Args[pos+1]; got != p.GlobalIndex(name) {
			t.Errorf("tuple %d refers to %s at %d, want %d", i, name, got, p.GlobalIndex(name))
		}
	}
}

func TestAssignGlobalsIsPure(t *testing.T) {
	p := build(t, `{ z = $1; y[z]++ }`)
	before := new(bytes.Buffer)
	if err := ir.Dump(before, p); err != nil {
		t.Fatal(err)
	}
	layout := ir.AssignGlobals(p)
	if !slices.Equal(layout, p.Globals) {
		t.Errorf("layout %v differs from program globals %v", layout, p.Globals)
	}
	after := new(bytes.Buffer)
	if err := ir.Dump(after, p); err != nil {
		t.Fatal(err)
	}
	if before.String() != after.String() {
		t.Error("AssignGlobals modified the program")
	}
}

func TestPostProcessRejectsBadAddresses(t *testing.T) {
	unplaced := &ir.Program{
		Tuples: []ir.Tuple{
			{Op: ir.Goto, Target: &ir.Address{ID: 0, Name: "nowhere", Index: -1}},
			{Op: ir.Halt},
		},
		Labels: []int{-1},
	}
	atEnd := &ir.Program{
		Tuples: []ir.Tuple{
			{Op: ir.Goto, Target: &ir.Address{ID: 0, Name: "end", Index: -1}},
			{Op: ir.Halt},
		},
		Labels: []int{2},
	}
	for name, p := range map[string]*ir.Program{"unplaced": unplaced, "past end": atEnd} {
		err := ir.PostProcess(p)
		var be *ir.BuildError
		if !errors.As(err, &be) {
			t.Errorf("%s: got %v, want *BuildError", name, err)
		}
	}
}

func TestEffect(t *testing.T) {
	tests := []struct {
		tuple ir.Tuple
		want  int
	}{
		{ir.Tuple{Op: ir.PushStr}, 1},
		{ir.Tuple{Op: ir.Add}, -1},
		{ir.Tuple{Op: ir.Concat, Args: []int{3}}, -2},
		{ir.Tuple{Op: ir.IndexGet, Args: []int{0, 0, 2}}, -1},
		{ir.Tuple{Op: ir.Assign, Args: []int{int(ir.LVIndex), 0, 0, 2}}, -2},
		{ir.Tuple{Op: ir.IncDec, Args: []int{int(ir.LVVar), 0, 0, 0, 1, 1}}, 1},
		{ir.Tuple{Op: ir.Print, Args: []int{2, int(ir.RedirectWrite)}}, -3},
		{ir.Tuple{Op: ir.Getline, Args: []int{int(ir.LVField), 0, 0, 0, ir.GetlineCommand}}, -1},
		{ir.Tuple{Op: ir.Substitute, Args: []int{int(ir.LVVar), 0, 0, 0, 1}}, -1},
		{ir.Tuple{Op: ir.Call, Args: []int{0, 3}}, -2},
		{ir.Tuple{Op: ir.Exit, Args: []int{1}}, -1},
		{ir.Tuple{Op: ir.KeyNext}, 0},
	}
	for _, tt := range tests {
		if got := ir.Effect(&tt.tuple); got != tt.want {
			t.Errorf("Effect(%s %v) = %d, want %d", tt.tuple.Op, tt.tuple.Args, got, tt.want)
		}
	}
}

func TestEncodeDecode(t *testing.T) {
	p := build(t, heredoc.Doc(`
		function swap(arr, i, j,   t) { t = arr[i]; arr[i] = arr[j]; arr[j] = t }
		{ line[NR] = $0 }
		END { swap(line, 1, NR); for (i = 1; i <= NR; i++) print line[i] }
	`))

	var buf bytes.Buffer
	if err := ir.Encode(&buf, p); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !ir.IsIR(buf.Bytes()) {
		t.Fatal("encoded program does not start with the magic")
	}
	q, err := ir.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	var want, got strings.Builder
	ir.Dump(&want, p)
	ir.Dump(&got, q)
	if want.String() != got.String() {
		t.Errorf("listing changed after round trip:\nwant:\n%s\ngot:\n%s", want.String(), got.String())
	}
}

func TestDecodeRejects(t *testing.T) {
	if _, err := ir.Decode(strings.NewReader(`BEGIN { print "not ir" }`)); !errors.Is(err, ir.ErrNotIR) {
		t.Errorf("source text: got %v, want ErrNotIR", err)
	}
	if _, err := ir.Decode(strings.NewReader("TA")); !errors.Is(err, ir.ErrNotIR) {
		t.Errorf("short input: got %v, want ErrNotIR", err)
	}
	if _, err := ir.Decode(strings.NewReader(ir.Magic + "\x09")); err == nil || !strings.Contains(err.Error(), "version 9") {
		t.Errorf("bad version: got %v", err)
	}

	p := build(t, `BEGIN { while (x < 3) x++ }`)
	for i := range p.Tuples {
		if p.Tuples[i].Op == ir.Goto {
			p.Tuples[i].Target.Index = len(p.Tuples) + 5
		}
	}
	var buf bytes.Buffer
	if err := ir.Encode(&buf, p); err != nil {
		t.Fatal(err)
	}
	var be *ir.BuildError
	if _, err := ir.Decode(&buf); !errors.As(err, &be) {
		t.Errorf("tampered target: got %v, want *BuildError", err)
	}
}

func TestDump(t *testing.T) {
	p := build(t, `BEGIN { x = "hi"; print x }`)
	var sb strings.Builder
	if err := ir.Dump(&sb, p); err != nil {
		t.Fatal(err)
	}
	out := sb.String()
	for _, want := range []string{
		"=== Globals ===",
		"[0] x (scalar)",
		`PushStr "hi"`,
		"Assign x[0]",
		"Load x[0]",
		"Print 1",
		"Halt",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q:\n%s", want, out)
		}
	}
}
