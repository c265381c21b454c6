package tawk_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MakeNowJust/heredoc"
	"github.com/aymanbagabas/go-udiff"

	"github.com/kolkov/tawk"
)

func TestRun(t *testing.T) {
	tests := []struct {
		name    string
		program string
		input   string
		config  *tawk.Config
		want    string
		wantErr bool
	}{
		{
			name:    "print first field",
			program: `{ print $1 }`,
			input:   "hello world\n",
			want:    "hello\n",
		},
		{
			name:    "print all fields",
			program: `{ print $0 }`,
			input:   "hello world\n",
			want:    "hello world\n",
		},
		{
			name:    "sum numbers",
			program: `{ sum += $1 } END { print sum }`,
			input:   "1\n2\n3\n",
			want:    "6\n",
		},
		{
			name:    "BEGIN only",
			program: `BEGIN { print "hello" }`,
			input:   "",
			want:    "hello\n",
		},
		{
			name:    "END only",
			program: `END { print "done" }`,
			input:   "ignored\n",
			want:    "done\n",
		},
		{
			name:    "custom field separator",
			program: `{ print $1 }`,
			input:   "a:b:c\n",
			config:  &tawk.Config{FS: ":"},
			want:    "a\n",
		},
		{
			name:    "NR and NF",
			program: `{ print NR, NF }`,
			input:   "a b\nc d e\n",
			want:    "1 2\n2 3\n",
		},
		{
			name:    "pattern match",
			program: `/hello/ { print "found" }`,
			input:   "hello world\ngoodbye\n",
			want:    "found\n",
		},
		{
			name:    "arithmetic",
			program: `BEGIN { print 2 + 3 * 4 }`,
			input:   "",
			want:    "14\n",
		},
		{
			name:    "string concatenation",
			program: `BEGIN { print "hello" " " "world" }`,
			input:   "",
			want:    "hello world\n",
		},
		{
			name:    "user-defined function",
			program: `function double(x) { return x * 2 } BEGIN { print double(21) }`,
			input:   "",
			want:    "42\n",
		},
		{
			name:    "sorted arrays",
			program: `{ a[$1]++ } END { for (k in a) print k, a[k] }`,
			input:   "b\na\nc\na\n",
			config:  &tawk.Config{SortedArrays: true},
			want:    "a 2\nb 1\nc 1\n",
		},
		{
			name:    "printf",
			program: `BEGIN { printf "%d %.2f %s\n", 42, 3.14159, "test" }`,
			input:   "",
			want:    "42 3.14 test\n",
		},
		{
			name:    "gsub",
			program: `{ gsub(/o/, "0"); print }`,
			input:   "hello world\n",
			want:    "hell0 w0rld\n",
		},
		{
			name:    "sub",
			program: `{ sub(/o/, "0"); print }`,
			input:   "hello world\n",
			want:    "hell0 world\n",
		},
		{
			name:    "length",
			program: `{ print length($0) }`,
			input:   "hello\n",
			want:    "5\n",
		},
		{
			name:    "substr",
			program: `{ print substr($0, 2, 3) }`,
			input:   "hello\n",
			want:    "ell\n",
		},
		{
			name:    "split",
			program: `{ n = split($0, a, ":"); print n, a[1], a[2] }`,
			input:   "a:b:c\n",
			want:    "3 a b\n",
		},
		{
			name:    "index",
			program: `{ print index($0, "ll") }`,
			input:   "hello\n",
			want:    "3\n",
		},
		{
			name:    "tolower toupper",
			program: `{ print tolower($1), toupper($2) }`,
			input:   "Hello World\n",
			want:    "hello WORLD\n",
		},
		{
			name:    "ternary operator",
			program: `{ print ($1 > 5 ? "big" : "small") }`,
			input:   "3\n10\n",
			want:    "small\nbig\n",
		},
		{
			name:    "increment decrement",
			program: `BEGIN { x = 5; print ++x, x++, x }`,
			input:   "",
			want:    "6 6 7\n",
		},
		{
			name:    "empty input",
			program: `BEGIN { print "start" } { print $0 } END { print "end" }`,
			input:   "",
			want:    "start\nend\n",
		},
		{
			name:    "no input",
			program: `BEGIN { print "start" } { print $0 } END { print NR }`,
			input:   "a\nb\n",
			config:  &tawk.Config{NoInput: true},
			want:    "start\n0\n",
		},
		{
			name:    "output separators",
			program: `{ print $1, $2 }`,
			input:   "a b\n",
			config:  &tawk.Config{OFS: "-", ORS: ";"},
			want:    "a-b;",
		},
		{
			name:    "integer output formats",
			program: `BEGIN { OFMT = "%d"; print 3.5; OFMT = "%x"; print 10.5; CONVFMT = "%s"; x = 0.5 ""; a[0.25] = 1; for (k in a) print x, k }`,
			input:   "",
			want:    "3\na\n0.5 0.25\n",
		},
		// Error cases
		{
			name:    "syntax error",
			program: `{ print $1`,
			input:   "",
			wantErr: true,
		},
		{
			name:    "undefined function",
			program: `BEGIN { undefined() }`,
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tawk.Run(tt.program, strings.NewReader(tt.input), tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("Run() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Run() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompile(t *testing.T) {
	// Test that Compile returns a reusable program
	prog, err := tawk.Compile(`{ sum += $1 } END { print sum }`)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	inputs := []string{"1\n2\n3\n", "10\n20\n30\n"}
	wants := []string{"6\n", "60\n"}

	for i, input := range inputs {
		got, err := prog.Run(strings.NewReader(input), nil)
		if err != nil {
			t.Errorf("Run(%d) error = %v", i, err)
			continue
		}
		if got != wants[i] {
			t.Errorf("Run(%d) = %q, want %q", i, got, wants[i])
		}
	}
}

func TestMustCompile(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("MustCompile() should panic on invalid program")
		}
	}()

	_ = tawk.MustCompile(`{ print $1`) // Missing closing brace
}

func TestMustCompileValid(t *testing.T) {
	prog := tawk.MustCompile(`{ print $1 }`)
	if prog == nil {
		t.Error("MustCompile() returned nil for valid program")
	}
}

func TestParseError(t *testing.T) {
	_, err := tawk.Compile(`{ print $1`)
	if err == nil {
		t.Fatal("expected error for invalid program")
	}

	var pe *tawk.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if pe.Line != 1 || pe.Lexical {
		t.Errorf("ParseError = %+v", pe)
	}
}

func TestLexicalError(t *testing.T) {
	_, err := tawk.Compile(`BEGIN { print "open }`)
	var pe *tawk.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T (%v)", err, err)
	}
	if !pe.Lexical {
		t.Errorf("unterminated string not flagged lexical: %+v", pe)
	}
}

func TestSemanticError(t *testing.T) {
	tests := []string{
		`BEGIN { undefined() }`,
		`function f(a) { return a } BEGIN { f = 1 }`,
		`function f(x, x) { return x }`,
	}
	for _, src := range tests {
		_, err := tawk.Compile(src)
		var se *tawk.SemanticError
		if !errors.As(err, &se) {
			t.Errorf("Compile(%q): expected *SemanticError, got %T (%v)", src, err, err)
			continue
		}
		if se.Line != 1 {
			t.Errorf("Compile(%q): line = %d, want 1", src, se.Line)
		}
	}
}

func TestRuntimeError(t *testing.T) {
	_, err := tawk.Run(heredoc.Doc(`
		BEGIN {
			x = 0
			print 1 / x
		}
	`), nil, nil)
	var re *tawk.RuntimeError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RuntimeError, got %T (%v)", err, err)
	}
	if re.Line != 3 {
		t.Errorf("line = %d, want 3", re.Line)
	}
	if !strings.Contains(re.Error(), "division by zero") {
		t.Errorf("message = %q", re.Error())
	}
}

func TestConfigFieldSeparator(t *testing.T) {
	got, err := tawk.Run(`{ print $2 }`, strings.NewReader("a:b:c\n"), &tawk.Config{FS: ":"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != "b\n" {
		t.Errorf("Run() = %q, want %q", got, "b\n")
	}
}

func TestConfigVariables(t *testing.T) {
	prog := `BEGIN { print prefix, threshold }`
	config := &tawk.Config{
		Variables: map[string]string{
			"prefix":    "LOG:",
			"threshold": "100",
		},
	}
	got, err := tawk.Run(prog, nil, config)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != "LOG: 100\n" {
		t.Errorf("Run() = %q, want %q", got, "LOG: 100\n")
	}
}

func TestConfigArgs(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "in.txt")
	if err := os.WriteFile(file, []byte("from file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := tawk.Run(`{ print FILENAME == ARGV[2], n, $0 }`, nil, &tawk.Config{Args: []string{"n=5", file}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if want := "1 5 from file\n"; got != want {
		t.Errorf("Run() = %q, want %q", got, want)
	}
}

func TestExitError(t *testing.T) {
	_, err := tawk.Run(`BEGIN { exit 42 }`, nil, nil)
	if err == nil {
		t.Fatal("expected error for exit 42")
	}

	code, ok := tawk.IsExitError(err)
	if !ok {
		t.Errorf("expected ExitError, got %T", err)
	}
	if code != 42 {
		t.Errorf("exit code = %d, want 42", code)
	}
}

func TestExitZero(t *testing.T) {
	// exit 0 should not return an error
	_, err := tawk.Run(`BEGIN { exit 0 }`, nil, nil)
	if err != nil {
		t.Errorf("exit 0 should not return error, got %v", err)
	}
}

func TestExecute(t *testing.T) {
	prog := tawk.MustCompile(`{ print } END { exit NR }`)
	var out bytes.Buffer
	code, err := prog.Execute(context.Background(), strings.NewReader("a\nb\n"), &tawk.Config{Output: &out})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if code != 2 || out.String() != "a\nb\n" {
		t.Errorf("Execute() = %d, %q", code, out.String())
	}
}

func TestExec(t *testing.T) {
	var out bytes.Buffer
	if err := tawk.Exec(`{ print toupper($0) }`, strings.NewReader("abc\n"), &out, nil); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if out.String() != "ABC\n" {
		t.Errorf("Exec() wrote %q", out.String())
	}
}

func TestExecCommandOutput(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no shell")
	}
	t.Setenv("SHELL", "/bin/sh")

	src := `BEGIN { "echo hi" | getline x; print x; print "to cat" | "cat"; system("echo sys 1>&2") }`
	for i := 0; i < 50; i++ {
		var buf bytes.Buffer
		if err := tawk.Exec(src, nil, &buf, &tawk.Config{Stderr: &buf}); err != nil {
			t.Fatalf("Exec() error = %v", err)
		}
		got := buf.String()
		for _, want := range []string{"hi\n", "to cat\n", "sys\n"} {
			if !strings.Contains(got, want) {
				t.Fatalf("run %d: output %q is missing %q", i, got, want)
			}
		}
	}
}

func TestExtensions(t *testing.T) {
	src := heredoc.Doc(`
		BEGIN {
			LinkedMap(m, "z", 1, "a", 2)
			for (k in m) s = s k
			print s, TypeOf(m)
		}
	`)
	if _, err := tawk.Compile(src); err == nil {
		t.Error("extension keywords resolved without EnableExtensions")
	}

	config := &tawk.Config{EnableExtensions: true}
	prog, err := tawk.CompileSources([]tawk.Source{{Name: "ext.awk", Text: []byte(src)}}, config)
	if err != nil {
		t.Fatalf("CompileSources() error = %v", err)
	}
	if !prog.UsesExtensions() {
		t.Error("UsesExtensions() = false")
	}
	got, err := prog.Run(nil, config)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != "za AssocArray\n" {
		t.Errorf("Run() = %q", got)
	}

	_, err = prog.CompileTo(&tawk.Config{OutputDir: t.TempDir()})
	var ce *tawk.CompileError
	if !errors.As(err, &ce) {
		t.Errorf("CompileTo() error = %v, want *CompileError", err)
	}
}

func TestUnknownExtension(t *testing.T) {
	_, err := tawk.CompileSources([]tawk.Source{{Text: []byte(`BEGIN { }`)}},
		&tawk.Config{EnableExtensions: true, Extensions: []string{"core", "graphics"}})
	if err == nil || !strings.Contains(err.Error(), "graphics") {
		t.Errorf("err = %v, want unknown extension", err)
	}
}

func TestCompileSources(t *testing.T) {
	srcs := []tawk.Source{
		{Name: "lib.awk", Text: []byte("function twice(x) { return 2 * x }\n")},
		{Name: "main.awk", Text: []byte("{ print twice($1) }\n")},
	}
	prog, err := tawk.CompileSources(srcs, nil)
	if err != nil {
		t.Fatalf("CompileSources() error = %v", err)
	}
	got, err := prog.Run(strings.NewReader("4\n"), nil)
	if err != nil || got != "8\n" {
		t.Errorf("Run() = %q, %v", got, err)
	}
}

func TestIntermediateCode(t *testing.T) {
	prog := tawk.MustCompile(`{ n += NF } END { print n }`)
	var buf bytes.Buffer
	if err := prog.WriteIR(&buf); err != nil {
		t.Fatalf("WriteIR() error = %v", err)
	}
	data := buf.Bytes()

	loaded, err := tawk.LoadIR(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("LoadIR() error = %v", err)
	}
	got, err := loaded.Run(strings.NewReader("a b\nc\n"), nil)
	if err != nil || got != "3\n" {
		t.Errorf("Run() = %q, %v", got, err)
	}
	if err := loaded.ListSyntax(&bytes.Buffer{}); err == nil {
		t.Error("ListSyntax() on a loaded program should fail")
	}

	viaSources, err := tawk.CompileSources([]tawk.Source{{Name: "a.tir", Text: data}}, nil)
	if err != nil {
		t.Fatalf("CompileSources(IR) error = %v", err)
	}
	if viaSources.Disassemble() != loaded.Disassemble() {
		t.Error("IR loaded through CompileSources differs from LoadIR")
	}

	_, err = tawk.CompileSources([]tawk.Source{{Text: data}, {Text: []byte(`{ print }`)}}, nil)
	if !errors.Is(err, tawk.ErrMultipleIR) {
		t.Errorf("IR mixed with source: err = %v, want ErrMultipleIR", err)
	}
	_, err = tawk.CompileSources([]tawk.Source{{Text: data}, {Text: data}}, nil)
	if !errors.Is(err, tawk.ErrMultipleIR) {
		t.Errorf("two IR programs: err = %v, want ErrMultipleIR", err)
	}

	if _, err := tawk.LoadIR(bytes.NewReader(data[:len(data)/2])); err == nil {
		t.Error("LoadIR() accepted truncated intermediate code")
	}
}

// backendPrograms run identically in the interpreter and as compiled
// scripts.
var backendPrograms = []struct {
	name  string
	src   string
	input string
}{
	{"report", heredoc.Doc(`
		BEGIN { FS = "," }
		NR > 1 { total[$1] += $2; count[$1]++ }
		END {
			for (k in total) printf "%-6s %6.2f %d\n", k, total[k] / count[k], count[k]
		}
	`), "name,score\nann,90\nbob,72\nann,81\ncid,64\nbob,80\n"},
	{"text", heredoc.Doc(`
		{ gsub(/[aeiou]/, "*"); lines[NR] = $0 }
		END { for (i = NR; i > 0; i--) print i ": " lines[i] }
	`), "alpha\nbeta\ngamma\n"},
	{"exit code", heredoc.Doc(`
		$1 == "stop" { exit 9 }
		{ print }
	`), "go\nstop\nunreached\n"},
}

func TestBackendParity(t *testing.T) {
	for _, tt := range backendPrograms {
		t.Run(tt.name, func(t *testing.T) {
			prog := tawk.MustCompile(tt.src)
			var interpreted, compiled bytes.Buffer
			icode, err := prog.Execute(context.Background(), strings.NewReader(tt.input),
				&tawk.Config{Output: &interpreted, SortedArrays: true})
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			config := &tawk.Config{Output: &compiled, SortedArrays: true, OutputDir: t.TempDir(), ScriptName: "Parity"}
			ccode, err := prog.RunCompiled(context.Background(), strings.NewReader(tt.input), config)
			if err != nil {
				t.Fatalf("RunCompiled() error = %v", err)
			}
			if _, err := os.Stat(filepath.Join(config.OutputDir, "Parity.tvm")); err != nil {
				t.Errorf("artifact not stored: %v", err)
			}
			if icode != ccode {
				t.Errorf("exit code: interpreted %d, compiled %d", icode, ccode)
			}
			if interpreted.String() != compiled.String() {
				t.Errorf("outputs differ:\n%s", udiff.Unified("interpreted", "compiled", interpreted.String(), compiled.String()))
			}
		})
	}
}

func TestGeneratorUnavailable(t *testing.T) {
	prog := tawk.MustCompile(`BEGIN { print 1 }`)
	_, err := prog.CompileTo(&tawk.Config{Generator: "jvm", OutputDir: t.TempDir()})
	if !errors.Is(err, tawk.ErrGeneratorUnavailable) {
		t.Errorf("err = %v, want ErrGeneratorUnavailable", err)
	}
	var ce *tawk.CompileError
	if errors.As(err, &ce) {
		t.Error("missing generator reported as a compile error")
	}
}

func TestProgramDisassemble(t *testing.T) {
	prog, err := tawk.Compile(`{ print $1 }`)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	dis := prog.Disassemble()
	if dis == "" {
		t.Error("Disassemble() returned empty string")
	}
	if !strings.Contains(dis, "GetInputRecord") {
		t.Errorf("Disassemble() should contain 'GetInputRecord', got: %s", dis)
	}
}

func TestProgramListSyntax(t *testing.T) {
	prog := tawk.MustCompile(`{ print $1 }`)
	var sb strings.Builder
	if err := prog.ListSyntax(&sb); err != nil {
		t.Fatalf("ListSyntax() error = %v", err)
	}
	if sb.Len() == 0 {
		t.Error("ListSyntax() wrote nothing")
	}
}

func TestProgramSource(t *testing.T) {
	source := `{ print $1 }`
	prog, err := tawk.Compile(source)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	if prog.Source() != source {
		t.Errorf("Source() = %q, want %q", prog.Source(), source)
	}
}

// Benchmark tests
func BenchmarkRun(b *testing.B) {
	input := strings.NewReader("hello world\n")
	for i := 0; i < b.N; i++ {
		input.Reset("hello world\n")
		_, _ = tawk.Run(`{ print $1 }`, input, nil)
	}
}

func BenchmarkCompileAndRun(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = tawk.Run(`{ sum += $1 } END { print sum }`, strings.NewReader("1\n2\n3\n"), nil)
	}
}

func BenchmarkCompiledRun(b *testing.B) {
	prog, _ := tawk.Compile(`{ sum += $1 } END { print sum }`)
	input := strings.NewReader("1\n2\n3\n")
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		input.Reset("1\n2\n3\n")
		_, _ = prog.Run(input, nil)
	}
}

// Example functions for documentation
func ExampleRun() {
	output, _ := tawk.Run(`{ print $1 }`, strings.NewReader("hello world\n"), nil)
	fmt.Print(output)
	// Output: hello
}

func ExampleCompile() {
	prog, _ := tawk.Compile(`{ sum += $1 } END { print sum }`)
	output, _ := prog.Run(strings.NewReader("1\n2\n3\n"), nil)
	fmt.Print(output)
	// Output: 6
}
