package tawk

import (
	"bytes"
	"io"

	"github.com/kolkov/tawk/internal/ext"
	"github.com/kolkov/tawk/internal/ir"
	"github.com/kolkov/tawk/internal/lexer"
	"github.com/kolkov/tawk/internal/parser"
	"github.com/kolkov/tawk/internal/semantic"
)

// Version is the tawk version string.
const Version = "0.1.0"

// Source is one named piece of program text, as given with -f.
type Source struct {
	Name string
	Text []byte
}

// Run executes an AWK program with the given input.
// This is a convenience function for one-off execution.
// For repeated execution of the same program, use Compile followed by Program.Run.
//
// Parameters:
//   - program: AWK source code
//   - input: input data reader (can be nil for programs without input)
//   - config: execution configuration (can be nil for defaults)
//
// Returns the program output as a string, or an error if parsing,
// analysis or execution fails.
//
// Example:
//
//	output, err := tawk.Run(`{ print $1 }`, strings.NewReader("hello world"), nil)
//	// output: "hello\n"
func Run(program string, input io.Reader, config *Config) (string, error) {
	prog, err := compile([]Source{{Text: []byte(program)}}, config)
	if err != nil {
		return "", err
	}
	return prog.Run(input, config)
}

// Compile parses, analyzes and lowers an AWK program to intermediate code.
// The returned Program can be executed multiple times with different inputs.
// Extension keywords are not recognized; use CompileSources with
// Config.EnableExtensions for that.
//
// Example:
//
//	prog, err := tawk.Compile(`{ sum += $1 } END { print sum }`)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	output1, _ := prog.Run(file1, nil)
//	output2, _ := prog.Run(file2, nil)
func Compile(program string) (*Program, error) {
	return compile([]Source{{Text: []byte(program)}}, nil)
}

// CompileSources compiles a program given as several sources, the way
// multiple -f options are concatenated. A source holding intermediate code
// is loaded instead of parsed; it must then be the only source, otherwise
// ErrMultipleIR is returned.
func CompileSources(srcs []Source, config *Config) (*Program, error) {
	return compile(srcs, config)
}

func compile(srcs []Source, config *Config) (*Program, error) {
	var nIR int
	for _, src := range srcs {
		if ir.IsIR(src.Text) {
			nIR++
		}
	}
	switch {
	case nIR > 0 && len(srcs) > 1:
		return nil, ErrMultipleIR
	case nIR == 1:
		return LoadIR(bytes.NewReader(srcs[0].Text))
	}

	var exts *ext.Registry
	if config != nil && config.EnableExtensions {
		reg, err := ext.New(config.Extensions)
		if err != nil {
			return nil, err
		}
		exts = reg
	}

	lsrcs := make([]lexer.Source, len(srcs))
	var text bytes.Buffer
	for i, src := range srcs {
		lsrcs[i] = lexer.Source{Name: src.Name, Text: src.Text}
		text.Write(src.Text)
	}
	astProg, err := parser.ParseSources(lsrcs)
	if err != nil {
		return nil, frontError(err)
	}

	var lookup semantic.Extensions
	if exts != nil {
		lookup = exts
	}
	table, err := semantic.Analyze(astProg, lookup)
	if err != nil {
		return nil, frontError(err)
	}
	if config != nil && config.Logger != nil {
		for _, w := range table.Warnings {
			config.Logger.Warn(w.Message, "line", w.Pos.Line)
		}
	}

	prog, err := buildIR(astProg, table)
	if err != nil {
		return nil, err
	}
	return &Program{
		ir:     prog,
		ast:    astProg,
		source: text.String(),
	}, nil
}

// Exec is a simplified interface for running an AWK program.
// It reads from input, writes to output, and returns any error.
//
// This function is useful for integration with I/O pipelines
// where you need control over the output writer.
//
// Example:
//
//	err := tawk.Exec(`{ print toupper($0) }`, os.Stdin, os.Stdout, nil)
func Exec(program string, input io.Reader, output io.Writer, config *Config) error {
	prog, err := compile([]Source{{Text: []byte(program)}}, config)
	if err != nil {
		return err
	}

	if config == nil {
		config = &Config{}
	}
	config.Output = output

	_, err = prog.Run(input, config)
	return err
}

// MustCompile is like Compile but panics if the program cannot be compiled.
// It simplifies initialization of global program variables.
//
// Example:
//
//	var sumProgram = tawk.MustCompile(`{ sum += $1 } END { print sum }`)
func MustCompile(program string) *Program {
	prog, err := Compile(program)
	if err != nil {
		panic(err)
	}
	return prog
}
