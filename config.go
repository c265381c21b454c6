package tawk

import (
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/kolkov/tawk/internal/codegen"
	"github.com/kolkov/tawk/internal/runtime"
)

// Config holds configuration options for AWK execution. The same
// configuration drives the interpreter and compiled scripts.
type Config struct {
	// FS is the input field separator (default: " ").
	// When set to a single space, runs of whitespace are treated as separators.
	// Otherwise, each occurrence of the string is a separator.
	// Can also be a regular expression pattern.
	FS string

	// RS is the input record separator (default: "\n").
	// When set to empty string, records are separated by blank lines.
	RS string

	// OFS is the output field separator (default: " ").
	// Used when printing multiple values with print statement.
	OFS string

	// ORS is the output record separator (default: "\n").
	// Appended after each print statement.
	ORS string

	// Variables contains pre-defined variables.
	// These are set before BEGIN block execution.
	// Example: map[string]string{"threshold": "100", "prefix": "LOG:"}
	Variables map[string]string

	// Output is the writer for print/printf statements.
	// If nil, output is captured and returned from Run.
	Output io.Writer

	// Stderr is the writer for error output.
	// If nil, errors are discarded.
	Stderr io.Writer

	// Args contains the operands after the program: input files and
	// name=value assignments. They become ARGV[1] onwards.
	Args []string

	// ProgramName is ARGV[0] (default: "tawk").
	ProgramName string

	// POSIXRegex enables POSIX leftmost-longest regex matching.
	// When true (default), uses AWK/POSIX ERE semantics (slower but compliant).
	// When false, uses leftmost-first matching (faster, Perl-like).
	POSIXRegex *bool

	// SortedArrays makes every array iterate in sorted key order.
	SortedArrays bool

	// NoInput skips main input processing; BEGIN and END still run.
	NoInput bool

	// LineBuffered flushes output after every print.
	LineBuffered bool

	// EnableExtensions makes extension keywords available to the program.
	// Extensions names the bundled extensions to enable; nil enables all
	// of them.
	EnableExtensions bool
	Extensions       []string

	// Generator names the code generator used by CompileTo and RunCompiled
	// (default: "tvm").
	Generator string

	// OutputDir is where compiled artifacts are written (default: ".").
	OutputDir string

	// ScriptName names the compiled artifact (default: "AwkScript").
	ScriptName string

	// Logger receives diagnostics. If nil, they are discarded.
	Logger *slog.Logger
}

// applyDefaults fills in default values for unset Config fields.
func (c *Config) applyDefaults() {
	if c.FS == "" {
		c.FS = " "
	}
	if c.RS == "" {
		c.RS = "\n"
	}
	if c.OFS == "" {
		c.OFS = " "
	}
	if c.ORS == "" {
		c.ORS = "\n"
	}
	if c.Stderr == nil {
		c.Stderr = io.Discard
	}
	if c.Generator == "" {
		c.Generator = codegen.DefaultGenerator
	}
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	if c.ScriptName == "" {
		c.ScriptName = codegen.ScriptName
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
}

// settings converts c into the run settings shared by both backends.
func (c *Config) settings(input io.Reader, output io.Writer) *runtime.Settings {
	if input == nil {
		input = strings.NewReader("")
	}
	posix := true
	if c.POSIXRegex != nil {
		posix = *c.POSIXRegex
	}
	names := make([]string, 0, len(c.Variables))
	for name := range c.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	assigns := make([]runtime.Assignment, len(names))
	for i, name := range names {
		assigns[i] = runtime.Assignment{Name: name, Value: c.Variables[name]}
	}
	return &runtime.Settings{
		ProgramName:  c.ProgramName,
		Args:         c.Args,
		Assignments:  assigns,
		FS:           c.FS,
		OFS:          c.OFS,
		ORS:          c.ORS,
		RS:           c.RS,
		RSSet:        true,
		Stdin:        input,
		Stdout:       output,
		Stderr:       c.Stderr,
		LineBuffered: c.LineBuffered,
		SortedArrays: c.SortedArrays,
		NoInput:      c.NoInput,
		POSIXRegex:   posix,
		Logger:       c.Logger,
	}
}
