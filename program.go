package tawk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kolkov/tawk/internal/ast"
	"github.com/kolkov/tawk/internal/codegen"
	"github.com/kolkov/tawk/internal/ext"
	"github.com/kolkov/tawk/internal/interp"
	"github.com/kolkov/tawk/internal/ir"
	"github.com/kolkov/tawk/internal/semantic"
)

// Program represents an AWK program lowered to intermediate code and ready
// for execution by either backend. It is safe for concurrent use; each call
// to Run creates an independent execution context.
type Program struct {
	ir     *ir.Program
	ast    *ast.Program // nil when loaded from intermediate code
	source string       // Original source for debugging
}

func buildIR(astProg *ast.Program, table *semantic.Table) (*ir.Program, error) {
	prog, err := ir.Build(astProg, table)
	if err != nil {
		return nil, backError(err)
	}
	return prog, nil
}

// LoadIR reads a program written by WriteIR, skipping the front end.
func LoadIR(r io.Reader) (*Program, error) {
	prog, err := ir.Decode(r)
	if err != nil {
		return nil, backError(err)
	}
	return &Program{ir: prog}, nil
}

// Run executes the program with the interpreter, reading input and using
// config. Returns the output as a string, or an error if execution fails.
//
// If config is nil, default configuration is used.
// If config.Output is set, output is written there and the returned
// string will be empty.
func (p *Program) Run(input io.Reader, config *Config) (string, error) {
	return p.RunContext(context.Background(), input, config)
}

// RunContext is like Run but stops when ctx is cancelled.
func (p *Program) RunContext(ctx context.Context, input io.Reader, config *Config) (string, error) {
	cfg, out, buf := prepare(config)
	code, err := p.interpret(ctx, cfg, input, out)
	return captured(buf), exitResult(code, err)
}

// Execute runs the program with the interpreter and returns the script's
// exit status. A non-zero status is not an error.
func (p *Program) Execute(ctx context.Context, input io.Reader, config *Config) (int, error) {
	cfg, out, _ := prepare(config)
	code, err := p.interpret(ctx, cfg, input, out)
	return code, backError(err)
}

func (p *Program) interpret(ctx context.Context, cfg *Config, input io.Reader, out io.Writer) (int, error) {
	var exts *ext.Registry
	if p.ir.Extensions {
		reg, err := ext.New(cfg.Extensions)
		if err != nil {
			return 2, err
		}
		exts = reg
	}
	return interp.Run(ctx, p.ir, cfg.settings(input, out), exts)
}

// CompileTo compiles the program with config.Generator and stores the
// artifact as <OutputDir>/<ScriptName>.tvm. It returns the artifact path.
func (p *Program) CompileTo(config *Config) (string, error) {
	cfg := withDefaults(config)
	data, err := codegen.Compile(codegen.Default(), cfg.Generator, p.ir)
	if err != nil {
		return "", backError(err)
	}
	cfg.Logger.Debug("program compiled", "generator", cfg.Generator, "bytes", len(data))
	loader := &codegen.Loader{Dir: cfg.OutputDir, Logger: cfg.Logger}
	return loader.Store(cfg.ScriptName, data)
}

// RunCompiled compiles the program, loads the stored artifact and runs it
// with the same settings the interpreter would use. It returns the script's
// exit status.
func (p *Program) RunCompiled(ctx context.Context, input io.Reader, config *Config) (int, error) {
	if _, err := p.CompileTo(config); err != nil {
		return 2, err
	}
	cfg, out, _ := prepare(config)
	loader := &codegen.Loader{Dir: cfg.OutputDir, Logger: cfg.Logger}
	script, err := loader.Load(cfg.ScriptName)
	if err != nil {
		return 2, err
	}
	code, err := script.Run(ctx, cfg.settings(input, out))
	return code, backError(err)
}

// WriteIR writes the program's intermediate code to w. The result can be
// loaded with LoadIR or given to CompileSources.
func (p *Program) WriteIR(w io.Writer) error {
	return ir.Encode(w, p.ir)
}

// ListIR writes a human-readable listing of the intermediate code to w.
func (p *Program) ListIR(w io.Writer) error {
	return ir.Dump(w, p.ir)
}

// ListSyntax writes the syntax tree to w. Programs loaded from
// intermediate code have no syntax tree.
func (p *Program) ListSyntax(w io.Writer) error {
	if p.ast == nil {
		return errors.New("no syntax tree: program was loaded from intermediate code")
	}
	return ast.Fprint(w, p.ast)
}

// Disassemble returns a human-readable representation of the intermediate
// code. Useful for debugging and understanding program structure.
func (p *Program) Disassemble() string {
	var sb strings.Builder
	if err := p.ListIR(&sb); err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return sb.String()
}

// Source returns the original AWK source code.
func (p *Program) Source() string {
	return p.source
}

// UsesExtensions reports whether the program calls extension keywords.
func (p *Program) UsesExtensions() bool {
	return p.ir.Extensions
}

func withDefaults(config *Config) *Config {
	var cfg Config
	if config != nil {
		cfg = *config
	}
	cfg.applyDefaults()
	return &cfg
}

// prepare copies config with defaults applied and picks the output writer.
// When config has no Output, output is captured in the returned buffer.
func prepare(config *Config) (*Config, io.Writer, *bytes.Buffer) {
	cfg := withDefaults(config)
	if cfg.Output != nil {
		return cfg, cfg.Output, nil
	}
	buf := &bytes.Buffer{}
	return cfg, buf, buf
}

func captured(buf *bytes.Buffer) string {
	if buf == nil {
		return ""
	}
	return buf.String()
}
