// tawk - AWK interpreter and compiler
//
// Runs AWK programs with the interpreter, or compiles them to TVM script
// artifacts. Uses manual argument parsing for POSIX compatibility
// (supports -F: style flags).
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/kolkov/tawk"
)

// version is set at build time via -ldflags.
// For development builds, it will be "dev".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	shortUsage = "usage: tawk [-F fs] [-v var=value] [-f progfile | 'prog'] [file ...]"
	longUsage  = `Standard AWK arguments:
  -F separator      field separator (default " ")
  -f progfile       load AWK source or intermediate code from progfile
                    (multiple allowed)
  -v var=value      variable assignment (multiple allowed)

Additional tawk features:
  -t                iterate arrays in sorted key order
  -ni               do not process stdin or ARGV operands through input rules
  -ext[=names]      enable extensions (comma separated: core, stdin, socket;
                    default: all)
  -settings file    load default settings from a YAML file

Compilation:
  -c                write intermediate code to file (default a.tir)
  -o name           output file or script name for -c, -S, -s, -z, -Z
  -z                compile to <dir>/<name>.tvm (default AwkScript)
  -Z                compile, then run the compiled script
  -d dir            directory for compiled scripts (default .)
  -g generator      code generator for -z and -Z (default tvm)

Debugging arguments:
  -S                write the syntax tree to file (default syntax_tree.lst)
  -s                write the intermediate code to file (default avm.lst)
  -verbose          log diagnostics to stderr

Other:
  -h, --help        show this help message
  -version          show tawk version and exit
`
)

// options holds what the command line asked for. Config changes are
// recorded as funcs so they can be applied over a settings file.
type options struct {
	progFiles []string
	operands  []string
	settings  string
	verbose   bool

	writeIR    bool
	dumpAST    bool
	dumpIR     bool
	compile    bool
	compileRun bool
	output     string

	flags []func(*tawk.Config)
}

// usageError is reported with the short usage line.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line args and returns the process exit status.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args)
	if err != nil {
		var ue *usageError
		if errors.As(err, &ue) {
			fmt.Fprintf(stderr, "tawk: %v\n%s\n", err, shortUsage)
		} else {
			fmt.Fprintf(stderr, "tawk: %v\n", err)
		}
		return 2
	}
	if opts == nil {
		fmt.Fprint(stdout, helpText(args))
		return 0
	}

	config, err := opts.config(stderr)
	if err != nil {
		fmt.Fprintf(stderr, "tawk: %v\n", err)
		return 2
	}

	code, err := opts.execute(ctx, config, stdin, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "tawk: %v\n", err)
		return 2
	}
	return code
}

func helpText(args []string) string {
	for _, arg := range args {
		if arg == "-version" || arg == "--version" {
			return fmt.Sprintf("tawk version %s\n  commit: %s\n  built:  %s\n  regex:  coregex\n", version, commit, date)
		}
	}
	return fmt.Sprintf("tawk %s - AWK interpreter and compiler\n\n%s\n\n%s", version, shortUsage, longUsage)
}

// parseArgs parses the command line. It returns nil options when only help
// or version output was requested.
//
//nolint:gocyclo,funlen // CLI argument parsing is inherently complex
func parseArgs(args []string) (*options, error) {
	// Parse command line arguments manually rather than using the
	// "flag" package, so we can support flags with no space between
	// flag and argument, like '-F:' (allowed by POSIX)
	opts := &options{}
	set := func(f func(*tawk.Config)) {
		opts.flags = append(opts.flags, f)
	}
	value := func(i *int, flag string) (string, error) {
		if *i+1 >= len(args) {
			return "", usagef("flag needs an argument: %s", flag)
		}
		*i++
		return args[*i], nil
	}
	assign := func(v string) error {
		name, val, ok := strings.Cut(v, "=")
		if !ok || name == "" {
			return usagef("invalid variable assignment: %s (expected var=value)", v)
		}
		set(func(c *tawk.Config) {
			if c.Variables == nil {
				c.Variables = make(map[string]string)
			}
			c.Variables[name] = val
		})
		return nil
	}
	extensions := func(list string) {
		var names []string
		for _, name := range strings.Split(list, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
		set(func(c *tawk.Config) {
			c.EnableExtensions = true
			if names != nil {
				c.Extensions = names
			}
		})
	}

	var i int
	for i = 0; i < len(args); i++ {
		// Stop on explicit end of args or first arg not prefixed with "-"
		arg := args[i]
		if arg == "--" {
			i++
			break
		}
		if arg == "-" || !strings.HasPrefix(arg, "-") {
			break
		}

		switch arg {
		case "-F":
			fs, err := value(&i, arg)
			if err != nil {
				return nil, err
			}
			set(func(c *tawk.Config) { c.FS = fs })
		case "-f":
			f, err := value(&i, arg)
			if err != nil {
				return nil, err
			}
			opts.progFiles = append(opts.progFiles, f)
		case "-v":
			v, err := value(&i, arg)
			if err != nil {
				return nil, err
			}
			if err := assign(v); err != nil {
				return nil, err
			}
		case "-o":
			o, err := value(&i, arg)
			if err != nil {
				return nil, err
			}
			opts.output = o
		case "-d":
			dir, err := value(&i, arg)
			if err != nil {
				return nil, err
			}
			set(func(c *tawk.Config) { c.OutputDir = dir })
		case "-g":
			gen, err := value(&i, arg)
			if err != nil {
				return nil, err
			}
			set(func(c *tawk.Config) { c.Generator = gen })
		case "-settings", "--settings":
			path, err := value(&i, arg)
			if err != nil {
				return nil, err
			}
			opts.settings = path
		case "-t":
			set(func(c *tawk.Config) { c.SortedArrays = true })
		case "-ni":
			set(func(c *tawk.Config) { c.NoInput = true })
		case "-ext":
			extensions("")
		case "-c":
			opts.writeIR = true
		case "-S":
			opts.dumpAST = true
		case "-s":
			opts.dumpIR = true
		case "-z":
			opts.compile = true
		case "-Z":
			opts.compileRun = true
		case "-verbose", "--verbose":
			opts.verbose = true
		case "-h", "--help", "-version", "--version":
			return nil, nil
		default:
			// Handle flags with no space: -F:, -ffile, -vvar=val, -ext=core
			switch {
			case strings.HasPrefix(arg, "-ext="):
				extensions(arg[len("-ext="):])
			case strings.HasPrefix(arg, "-F"):
				fs := arg[2:]
				set(func(c *tawk.Config) { c.FS = fs })
			case strings.HasPrefix(arg, "-f"):
				opts.progFiles = append(opts.progFiles, arg[2:])
			case strings.HasPrefix(arg, "-v"):
				if err := assign(arg[2:]); err != nil {
					return nil, err
				}
			case strings.HasPrefix(arg, "-o"):
				opts.output = arg[2:]
			case strings.HasPrefix(arg, "-d"):
				dir := arg[2:]
				set(func(c *tawk.Config) { c.OutputDir = dir })
			default:
				return nil, usagef("flag provided but not defined: %s", arg)
			}
		}
	}

	opts.operands = args[i:]
	if len(opts.progFiles) == 0 {
		if len(opts.operands) == 0 {
			return nil, usagef("no program given")
		}
	}
	return opts, nil
}

// config builds the run configuration: settings file first, then flags.
func (o *options) config(stderr io.Writer) (*tawk.Config, error) {
	config := &tawk.Config{}
	verbose := o.verbose
	if o.settings != "" {
		s, err := loadSettings(o.settings)
		if err != nil {
			return nil, err
		}
		s.apply(config)
		verbose = verbose || s.Verbose
	}
	for _, f := range o.flags {
		f(config)
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	config.Logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	config.Stderr = stderr
	config.ProgramName = "tawk"
	return config, nil
}

// sources reads the program text and returns the remaining operands.
func (o *options) sources() ([]tawk.Source, []string, error) {
	if len(o.progFiles) == 0 {
		return []tawk.Source{{Name: "cmd", Text: []byte(o.operands[0])}}, o.operands[1:], nil
	}
	srcs := make([]tawk.Source, 0, len(o.progFiles))
	for _, f := range o.progFiles {
		content, err := os.ReadFile(f)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot read program file %s: %w", f, err)
		}
		srcs = append(srcs, tawk.Source{Name: f, Text: content})
	}
	return srcs, o.operands, nil
}

// outputName returns -o, or def when it was not given.
func (o *options) outputName(def string) string {
	if o.output != "" {
		return o.output
	}
	return def
}

func (o *options) execute(ctx context.Context, config *tawk.Config, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	srcs, operands, err := o.sources()
	if err != nil {
		return 2, err
	}
	config.Args = operands

	prog, err := tawk.CompileSources(srcs, config)
	if err != nil {
		return 2, err
	}

	switch {
	case o.dumpAST:
		return 0, writeFile(stderr, o.outputName("syntax_tree.lst"), prog.ListSyntax)
	case o.writeIR:
		return 0, writeFile(stderr, o.outputName("a.tir"), prog.WriteIR)
	case o.dumpIR:
		return 0, writeFile(stderr, o.outputName("avm.lst"), prog.ListIR)
	}

	// Build configuration with buffered output for performance
	w := bufio.NewWriter(stdout)
	defer w.Flush()
	config.Output = w
	if f, ok := stdout.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		config.LineBuffered = true
	}

	switch {
	case o.compileRun:
		config.ScriptName = o.output
		return prog.RunCompiled(ctx, stdin, config)
	case o.compile:
		config.ScriptName = o.output
		path, err := prog.CompileTo(config)
		if err != nil {
			return 2, err
		}
		config.Logger.Info("script compiled", "path", path)
		return 0, nil
	}
	return prog.Execute(ctx, stdin, config)
}

// writeFile creates name and fills it with write.
func writeFile(stderr io.Writer, name string, write func(io.Writer) error) error {
	fmt.Fprintf(stderr, "(writing to '%s')\n", name)
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
