package runtime

import (
	"io"
	"log/slog"
	"os"
)

// Assignment is a command-line variable assignment (-v name=value).
type Assignment struct {
	Name  string
	Value string
}

// Settings configures one run. The interpreter and compiled scripts take
// the same settings.
type Settings struct {
	// ProgramName is ARGV[0].
	ProgramName string

	// Args are the operands after the program: input files and name=value
	// assignments. They become ARGV[1] onwards.
	Args []string

	// Assignments are applied in order before BEGIN runs.
	Assignments []Assignment

	// Initial separators. Empty strings keep the AWK defaults, except
	// that FSSet makes an empty FS mean one field per character.
	FS    string
	FSSet bool
	OFS   string
	ORS   string
	RS    string
	RSSet bool

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// LineBuffered flushes standard output after every print, for
	// interactive use.
	LineBuffered bool

	// Env populates ENVIRON; nil uses the process environment.
	Env []string

	// SortedArrays makes every array iterate in sorted key order.
	SortedArrays bool

	// NoInput skips main input processing; BEGIN and END still run.
	NoInput bool

	// POSIXRegex selects leftmost-longest matching.
	POSIXRegex bool

	Logger *slog.Logger
}

// withDefaults returns a copy of s with unset fields filled in.
func (s *Settings) withDefaults() Settings {
	var out Settings
	if s != nil {
		out = *s
	}
	if out.ProgramName == "" {
		out.ProgramName = "tawk"
	}
	if out.FS == "" && !out.FSSet {
		out.FS = " "
	}
	if out.OFS == "" {
		out.OFS = " "
	}
	if out.ORS == "" {
		out.ORS = "\n"
	}
	if out.RS == "" && !out.RSSet {
		out.RS = "\n"
	}
	if out.Stdin == nil {
		out.Stdin = os.Stdin
	}
	if out.Stdout == nil {
		out.Stdout = os.Stdout
	}
	if out.Stderr == nil {
		out.Stderr = os.Stderr
	}
	if out.Env == nil {
		out.Env = os.Environ()
	}
	if out.Logger == nil {
		out.Logger = slog.New(slog.DiscardHandler)
	}
	return out
}
