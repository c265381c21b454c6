package runtime

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/kolkov/tawk/internal/ir"
	"github.com/kolkov/tawk/internal/semantic"
	"github.com/kolkov/tawk/internal/types"
)

// Vars is the variable manager seen by extensions: the special variables
// that affect conversion and field splitting, and the current record.
type Vars interface {
	CONVFMT() string
	OFMT() string
	FS() string
	OFS() string
	SUBSEP() string
	NF() int
	SetRecord(string)
	Resplit()
}

// AssignFunc stores a command-line assignment in a program global. It
// reports false when the program has no such variable.
type AssignFunc func(name string, v types.Value) bool

// Runtime is the state of one run shared by both backends.
type Runtime struct {
	settings Settings
	io       *IOManager
	regexes  *RegexCache
	assign   AssignFunc
	logger   *slog.Logger

	convfmt string
	ofmt    string
	fs      string
	ofs     string
	ors     string
	rs      string
	subsep  string
	nr      int64
	fnr     int64
	rstart  int64
	rlength int64

	filename types.Value
	argc     types.Value
	argv     *types.Array
	environ  *types.Array

	record string
	fields []string
	split  bool // fields reflect record

	// Main input
	current     *RecordReader
	currentFile *os.File
	argIndex    int
	sawFile     bool
	inputDone   bool

	rand *rand.Rand
	seed float64
}

var _ Vars = (*Runtime)(nil)

// New creates the run-time state for one run and applies the
// command-line assignments. assign stores assignments to program globals;
// it may be nil.
func New(settings *Settings, assign AssignFunc) (*Runtime, error) {
	s := settings.withDefaults()
	r := &Runtime{
		settings: s,
		io:       NewIOManager(s.Stdin, s.Stdout, s.Stderr, s.Logger),
		regexes:  NewRegexCache(100, s.POSIXRegex),
		assign:   assign,
		logger:   s.Logger,
		convfmt:  "%.6g",
		ofmt:     "%.6g",
		ofs:      s.OFS,
		ors:      s.ORS,
		rs:       s.RS,
		subsep:   "\x1c",
		filename: types.Str(""),
		argIndex: 1,
		rand:     rand.New(rand.NewSource(0)),
		split:    true,
	}
	if err := r.setFS(s.FS); err != nil {
		return nil, err
	}

	r.argv = r.NewArray()
	r.argv.Set("0", types.Str(s.ProgramName))
	for i, arg := range s.Args {
		r.argv.Set(strconv.Itoa(i+1), types.StrNum(arg))
	}
	r.argc = types.Int(int64(len(s.Args) + 1))

	r.environ = r.NewArray()
	for _, kv := range s.Env {
		if name, value, ok := strings.Cut(kv, "="); ok {
			r.environ.Set(name, types.StrNum(value))
		}
	}

	for _, a := range s.Assignments {
		if err := r.Assign(a.Name, a.Value); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Logger returns the run's logger.
func (r *Runtime) Logger() *slog.Logger {
	return r.logger
}

// IO returns the I/O manager.
func (r *Runtime) IO() *IOManager {
	return r.io
}

// Regexes returns the regex cache.
func (r *Runtime) Regexes() *RegexCache {
	return r.regexes
}

// Settings returns the settings the run was created with, defaults
// filled in.
func (r *Runtime) Settings() *Settings {
	return &r.settings
}

// Assign performs a command-line assignment: the value is unescaped and
// stored as a strnum.
func (r *Runtime) Assign(name, value string) error {
	v := types.StrNum(Unescape(value))
	if semantic.IsSpecialVar(name) {
		if semantic.IsSpecialArray(name) {
			return fmt.Errorf("cannot assign to array %s", name)
		}
		return r.SetSpecial(semantic.SpecialVarIndex(name), v)
	}
	if r.assign != nil && !r.assign(name, v) {
		r.logger.Debug("assignment to unused variable ignored", "name", name)
	}
	return nil
}

// Vars accessors.

func (r *Runtime) CONVFMT() string { return r.convfmt }
func (r *Runtime) OFMT() string    { return r.ofmt }
func (r *Runtime) FS() string      { return r.fs }
func (r *Runtime) OFS() string     { return r.ofs }
func (r *Runtime) SUBSEP() string  { return r.subsep }

// NF returns the number of fields in the current record.
func (r *Runtime) NF() int {
	r.ensureSplit()
	return len(r.fields)
}

// Special returns the value of the special variable with index idx.
func (r *Runtime) Special(idx int) types.Value {
	switch idx {
	case semantic.SpecARGC:
		return r.argc
	case semantic.SpecARGV:
		return types.ArrayValue(r.argv)
	case semantic.SpecCONVFMT:
		return types.Str(r.convfmt)
	case semantic.SpecENVIRON:
		return types.ArrayValue(r.environ)
	case semantic.SpecFILENAME:
		return r.filename
	case semantic.SpecFNR:
		return types.Int(r.fnr)
	case semantic.SpecFS:
		return types.Str(r.fs)
	case semantic.SpecNF:
		return types.Int(int64(r.NF()))
	case semantic.SpecNR:
		return types.Int(r.nr)
	case semantic.SpecOFMT:
		return types.Str(r.ofmt)
	case semantic.SpecOFS:
		return types.Str(r.ofs)
	case semantic.SpecORS:
		return types.Str(r.ors)
	case semantic.SpecRLENGTH:
		return types.Int(r.rlength)
	case semantic.SpecRS:
		return types.Str(r.rs)
	case semantic.SpecRSTART:
		return types.Int(r.rstart)
	case semantic.SpecSUBSEP:
		return types.Str(r.subsep)
	}
	return types.Uninit()
}

// SetSpecial assigns the special variable with index idx.
func (r *Runtime) SetSpecial(idx int, v types.Value) error {
	switch idx {
	case semantic.SpecARGC:
		r.argc = v
	case semantic.SpecCONVFMT:
		r.convfmt = r.ToStr(v)
	case semantic.SpecFILENAME:
		r.filename = v
	case semantic.SpecFNR:
		r.fnr = v.AsInt()
	case semantic.SpecFS:
		return r.setFS(r.ToStr(v))
	case semantic.SpecNF:
		return r.SetNF(int(v.AsInt()))
	case semantic.SpecNR:
		r.nr = v.AsInt()
	case semantic.SpecOFMT:
		r.ofmt = r.ToStr(v)
	case semantic.SpecOFS:
		r.ofs = r.ToStr(v)
	case semantic.SpecORS:
		r.ors = r.ToStr(v)
	case semantic.SpecRLENGTH:
		r.rlength = v.AsInt()
	case semantic.SpecRS:
		rs := r.ToStr(v)
		if len(rs) > 1 {
			if _, err := r.regexes.Get(rs); err != nil {
				return fmt.Errorf("invalid RS %q: %w", rs, err)
			}
		}
		r.rs = rs
	case semantic.SpecRSTART:
		r.rstart = v.AsInt()
	case semantic.SpecSUBSEP:
		r.subsep = r.ToStr(v)
	default:
		return fmt.Errorf("cannot assign to %s", semantic.SpecialVarName(idx))
	}
	return nil
}

// setFS changes the field separator. The current record keeps the fields
// it had under the old separator.
func (r *Runtime) setFS(fs string) error {
	if len(fs) > 1 {
		if _, err := r.regexes.Get(fs); err != nil {
			return fmt.Errorf("invalid FS %q: %w", fs, err)
		}
	}
	r.ensureSplit()
	r.fs = fs
	return nil
}

// SpecialArray returns ARGV or ENVIRON.
func (r *Runtime) SpecialArray(idx int) *types.Array {
	if idx == semantic.SpecENVIRON {
		return r.environ
	}
	return r.argv
}

// NewArray creates an array with the run's key ordering.
func (r *Runtime) NewArray() *types.Array {
	if r.settings.SortedArrays {
		return types.NewArray(types.OrderTree)
	}
	return types.NewArray(types.OrderHash)
}

// ToStr converts v with CONVFMT.
func (r *Runtime) ToStr(v types.Value) string {
	return v.AsStr(r.convfmt)
}

// Key joins subscripts with SUBSEP into an array key.
func (r *Runtime) Key(subs []types.Value) string {
	if len(subs) == 1 {
		return r.ToStr(subs[0])
	}
	parts := make([]string, len(subs))
	for i, s := range subs {
		parts[i] = r.ToStr(s)
	}
	return strings.Join(parts, r.subsep)
}

// Records and fields.

// Record returns $0.
func (r *Runtime) Record() string {
	return r.record
}

// SetRecord replaces $0; fields are split again on demand.
func (r *Runtime) SetRecord(s string) {
	r.record = s
	r.split = false
}

// Resplit discards the current fields so they are split again from $0.
func (r *Runtime) Resplit() {
	r.split = false
}

func (r *Runtime) ensureSplit() {
	if r.split {
		return
	}
	// The separator was validated when it was assigned.
	fields, err := SplitFields(r.record, r.fs, r.rs == "", r.regexes)
	if err != nil {
		fields = []string{r.record}
	}
	r.fields = fields
	r.split = true
}

// Field returns $i.
func (r *Runtime) Field(i int) (types.Value, error) {
	if i < 0 {
		return types.Value{}, fmt.Errorf("attempt to access field %d", i)
	}
	if i == 0 {
		return types.StrNum(r.record), nil
	}
	r.ensureSplit()
	if i > len(r.fields) {
		return types.Uninit(), nil
	}
	return types.StrNum(r.fields[i-1]), nil
}

// SetField assigns $i. Assigning $0 resplits; assigning any other field
// rebuilds $0 with OFS.
func (r *Runtime) SetField(i int, s string) error {
	if i < 0 {
		return fmt.Errorf("attempt to access field %d", i)
	}
	if i == 0 {
		r.SetRecord(s)
		return nil
	}
	r.ensureSplit()
	for len(r.fields) < i {
		r.fields = append(r.fields, "")
	}
	r.fields[i-1] = s
	r.rebuild()
	return nil
}

// SetNF truncates or extends the fields and rebuilds $0.
func (r *Runtime) SetNF(n int) error {
	if n < 0 {
		return fmt.Errorf("NF set to negative value %d", n)
	}
	r.ensureSplit()
	if n < len(r.fields) {
		r.fields = r.fields[:n]
	}
	for len(r.fields) < n {
		r.fields = append(r.fields, "")
	}
	r.rebuild()
	return nil
}

func (r *Runtime) rebuild() {
	r.record = strings.Join(r.fields, r.ofs)
}

// Main input.

// NextRecord reads the next main input record into $0. It returns false
// at the end of the input.
func (r *Runtime) NextRecord() (bool, error) {
	rec, ok, err := r.readMain()
	if !ok || err != nil {
		return false, err
	}
	r.SetRecord(rec)
	return true, nil
}

// NextFile abandons the current input file.
func (r *Runtime) NextFile() {
	r.closeCurrent()
}

// readMain reads a record from the main input, walking ARGV: empty
// operands are skipped, name=value operands are assigned when reached and
// "-" is standard input. Without file operands standard input is read.
func (r *Runtime) readMain() (string, bool, error) {
	if r.settings.NoInput {
		return "", false, nil
	}
	for {
		if r.current == nil {
			ok, err := r.openNext()
			if !ok || err != nil {
				return "", false, err
			}
		}
		rec, err := r.current.Read(r.rs, r.regexes)
		if errors.Is(err, io.EOF) {
			r.closeCurrent()
			continue
		}
		if err != nil {
			return "", false, err
		}
		r.nr++
		r.fnr++
		return rec, true, nil
	}
}

func (r *Runtime) openNext() (bool, error) {
	if r.inputDone {
		return false, nil
	}
	for r.argIndex < int(r.argc.AsInt()) {
		i := r.argIndex
		r.argIndex++
		v, ok := r.argv.Get(strconv.Itoa(i))
		if !ok {
			continue
		}
		arg := r.ToStr(v)
		if arg == "" {
			continue
		}
		if name, value, ok := ParseAssignment(arg); ok {
			if err := r.Assign(name, value); err != nil {
				return false, err
			}
			continue
		}

		r.sawFile = true
		r.fnr = 0
		r.filename = types.StrNum(arg)
		if arg == "-" || arg == devStdin {
			r.current = r.io.Stdin()
			return true, nil
		}
		f, err := os.Open(arg)
		if err != nil {
			return false, fmt.Errorf("can't open file %s: %w", arg, err)
		}
		r.logger.Debug("input file opened", "name", arg)
		r.current = NewRecordReader(f)
		r.currentFile = f
		return true, nil
	}
	if !r.sawFile {
		r.sawFile = true
		r.current = r.io.Stdin()
		return true, nil
	}
	r.inputDone = true
	return false, nil
}

func (r *Runtime) closeCurrent() {
	if r.currentFile != nil {
		r.currentFile.Close()
		r.currentFile = nil
	}
	r.current = nil
}

// Getline reads a record for one of the getline forms and returns it with
// the status: 1 for a record, 0 at end of input, -1 on error. The main
// form counts the record in NR and FNR, the command form in NR.
func (r *Runtime) Getline(src int, name string) (string, int) {
	var rd *RecordReader
	var err error
	switch src {
	case ir.GetlineMain:
		rec, ok, err := r.readMain()
		switch {
		case err != nil:
			r.logger.Debug("getline failed", "error", err)
			return "", -1
		case !ok:
			return "", 0
		}
		return rec, 1
	case ir.GetlineFile:
		rd, err = r.io.Input(name)
	default:
		rd, err = r.io.InputPipe(name)
	}
	if err != nil {
		r.logger.Debug("getline source unavailable", "name", name, "error", err)
		return "", -1
	}
	rec, err := rd.Read(r.rs, r.regexes)
	if errors.Is(err, io.EOF) {
		return "", 0
	}
	if err != nil {
		return "", -1
	}
	if src == ir.GetlineCommand {
		r.nr++
	}
	return rec, 1
}

// Output.

// Print writes args separated by OFS and followed by ORS; no arguments
// prints $0. Numbers are converted with OFMT.
func (r *Runtime) Print(args []types.Value, redirect ir.Redirect, dest string) error {
	var sb strings.Builder
	if len(args) == 0 {
		sb.WriteString(r.record)
	}
	for i, a := range args {
		if i > 0 {
			sb.WriteString(r.ofs)
		}
		sb.WriteString(a.AsStr(r.ofmt))
	}
	sb.WriteString(r.ors)
	return r.write(sb.String(), redirect, dest)
}

// Printf formats args[1:] with the format args[0] and writes the result.
func (r *Runtime) Printf(args []types.Value, redirect ir.Redirect, dest string) error {
	if len(args) == 0 {
		return nil
	}
	return r.write(types.Sprintf(r.ToStr(args[0]), args[1:], r.convfmt), redirect, dest)
}

func (r *Runtime) write(s string, redirect ir.Redirect, dest string) error {
	var w interface {
		WriteString(string) (int, error)
		Flush() error
	}
	var err error
	switch redirect {
	case ir.RedirectNone:
		w = r.io.Stdout()
	case ir.RedirectWrite:
		w, err = r.io.Output(dest, false)
	case ir.RedirectAppend:
		w, err = r.io.Output(dest, true)
	case ir.RedirectPipe:
		w, err = r.io.OutputPipe(dest)
	}
	if err != nil {
		return fmt.Errorf("can't redirect to %s: %w", dest, err)
	}
	if _, err := w.WriteString(s); err != nil {
		return err
	}
	if r.settings.LineBuffered || dest == devStderr {
		return w.Flush()
	}
	return nil
}

// Close ends the run's I/O: the main input is closed, output is flushed
// and every stream is closed.
func (r *Runtime) Close() error {
	r.closeCurrent()
	return r.io.CloseAll()
}
