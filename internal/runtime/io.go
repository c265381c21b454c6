package runtime

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
)

// Stream names that refer to the standard streams instead of files.
const (
	devStdin  = "/dev/stdin"
	devStdout = "/dev/stdout"
	devStderr = "/dev/stderr"
)

// IOManager owns every stream a program opens by name. Streams stay open
// until close() or the end of the run; the same name always refers to the
// same stream.
type IOManager struct {
	mu sync.Mutex

	stdin  *RecordReader
	stdout *bufio.Writer
	stderr *bufio.Writer

	rawStdout io.Writer
	rawStderr io.Writer

	outputs map[string]*output
	inputs  map[string]*input
	logger  *slog.Logger
}

// output is a file (> and >>) or a command (|) being written to.
type output struct {
	w    *bufio.Writer
	file *os.File
	cmd  *exec.Cmd
	pipe io.WriteCloser
}

// input is a file (getline <) or a command (cmd | getline) being read.
type input struct {
	r    *RecordReader
	file *os.File
	cmd  *exec.Cmd
	pipe io.ReadCloser
}

// lockedWriter serializes writes to a standard stream. Commands started by
// the program copy their output into the same writer from other goroutines.
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// guardWriter wraps w in a lockedWriter using mu. Files are passed to
// commands as descriptors and need no wrapping.
func guardWriter(w io.Writer, mu *sync.Mutex) io.Writer {
	if _, ok := w.(*os.File); ok {
		return w
	}
	return &lockedWriter{mu: mu, w: w}
}

// NewIOManager creates an I/O manager over the given standard streams.
func NewIOManager(stdin io.Reader, stdout, stderr io.Writer, logger *slog.Logger) *IOManager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	shared := &sync.Mutex{}
	stdout = guardWriter(stdout, shared)
	stderr = guardWriter(stderr, shared)
	return &IOManager{
		stdin:     NewRecordReader(stdin),
		stdout:    bufio.NewWriterSize(stdout, 64*1024),
		stderr:    bufio.NewWriter(stderr),
		rawStdout: stdout,
		rawStderr: stderr,
		outputs:   make(map[string]*output),
		inputs:    make(map[string]*input),
		logger:    logger,
	}
}

// Stdin returns the record reader of standard input, shared by the main
// input and getline < "-".
func (m *IOManager) Stdin() *RecordReader {
	return m.stdin
}

// Stdout returns the buffered standard output.
func (m *IOManager) Stdout() *bufio.Writer {
	return m.stdout
}

// Output returns the writer for print > name (appending when append is
// set), opening the file on first use.
func (m *IOManager) Output(name string, append bool) (*bufio.Writer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch name {
	case "-", devStdout:
		return m.stdout, nil
	case devStderr:
		return m.stderr, nil
	}
	if out, ok := m.outputs[name]; ok {
		return out.w, nil
	}

	flag := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if append {
		flag = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	file, err := os.OpenFile(name, flag, 0o644)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("output file opened", "name", name, "append", append)
	out := &output{w: bufio.NewWriter(file), file: file}
	m.outputs[name] = out
	return out.w, nil
}

// OutputPipe returns the writer for print | command, starting the command
// on first use. The command writes to the program's standard output.
func (m *IOManager) OutputPipe(command string) (*bufio.Writer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if out, ok := m.outputs[command]; ok {
		return out.w, nil
	}
	if err := m.stdout.Flush(); err != nil {
		return nil, err
	}
	cmd := shellCommand(command)
	cmd.Stdout = m.rawStdout
	cmd.Stderr = m.rawStderr
	pipe, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	m.logger.Debug("output command started", "command", command)
	out := &output{w: bufio.NewWriter(pipe), cmd: cmd, pipe: pipe}
	m.outputs[command] = out
	return out.w, nil
}

// Input returns the record reader for getline < name.
func (m *IOManager) Input(name string) (*RecordReader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if name == "-" || name == devStdin {
		return m.stdin, nil
	}
	if in, ok := m.inputs[name]; ok {
		return in.r, nil
	}
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("input file opened", "name", name)
	in := &input{r: NewRecordReader(file), file: file}
	m.inputs[name] = in
	return in.r, nil
}

// InputPipe returns the record reader for command | getline, starting the
// command on first use.
func (m *IOManager) InputPipe(command string) (*RecordReader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if in, ok := m.inputs[command]; ok {
		return in.r, nil
	}
	if err := m.flushLocked(); err != nil {
		return nil, err
	}
	cmd := shellCommand(command)
	cmd.Stderr = m.rawStderr
	pipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	m.logger.Debug("input command started", "command", command)
	in := &input{r: NewRecordReader(pipe), cmd: cmd, pipe: pipe}
	m.inputs[command] = in
	return in.r, nil
}

// Close closes the stream opened under name. It returns the exit status
// for commands, 0 for files and -1 when nothing is open under name.
func (m *IOManager) Close(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := -1
	if out, ok := m.outputs[name]; ok {
		delete(m.outputs, name)
		status = closeOutput(out)
	}
	if in, ok := m.inputs[name]; ok {
		delete(m.inputs, name)
		status = closeInput(in)
	}
	if status != -1 {
		m.logger.Debug("stream closed", "name", name, "status", status)
	}
	return status
}

func closeOutput(out *output) int {
	err := out.w.Flush()
	if out.file != nil {
		if cerr := out.file.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return -1
		}
		return 0
	}
	out.pipe.Close()
	return exitStatus(out.cmd.Wait())
}

func closeInput(in *input) int {
	if in.file != nil {
		if in.file.Close() != nil {
			return -1
		}
		return 0
	}
	in.pipe.Close()
	return exitStatus(in.cmd.Wait())
}

// exitStatus converts the result of running a command into its status.
func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// Flush flushes the output stream opened under name. It returns 0 on
// success and -1 when the stream is not open or fails.
func (m *IOManager) Flush(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var w *bufio.Writer
	switch name {
	case "-", devStdout:
		w = m.stdout
	case devStderr:
		w = m.stderr
	default:
		out, ok := m.outputs[name]
		if !ok {
			return -1
		}
		w = out.w
	}
	if w.Flush() != nil {
		return -1
	}
	return 0
}

// FlushAll flushes standard output and every open output stream.
func (m *IOManager) FlushAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushLocked()
}

func (m *IOManager) flushLocked() error {
	err := m.stdout.Flush()
	if ferr := m.stderr.Flush(); err == nil {
		err = ferr
	}
	for _, out := range m.outputs {
		if ferr := out.w.Flush(); err == nil {
			err = ferr
		}
	}
	return err
}

// System flushes all output, then runs command through the shell and
// returns its exit status.
func (m *IOManager) System(command string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.flushLocked(); err != nil {
		return -1
	}
	cmd := shellCommand(command)
	cmd.Stdout = m.rawStdout
	cmd.Stderr = m.rawStderr
	return exitStatus(cmd.Run())
}

// CloseAll flushes standard output and closes every stream. Commands are
// waited for before the final flush, so their output is complete when it
// returns. It returns the first error writing output.
func (m *IOManager) CloseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.flushLocked()
	for name, out := range m.outputs {
		if closeOutput(out) == -1 && out.file != nil && err == nil {
			err = errors.New("error closing " + name)
		}
	}
	clear(m.outputs)
	for _, in := range m.inputs {
		closeInput(in)
	}
	clear(m.inputs)
	if ferr := m.flushLocked(); err == nil {
		err = ferr
	}
	return err
}

func shellCommand(command string) *exec.Cmd {
	return exec.Command(shell(), shellArg(), command)
}

// shell returns the shell that runs commands.
func shell() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	if comspec := os.Getenv("COMSPEC"); comspec != "" {
		return comspec
	}
	return "sh"
}

// shellArg returns the flag that makes shell() run a command string.
func shellArg() string {
	sh := shell()
	if sh == os.Getenv("COMSPEC") || sh == "cmd.exe" || sh == "cmd" {
		return "/c"
	}
	return "-c"
}
