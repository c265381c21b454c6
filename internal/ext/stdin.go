package ext

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/kolkov/tawk/internal/block"
	"github.com/kolkov/tawk/internal/types"
)

// Stdin reads standard input lines on a background goroutine so a script can
// wait for input alongside other block objects.
//
// The reader starts on first use. Until then standard input is left alone
// and main input processing may consume it.
type Stdin struct {
	env *Env

	start  sync.Once
	cancel context.CancelFunc
	done   chan struct{}
	signal *block.Signal
	lines  *handoff[string]
	eof    bool
}

// NewStdin creates the stdin extension.
func NewStdin() *Stdin {
	sig := block.NewSignal()
	return &Stdin{signal: sig, lines: newHandoff[string](sig)}
}

func (s *Stdin) Name() string { return "Stdin Support" }

func (s *Stdin) Keywords() []string {
	return []string{"StdinHasInput", "StdinGetline", "StdinBlock"}
}

func (s *Stdin) ArrayParams(string, int) []int { return nil }

func (s *Stdin) Init(env *Env) error {
	s.env = env
	return nil
}

func (s *Stdin) Invoke(ctx context.Context, keyword string, args []types.Value) (types.Value, error) {
	s.start.Do(s.run)

	switch keyword {
	case "StdinHasInput":
		if err := checkArgs(keyword, args, 0); err != nil {
			return types.Uninit(), err
		}
		return types.Bool(s.eof || s.lines.ready()), nil
	case "StdinGetline":
		if err := checkArgs(keyword, args, 0); err != nil {
			return types.Uninit(), err
		}
		if s.eof {
			return types.Int(0), nil
		}
		line, ok, err := s.lines.take(ctx)
		if err != nil {
			return types.Int(-1), nil
		}
		if !ok {
			s.eof = true
			return types.Int(0), nil
		}
		s.env.Vars.SetRecord(line)
		return types.Int(1), nil
	case "StdinBlock":
		obj := block.Func("Stdin", func(ctx context.Context) error {
			return s.signal.Until(ctx, func() bool { return s.eof || s.lines.ready() })
		})
		switch len(args) {
		case 0:
			return types.Opaque(obj), nil
		case 1:
			next, ok := args[0].Object().(block.Object)
			if !ok {
				return types.Uninit(), argError(keyword, "argument must be a block object")
			}
			return types.Opaque(block.Chain(obj, next)), nil
		}
		return types.Uninit(), argError(keyword, "accepts 0 or 1 args, got %d", len(args))
	}
	return types.Uninit(), fmt.Errorf("%s: not implemented", keyword)
}

func (s *Stdin) run() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	in := s.env.Stdin

	go func() {
		defer close(s.done)
		defer s.lines.finish()
		r := bufio.NewReader(in)
		for {
			line, err := r.ReadString('\n')
			if line != "" {
				line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
				if perr := s.lines.put(ctx, line); perr != nil {
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) && ctx.Err() == nil {
					s.env.Logger.Warn("stdin reader stopped", "error", err)
				}
				return
			}
		}
	}()
}

// Close stops the reader and waits for it to exit. A read in progress is
// interrupted by a read deadline on files or by closing the input.
func (s *Stdin) Close() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	err := interruptRead(s.env.Stdin)
	<-s.done
	return err
}

func interruptRead(in io.Reader) error {
	if f, ok := in.(*os.File); ok {
		if f.SetReadDeadline(time.Now()) == nil {
			return nil
		}
	}
	if c, ok := in.(io.Closer); ok {
		if err := c.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			return fmt.Errorf("close stdin: %w", err)
		}
	}
	return nil
}
