// Package ext defines the extension contract and the bundled extensions.
//
// An extension exposes keywords that scripts call like functions. Keywords
// are known to the semantic analyzer before tuples are built: an extension
// declares which argument positions must be arrays, and calls that are not
// user functions resolve to extension keywords through the Registry.
package ext

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/kolkov/tawk/internal/runtime"
	"github.com/kolkov/tawk/internal/types"
)

// Env is what an extension sees of the running script.
type Env struct {
	Vars     runtime.Vars
	NewArray func() *types.Array
	Stdin    io.Reader
	Output   io.Writer // Script standard output, flushed with it
	Logger   *slog.Logger
}

// Extension is a keyword-addressable capability.
type Extension interface {
	Name() string
	Keywords() []string
	Init(env *Env) error
	Invoke(ctx context.Context, keyword string, args []types.Value) (types.Value, error)

	// ArrayParams lists the argument positions that must be bound to
	// arrays when keyword is called with argc arguments.
	ArrayParams(keyword string, argc int) []int
}

// ErrKeywordCollision is returned when two extensions claim one keyword.
var ErrKeywordCollision = errors.New("extension keyword collision")

// ErrUnknownExtension is returned for a bundled extension name that does
// not exist.
var ErrUnknownExtension = errors.New("unknown extension")

// HaltError stops the script at once. END blocks do not run.
type HaltError struct {
	Code int
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("halted with code %d", e.Code)
}

// ArgumentError reports an invalid extension argument.
type ArgumentError struct {
	Keyword string
	Message string
}

func (e *ArgumentError) Error() string {
	return e.Keyword + ": " + e.Message
}

func argError(keyword, format string, args ...any) error {
	return &ArgumentError{Keyword: keyword, Message: fmt.Sprintf(format, args...)}
}

// checkArgs fails unless exactly n arguments were passed.
func checkArgs(keyword string, args []types.Value, n int) error {
	if len(args) != n {
		return argError(keyword, "expecting %d arg(s), got %d", n, len(args))
	}
	return nil
}

// Registry maps keywords to the extensions that serve them.
// A nil *Registry has no keywords.
type Registry struct {
	exts      []Extension
	byKeyword map[string]Extension
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byKeyword: make(map[string]Extension)}
}

// Register adds e. It fails without registering anything when one of e's
// keywords is already taken.
func (r *Registry) Register(e Extension) error {
	for _, kw := range e.Keywords() {
		if prev, ok := r.byKeyword[kw]; ok {
			return fmt.Errorf("%w: %q claimed by %s and %s", ErrKeywordCollision, kw, prev.Name(), e.Name())
		}
	}
	for _, kw := range e.Keywords() {
		r.byKeyword[kw] = e
	}
	r.exts = append(r.exts, e)
	return nil
}

// Extensions returns the registered extensions in registration order.
func (r *Registry) Extensions() []Extension {
	if r == nil {
		return nil
	}
	return slices.Clone(r.exts)
}

// Lookup reports whether keyword belongs to a registered extension.
func (r *Registry) Lookup(keyword string) bool {
	if r == nil {
		return false
	}
	_, ok := r.byKeyword[keyword]
	return ok
}

// ArrayParams returns the array argument positions for keyword.
func (r *Registry) ArrayParams(keyword string, argc int) []int {
	if r == nil {
		return nil
	}
	if e, ok := r.byKeyword[keyword]; ok {
		return e.ArrayParams(keyword, argc)
	}
	return nil
}

// Init initializes every extension with env.
func (r *Registry) Init(env *Env) error {
	if r == nil {
		return nil
	}
	if env.Logger == nil {
		env.Logger = slog.New(slog.DiscardHandler)
	}
	for _, e := range r.exts {
		if err := e.Init(env); err != nil {
			return fmt.Errorf("init %s: %w", e.Name(), err)
		}
		env.Logger.Debug("extension ready", "name", e.Name(), "keywords", len(e.Keywords()))
	}
	return nil
}

// Invoke calls keyword with args.
func (r *Registry) Invoke(ctx context.Context, keyword string, args []types.Value) (types.Value, error) {
	if r == nil {
		return types.Uninit(), fmt.Errorf("unknown extension keyword %q", keyword)
	}
	e, ok := r.byKeyword[keyword]
	if !ok {
		return types.Uninit(), fmt.Errorf("unknown extension keyword %q", keyword)
	}
	return e.Invoke(ctx, keyword, args)
}

// Close releases the resources of every extension that holds any.
func (r *Registry) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for _, e := range r.exts {
		if c, ok := e.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", e.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Bundled names the extensions shipped with tawk.
var Bundled = []string{"core", "stdin", "socket"}

// New creates a registry holding the named bundled extensions. A nil names
// slice enables all of them.
func New(names []string) (*Registry, error) {
	if names == nil {
		names = Bundled
	}
	r := NewRegistry()
	for _, name := range names {
		var e Extension
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "core":
			e = NewCore()
		case "stdin":
			e = NewStdin()
		case "socket":
			e = NewSocket()
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownExtension, name)
		}
		if err := r.Register(e); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// toStr converts a scalar argument using CONVFMT.
func toStr(env *Env, v types.Value) string {
	return v.AsStr(env.Vars.CONVFMT())
}
