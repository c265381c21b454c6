// Package codegen is the compiler backend. A Generator turns a tuple
// program into target code; generators are looked up by name in a
// Registry so a missing target is reported rather than crashing.
package codegen

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kolkov/tawk/internal/ir"
)

// DefaultGenerator names the generator used when none is requested.
const DefaultGenerator = "tvm"

// ErrGeneratorUnavailable is returned when no generator is registered
// under the requested name.
var ErrGeneratorUnavailable = errors.New("code generator unavailable")

// Generator compiles a tuple program into target code.
type Generator interface {
	Compile(prog *ir.Program) ([]byte, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(prog *ir.Program) ([]byte, error)

func (f GeneratorFunc) Compile(prog *ir.Program) ([]byte, error) { return f(prog) }

// CompileError reports that a generator could not compile a program.
type CompileError struct {
	Line    int
	Message string
}

func (e *CompileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("compile error at line %d: %s", e.Line, e.Message)
	}
	return "compile error: " + e.Message
}

// Registry maps generator names to generators.
type Registry struct {
	mu   sync.RWMutex
	gens map[string]Generator
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{gens: make(map[string]Generator)}
}

// Register adds g under name, replacing any previous generator.
func (r *Registry) Register(name string, g Generator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gens[name] = g
}

// Lookup returns the generator registered under name.
func (r *Registry) Lookup(name string) (Generator, error) {
	if name == "" {
		name = DefaultGenerator
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gens[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrGeneratorUnavailable, name)
	}
	return g, nil
}

// Names returns the registered generator names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.gens))
	for name := range r.gens {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry holding the bundled tvm
// generator.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		defaultRegistry.Register(DefaultGenerator, TVM{})
	})
	return defaultRegistry
}

// Compile looks up the named generator in reg and compiles prog with it.
// An unknown name yields an error matching ErrGeneratorUnavailable; a
// generator failure is returned as is.
func Compile(reg *Registry, name string, prog *ir.Program) ([]byte, error) {
	if reg == nil {
		reg = Default()
	}
	g, err := reg.Lookup(name)
	if err != nil {
		return nil, err
	}
	return g.Compile(prog)
}
