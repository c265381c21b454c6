// Package block implements block objects: wait conditions an extension hands
// back to the interpreter instead of a value. The interpreter suspends the
// script until one condition of a chain is satisfied and resumes with that
// condition's notifier tag.
package block

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Object is a resumable wait condition.
//
// Wait returns nil once the condition is satisfied. It must return promptly
// with ctx.Err() when ctx is cancelled. Implementations must be comparable
// (pointer types) so chains can be checked for repeats.
type Object interface {
	Tag() string
	Wait(ctx context.Context) error
}

// ErrCycle is returned when a chain contains the same object twice.
var ErrCycle = errors.New("block chain contains a cycle")

// chain is an ordered group of objects raced together. Its own tag and wait
// are those of the head.
type chain struct {
	objs []Object
}

func (c *chain) Tag() string                    { return c.objs[0].Tag() }
func (c *chain) Wait(ctx context.Context) error { return c.objs[0].Wait(ctx) }

// Chain links head with rest. Chains passed as members are flattened, so
// Chain(a, Chain(b, c)) races a, b and c.
func Chain(head Object, rest ...Object) Object {
	if len(rest) == 0 {
		return head
	}
	c := &chain{objs: make([]Object, 0, 1+len(rest))}
	c.objs = append(c.objs, head)
	c.objs = append(c.objs, rest...)
	return c
}

// Objects returns every object of the chain rooted at o, in order.
// A chain holding the same object twice is rejected with ErrCycle.
func Objects(o Object) ([]Object, error) {
	var out []Object
	seen := make(map[Object]bool)
	var walk func(Object) error
	walk = func(o Object) error {
		if c, ok := o.(*chain); ok {
			if seen[c] {
				return fmt.Errorf("%w (duplicate %s)", ErrCycle, c.Tag())
			}
			seen[c] = true
			for _, m := range c.objs {
				if err := walk(m); err != nil {
					return err
				}
			}
			return nil
		}
		if seen[o] {
			return fmt.Errorf("%w (duplicate %s)", ErrCycle, o.Tag())
		}
		seen[o] = true
		out = append(out, o)
		return nil
	}
	if o == nil {
		return nil, errors.New("nil block object")
	}
	if err := walk(o); err != nil {
		return nil, err
	}
	return out, nil
}

// funcObject adapts a function to Object.
type funcObject struct {
	tag  string
	wait func(ctx context.Context) error
}

func (f *funcObject) Tag() string                    { return f.tag }
func (f *funcObject) Wait(ctx context.Context) error { return f.wait(ctx) }

// Func returns an object with the given tag whose Wait calls wait.
func Func(tag string, wait func(ctx context.Context) error) Object {
	return &funcObject{tag: tag, wait: wait}
}

// After returns an object satisfied once d has elapsed.
func After(tag string, d time.Duration) Object {
	return Func(tag, func(ctx context.Context) error {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// Signal wakes every goroutine waiting on it. Producers call Notify after a
// state change; waiters recheck their condition after each wakeup.
type Signal struct {
	mu sync.Mutex
	ch chan struct{}
}

// NewSignal creates a signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Notify wakes all current waiters.
func (s *Signal) Notify() {
	s.mu.Lock()
	close(s.ch)
	s.ch = make(chan struct{})
	s.mu.Unlock()
}

func (s *Signal) current() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

// Until waits until ready reports true, rechecking after every notification.
func (s *Signal) Until(ctx context.Context, ready func() bool) error {
	for {
		ch := s.current()
		if ready() {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
