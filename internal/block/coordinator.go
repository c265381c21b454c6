package block

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Coordinator races the objects of a chain.
type Coordinator struct {
	logger *slog.Logger
}

// NewCoordinator returns a coordinator. A nil logger discards diagnostics.
func NewCoordinator(logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{logger: logger}
}

// Block waits on every object of the chain rooted at o, one goroutine each.
// The first object to finish wins: its tag is recorded once, the remaining
// waits are cancelled, and Block returns only after every goroutine has
// exited. When all waits fail, the first failure is returned.
func (c *Coordinator) Block(ctx context.Context, o Object) (string, error) {
	objs, err := Objects(o)
	if err != nil {
		return "", err
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu     sync.Mutex
		winner string
		won    bool
	)
	var g errgroup.Group
	for _, obj := range objs {
		g.Go(func() error {
			err := obj.Wait(raceCtx)
			mu.Lock()
			defer mu.Unlock()
			if won {
				return nil
			}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("%s: %w", obj.Tag(), err)
			}
			won = true
			winner = obj.Tag()
			cancel()
			return nil
		})
	}
	err = g.Wait()

	if won {
		c.logger.Debug("block released", "tag", winner, "waiters", len(objs))
		return winner, nil
	}
	return "", err
}
