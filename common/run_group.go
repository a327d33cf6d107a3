package common

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

var (
	ErrInterrupted = errors.New("interrupted by signal")
	ErrStopTimeout = errors.New("run group stop timeout")
)

type actor struct {
	name      string
	execute   func(context.Context) error
	interrupt func(error)
}

type actorResult struct {
	name string
	err  error
}

type RunGroupOption func(*RunGroup) error

func WithSystemInterrupt(ok bool) RunGroupOption {
	return func(rg *RunGroup) error {
		rg.systemInterrupt = ok
		return nil
	}
}

func WithStopTimeout(td time.Duration) RunGroupOption {
	return func(rg *RunGroup) error {
		if td <= 0 {
			return fmt.Errorf("stop timeout must be positive: %s", td)
		}
		rg.stopTimeout = td
		return nil
	}
}

// RunGroup runs a set of actors until the first one returns, then interrupts
// the rest and waits for them. SIGINT, SIGQUIT and SIGTERM cancel the context
// handed to every actor, with ErrInterrupted as the cause.
type RunGroup struct {
	mu              sync.Mutex
	actors          []actor
	systemInterrupt bool
	stopTimeout     time.Duration
	started         bool
}

const (
	defaultSystemInterrupt = true
	defaultStopTimeout     = 10 * time.Second
)

func NewRunGroup(opts ...RunGroupOption) (*RunGroup, error) {
	rg := &RunGroup{
		systemInterrupt: defaultSystemInterrupt,
		stopTimeout:     defaultStopTimeout,
	}

	for _, opt := range opts {
		if err := opt(rg); err != nil {
			return nil, err
		}
	}
	return rg, nil
}

func (g *RunGroup) Add(name string, execute func(context.Context) error, interrupt func(error)) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return fmt.Errorf("cannot add actor %q after Run has started", name)
	}
	g.actors = append(g.actors, actor{name, execute, interrupt})
	return nil
}

// Run returns the first non-nil actor error. An actor that stops because it
// was interrupted should return nil.
func (g *RunGroup) Run(baseCtx context.Context) error {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return fmt.Errorf("run group already started")
	}
	g.started = true
	actors := append([]actor(nil), g.actors...)
	g.mu.Unlock()

	if len(actors) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancelCause(baseCtx)
	defer cancel(nil)

	if g.systemInterrupt {
		stop := g.watchSignals(ctx, cancel)
		defer stop()
	}

	results := make(chan actorResult, len(actors))
	for _, a := range actors {
		go func(a actor) {
			results <- actorResult{name: a.name, err: a.execute(ctx)}
		}(a)
	}

	var err error
	pending := len(actors)

	// Wait for the first actor to stop or the context to end.
	select {
	case r := <-results:
		pending--
		err = r.err
	case <-ctx.Done():
	}
	cancel(nil)

	for _, a := range actors {
		if a.interrupt != nil {
			a.interrupt(err)
		}
	}

	timer := time.NewTimer(g.stopTimeout)
	defer timer.Stop()
	for pending > 0 {
		select {
		case r := <-results:
			pending--
			if err == nil && r.err != nil {
				err = r.err
			}
		case <-timer.C:
			return errors.Join(err, fmt.Errorf("%w: %d actors still running", ErrStopTimeout, pending))
		}
	}
	return err
}

func (g *RunGroup) watchSignals(ctx context.Context, cancel context.CancelCauseFunc) func() {
	term := make(chan os.Signal, 1)
	signal.Notify(term, os.Interrupt, unix.SIGINT, unix.SIGQUIT, unix.SIGTERM)
	done := make(chan struct{})

	go func() {
		defer func() {
			if r := recover(); r != nil {
				fmt.Fprintf(os.Stderr, "panic in signal handler: %v\n", r)
			}
		}()
		select {
		case sig := <-term:
			cancel(fmt.Errorf("%w: %s", ErrInterrupted, sig))
		case <-ctx.Done():
		case <-done:
		}
	}()

	return func() {
		signal.Stop(term)
		close(done)
	}
}
