package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/atomic"
)

var (
	ErrInvalidDepth         = errors.New("broadcast depth must be positive")
	ErrBroadcastClosed      = errors.New("broadcast is closed")
	ErrSubscriptionDetached = errors.New("subscription is detached")
	ErrAborted              = errors.New("aborted")
)

func abort(cause error) error {
	return fmt.Errorf("%w: %w", ErrAborted, cause)
}

// Broadcast delivers every value pushed by a single producer to each
// registered Subscription.
//
// Every subscription owns a queue of depth values. Broadcast blocks while any
// live queue is full, so the slowest consumer throttles the producer and the
// number of values held per subscription never exceeds depth.
//
//	producer -- 1 -- 2 -- 3 --+-- sub A -- 1 -- 2 -- 3
//	                          +-- sub B -- 1 -- 2 -- 3
type Broadcast[T any] struct {
	depth int

	// sendMu serializes Broadcast and Close so no value is ever sent on a
	// closed queue.
	sendMu sync.Mutex

	mu     sync.Mutex
	subs   []*Subscription[T]
	nextID int
	closed bool

	sent *atomic.Uint64
}

func NewBroadcast[T any](depth int) (*Broadcast[T], error) {
	if depth <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDepth, depth)
	}
	return &Broadcast[T]{
		depth: depth,
		sent:  atomic.NewUint64(0),
	}, nil
}

// Subscribe registers a new consumer. A subscription only receives values
// broadcast after it was created, so all consumers should subscribe before
// the producer starts.
func (b *Broadcast[T]) Subscribe() (*Subscription[T], error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBroadcastClosed
	}
	sub := &Subscription[T]{
		id:       b.nextID,
		ch:       make(chan T, b.depth),
		detached: make(chan struct{}),
	}
	b.nextID++
	b.subs = append(b.subs, sub)
	return sub, nil
}

// Broadcast enqueues v into every live subscription, in subscription order.
// Detached subscriptions are skipped. The call returns an error wrapping
// ErrAborted if ctx ends while waiting for queue space.
func (b *Broadcast[T]) Broadcast(ctx context.Context, v T) error {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	subs, err := b.snapshot()
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return abort(context.Cause(ctx))
	}

	for _, sub := range subs {
		if sub.isDetached() {
			continue
		}
		select {
		case sub.ch <- v:
		case <-sub.detached:
		case <-ctx.Done():
			return abort(context.Cause(ctx))
		}
	}
	b.sent.Inc()
	return nil
}

// Close ends the stream. Consumers drain what is already queued and then see
// end of stream. Close is idempotent.
func (b *Broadcast[T]) Close() error {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.ch)
	}
	return nil
}

// Subscribers returns the number of subscriptions that are not detached.
func (b *Broadcast[T]) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, sub := range b.subs {
		if !sub.isDetached() {
			n++
		}
	}
	return n
}

// Sent returns how many values were fully broadcast.
func (b *Broadcast[T]) Sent() uint64 {
	return b.sent.Load()
}

func (b *Broadcast[T]) Depth() int {
	return b.depth
}

// snapshot returns the live subscriptions. Detached queues stay registered
// until Close, which closes every queue exactly once.
func (b *Broadcast[T]) snapshot() ([]*Subscription[T], error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBroadcastClosed
	}
	live := make([]*Subscription[T], 0, len(b.subs))
	for _, sub := range b.subs {
		if !sub.isDetached() {
			live = append(live, sub)
		}
	}
	return live, nil
}

// Subscription is one consumer's private FIFO queue of broadcast values.
type Subscription[T any] struct {
	id         int
	ch         chan T
	detached   chan struct{}
	detachOnce sync.Once
}

func (s *Subscription[T]) ID() int {
	return s.id
}

// Recv blocks until a value is available. It returns ok=false with a nil
// error once the broadcast is closed and the queue is drained.
func (s *Subscription[T]) Recv(ctx context.Context) (T, bool, error) {
	var zero T
	if s.isDetached() {
		return zero, false, ErrSubscriptionDetached
	}
	select {
	case v, ok := <-s.ch:
		if !ok {
			return zero, false, nil
		}
		return v, true, nil
	case <-s.detached:
		return zero, false, ErrSubscriptionDetached
	case <-ctx.Done():
		return zero, false, abort(context.Cause(ctx))
	}
}

// Detach abandons the subscription. Queued values are dropped and the
// producer never blocks on this queue again.
func (s *Subscription[T]) Detach() {
	s.detachOnce.Do(func() {
		close(s.detached)
		for {
			select {
			case _, ok := <-s.ch:
				if !ok {
					return
				}
			default:
				return
			}
		}
	})
}

// Len is the number of values queued and not yet received.
func (s *Subscription[T]) Len() int {
	return len(s.ch)
}

func (s *Subscription[T]) Cap() int {
	return cap(s.ch)
}

func (s *Subscription[T]) isDetached() bool {
	select {
	case <-s.detached:
		return true
	default:
		return false
	}
}
