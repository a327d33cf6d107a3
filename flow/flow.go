package flow

import "context"

// Inlet is the producer side of a stream: one writer pushes values and
// finally closes it.
type Inlet[T any] interface {
	Broadcast(context.Context, T) error
	Close() error
}

// Outlet is the consumer side of a stream.
type Outlet[T any] interface {
	Recv(context.Context) (T, bool, error)
	Detach()
}

var (
	_ Inlet[any]  = (*Broadcast[any])(nil)
	_ Outlet[any] = (*Subscription[any])(nil)
)
