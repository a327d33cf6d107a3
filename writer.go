package bulk_duplicator

import (
	"context"
	"fmt"
	"io"

	"github.com/pnvasko/bulk-duplicator/common"
	"github.com/pnvasko/bulk-duplicator/flow"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Writer drains one subscription into one destination. It is the only
// code that writes to, finalizes or closes that destination.
type Writer struct {
	dest   Destination
	outlet flow.Outlet[Block]

	state        *atomic.Int32
	bytesWritten *atomic.Int64

	tracer trace.Tracer
	logger *common.Logger
}

func NewWriter(dest Destination, outlet flow.Outlet[Block], tracer trace.Tracer, logger *common.Logger) *Writer {
	return &Writer{
		dest:         dest,
		outlet:       outlet,
		state:        atomic.NewInt32(int32(StateIdle)),
		bytesWritten: atomic.NewInt64(0),
		tracer:       tracer,
		logger:       logger,
	}
}

func (w *Writer) Name() string {
	return w.dest.Name()
}

func (w *Writer) State() TaskState {
	return TaskState(w.state.Load())
}

func (w *Writer) BytesWritten() int64 {
	return w.bytesWritten.Load()
}

// Run writes every received block in order. The first failure detaches the
// subscription, dropping whatever is still queued, so the reader and the
// other writers carry on. The destination is closed on every exit path.
func (w *Writer) Run(ctx context.Context) error {
	ctx, span := w.tracer.Start(ctx, "duplicator.writer",
		trace.WithAttributes(attribute.String("bd.sink", w.Name())))
	defer span.End()

	w.state.Store(int32(StateWriting))

	err := w.loop(ctx)
	if closeErr := w.dest.Close(); closeErr != nil && err == nil {
		err = &SinkError{Sink: w.Name(), Kind: ErrSinkWrite, Err: fmt.Errorf("close: %w", closeErr)}
	}

	span.SetAttributes(attribute.Int64("bd.bytes_written", w.BytesWritten()))
	if err != nil {
		w.outlet.Detach()
		w.state.Store(int32(StateFailed))
		return SetLogError(ctx, "writer failed", err, w.logger,
			zap.String("sink", w.Name()),
			zap.Int64("bytes_written", w.BytesWritten()))
	}

	w.state.Store(int32(StateFinished))
	w.logger.Ctx(ctx).Debug("writer finished",
		zap.String("sink", w.Name()),
		zap.Int64("bytes_written", w.BytesWritten()))
	return nil
}

func (w *Writer) loop(ctx context.Context) error {
	for {
		block, ok, err := w.outlet.Recv(ctx)
		if err != nil {
			return fmt.Errorf("sink %q: %w", w.Name(), err)
		}
		if !ok {
			if err := w.dest.Finalize(); err != nil {
				return &SinkError{Sink: w.Name(), Kind: ErrSinkWrite, Err: fmt.Errorf("finalize: %w", err)}
			}
			return nil
		}
		if err := w.write(block); err != nil {
			w.outlet.Detach()
			return err
		}
	}
}

// write is never retried: a short write fails the destination.
func (w *Writer) write(block Block) error {
	if block.Len() == 0 {
		return nil
	}
	n, err := w.dest.Write(block.Data)
	w.bytesWritten.Add(int64(n))
	if err != nil {
		return &SinkError{Sink: w.Name(), Kind: ErrSinkWrite, Err: fmt.Errorf("block %d: %w", block.Seq, err)}
	}
	if n < block.Len() {
		return &SinkError{
			Sink: w.Name(),
			Kind: ErrShortWrite,
			Err:  fmt.Errorf("block %d: wrote %d of %d bytes: %w", block.Seq, n, block.Len(), io.ErrShortWrite),
		}
	}
	return nil
}
