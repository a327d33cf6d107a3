package bulk_duplicator

import (
	"context"
	"errors"
	"io"

	"github.com/pnvasko/bulk-duplicator/common"
	"github.com/pnvasko/bulk-duplicator/flow"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Reader is the only owner of the block source and the only producer on the
// broadcast channel.
type Reader struct {
	name   string
	source BlockSource
	inlet  flow.Inlet[Block]

	state     *atomic.Int32
	bytesRead *atomic.Int64
	blocks    *atomic.Uint64

	tracer trace.Tracer
	logger *common.Logger
}

func NewReader(name string, source BlockSource, inlet flow.Inlet[Block], tracer trace.Tracer, logger *common.Logger) *Reader {
	return &Reader{
		name:      name,
		source:    source,
		inlet:     inlet,
		state:     atomic.NewInt32(int32(StateIdle)),
		bytesRead: atomic.NewInt64(0),
		blocks:    atomic.NewUint64(0),
		tracer:    tracer,
		logger:    logger,
	}
}

func (r *Reader) State() TaskState {
	return TaskState(r.state.Load())
}

func (r *Reader) BytesRead() int64 {
	return r.bytesRead.Load()
}

func (r *Reader) Blocks() uint64 {
	return r.blocks.Load()
}

// Run copies blocks from the source into the channel until the source is
// exhausted. The channel is closed on every exit path so writers always
// drain and finish.
func (r *Reader) Run(ctx context.Context) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "duplicator.reader",
		trace.WithAttributes(attribute.String("bd.source", r.name)))
	defer span.End()

	r.state.Store(int32(StateReading))
	r.logger.Ctx(ctx).Debug("reader started", zap.String("source", r.name))

	err := r.loop(ctx)
	if closeErr := r.inlet.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	span.SetAttributes(
		attribute.Int64("bd.bytes_read", r.BytesRead()),
		attribute.Int64("bd.blocks", int64(r.Blocks())),
	)
	if err != nil {
		r.state.Store(int32(StateFailed))
		return r.BytesRead(), SetLogError(ctx, "reader failed", err, r.logger,
			zap.String("source", r.name),
			zap.Int64("bytes_read", r.BytesRead()))
	}

	r.state.Store(int32(StateFinished))
	r.logger.Ctx(ctx).Debug("reader finished",
		zap.String("source", r.name),
		zap.Int64("bytes_read", r.BytesRead()),
		zap.Uint64("blocks", r.Blocks()))
	return r.BytesRead(), nil
}

func (r *Reader) loop(ctx context.Context) error {
	for {
		block, err := r.source.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := r.inlet.Broadcast(ctx, block); err != nil {
			return err
		}
		r.bytesRead.Add(int64(block.Len()))
		r.blocks.Inc()
	}
}
