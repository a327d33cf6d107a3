package bulk_duplicator

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/pnvasko/bulk-duplicator/common"
	"github.com/pnvasko/bulk-duplicator/flow"
	"github.com/rs/xid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// SinkFailure records why one destination did not receive the full copy.
type SinkFailure struct {
	Sink string
	Err  error
}

// Outcome summarizes a run. BytesRead reflects partial progress when the
// run failed.
type Outcome struct {
	RunID     string
	Mode      SourceMode
	BytesRead int64
	Blocks    uint64
	Sinks     int
	Failures  []SinkFailure
	Duration  time.Duration
}

func (o Outcome) String() string {
	return fmt.Sprintf("%d bytes copied to %d files.", o.BytesRead, o.Sinks)
}

// FailureErrors returns the per destination errors in destination order.
func (o Outcome) FailureErrors() []error {
	errs := make([]error, 0, len(o.Failures))
	for _, f := range o.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Duplicator copies one source to many destinations with a single read
// pass.
type Duplicator struct {
	params Params
	tracer trace.Tracer
	logger *common.Logger
}

func NewDuplicator(params Params, tracer trace.Tracer, logger *common.Logger) *Duplicator {
	return &Duplicator{
		params: params,
		tracer: tracer,
		logger: logger,
	}
}

func (d *Duplicator) Params() Params {
	return d.params
}

// Run copies source to every destination and takes ownership of dests:
// each one is closed by its writer. With no destinations the copy goes to
// stdout.
//
// Every destination is subscribed before the reader starts. The reader and
// all writers are always joined. The reader error wins over writer errors,
// otherwise the first failing destination in order is reported.
func (d *Duplicator) Run(ctx context.Context, sourceName string, source io.Reader, dests []Destination) (Outcome, error) {
	started := time.Now()
	if err := d.params.Validate(); err != nil {
		closeAll(dests)
		return Outcome{}, err
	}
	if len(dests) == 0 {
		dests = []Destination{Stdout(d.params.BlockSize())}
	}
	outcome := Outcome{
		RunID: xid.New().String(),
		Sinks: len(dests),
	}
	logger := d.logger.With(zap.String("run_id", outcome.RunID))

	ctx, span := d.tracer.Start(ctx, "duplicator.run",
		trace.WithAttributes(
			attribute.String("bd.run_id", outcome.RunID),
			attribute.String("bd.source", sourceName),
			attribute.Int("bd.sinks", len(dests)),
			attribute.Int("bd.block_size", d.params.BlockSize()),
			attribute.Int("bd.block_buffer", d.params.BlockBuffer()),
		))
	defer span.End()

	blocks, mode, err := NewBlockSource(sourceName, source, d.params)
	if err != nil {
		closeAll(dests)
		return outcome, SetLogError(ctx, "open block source", err, logger)
	}
	outcome.Mode = mode

	bus, err := flow.NewBroadcast[Block](d.params.BlockBuffer())
	if err != nil {
		closeAll(dests)
		return outcome, err
	}

	writers := make([]*Writer, 0, len(dests))
	for _, dest := range dests {
		sub, err := bus.Subscribe()
		if err != nil {
			closeAll(dests)
			return outcome, err
		}
		writers = append(writers, NewWriter(dest, sub, d.tracer, logger))
	}
	reader := NewReader(sourceName, blocks, bus, d.tracer, logger)

	pool, err := ants.NewPool(len(writers)+1, ants.WithNonblocking(false))
	if err != nil {
		closeAll(dests)
		return outcome, fmt.Errorf("create task pool: %w", err)
	}
	defer pool.Release()

	logger.Ctx(ctx).Info("copy started",
		zap.String("source", sourceName),
		zap.Stringer("mode", mode),
		zap.Int("sinks", len(dests)),
		zap.Int64("memory_bound", d.params.MemoryBound(len(dests))))

	// Joins must not give up when ctx ends: tasks observe ctx themselves
	// and always resolve their futures.
	joinCtx := context.WithoutCancel(ctx)

	writerFutures := make(flow.Futures[struct{}], 0, len(writers))
	for _, w := range writers {
		writerFutures = append(writerFutures, d.spawnWriter(ctx, joinCtx, pool, w))
	}
	readerFuture := d.spawnReader(ctx, joinCtx, pool, reader)

	bytesRead, readErr := readerFuture.Await()
	outcome.BytesRead = bytesRead
	outcome.Blocks = reader.Blocks()

	for _, f := range writerFutures {
		if err := f.Err(); err != nil {
			outcome.Failures = append(outcome.Failures, SinkFailure{Sink: f.Name(), Err: err})
		}
	}
	outcome.Duration = time.Since(started)

	span.SetAttributes(
		attribute.Int64("bd.bytes_read", outcome.BytesRead),
		attribute.Int("bd.failed_sinks", len(outcome.Failures)),
	)

	switch {
	case readErr != nil:
		return outcome, readErr
	case len(outcome.Failures) > 0:
		logger.Ctx(ctx).Warn("copy finished with failed sinks",
			zap.Int("failed", len(outcome.Failures)),
			zap.Int("sinks", outcome.Sinks))
		return outcome, outcome.Failures[0].Err
	}

	logger.Ctx(ctx).Info("copy finished",
		zap.Int64("bytes_read", outcome.BytesRead),
		zap.Uint64("blocks", outcome.Blocks),
		zap.Duration("duration", outcome.Duration))
	return outcome, nil
}

func (d *Duplicator) spawnWriter(ctx, joinCtx context.Context, pool *ants.Pool, w *Writer) *flow.Future[struct{}] {
	future := flow.NewFuture[struct{}](joinCtx, w.Name())
	err := pool.Submit(func() {
		defer func() {
			if p := recover(); p != nil {
				w.outlet.Detach()
				future.SetError(fmt.Errorf("writer for %q panicked: %v", w.Name(), p))
			}
		}()
		future.Resolve(struct{}{}, w.Run(ctx))
	})
	if err != nil {
		// the writer never runs: release its queue and handle ourselves
		w.outlet.Detach()
		_ = w.dest.Close()
		future.SetError(fmt.Errorf("start writer for %q: %w", w.Name(), err))
	}
	return future
}

func (d *Duplicator) spawnReader(ctx, joinCtx context.Context, pool *ants.Pool, r *Reader) *flow.Future[int64] {
	future := flow.NewFuture[int64](joinCtx, r.name)
	err := pool.Submit(func() {
		defer func() {
			if p := recover(); p != nil {
				_ = r.inlet.Close()
				future.SetError(fmt.Errorf("reader panicked: %v", p))
			}
		}()
		future.Resolve(r.Run(ctx))
	})
	if err != nil {
		_ = r.inlet.Close()
		future.SetError(fmt.Errorf("start reader: %w", err))
	}
	return future
}

// Options describe a run in terms of paths, as given on a command line.
type Options struct {
	// Input is the source path; empty or "-" reads stdin.
	Input string
	// Outputs are created or truncated; none means stdout.
	Outputs []string
	Params  Params
}

// Run opens the source and every output, then copies. Output open failures
// are reported before any data is read.
func Run(ctx context.Context, opts Options, tracer trace.Tracer, logger *common.Logger) (Outcome, error) {
	source, sourceName, err := OpenSource(opts.Input)
	if err != nil {
		return Outcome{}, SetLogError(ctx, "open source", err, logger)
	}
	if source != os.Stdin {
		defer source.Close()
	}

	dests, err := OpenSinks(opts.Outputs)
	if err != nil {
		return Outcome{}, SetLogError(ctx, "open sinks", err, logger)
	}

	return NewDuplicator(opts.Params, tracer, logger).Run(ctx, sourceName, source, dests)
}
