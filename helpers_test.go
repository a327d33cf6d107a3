package bulk_duplicator

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/pnvasko/bulk-duplicator/common"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/atomic"
)

func testTracer(name string) trace.Tracer {
	return noop.NewTracerProvider().Tracer(name)
}

func testLogger(t *testing.T) *common.Logger {
	t.Helper()
	return common.NewNopLogger()
}

var errDiskFull = errors.New("no space left on device")

// memDestination records writes in memory. failAfter > 0 makes the write
// with that 1-based index fail; short makes every write accept one byte
// less than requested.
type memDestination struct {
	name string

	mu        sync.Mutex
	buf       bytes.Buffer
	writes    int
	failAfter int
	short     bool
	gate      chan struct{}

	finalizeErr error
	finalized   *atomic.Bool
	closed      *atomic.Bool
}

func newMemDestination(name string) *memDestination {
	return &memDestination{
		name:      name,
		finalized: atomic.NewBool(false),
		closed:    atomic.NewBool(false),
	}
}

func (d *memDestination) Name() string {
	return d.name
}

func (d *memDestination) Write(p []byte) (int, error) {
	if d.gate != nil {
		<-d.gate
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.writes++
	if d.failAfter > 0 && d.writes >= d.failAfter {
		return 0, errDiskFull
	}
	if d.short && len(p) > 0 {
		return d.buf.Write(p[:len(p)-1])
	}
	return d.buf.Write(p)
}

func (d *memDestination) Finalize() error {
	d.finalized.Store(true)
	return d.finalizeErr
}

func (d *memDestination) Close() error {
	d.closed.Store(true)
	return nil
}

func (d *memDestination) Bytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.buf.Bytes()...)
}

// countingReader counts bytes handed out by the wrapped reader. It hides
// any Seek method, so sources built on it run in stream mode.
type countingReader struct {
	r io.Reader
	n *atomic.Int64
}

func newCountingReader(r io.Reader) *countingReader {
	return &countingReader{r: r, n: atomic.NewInt64(0)}
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}

// failingReader returns data until limit bytes were read, then err.
type failingReader struct {
	data  []byte
	limit int
	err   error
	off   int
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.off >= f.limit {
		return 0, f.err
	}
	end := f.off + len(p)
	if end > f.limit {
		end = f.limit
	}
	n := copy(p, f.data[f.off:end])
	f.off += n
	return n, nil
}
