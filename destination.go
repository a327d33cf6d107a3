package bulk_duplicator

import (
	"bufio"
	"errors"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

const (
	StdoutName = "stdout"
	StdinName  = "stdin"
)

// Destination is a writable copy target owned by exactly one writer.
// Finalize makes the written data durable, Close releases the handle.
type Destination interface {
	io.Writer
	Name() string
	Finalize() error
	Close() error
}

// FileDestination writes to a file or device and fsyncs it on Finalize.
type FileDestination struct {
	name string
	file *os.File
}

func NewFileDestination(file *os.File) *FileDestination {
	return &FileDestination{name: file.Name(), file: file}
}

// CreateFileDestination creates or truncates path.
func CreateFileDestination(path string) (*FileDestination, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, &SinkError{Sink: path, Kind: ErrSinkOpen, Err: err}
	}
	return NewFileDestination(file), nil
}

func (d *FileDestination) Name() string {
	return d.name
}

func (d *FileDestination) Write(p []byte) (int, error) {
	return d.file.Write(p)
}

// Finalize fsyncs the file. Targets that cannot be synced, such as
// /dev/null or a pipe, report EINVAL or ENOTSUP which is not a failure.
func (d *FileDestination) Finalize() error {
	err := d.file.Sync()
	if err == nil || errors.Is(err, unix.EINVAL) || errors.Is(err, unix.ENOTSUP) {
		return nil
	}
	return err
}

func (d *FileDestination) Close() error {
	return d.file.Close()
}

// StreamDestination writes through a buffer to a stream the process does
// not own, such as stdout. Close leaves the stream open.
type StreamDestination struct {
	name string
	w    *bufio.Writer
}

func NewStreamDestination(name string, w io.Writer, bufferSize int) *StreamDestination {
	return &StreamDestination{name: name, w: bufio.NewWriterSize(w, bufferSize)}
}

// Stdout is the fallback destination when no outputs are given.
func Stdout(bufferSize int) *StreamDestination {
	return NewStreamDestination(StdoutName, os.Stdout, bufferSize)
}

func (d *StreamDestination) Name() string {
	return d.name
}

func (d *StreamDestination) Write(p []byte) (int, error) {
	return d.w.Write(p)
}

func (d *StreamDestination) Finalize() error {
	return d.w.Flush()
}

func (d *StreamDestination) Close() error {
	return nil
}

// OpenSinks creates every path. If one fails the ones already created are
// closed and the error is returned before any copying starts.
func OpenSinks(paths []string) ([]Destination, error) {
	dests := make([]Destination, 0, len(paths))
	for _, path := range paths {
		dest, err := CreateFileDestination(path)
		if err != nil {
			closeAll(dests)
			return nil, err
		}
		dests = append(dests, dest)
	}
	return dests, nil
}

func closeAll(dests []Destination) {
	for _, dest := range dests {
		_ = dest.Close()
	}
}

// OpenSource opens path for reading. An empty path or "-" selects stdin,
// which the caller must not close.
func OpenSource(path string) (*os.File, string, error) {
	if path == "" || path == "-" {
		return os.Stdin, StdinName, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, path, &SourceError{Source: path, Err: err}
	}
	return file, path, nil
}

var (
	_ Destination = (*FileDestination)(nil)
	_ Destination = (*StreamDestination)(nil)
)
