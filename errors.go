package bulk_duplicator

import (
	"errors"
	"fmt"

	"github.com/pnvasko/bulk-duplicator/flow"
)

var (
	ErrInvalidParams = errors.New("invalid run parameters")
	ErrSourceRead    = errors.New("source read error")
	ErrSinkOpen      = errors.New("sink open error")
	ErrSinkWrite     = errors.New("sink write error")
	// ErrShortWrite is a write failure where the destination accepted fewer
	// bytes than requested.
	ErrShortWrite = fmt.Errorf("%w: short write", ErrSinkWrite)
	// ErrAborted is reported when the run context ends while a task waits on
	// the broadcast channel.
	ErrAborted = flow.ErrAborted
)

// SourceError is a failure opening or reading the copy source.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s %q: %v", ErrSourceRead, e.Source, e.Err)
}

func (e *SourceError) Unwrap() []error {
	return []error{ErrSourceRead, e.Err}
}

// SinkError is a failure on one destination. Kind is ErrSinkOpen,
// ErrSinkWrite or ErrShortWrite.
type SinkError struct {
	Sink string
	Kind error
	Err  error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Kind, e.Sink, e.Err)
}

func (e *SinkError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
