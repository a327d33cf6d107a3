package bulk_duplicator

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Block is one unit of bytes moved through a read, broadcast and write
// cycle. Data is shared by every destination and must not be modified after
// the block is produced.
type Block struct {
	Seq  uint64
	Data []byte
}

func (b Block) Len() int {
	return len(b.Data)
}

// BlockSource yields successive blocks of the copy source. Next returns
// io.EOF once the source is exhausted or the block limit is reached.
type BlockSource interface {
	Next() (Block, error)
}

type SourceMode int

const (
	// CountMode reads exactly the configured number of blocks.
	CountMode SourceMode = iota
	// LengthMode reads up to the known length of a seekable source.
	LengthMode
	// StreamMode reads until end of file from a source without a length.
	StreamMode
)

func (m SourceMode) String() string {
	switch m {
	case CountMode:
		return "count"
	case LengthMode:
		return "length"
	case StreamMode:
		return "stream"
	default:
		return fmt.Sprintf("SourceMode(%d)", int(m))
	}
}

// NewBlockSource picks the read mode for r. A block count always wins.
// Otherwise regular files, block devices and in-memory seekers are read up
// to their length, and pipes, terminals and character devices are read as
// a stream until end of file.
func NewBlockSource(name string, r io.Reader, params Params) (BlockSource, SourceMode, error) {
	if count, ok := params.BlockCount(); ok {
		return &countSource{
			name:      name,
			r:         r,
			blockSize: params.BlockSize(),
			count:     uint64(count),
		}, CountMode, nil
	}

	pos, length, ok, err := sourceLength(r)
	if err != nil {
		return nil, 0, &SourceError{Source: name, Err: err}
	}
	if ok {
		return &lengthSource{
			name:      name,
			r:         r,
			blockSize: int64(params.BlockSize()),
			pos:       pos,
			length:    length,
		}, LengthMode, nil
	}

	return &streamSource{
		name:      name,
		r:         r,
		blockSize: params.BlockSize(),
	}, StreamMode, nil
}

// sourceLength reports the current offset and total length of r when r has
// a well defined length.
func sourceLength(r io.Reader) (pos, length int64, ok bool, err error) {
	if f, isFile := r.(*os.File); isFile {
		info, statErr := f.Stat()
		if statErr != nil {
			return 0, 0, false, nil
		}
		mode := info.Mode()
		if mode&(os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0 {
			return 0, 0, false, nil
		}
	}

	seeker, isSeeker := r.(io.Seeker)
	if !isSeeker {
		return 0, 0, false, nil
	}
	pos, err = seeker.Seek(0, io.SeekCurrent)
	if err != nil {
		// not seekable after all, e.g. stdin attached to a pipe
		return 0, 0, false, nil
	}
	length, err = seeker.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, 0, false, nil
	}
	if _, err = seeker.Seek(pos, io.SeekStart); err != nil {
		return 0, 0, false, err
	}
	return pos, length, true, nil
}

type countSource struct {
	name      string
	r         io.Reader
	blockSize int
	count     uint64
	seq       uint64
}

// Next never pads: a short source yields short or empty blocks until the
// count is reached.
func (s *countSource) Next() (Block, error) {
	if s.seq >= s.count {
		return Block{}, io.EOF
	}
	buf := make([]byte, s.blockSize)
	n, err := io.ReadFull(s.r, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return Block{}, &SourceError{Source: s.name, Err: err}
	}
	block := Block{Seq: s.seq, Data: buf[:n]}
	s.seq++
	return block, nil
}

type lengthSource struct {
	name      string
	r         io.Reader
	blockSize int64
	pos       int64
	length    int64
	seq       uint64
}

func (s *lengthSource) Next() (Block, error) {
	remaining := s.length - s.pos
	if remaining <= 0 {
		return Block{}, io.EOF
	}
	size := s.blockSize
	if remaining < size {
		size = remaining
	}
	buf := make([]byte, size)
	n, err := io.ReadFull(s.r, buf)
	if err != nil {
		return Block{}, &SourceError{
			Source: s.name,
			Err:    fmt.Errorf("read %d of %d bytes at offset %d: %w", n, size, s.pos, err),
		}
	}
	s.pos += int64(n)
	block := Block{Seq: s.seq, Data: buf}
	s.seq++
	return block, nil
}

type streamSource struct {
	name      string
	r         io.Reader
	blockSize int
	seq       uint64
	eof       bool
}

func (s *streamSource) Next() (Block, error) {
	if s.eof {
		return Block{}, io.EOF
	}
	buf := make([]byte, s.blockSize)
	n, err := io.ReadFull(s.r, buf)
	switch {
	case errors.Is(err, io.EOF):
		s.eof = true
		return Block{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		s.eof = true
	case err != nil:
		return Block{}, &SourceError{Source: s.name, Err: err}
	}
	block := Block{Seq: s.seq, Data: buf[:n]}
	s.seq++
	return block, nil
}
