package bulk_duplicator

import "fmt"

const (
	DefaultBlockSize   = 64000
	DefaultBlockBuffer = 20
)

type ParamsOption func(*Params) error

// WithBlockSize sets how many bytes are read per block.
func WithBlockSize(n int) ParamsOption {
	return func(p *Params) error {
		if n <= 0 {
			return fmt.Errorf("%w: block size must be positive, got %d", ErrInvalidParams, n)
		}
		p.blockSize = n
		return nil
	}
}

// WithBlockBuffer sets how many blocks each destination may have queued
// before the reader blocks.
func WithBlockBuffer(n int) ParamsOption {
	return func(p *Params) error {
		if n <= 0 {
			return fmt.Errorf("%w: block buffer must be positive, got %d", ErrInvalidParams, n)
		}
		p.blockBuffer = n
		return nil
	}
}

// WithBlockCount stops the reader after exactly n blocks.
func WithBlockCount(n int) ParamsOption {
	return func(p *Params) error {
		if n < 0 {
			return fmt.Errorf("%w: block count must not be negative, got %d", ErrInvalidParams, n)
		}
		p.blockCount = n
		p.hasCount = true
		return nil
	}
}

// Params are the scalar knobs of a copy run.
type Params struct {
	blockSize   int
	blockBuffer int
	blockCount  int
	hasCount    bool
}

func NewParams(opts ...ParamsOption) (Params, error) {
	p := Params{
		blockSize:   DefaultBlockSize,
		blockBuffer: DefaultBlockBuffer,
	}
	for _, opt := range opts {
		if err := opt(&p); err != nil {
			return Params{}, err
		}
	}
	return p, nil
}

func (p Params) BlockSize() int {
	return p.blockSize
}

func (p Params) BlockBuffer() int {
	return p.blockBuffer
}

// BlockCount returns the block limit and whether one is set.
func (p Params) BlockCount() (int, bool) {
	return p.blockCount, p.hasCount
}

// MemoryBound is the most block memory that can be queued for sinks
// destinations at once.
func (p Params) MemoryBound(sinks int) int64 {
	return int64(p.blockBuffer) * int64(p.blockSize) * int64(sinks)
}

// Validate reports whether p can drive a run. Params built with NewParams
// are always valid; the zero value is not.
func (p Params) Validate() error {
	if p.blockSize <= 0 || p.blockBuffer <= 0 {
		return fmt.Errorf("%w: block size %d, block buffer %d", ErrInvalidParams, p.blockSize, p.blockBuffer)
	}
	return nil
}
