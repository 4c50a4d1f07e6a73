// Package stream implements the bounded streaming copies that move the
// payload between a file and a TLS session.
package stream

import (
	"errors"
	"fmt"
	"io"
)

// Buffer size limits.
const (
	MinBufferSize     = 4 << 10
	MaxBufferSize     = 256 << 10
	DefaultBufferSize = 64 << 10
)

// Copy errors.
var (
	// ErrTruncated means the source ended before the declared length.
	ErrTruncated = errors.New("payload truncated")

	// ErrBufferSize means Options.BufferSize is outside MinBufferSize..MaxBufferSize.
	ErrBufferSize = errors.New("buffer size out of range")
)

// Flusher is implemented by sinks that buffer writes.
type Flusher interface {
	Flush() error
}

// Options tune a copy. The zero value uses DefaultBufferSize and reports no
// progress.
type Options struct {
	// BufferSize is the chunk size for each read.
	BufferSize int

	// OnProgress is called after every chunk with the running total.
	OnProgress func(copied uint64)
}

func (o Options) buffer() ([]byte, error) {
	size := o.BufferSize
	if size == 0 {
		size = DefaultBufferSize
	}
	if size < MinBufferSize || size > MaxBufferSize {
		return nil, fmt.Errorf("%w: %d not in %d..%d", ErrBufferSize, size, MinBufferSize, MaxBufferSize)
	}
	return make([]byte, size), nil
}

func (o Options) progress(copied uint64) {
	if o.OnProgress != nil {
		o.OnProgress(copied)
	}
}

// SendCopy copies src to dst until src reports EOF, then flushes dst if it
// buffers. It returns the number of bytes written to dst.
func SendCopy(dst io.Writer, src io.Reader, opts Options) (uint64, error) {
	buf, err := opts.buffer()
	if err != nil {
		return 0, err
	}

	var copied uint64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if err := writeChunk(dst, buf[:n]); err != nil {
				return copied, fmt.Errorf("write payload after %d bytes: %w", copied, err)
			}
			copied += uint64(n)
			opts.progress(copied)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return copied, fmt.Errorf("read source after %d bytes: %w", copied, rerr)
		}
	}

	if f, ok := dst.(Flusher); ok {
		if err := f.Flush(); err != nil {
			return copied, fmt.Errorf("flush payload: %w", err)
		}
	}
	if copied == 0 {
		opts.progress(0)
	}
	return copied, nil
}

// ReceiveCopy copies exactly limit bytes from src to dst. It never asks src
// for more than the remaining count, so bytes past limit are neither consumed
// nor written. If src ends first the error wraps ErrTruncated.
func ReceiveCopy(dst io.Writer, src io.Reader, limit uint64, opts Options) (uint64, error) {
	buf, err := opts.buffer()
	if err != nil {
		return 0, err
	}

	var copied uint64
	for copied < limit {
		chunk := buf
		if remaining := limit - copied; remaining < uint64(len(chunk)) {
			chunk = chunk[:remaining]
		}

		n, rerr := src.Read(chunk)
		if n > 0 {
			if err := writeChunk(dst, chunk[:n]); err != nil {
				return copied, fmt.Errorf("write sink after %d bytes: %w", copied, err)
			}
			copied += uint64(n)
			opts.progress(copied)
		}
		if rerr == nil {
			continue
		}
		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			if copied == limit {
				break
			}
			return copied, fmt.Errorf("%w: received %d of %d bytes", ErrTruncated, copied, limit)
		}
		return copied, fmt.Errorf("read payload after %d bytes: %w", copied, rerr)
	}

	if f, ok := dst.(Flusher); ok {
		if err := f.Flush(); err != nil {
			return copied, fmt.Errorf("flush sink: %w", err)
		}
	}
	if copied == 0 {
		opts.progress(0)
	}
	return copied, nil
}

func writeChunk(dst io.Writer, p []byte) error {
	n, err := dst.Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return io.ErrShortWrite
	}
	return nil
}
