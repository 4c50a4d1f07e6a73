package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tcptransfer/tcptransfer-go/pkg/log"
)

// SizePrefixLen is the width of the size prefix on the wire.
const SizePrefixLen = 8

// ErrSizePrefixTruncated means the peer closed before sending all 8 prefix
// bytes.
var ErrSizePrefixTruncated = errors.New("size prefix truncated")

// EncodeSizePrefix returns the little-endian wire form of n.
func EncodeSizePrefix(n uint64) [SizePrefixLen]byte {
	var b [SizePrefixLen]byte
	binary.LittleEndian.PutUint64(b[:], n)
	return b
}

// DecodeSizePrefix decodes the little-endian wire form.
func DecodeSizePrefix(b [SizePrefixLen]byte) uint64 {
	return binary.LittleEndian.Uint64(b[:])
}

// WriteSizePrefix writes the 8-byte prefix for n in a single Write call.
func WriteSizePrefix(w io.Writer, n uint64) error {
	b := EncodeSizePrefix(n)
	if _, err := w.Write(b[:]); err != nil {
		return fmt.Errorf("write size prefix: %w", err)
	}
	return nil
}

// ReadSizePrefix reads exactly 8 bytes. A clean or partial EOF before the
// eighth byte is ErrSizePrefixTruncated.
func ReadSizePrefix(r io.Reader) (uint64, error) {
	var b [SizePrefixLen]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, ErrSizePrefixTruncated
		}
		return 0, fmt.Errorf("read size prefix: %w", err)
	}
	return DecodeSizePrefix(b), nil
}

// PrefixCodec reads or writes the size prefix on a stream and records it
// in the protocol log.
type PrefixCodec struct {
	rw io.ReadWriter

	logger     log.Logger
	transferID string
	role       log.Role
}

// NewPrefixCodec wraps rw.
func NewPrefixCodec(rw io.ReadWriter) *PrefixCodec {
	return &PrefixCodec{rw: rw, logger: log.NoopLogger{}}
}

// SetLogger configures logging. Pass nil to disable it.
func (c *PrefixCodec) SetLogger(logger log.Logger, transferID string, role log.Role) {
	c.logger = log.Or(logger)
	c.transferID = transferID
	c.role = role
}

// WritePrefix writes n.
func (c *PrefixCodec) WritePrefix(n uint64) error {
	if err := WriteSizePrefix(c.rw, n); err != nil {
		return err
	}
	c.logger.Log(c.frameEvent(n, log.DirectionOut))
	return nil
}

// ReadPrefix reads the peer's size prefix.
func (c *PrefixCodec) ReadPrefix() (uint64, error) {
	n, err := ReadSizePrefix(c.rw)
	if err != nil {
		return 0, err
	}
	c.logger.Log(c.frameEvent(n, log.DirectionIn))
	return n, nil
}

func (c *PrefixCodec) frameEvent(n uint64, dir log.Direction) log.Event {
	b := EncodeSizePrefix(n)
	return log.Event{
		Timestamp:  time.Now(),
		TransferID: c.transferID,
		Direction:  dir,
		Layer:      log.LayerTransport,
		Category:   log.CategoryFrame,
		LocalRole:  c.role,
		Frame: &log.FrameEvent{
			Size:  SizePrefixLen,
			Data:  b[:],
			Value: n,
		},
	}
}
