package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tcptransfer/tcptransfer-go/pkg/endpoint"
	"github.com/tcptransfer/tcptransfer-go/pkg/log"
	"github.com/tcptransfer/tcptransfer-go/pkg/stream"
	"github.com/tcptransfer/tcptransfer-go/pkg/transport"
)

// DefaultProgressInterval is how many payload bytes pass between progress
// events in the protocol log.
const DefaultProgressInterval = 16 << 20

// DefaultDestination returns <tempdir>/received.bin.
func DefaultDestination() string {
	return filepath.Join(os.TempDir(), "received.bin")
}

// PeerSource supplies the sender's endpoint during READ_PEER.
type PeerSource func(ctx context.Context) (endpoint.Endpoint, error)

// Config configures a Coordinator. The zero value receives over a default
// TLS profile and sends nothing (a sender needs TLS.Certificate).
type Config struct {
	// ID is the transfer ID. Empty generates a random UUID.
	ID string

	// BindAddress is the sender's listen address (default 0.0.0.0:0).
	BindAddress string

	// TLS holds the sender's certificate and the receiver's optional pin.
	TLS transport.TLSConfig

	// HandshakeTimeout, IdleTimeout and ConnectTimeout are optional bounds.
	// Zero disables each.
	HandshakeTimeout time.Duration
	IdleTimeout      time.Duration
	ConnectTimeout   time.Duration

	// ConnectRetries is how many more times the receiver dials after a
	// failed connect.
	ConnectRetries int

	// Socket options for the data connection.
	Socket transport.SocketOptions

	// BufferSize is the copy chunk size (default stream.DefaultBufferSize).
	BufferSize int

	// Destination is the receiver's sink when Receive.Dest is empty.
	Destination string

	// PeerSource resolves the receiver's peer when Receive.Peer is zero.
	PeerSource PeerSource

	// ProgressInterval overrides DefaultProgressInterval.
	ProgressInterval uint64

	// Logger receives protocol events. May be nil.
	Logger log.Logger

	// Observer receives operator-facing notifications. May be nil.
	Observer Observer
}

// Coordinator runs a single transfer.
type Coordinator struct {
	config   Config
	id       string
	logger   log.Logger
	observer Observer
	used     atomic.Bool

	// Set once Run picks a role.
	role  RoleKind
	state State
}

// New creates a Coordinator with a fresh transfer ID.
func New(config Config) *Coordinator {
	if config.BindAddress == "" {
		config.BindAddress = transport.DefaultBindAddress
	}
	if config.BufferSize == 0 {
		config.BufferSize = stream.DefaultBufferSize
	}
	if config.Destination == "" {
		config.Destination = DefaultDestination()
	}
	if config.ProgressInterval == 0 {
		config.ProgressInterval = DefaultProgressInterval
	}

	if config.ID == "" {
		config.ID = uuid.NewString()
	}

	observer := config.Observer
	if observer == nil {
		observer = NopObserver{}
	}

	return &Coordinator{
		config:   config,
		id:       config.ID,
		logger:   log.Or(config.Logger),
		observer: observer,
		state:    StateInit,
	}
}

// ID returns the transfer ID used in protocol log events.
func (c *Coordinator) ID() string {
	return c.id
}

// State returns the current state. Not safe to call while Run is executing on
// another goroutine.
func (c *Coordinator) State() State {
	return c.state
}

// Run dispatches to Send or Receive.
func (c *Coordinator) Run(ctx context.Context, role Role) (Result, error) {
	switch r := role.(type) {
	case Send:
		return c.Send(ctx, r)
	case Receive:
		return c.Receive(ctx, r)
	default:
		return Result{}, &Error{Kind: KindConfiguration, State: StateInit, Err: fmt.Errorf("%w: %T", ErrUnknownRole, role)}
	}
}

func (c *Coordinator) begin(role RoleKind) error {
	if !c.used.CompareAndSwap(false, true) {
		return &Error{Kind: KindConfiguration, State: c.state, Err: ErrCoordinatorUsed}
	}
	c.role = role
	if c.config.BufferSize < stream.MinBufferSize || c.config.BufferSize > stream.MaxBufferSize {
		return c.fail(KindConfiguration, fmt.Errorf("%w: %d not in %d..%d", stream.ErrBufferSize,
			c.config.BufferSize, stream.MinBufferSize, stream.MaxBufferSize))
	}
	return nil
}

func (c *Coordinator) copyOptions(total uint64, start time.Time) stream.Options {
	next := c.config.ProgressInterval
	return stream.Options{
		BufferSize: c.config.BufferSize,
		OnProgress: func(copied uint64) {
			c.observer.PayloadProgress(copied)
			if copied >= next && copied < total {
				c.logProgress(copied, total, time.Since(start), false)
				for next <= copied {
					next += c.config.ProgressInterval
				}
			}
		},
	}
}

func (c *Coordinator) enter(next State) {
	prev := c.state
	c.state = next
	c.observer.StateChanged(prev, next)
	c.logger.Log(log.Event{
		Timestamp:  time.Now(),
		TransferID: c.id,
		Layer:      log.LayerTransfer,
		Category:   log.CategoryState,
		LocalRole:  c.logRole(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityTransfer,
			OldState: prev.String(),
			NewState: next.String(),
		},
	})
}

// fail moves to FAILED and returns the classified error.
func (c *Coordinator) fail(kind Kind, err error) error {
	failed := c.state
	te := &Error{Kind: kind, State: failed, Err: err}

	c.logger.Log(log.Event{
		Timestamp:  time.Now(),
		TransferID: c.id,
		Layer:      log.LayerTransfer,
		Category:   log.CategoryError,
		LocalRole:  c.logRole(),
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransfer,
			Message: err.Error(),
			Kind:    kind.String(),
			Context: failed.String(),
		},
	})

	c.state = StateFailed
	c.observer.StateChanged(failed, StateFailed)
	c.logger.Log(log.Event{
		Timestamp:  time.Now(),
		TransferID: c.id,
		Layer:      log.LayerTransfer,
		Category:   log.CategoryState,
		LocalRole:  c.logRole(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityTransfer,
			OldState: failed.String(),
			NewState: StateFailed.String(),
			Reason:   err.Error(),
		},
	})
	return te
}

func (c *Coordinator) logProgress(copied, total uint64, elapsed time.Duration, final bool) {
	direction := log.DirectionOut
	if c.role == RoleReceiver {
		direction = log.DirectionIn
	}
	c.logger.Log(log.Event{
		Timestamp:  time.Now(),
		TransferID: c.id,
		Direction:  direction,
		Layer:      log.LayerTransfer,
		Category:   log.CategoryProgress,
		LocalRole:  c.logRole(),
		Progress: &log.ProgressEvent{
			Bytes:   copied,
			Total:   total,
			Elapsed: elapsed,
			Final:   final,
		},
	})
}

func (c *Coordinator) logRole() log.Role {
	if c.role == RoleReceiver {
		return log.RoleReceiver
	}
	return log.RoleSender
}

func (c *Coordinator) sessionConfig() transport.SessionConfig {
	return transport.SessionConfig{
		HandshakeTimeout: c.config.HandshakeTimeout,
		IdleTimeout:      c.config.IdleTimeout,
		Logger:           c.config.Logger,
		TransferID:       c.id,
	}
}

// copyError maps a payload copy failure. A cancelled context takes precedence
// over the socket error it caused.
func copyError(ctx context.Context, err error) (Kind, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return KindIO, fmt.Errorf("%w (%v)", ctxErr, err)
	}
	if errors.Is(err, stream.ErrTruncated) {
		return KindProtocol, err
	}
	return KindIO, err
}
