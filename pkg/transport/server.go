package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tcptransfer/tcptransfer-go/pkg/endpoint"
	"github.com/tcptransfer/tcptransfer-go/pkg/log"
)

// DefaultBindAddress binds every IPv4 interface on an OS-chosen port.
const DefaultBindAddress = "0.0.0.0:0"

// ServerConfig configures the sender's listening side.
type ServerConfig struct {
	// BindAddress is host:port to bind. Port 0 picks an ephemeral port.
	BindAddress string

	// Socket options applied to the accepted connection.
	Socket SocketOptions

	// Logger receives connection state events. May be nil.
	Logger log.Logger

	// TransferID tags log events.
	TransferID string
}

// Acceptor is a bound listener that hands out exactly one connection.
type Acceptor struct {
	config   ServerConfig
	listener net.Listener
	local    endpoint.Endpoint
	logger   log.Logger

	mu       sync.Mutex
	accepted bool
	closed   bool
}

// Listen binds config.BindAddress and returns a one-shot Acceptor.
func Listen(config ServerConfig) (*Acceptor, error) {
	if config.BindAddress == "" {
		config.BindAddress = DefaultBindAddress
	}

	ln, err := net.Listen("tcp", config.BindAddress)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", config.BindAddress, err)
	}

	local, err := endpoint.FromNetAddr(ln.Addr())
	if err != nil {
		ln.Close()
		return nil, err
	}

	return &Acceptor{
		config:   config,
		listener: ln,
		local:    local,
		logger:   log.Or(config.Logger),
	}, nil
}

// Endpoint returns the resolved local endpoint, including the chosen port.
func (a *Acceptor) Endpoint() endpoint.Endpoint {
	return a.local
}

// Accept waits for the first inbound connection, then closes the listener so
// any later connection attempt is refused. Cancelling ctx aborts the wait.
func (a *Acceptor) Accept(ctx context.Context) (net.Conn, error) {
	a.mu.Lock()
	if a.accepted {
		a.mu.Unlock()
		return nil, ErrAcceptorUsed
	}
	if a.closed {
		a.mu.Unlock()
		return nil, ErrConnectionClosed
	}
	a.accepted = true
	a.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { a.listener.Close() })
	defer stop()

	conn, err := a.listener.Accept()
	a.Close()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("accept: %w", ctxErr)
		}
		return nil, fmt.Errorf("accept: %w", err)
	}

	if err := TuneConn(conn, a.config.Socket); err != nil {
		conn.Close()
		return nil, err
	}

	a.logger.Log(log.Event{
		Timestamp:  time.Now(),
		TransferID: a.config.TransferID,
		Layer:      log.LayerTransport,
		Category:   log.CategoryState,
		LocalRole:  log.RoleSender,
		LocalAddr:  conn.LocalAddr().String(),
		RemoteAddr: conn.RemoteAddr().String(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: "LISTENING",
			NewState: StateConnected.String(),
		},
	})

	return conn, nil
}

// Close releases the listener. Safe to call more than once.
func (a *Acceptor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	if err := a.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
