package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/tcptransfer/tcptransfer-go/pkg/endpoint"
	"github.com/tcptransfer/tcptransfer-go/pkg/log"
)

// ClientConfig configures the receiver's outbound connection.
type ClientConfig struct {
	// ConnectTimeout bounds each TCP connect attempt.
	// Zero means no bound.
	ConnectTimeout time.Duration

	// Socket options applied after connecting.
	Socket SocketOptions

	// Retries is how many more connects are attempted after the first one
	// fails. Zero means a single attempt.
	Retries int

	// Backoff spaces the retries.
	Backoff BackoffConfig

	// Logger receives connection state events. May be nil.
	Logger log.Logger

	// TransferID tags log events.
	TransferID string
}

// Dial opens a TCP connection to peer, retrying up to config.Retries times.
// Each attempt is bounded by ConnectTimeout on its own.
func Dial(ctx context.Context, peer endpoint.Endpoint, config ClientConfig) (net.Conn, error) {
	if !peer.IsValid() {
		return nil, fmt.Errorf("dial: %w", endpoint.ErrInvalidEndpoint)
	}

	logger := log.Or(config.Logger)
	backoff := NewBackoff(config.Backoff)
	for {
		conn, err := dialOnce(ctx, peer, config)
		if err == nil || backoff.Attempts() >= config.Retries || ctx.Err() != nil {
			return conn, err
		}

		delay := backoff.Next()
		logger.Log(log.Event{
			Timestamp:  time.Now(),
			TransferID: config.TransferID,
			Layer:      log.LayerTransport,
			Category:   log.CategoryError,
			LocalRole:  log.RoleReceiver,
			RemoteAddr: peer.String(),
			Error: &log.ErrorEventData{
				Layer:   log.LayerTransport,
				Message: err.Error(),
				Context: fmt.Sprintf("connect attempt %d, retrying in %s", backoff.Attempts(), delay.Round(time.Millisecond)),
			},
		})

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Join(err, ctx.Err())
		}
	}
}

func dialOnce(ctx context.Context, peer endpoint.Endpoint, config ClientConfig) (net.Conn, error) {
	if config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.ConnectTimeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", peer.String())
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", peer, err)
	}

	if err := TuneConn(conn, config.Socket); err != nil {
		conn.Close()
		return nil, err
	}

	log.Or(config.Logger).Log(log.Event{
		Timestamp:  time.Now(),
		TransferID: config.TransferID,
		Layer:      log.LayerTransport,
		Category:   log.CategoryState,
		LocalRole:  log.RoleReceiver,
		LocalAddr:  conn.LocalAddr().String(),
		RemoteAddr: conn.RemoteAddr().String(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: "CONNECTING",
			NewState: StateConnected.String(),
		},
	})

	return conn, nil
}
