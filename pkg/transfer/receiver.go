package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tcptransfer/tcptransfer-go/pkg/endpoint"
	"github.com/tcptransfer/tcptransfer-go/pkg/stream"
	"github.com/tcptransfer/tcptransfer-go/pkg/transport"
)

// Receive connects to the sender and writes the payload to the destination.
// On failure after OPEN_SINK the partially written file is kept.
func (c *Coordinator) Receive(ctx context.Context, role Receive) (Result, error) {
	if err := c.begin(RoleReceiver); err != nil {
		return Result{}, err
	}

	dest := role.Dest
	if dest == "" {
		dest = c.config.Destination
	}
	tlsConfig := transport.NewClientTLSConfig(c.config.TLS)

	c.enter(StateReadPeer)
	peer, err := c.resolvePeer(ctx, role.Peer)
	if err != nil {
		return Result{}, c.fail(KindConfiguration, err)
	}

	c.enter(StateConnect)
	raw, err := transport.Dial(ctx, peer, transport.ClientConfig{
		ConnectTimeout: c.config.ConnectTimeout,
		Retries:        c.config.ConnectRetries,
		Socket:         c.config.Socket,
		Logger:         c.config.Logger,
		TransferID:     c.id,
	})
	if err != nil {
		return Result{}, c.fail(KindTransport, err)
	}

	c.enter(StateTLSConnect)
	session := transport.NewClientSession(raw, tlsConfig, c.sessionConfig())
	defer session.Close()
	stop := context.AfterFunc(ctx, func() { raw.Close() })
	defer stop()

	if err := session.Handshake(ctx); err != nil {
		return Result{}, c.fail(KindHandshake, err)
	}
	code, err := session.ConfirmationCode()
	if err != nil {
		return Result{}, c.fail(KindHandshake, err)
	}
	c.observer.Secured(session.RemoteAddr(), session.ServerFingerprint(), code)

	c.enter(StateReadSize)
	codec := transport.NewPrefixCodec(session)
	codec.SetLogger(c.config.Logger, c.id, c.logRole())
	size, err := codec.ReadPrefix()
	if err != nil {
		if errors.Is(err, transport.ErrSizePrefixTruncated) && ctx.Err() == nil {
			return Result{}, c.fail(KindProtocol, err)
		}
		kind, err := copyError(ctx, err)
		return Result{}, c.fail(kind, err)
	}

	c.enter(StateOpenSink)
	sink, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return Result{}, c.fail(KindIO, fmt.Errorf("open destination: %w", err))
	}

	c.enter(StateCopyPayload)
	c.observer.PayloadStarted(size)
	start := time.Now()
	copied, err := stream.ReceiveCopy(sink, session, size, c.copyOptions(size, start))
	elapsed := time.Since(start)
	closeErr := sink.Close()
	if err != nil {
		kind, err := copyError(ctx, err)
		return Result{}, c.fail(kind, err)
	}
	if closeErr != nil {
		return Result{}, c.fail(KindIO, fmt.Errorf("close destination: %w", closeErr))
	}
	c.logProgress(copied, size, elapsed, true)

	c.enter(StateReport)
	result := Result{
		TransferID: c.id,
		Role:       RoleReceiver,
		Bytes:      copied,
		Elapsed:    elapsed,
		Peer:       session.RemoteAddr().String(),
		Path:       dest,
	}
	c.observer.Finished(result)

	c.enter(StateDone)
	return result, nil
}

func (c *Coordinator) resolvePeer(ctx context.Context, peer endpoint.Endpoint) (endpoint.Endpoint, error) {
	if peer.IsValid() {
		return peer, nil
	}
	if c.config.PeerSource == nil {
		return endpoint.Endpoint{}, ErrNoPeer
	}
	peer, err := c.config.PeerSource(ctx)
	if err != nil {
		return endpoint.Endpoint{}, fmt.Errorf("read peer: %w", err)
	}
	if !peer.IsValid() {
		return endpoint.Endpoint{}, fmt.Errorf("read peer: %w", endpoint.ErrInvalidEndpoint)
	}
	return peer, nil
}
