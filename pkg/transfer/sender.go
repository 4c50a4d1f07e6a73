package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tcptransfer/tcptransfer-go/pkg/cert"
	"github.com/tcptransfer/tcptransfer-go/pkg/stream"
	"github.com/tcptransfer/tcptransfer-go/pkg/transport"
)

// Send serves the file at role.Path to the first peer that connects.
func (c *Coordinator) Send(ctx context.Context, role Send) (Result, error) {
	if err := c.begin(RoleSender); err != nil {
		return Result{}, err
	}

	tlsConfig, err := transport.NewServerTLSConfig(c.config.TLS)
	if err != nil {
		return Result{}, c.fail(KindConfiguration, err)
	}
	fingerprint := cert.Fingerprint(c.config.TLS.Certificate.Certificate[0])

	c.enter(StateOpenFile)
	file, size, err := openSource(role.Path)
	if err != nil {
		return Result{}, c.fail(KindConfiguration, err)
	}
	defer file.Close()

	c.enter(StateBindListen)
	acceptor, err := transport.Listen(transport.ServerConfig{
		BindAddress: c.config.BindAddress,
		Socket:      c.config.Socket,
		Logger:      c.config.Logger,
		TransferID:  c.id,
	})
	if err != nil {
		return Result{}, c.fail(KindTransport, err)
	}
	defer acceptor.Close()

	c.enter(StatePrintEndpoint)
	c.observer.Listening(acceptor.Endpoint(), fingerprint)

	c.enter(StateAccept)
	raw, err := acceptor.Accept(ctx)
	if err != nil {
		return Result{}, c.fail(KindTransport, err)
	}

	c.enter(StateTLSAccept)
	session := transport.NewServerSession(raw, tlsConfig, c.sessionConfig())
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
	c.observer.Secured(session.RemoteAddr(), fingerprint, code)

	c.enter(StateWriteSize)
	codec := transport.NewPrefixCodec(session)
	codec.SetLogger(c.config.Logger, c.id, c.logRole())
	if err := codec.WritePrefix(size); err != nil {
		kind, err := copyError(ctx, err)
		return Result{}, c.fail(kind, err)
	}

	c.enter(StateCopyPayload)
	c.observer.PayloadStarted(size)
	start := time.Now()
	copied, err := streamSend(session, file, size, c.copyOptions(size, start))
	elapsed := time.Since(start)
	if err != nil {
		kind, err := copyError(ctx, err)
		return Result{}, c.fail(kind, err)
	}
	c.logProgress(copied, size, elapsed, true)

	// The payload is fully written; a close_notify failure here only means
	// the receiver hung up first.
	_ = session.Close()

	c.enter(StateReport)
	result := Result{
		TransferID: c.id,
		Role:       RoleSender,
		Bytes:      copied,
		Elapsed:    elapsed,
		Peer:       session.RemoteAddr().String(),
		Path:       role.Path,
	}
	c.observer.Finished(result)

	c.enter(StateDone)
	return result, nil
}

// openSource opens path and captures its size. The announced size is fixed
// at this point; growth afterwards is not sent and shrinkage fails the copy.
func openSource(path string) (*os.File, uint64, error) {
	if path == "" {
		return nil, 0, fmt.Errorf("open source: %w", os.ErrInvalid)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open source: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, fmt.Errorf("stat source: %w", err)
	}
	if !info.Mode().IsRegular() {
		file.Close()
		return nil, 0, fmt.Errorf("open source %s: %w", path, ErrNotRegularFile)
	}
	return file, uint64(info.Size()), nil
}

func streamSend(dst io.Writer, file *os.File, size uint64, opts stream.Options) (uint64, error) {
	copied, err := stream.SendCopy(dst, io.LimitReader(file, int64(size)), opts)
	if err != nil {
		return copied, err
	}
	if copied != size {
		return copied, fmt.Errorf("%w: sent %d of %d bytes", ErrSourceChanged, copied, size)
	}
	return copied, nil
}
