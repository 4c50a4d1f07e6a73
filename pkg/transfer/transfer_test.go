package transfer

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/tls"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcptransfer/tcptransfer-go/pkg/cert"
	"github.com/tcptransfer/tcptransfer-go/pkg/endpoint"
	"github.com/tcptransfer/tcptransfer-go/pkg/log"
	"github.com/tcptransfer/tcptransfer-go/pkg/stream"
	"github.com/tcptransfer/tcptransfer-go/pkg/transport"
)

const testTimeout = 10 * time.Second

// recorder is an Observer that captures everything it is told.
type recorder struct {
	mu          sync.Mutex
	states      []State
	listening   chan endpoint.Endpoint
	fingerprint []byte
	code        string
	started     bool
	total       uint64
	progress    []uint64
	result      *Result
}

func newRecorder() *recorder {
	return &recorder{listening: make(chan endpoint.Endpoint, 1)}
}

func (r *recorder) StateChanged(_, to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, to)
}

func (r *recorder) Listening(ep endpoint.Endpoint, fp []byte) {
	r.mu.Lock()
	r.fingerprint = fp
	r.mu.Unlock()
	r.listening <- ep
}

func (r *recorder) Secured(_ net.Addr, fp []byte, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fingerprint = fp
	r.code = code
}

func (r *recorder) PayloadStarted(total uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = true
	r.total = total
}

func (r *recorder) PayloadProgress(copied uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, copied)
}

func (r *recorder) Finished(result Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result = &result
}

func (r *recorder) visited() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State{StateInit}, r.states...)
}

type recordingLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (l *recordingLogger) Log(e log.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *recordingLogger) Events() []log.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]log.Event(nil), l.events...)
}

func testCertificate(t *testing.T) tls.Certificate {
	t.Helper()
	c, err := cert.GenerateSelfSigned("tcptransfer-test", time.Hour)
	require.NoError(t, err)
	return c
}

func writeSource(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.bin")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

type outcome struct {
	result Result
	err    error
}

// startSender runs a sender on loopback and returns its endpoint once bound.
func startSender(t *testing.T, ctx context.Context, config Config, path string) (endpoint.Endpoint, *recorder, <-chan outcome) {
	t.Helper()
	rec := newRecorder()
	config.BindAddress = "127.0.0.1:0"
	config.Observer = rec
	if len(config.TLS.Certificate.Certificate) == 0 {
		config.TLS.Certificate = testCertificate(t)
	}

	done := make(chan outcome, 1)
	go func() {
		result, err := New(config).Send(ctx, Send{Path: path})
		done <- outcome{result, err}
	}()

	select {
	case ep := <-rec.listening:
		return ep, rec, done
	case out := <-done:
		t.Fatalf("sender ended before listening: %v", out.err)
	case <-time.After(testTimeout):
		t.Fatal("sender did not start listening")
	}
	return endpoint.Endpoint{}, nil, nil
}

func waitOutcome(t *testing.T, done <-chan outcome) outcome {
	t.Helper()
	select {
	case out := <-done:
		return out
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for transfer")
		return outcome{}
	}
}

// fakeSender accepts one connection, completes the server handshake and hands
// the session to fn. The session is closed when fn returns.
func fakeSender(t *testing.T, fn func(s *transport.Session)) endpoint.Endpoint {
	t.Helper()
	acceptor, err := transport.Listen(transport.ServerConfig{BindAddress: "127.0.0.1:0"})
	require.NoError(t, err)
	t.Cleanup(func() { acceptor.Close() })

	tlsConfig, err := transport.NewServerTLSConfig(transport.TLSConfig{Certificate: testCertificate(t)})
	require.NoError(t, err)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		raw, err := acceptor.Accept(ctx)
		if err != nil {
			return
		}
		s := transport.NewServerSession(raw, tlsConfig, transport.SessionConfig{})
		defer s.Close()
		if err := s.Handshake(ctx); err != nil {
			return
		}
		fn(s)
	}()
	return acceptor.Endpoint()
}

func requireTransferError(t *testing.T, err error, kind Kind, state State) *Error {
	t.Helper()
	require.Error(t, err)
	var te *Error
	require.True(t, errors.As(err, &te), "expected *transfer.Error, got %T: %v", err, err)
	assert.Equal(t, kind, te.Kind, "kind: %v", err)
	assert.Equal(t, state, te.State, "state: %v", err)
	return te
}

func TestTransferRoundTrip(t *testing.T) {
	ctx := context.Background()
	payload := randomBytes(t, 3*stream.DefaultBufferSize+123)
	src := writeSource(t, payload)
	dest := filepath.Join(t.TempDir(), "received.bin")

	senderLog := &recordingLogger{}
	ep, senderRec, done := startSender(t, ctx, Config{Logger: senderLog}, src)

	receiverRec := newRecorder()
	receiver := New(Config{Observer: receiverRec, Destination: dest})
	result, err := receiver.Receive(ctx, Receive{Peer: ep})
	require.NoError(t, err)

	sent := waitOutcome(t, done)
	require.NoError(t, sent.err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, got), "payload mismatch")

	assert.Equal(t, uint64(len(payload)), result.Bytes)
	assert.Equal(t, uint64(len(payload)), sent.result.Bytes)
	assert.Equal(t, dest, result.Path)
	assert.Equal(t, RoleReceiver, result.Role)
	assert.Equal(t, RoleSender, sent.result.Role)
	assert.Equal(t, receiver.ID(), result.TransferID)

	assert.Equal(t, SenderStates, senderRec.visited())
	assert.Equal(t, ReceiverStates, receiverRec.visited())
	assert.Equal(t, StateDone, receiver.State())

	assert.Len(t, receiverRec.code, 6)
	assert.Equal(t, senderRec.code, receiverRec.code)
	assert.Equal(t, senderRec.fingerprint, receiverRec.fingerprint)

	require.NotNil(t, receiverRec.result)
	assert.Equal(t, result, *receiverRec.result)
	assert.True(t, receiverRec.started)
	assert.Equal(t, uint64(len(payload)), receiverRec.total)
	require.NotEmpty(t, receiverRec.progress)
	assert.Equal(t, uint64(len(payload)), receiverRec.progress[len(receiverRec.progress)-1])

	var final *log.ProgressEvent
	var transferStates int
	for _, e := range senderLog.Events() {
		if e.Progress != nil && e.Progress.Final {
			final = e.Progress
		}
		if e.StateChange != nil && e.StateChange.Entity == log.StateEntityTransfer {
			transferStates++
		}
		assert.Equal(t, sent.result.TransferID, e.TransferID)
	}
	require.NotNil(t, final)
	assert.Equal(t, uint64(len(payload)), final.Bytes)
	assert.Equal(t, len(SenderStates)-1, transferStates)
}

func TestTransferEmptyFile(t *testing.T) {
	ctx := context.Background()
	src := writeSource(t, nil)
	dest := filepath.Join(t.TempDir(), "received.bin")

	ep, _, done := startSender(t, ctx, Config{}, src)

	result, err := New(Config{Destination: dest}).Receive(ctx, Receive{Peer: ep})
	require.NoError(t, err)
	require.NoError(t, waitOutcome(t, done).err)

	assert.Equal(t, uint64(0), result.Bytes)
	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestTransferOverwritesDestination(t *testing.T) {
	ctx := context.Background()
	src := writeSource(t, []byte("short"))
	dest := filepath.Join(t.TempDir(), "received.bin")
	require.NoError(t, os.WriteFile(dest, bytes.Repeat([]byte("x"), 1000), 0o600))

	ep, _, done := startSender(t, ctx, Config{}, src)
	_, err := New(Config{Destination: dest}).Receive(ctx, Receive{Peer: ep})
	require.NoError(t, err)
	require.NoError(t, waitOutcome(t, done).err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "short", string(got))
}

func TestReceiveMalformedEndpoint(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "received.bin")
	rec := newRecorder()
	c := New(Config{
		Destination: dest,
		Observer:    rec,
		PeerSource: func(context.Context) (endpoint.Endpoint, error) {
			return endpoint.Parse("not-an-endpoint")
		},
	})

	_, err := c.Receive(context.Background(), Receive{})
	requireTransferError(t, err, KindConfiguration, StateReadPeer)
	assert.ErrorIs(t, err, endpoint.ErrInvalidEndpoint)
	assert.Equal(t, StateFailed, c.State())
	assert.Equal(t, []State{StateInit, StateReadPeer, StateFailed}, rec.visited())

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr), "destination must not be created")
}

func TestReceiveWithoutPeer(t *testing.T) {
	_, err := New(Config{}).Receive(context.Background(), Receive{})
	requireTransferError(t, err, KindConfiguration, StateReadPeer)
	assert.ErrorIs(t, err, ErrNoPeer)
}

func TestReceiveConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ep, err := endpoint.FromNetAddr(ln.Addr())
	require.NoError(t, err)
	ln.Close()

	dest := filepath.Join(t.TempDir(), "received.bin")
	_, err = New(Config{Destination: dest}).Receive(context.Background(), Receive{Peer: ep})
	requireTransferError(t, err, KindTransport, StateConnect)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestReceiveTruncatedPayload(t *testing.T) {
	ep := fakeSender(t, func(s *transport.Session) {
		_ = transport.WriteSizePrefix(s, 100)
		_, _ = s.Write(bytes.Repeat([]byte{0xAB}, 10))
	})

	dest := filepath.Join(t.TempDir(), "received.bin")
	_, err := New(Config{Destination: dest}).Receive(context.Background(), Receive{Peer: ep})
	requireTransferError(t, err, KindProtocol, StateCopyPayload)
	assert.ErrorIs(t, err, stream.ErrTruncated)

	// Partial output stays on disk.
	got, readErr := os.ReadFile(dest)
	require.NoError(t, readErr)
	assert.Equal(t, bytes.Repeat([]byte{0xAB}, 10), got)
}

func TestReceiveTruncatedSizePrefix(t *testing.T) {
	ep := fakeSender(t, func(s *transport.Session) {
		_, _ = s.Write([]byte{1, 2, 3})
	})

	dest := filepath.Join(t.TempDir(), "received.bin")
	_, err := New(Config{Destination: dest}).Receive(context.Background(), Receive{Peer: ep})
	requireTransferError(t, err, KindProtocol, StateReadSize)
	assert.ErrorIs(t, err, transport.ErrSizePrefixTruncated)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestReceiveStopsAtDeclaredSize(t *testing.T) {
	ep := fakeSender(t, func(s *transport.Session) {
		_ = transport.WriteSizePrefix(s, 5)
		_, _ = s.Write([]byte("hello, trailing bytes"))
	})

	dest := filepath.Join(t.TempDir(), "received.bin")
	result, err := New(Config{Destination: dest}).Receive(context.Background(), Receive{Peer: ep})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), result.Bytes)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestTransferPinnedFingerprint(t *testing.T) {
	ctx := context.Background()
	src := writeSource(t, []byte("pinned payload"))
	certificate := testCertificate(t)
	pin := cert.Fingerprint(certificate.Certificate[0])

	ep, _, done := startSender(t, ctx, Config{TLS: transport.TLSConfig{Certificate: certificate}}, src)

	dest := filepath.Join(t.TempDir(), "received.bin")
	_, err := New(Config{
		Destination: dest,
		TLS:         transport.TLSConfig{PinnedFingerprint: pin},
	}).Receive(ctx, Receive{Peer: ep})
	require.NoError(t, err)
	require.NoError(t, waitOutcome(t, done).err)
}

func TestTransferPinMismatch(t *testing.T) {
	ctx := context.Background()
	src := writeSource(t, []byte("never sent"))
	ep, _, done := startSender(t, ctx, Config{}, src)

	dest := filepath.Join(t.TempDir(), "received.bin")
	_, err := New(Config{
		Destination: dest,
		TLS:         transport.TLSConfig{PinnedFingerprint: randomBytes(t, cert.FingerprintSize)},
	}).Receive(ctx, Receive{Peer: ep})
	requireTransferError(t, err, KindHandshake, StateTLSConnect)
	assert.ErrorIs(t, err, transport.ErrFingerprintMismatch)

	sent := waitOutcome(t, done)
	requireTransferError(t, sent.err, KindHandshake, StateTLSAccept)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSendMissingFile(t *testing.T) {
	rec := newRecorder()
	c := New(Config{TLS: transport.TLSConfig{Certificate: testCertificate(t)}, Observer: rec})
	_, err := c.Send(context.Background(), Send{Path: filepath.Join(t.TempDir(), "missing")})
	requireTransferError(t, err, KindConfiguration, StateOpenFile)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, []State{StateInit, StateOpenFile, StateFailed}, rec.visited())
}

func TestSendDirectory(t *testing.T) {
	c := New(Config{TLS: transport.TLSConfig{Certificate: testCertificate(t)}})
	_, err := c.Send(context.Background(), Send{Path: t.TempDir()})
	requireTransferError(t, err, KindConfiguration, StateOpenFile)
	assert.ErrorIs(t, err, ErrNotRegularFile)
}

func TestSendWithoutCertificate(t *testing.T) {
	_, err := New(Config{}).Send(context.Background(), Send{Path: writeSource(t, []byte("x"))})
	requireTransferError(t, err, KindConfiguration, StateInit)
	assert.ErrorIs(t, err, transport.ErrNoCertificate)
}

func TestSendBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	c := New(Config{
		BindAddress: ln.Addr().String(),
		TLS:         transport.TLSConfig{Certificate: testCertificate(t)},
	})
	_, err = c.Send(context.Background(), Send{Path: writeSource(t, []byte("x"))})
	requireTransferError(t, err, KindTransport, StateBindListen)
}

func TestSendCancelledWhileAccepting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, _, done := startSender(t, ctx, Config{}, writeSource(t, []byte("x")))
	cancel()

	out := waitOutcome(t, done)
	requireTransferError(t, out.err, KindTransport, StateAccept)
	assert.ErrorIs(t, out.err, context.Canceled)
}

func TestInvalidBufferSize(t *testing.T) {
	_, err := New(Config{BufferSize: 1}).Receive(context.Background(), Receive{})
	requireTransferError(t, err, KindConfiguration, StateInit)
	assert.ErrorIs(t, err, stream.ErrBufferSize)
}

func TestCoordinatorSingleUse(t *testing.T) {
	c := New(Config{})
	_, err := c.Receive(context.Background(), Receive{})
	require.Error(t, err)

	_, err = c.Run(context.Background(), Receive{})
	requireTransferError(t, err, KindConfiguration, StateFailed)
	assert.ErrorIs(t, err, ErrCoordinatorUsed)
}

func TestRunDispatchesByRole(t *testing.T) {
	ctx := context.Background()
	src := writeSource(t, []byte("dispatch"))
	ep, _, done := startSender(t, ctx, Config{}, src)

	dest := filepath.Join(t.TempDir(), "received.bin")
	result, err := New(Config{}).Run(ctx, Receive{Peer: ep, Dest: dest})
	require.NoError(t, err)
	assert.Equal(t, RoleReceiver, result.Role)
	assert.Equal(t, dest, result.Path)
	require.NoError(t, waitOutcome(t, done).err)
}

func TestResultBytesPerSecond(t *testing.T) {
	assert.Equal(t, float64(0), Result{Bytes: 10}.BytesPerSecond())
	assert.InDelta(t, 2048.0, Result{Bytes: 1024, Elapsed: 500 * time.Millisecond}.BytesPerSecond(), 0.001)
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "TLS_ACCEPT", StateTLSAccept.String())
	assert.Equal(t, "OPEN_SINK", StateOpenSink.String())
	assert.Equal(t, "UNKNOWN", State(999).String())
	assert.True(t, StateDone.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateCopyPayload.Terminal())
}

func TestErrorFormatting(t *testing.T) {
	err := &Error{Kind: KindProtocol, State: StateCopyPayload, Err: stream.ErrTruncated}
	assert.Equal(t, "COPY_PAYLOAD failed (protocol error): payload truncated", err.Error())

	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindProtocol, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestTransferPayloadSizes(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"single byte", []byte{0x5a}},
		{"one buffer", bytes.Repeat([]byte{0x42}, stream.DefaultBufferSize)},
		{"10 MiB", randomBytes(t, 10<<20)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			src := writeSource(t, tt.payload)
			dest := filepath.Join(t.TempDir(), "received.bin")

			ep, _, done := startSender(t, ctx, Config{}, src)
			result, err := New(Config{Destination: dest}).Receive(ctx, Receive{Peer: ep})
			require.NoError(t, err)
			require.NoError(t, waitOutcome(t, done).err)

			got, err := os.ReadFile(dest)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(tt.payload, got), "payload mismatch")
			assert.Equal(t, uint64(len(tt.payload)), result.Bytes)
		})
	}
}

func TestStreamSendIgnoresGrowth(t *testing.T) {
	src := writeSource(t, []byte("0123456789"))
	f, err := os.Open(src)
	require.NoError(t, err)
	defer f.Close()

	appender, err := os.OpenFile(src, os.O_WRONLY|os.O_APPEND, 0)
	require.NoError(t, err)
	_, err = appender.Write([]byte("appended"))
	require.NoError(t, err)
	require.NoError(t, appender.Close())

	var dst bytes.Buffer
	n, err := streamSend(&dst, f, 10, stream.Options{})
	require.NoError(t, err)
	assert.Equal(t, uint64(10), n)
	assert.Equal(t, "0123456789", dst.String())
}

func TestStreamSendDetectsShrink(t *testing.T) {
	src := writeSource(t, []byte("0123456789"))
	f, err := os.Open(src)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, os.Truncate(src, 4))

	var dst bytes.Buffer
	n, err := streamSend(&dst, f, 10, stream.Options{})
	assert.ErrorIs(t, err, ErrSourceChanged)
	assert.Equal(t, uint64(4), n)
	assert.Equal(t, "0123", dst.String())
}

func TestReceiveConnectRetries(t *testing.T) {
	acceptor, err := transport.Listen(transport.ServerConfig{BindAddress: "127.0.0.1:0"})
	require.NoError(t, err)
	ep := acceptor.Endpoint()
	require.NoError(t, acceptor.Close())

	logger := &recordingLogger{}
	_, err = New(Config{
		Destination:    filepath.Join(t.TempDir(), "out.bin"),
		ConnectRetries: 1,
		Logger:         logger,
	}).Receive(context.Background(), Receive{Peer: ep})
	requireTransferError(t, err, KindTransport, StateConnect)

	var retries int
	for _, e := range logger.Events() {
		if e.Error != nil && e.Error.Layer == log.LayerTransport {
			retries++
		}
	}
	assert.Equal(t, 1, retries)
}
