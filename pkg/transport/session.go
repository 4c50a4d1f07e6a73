package transport

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/hkdf"

	"github.com/tcptransfer/tcptransfer-go/pkg/cert"
	"github.com/tcptransfer/tcptransfer-go/pkg/log"
)

// Keying material labels for the confirmation code.
const (
	confirmExporterLabel = "EXPORTER-tcptransfer-confirm"
	confirmHKDFInfo      = "tcptransfer confirmation code v1"
	confirmDigits        = 1_000_000
)

// SessionConfig holds per-session settings.
type SessionConfig struct {
	// HandshakeTimeout bounds the TLS handshake when ctx has no deadline.
	// Zero means no bound.
	HandshakeTimeout time.Duration

	// IdleTimeout bounds every individual Read and Write after the
	// handshake. Zero means no bound.
	IdleTimeout time.Duration

	// Logger receives session events. May be nil.
	Logger log.Logger

	// TransferID tags log events.
	TransferID string
}

// Session owns a TLS connection for a single transfer. It is not safe for
// concurrent use; the transfer has one reader or one writer at a time.
type Session struct {
	raw    net.Conn
	conn   *tls.Conn
	role   SessionRole
	config SessionConfig
	logger log.Logger

	// serverCert is the certificate a server session presents.
	serverCert *tls.Certificate

	state     ConnectionState
	tlsState  tls.ConnectionState
	closeOnce sync.Once
	closeErr  error
}

// NewServerSession wraps raw for the server side of the handshake.
func NewServerSession(raw net.Conn, tlsConfig *tls.Config, config SessionConfig) *Session {
	s := newSession(raw, tls.Server(raw, tlsConfig), ServerRole, config)
	if len(tlsConfig.Certificates) > 0 {
		s.serverCert = &tlsConfig.Certificates[0]
	}
	return s
}

// NewClientSession wraps raw for the client side of the handshake.
func NewClientSession(raw net.Conn, tlsConfig *tls.Config, config SessionConfig) *Session {
	return newSession(raw, tls.Client(raw, tlsConfig), ClientRole, config)
}

func newSession(raw net.Conn, conn *tls.Conn, role SessionRole, config SessionConfig) *Session {
	return &Session{
		raw:    raw,
		conn:   conn,
		role:   role,
		config: config,
		logger: log.Or(config.Logger),
		state:  StateConnected,
	}
}

// Handshake runs the TLS handshake. No application data is read or written
// before it returns nil. On failure the underlying connection is closed.
func (s *Session) Handshake(ctx context.Context) error {
	switch s.state {
	case StateEstablished:
		return ErrHandshakeDone
	case StateClosed:
		return ErrConnectionClosed
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.config.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.HandshakeTimeout)
		defer cancel()
	}

	s.setState(StateHandshaking, "")
	start := time.Now()

	if err := s.conn.HandshakeContext(ctx); err != nil {
		s.fail(err)
		return fmt.Errorf("TLS handshake: %w", err)
	}

	state := s.conn.ConnectionState()
	if err := VerifyConnection(state); err != nil {
		s.fail(err)
		return err
	}
	s.tlsState = state

	s.logger.Log(log.Event{
		Timestamp:  time.Now(),
		TransferID: s.config.TransferID,
		Layer:      log.LayerTLS,
		Category:   log.CategoryHandshake,
		LocalRole:  s.logRole(),
		RemoteAddr: s.raw.RemoteAddr().String(),
		Handshake: &log.HandshakeEvent{
			Version:         state.Version,
			CipherSuite:     state.CipherSuite,
			ServerName:      state.ServerName,
			PeerFingerprint: s.peerFingerprintString(),
			Duration:        time.Since(start),
		},
	})
	s.setState(StateEstablished, "")
	return nil
}

// Read reads payload bytes from the peer.
func (s *Session) Read(p []byte) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if s.config.IdleTimeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.config.IdleTimeout)); err != nil {
			return 0, err
		}
	}
	return s.conn.Read(p)
}

// Write writes payload bytes to the peer.
func (s *Session) Write(p []byte) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if s.config.IdleTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.config.IdleTimeout)); err != nil {
			return 0, err
		}
	}
	return s.conn.Write(p)
}

// Close sends close_notify (when the handshake completed) and closes the TCP
// connection. Later calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.config.IdleTimeout > 0 {
			// Bound the close_notify write so a stalled peer cannot hang Close.
			_ = s.raw.SetWriteDeadline(time.Now().Add(s.config.IdleTimeout))
		}
		err := s.conn.Close()
		if err != nil && errors.Is(err, net.ErrClosed) {
			err = nil
		}
		s.closeErr = err
		s.setState(StateClosed, "")
	})
	return s.closeErr
}

// State returns the session's lifecycle state.
func (s *Session) State() ConnectionState {
	return s.state
}

// Role returns which side of the handshake this session performs.
func (s *Session) Role() SessionRole {
	return s.role
}

// TLSState returns the negotiated parameters. Empty before Handshake.
func (s *Session) TLSState() tls.ConnectionState {
	return s.tlsState
}

// LocalAddr returns the local network address.
func (s *Session) LocalAddr() net.Addr {
	return s.raw.LocalAddr()
}

// RemoteAddr returns the peer's network address.
func (s *Session) RemoteAddr() net.Addr {
	return s.raw.RemoteAddr()
}

// ServerFingerprint returns the SHA-256 of the server leaf certificate: the
// peer's for a client session, the local one for a server session.
func (s *Session) ServerFingerprint() []byte {
	if s.role == ClientRole {
		if len(s.tlsState.PeerCertificates) == 0 {
			return nil
		}
		return cert.Fingerprint(s.tlsState.PeerCertificates[0].Raw)
	}
	if s.serverCert != nil && len(s.serverCert.Certificate) > 0 {
		return cert.Fingerprint(s.serverCert.Certificate[0])
	}
	return nil
}

// ConfirmationCode derives a six-digit code both peers compute identically
// for this session. A man in the middle terminating TLS on each side would
// produce two different codes.
func (s *Session) ConfirmationCode() (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	ekm, err := s.tlsState.ExportKeyingMaterial(confirmExporterLabel, nil, 32)
	if err != nil {
		return "", fmt.Errorf("export keying material: %w", err)
	}
	return deriveConfirmationCode(ekm)
}

func deriveConfirmationCode(secret []byte) (string, error) {
	var out [4]byte
	r := hkdf.New(sha256.New, secret, nil, []byte(confirmHKDFInfo))
	if _, err := io.ReadFull(r, out[:]); err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", binary.BigEndian.Uint32(out[:])%confirmDigits), nil
}

func (s *Session) ready() error {
	switch s.state {
	case StateEstablished:
		return nil
	case StateClosed:
		return ErrConnectionClosed
	default:
		return ErrHandshakeRequired
	}
}

func (s *Session) peerFingerprintString() string {
	if fp := s.ServerFingerprint(); fp != nil {
		return cert.FormatFingerprint(fp)
	}
	return ""
}

func (s *Session) fail(err error) {
	s.logger.Log(log.Event{
		Timestamp:  time.Now(),
		TransferID: s.config.TransferID,
		Layer:      log.LayerTLS,
		Category:   log.CategoryError,
		LocalRole:  s.logRole(),
		RemoteAddr: s.raw.RemoteAddr().String(),
		Error: &log.ErrorEventData{
			Layer:   log.LayerTLS,
			Message: err.Error(),
			Kind:    "handshake",
			Context: s.role.String() + " handshake",
		},
	})
	s.raw.Close()
	s.closeOnce.Do(func() {})
	s.setState(StateClosed, err.Error())
}

func (s *Session) setState(next ConnectionState, reason string) {
	prev := s.state
	if prev == next {
		return
	}
	s.state = next
	s.logger.Log(log.Event{
		Timestamp:  time.Now(),
		TransferID: s.config.TransferID,
		Layer:      log.LayerTLS,
		Category:   log.CategoryState,
		LocalRole:  s.logRole(),
		RemoteAddr: s.raw.RemoteAddr().String(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySession,
			OldState: prev.String(),
			NewState: next.String(),
			Reason:   reason,
		},
	})
}

func (s *Session) logRole() log.Role {
	if s.role == ServerRole {
		return log.RoleSender
	}
	return log.RoleReceiver
}
