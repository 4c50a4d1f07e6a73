package transport

import (
	"context"
	"crypto/tls"
	"io"
	"net"

	"github.com/tcptransfer/tcptransfer-go/pkg/endpoint"
)

// SecureConn is a handshaken byte stream carrying one transfer.
// Implemented by Session.
type SecureConn interface {
	io.ReadWriteCloser

	// Handshake performs the TLS handshake for this side.
	Handshake(ctx context.Context) error

	// TLSState returns the negotiated parameters.
	TLSState() tls.ConnectionState

	// RemoteAddr returns the peer address.
	RemoteAddr() net.Addr

	// ServerFingerprint returns the SHA-256 of the server leaf certificate.
	ServerFingerprint() []byte

	// ConfirmationCode returns the six-digit session code.
	ConfirmationCode() (string, error)
}

// OneShotAcceptor hands out a single inbound connection.
// Implemented by Acceptor.
type OneShotAcceptor interface {
	// Endpoint returns the bound local endpoint.
	Endpoint() endpoint.Endpoint

	// Accept blocks for the one connection.
	Accept(ctx context.Context) (net.Conn, error)

	// Close releases the listener.
	Close() error
}

// Compile-time interface satisfaction checks.
var (
	_ SecureConn      = (*Session)(nil)
	_ OneShotAcceptor = (*Acceptor)(nil)
)
