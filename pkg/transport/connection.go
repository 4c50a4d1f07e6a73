package transport

import "errors"

// ConnectionState is the lifecycle state of a Session.
type ConnectionState int

const (
	// StateConnected is a raw TCP connection with no TLS yet.
	StateConnected ConnectionState = iota

	// StateHandshaking is a TLS handshake in progress.
	StateHandshaking

	// StateEstablished is a completed handshake; payload I/O is allowed.
	StateEstablished

	// StateClosed is a closed session. It cannot be reopened.
	StateClosed
)

// String returns the connection state name.
func (s ConnectionState) String() string {
	switch s {
	case StateConnected:
		return "CONNECTED"
	case StateHandshaking:
		return "HANDSHAKING"
	case StateEstablished:
		return "ESTABLISHED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Session errors.
var (
	ErrHandshakeRequired = errors.New("TLS handshake has not completed")
	ErrHandshakeDone     = errors.New("TLS handshake already performed")
	ErrConnectionClosed  = errors.New("connection closed")
	ErrAcceptorUsed      = errors.New("acceptor already produced a connection")
)

// SessionRole selects the TLS side of a Session.
type SessionRole int

const (
	// ServerRole performs the server side of the handshake (the sender).
	ServerRole SessionRole = iota
	// ClientRole performs the client side of the handshake (the receiver).
	ClientRole
)

// String returns the role name.
func (r SessionRole) String() string {
	if r == ServerRole {
		return "SERVER"
	}
	return "CLIENT"
}
