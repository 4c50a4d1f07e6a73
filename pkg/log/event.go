package log

import (
	"crypto/tls"
	"fmt"
	"time"
)

// Event is one entry in a transfer trace.
// CBOR encoding uses integer keys; exactly one of the payload pointers is set.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// TransferID identifies the transfer (UUID).
	TransferID string `cbor:"2,keyasint"`

	// Direction of data flow relative to the local peer.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// LocalRole is the role of the peer that wrote the event.
	LocalRole Role `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address (IP:port), once known.
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// LocalAddr is the local address (IP:port), once known.
	LocalAddr string `cbor:"8,keyasint,omitempty"`

	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"`
	Handshake   *HandshakeEvent   `cbor:"12,keyasint,omitempty"`
	Progress    *ProgressEvent    `cbor:"13,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"`
}

// Direction indicates the direction of data flow.
type Direction uint8

const (
	// DirectionNone marks events that carry no data, such as state changes,
	// handshakes and errors.
	DirectionNone Direction = 0
	// DirectionIn indicates data read from the peer.
	DirectionIn Direction = 1
	// DirectionOut indicates data written to the peer.
	DirectionOut Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionNone:
		return "-"
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which part of the stack captured the event.
type Layer uint8

const (
	// LayerTransport is the TCP endpoint and the size prefix codec.
	LayerTransport Layer = 0
	// LayerTLS is the TLS session.
	LayerTLS Layer = 1
	// LayerTransfer is the transfer coordinator.
	LayerTransfer Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerTLS:
		return "TLS"
	case LayerTransfer:
		return "TRANSFER"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryFrame is a framing unit crossing the wire (the size prefix).
	CategoryFrame Category = 0
	// CategoryState is a state change.
	CategoryState Category = 1
	// CategoryHandshake is a completed TLS handshake.
	CategoryHandshake Category = 2
	// CategoryProgress is a payload progress checkpoint.
	CategoryProgress Category = 3
	// CategoryError is a failure.
	CategoryError Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryFrame:
		return "FRAME"
	case CategoryState:
		return "STATE"
	case CategoryHandshake:
		return "HANDSHAKE"
	case CategoryProgress:
		return "PROGRESS"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role is the local peer's role in the transfer.
type Role uint8

const (
	// RoleSender is the peer that listens and streams the file.
	RoleSender Role = 0
	// RoleReceiver is the peer that dials and writes the file.
	RoleReceiver Role = 1
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleSender:
		return "SENDER"
	case RoleReceiver:
		return "RECEIVER"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures the size prefix as written or read.
type FrameEvent struct {
	// Size is the number of bytes on the wire.
	Size int `cbor:"1,keyasint"`

	// Data is the raw bytes.
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Value is the decoded payload length.
	Value uint64 `cbor:"3,keyasint"`
}

// StateChangeEvent captures connection, session and transfer lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what changed state.
type StateEntity uint8

const (
	// StateEntityConnection is the TCP connection.
	StateEntityConnection StateEntity = 0
	// StateEntitySession is the TLS session.
	StateEntitySession StateEntity = 1
	// StateEntityTransfer is the coordinator state machine.
	StateEntityTransfer StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySession:
		return "SESSION"
	case StateEntityTransfer:
		return "TRANSFER"
	default:
		return "UNKNOWN"
	}
}

// HandshakeEvent records the negotiated TLS parameters.
type HandshakeEvent struct {
	Version         uint16        `cbor:"1,keyasint"`
	CipherSuite     uint16        `cbor:"2,keyasint"`
	ServerName      string        `cbor:"3,keyasint,omitempty"`
	PeerFingerprint string        `cbor:"4,keyasint,omitempty"`
	Duration        time.Duration `cbor:"5,keyasint"`
}

// VersionName returns the TLS version as text, e.g. "TLS 1.3".
func (h *HandshakeEvent) VersionName() string {
	return tls.VersionName(h.Version)
}

// CipherSuiteName returns the IANA name of the negotiated suite.
func (h *HandshakeEvent) CipherSuiteName() string {
	return tls.CipherSuiteName(h.CipherSuite)
}

// ProgressEvent is a payload checkpoint.
type ProgressEvent struct {
	// Bytes copied so far.
	Bytes uint64 `cbor:"1,keyasint"`

	// Total expected bytes.
	Total uint64 `cbor:"2,keyasint"`

	// Elapsed since the payload copy started.
	Elapsed time.Duration `cbor:"3,keyasint"`

	// Final is set on the last checkpoint of a completed copy.
	Final bool `cbor:"4,keyasint,omitempty"`
}

// Percent returns Bytes as a percentage of Total. An empty payload is 100%.
func (p *ProgressEvent) Percent() float64 {
	if p.Total == 0 {
		return 100
	}
	return float64(p.Bytes) * 100 / float64(p.Total)
}

// ErrorEventData captures a failure at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error text.
	Message string `cbor:"2,keyasint"`

	// Kind is the error classification (configuration, transport, ...).
	Kind string `cbor:"3,keyasint,omitempty"`

	// Context names the operation in progress.
	Context string `cbor:"4,keyasint,omitempty"`
}

// String returns a one-line summary of the event type, used by viewers.
func (e Event) String() string {
	switch {
	case e.Frame != nil:
		return fmt.Sprintf("Frame size=%d value=%d", e.Frame.Size, e.Frame.Value)
	case e.StateChange != nil:
		return fmt.Sprintf("%s %s -> %s", e.StateChange.Entity, e.StateChange.OldState, e.StateChange.NewState)
	case e.Handshake != nil:
		return fmt.Sprintf("Handshake %s %s", e.Handshake.VersionName(), e.Handshake.CipherSuiteName())
	case e.Progress != nil:
		return fmt.Sprintf("Progress %d/%d", e.Progress.Bytes, e.Progress.Total)
	case e.Error != nil:
		return "Error " + e.Error.Message
	default:
		return "Unknown"
	}
}
