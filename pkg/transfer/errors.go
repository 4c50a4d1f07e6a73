package transfer

import (
	"errors"
	"fmt"
)

// Kind classifies a transfer failure.
type Kind int

const (
	// KindConfiguration covers bad endpoints, missing files and unusable
	// certificate material.
	KindConfiguration Kind = iota + 1
	// KindTransport covers bind, accept and connect failures.
	KindTransport
	// KindHandshake covers TLS negotiation failures.
	KindHandshake
	// KindProtocol covers a short size prefix or a truncated payload.
	KindProtocol
	// KindIO covers read and write failures on the socket or a file.
	KindIO
)

// String returns the kind in lower case, as used in messages and logs.
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindTransport:
		return "transport"
	case KindHandshake:
		return "handshake"
	case KindProtocol:
		return "protocol"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Coordinator errors.
var (
	ErrCoordinatorUsed = errors.New("coordinator already ran a transfer")
	ErrNotRegularFile  = errors.New("not a regular file")
	ErrNoPeer          = errors.New("no peer endpoint")
	ErrSourceChanged   = errors.New("source file shrank during transfer")
	ErrUnknownRole     = errors.New("unknown role")
)

// Error is the terminal failure of a transfer.
type Error struct {
	Kind  Kind
	State State
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed (%s error): %v", e.State, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return 0, false
}
