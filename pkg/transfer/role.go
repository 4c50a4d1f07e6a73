package transfer

import "github.com/tcptransfer/tcptransfer-go/pkg/endpoint"

// RoleKind names the two sides of a transfer.
type RoleKind int

const (
	// RoleSender listens and streams a file.
	RoleSender RoleKind = iota
	// RoleReceiver dials and writes a file.
	RoleReceiver
)

// String returns the role name.
func (k RoleKind) String() string {
	switch k {
	case RoleSender:
		return "SENDER"
	case RoleReceiver:
		return "RECEIVER"
	default:
		return "UNKNOWN"
	}
}

// Role is either Send or Receive.
type Role interface {
	Kind() RoleKind
	isRole()
}

// Send streams the regular file at Path to whoever connects first.
type Send struct {
	Path string
}

// Receive dials Peer and writes the payload to Dest.
//
// A zero Peer is resolved during READ_PEER through Config.PeerSource. An
// empty Dest uses Config.Destination.
type Receive struct {
	Peer endpoint.Endpoint
	Dest string
}

// Kind returns RoleSender.
func (Send) Kind() RoleKind { return RoleSender }

// Kind returns RoleReceiver.
func (Receive) Kind() RoleKind { return RoleReceiver }

func (Send) isRole() {}
func (Receive) isRole() {}

var (
	_ Role = Send{}
	_ Role = Receive{}
)
