package transport

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// MaxDSCP is the largest 6-bit DSCP code point.
const MaxDSCP = 63

// SocketOptions tune the data connection once it is established.
type SocketOptions struct {
	// NoDelay disables Nagle's algorithm.
	NoDelay bool

	// DSCP marks outgoing packets (0 leaves the OS default).
	DSCP int
}

// DefaultSocketOptions returns NoDelay on and no DSCP marking.
func DefaultSocketOptions() SocketOptions {
	return SocketOptions{NoDelay: true}
}

// TuneConn applies opts to a TCP connection. Non-TCP connections (such as
// in-memory pipes in tests) are left alone.
func TuneConn(conn net.Conn, opts SocketOptions) error {
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}

	if err := tcp.SetNoDelay(opts.NoDelay); err != nil {
		return fmt.Errorf("set TCP_NODELAY: %w", err)
	}

	if opts.DSCP == 0 {
		return nil
	}
	if opts.DSCP < 0 || opts.DSCP > MaxDSCP {
		return fmt.Errorf("DSCP %d out of range 0..%d", opts.DSCP, MaxDSCP)
	}

	// DSCP occupies the upper six bits of the TOS / traffic class octet.
	tos := opts.DSCP << 2
	if isIPv4(tcp.LocalAddr()) {
		if err := ipv4.NewConn(tcp).SetTOS(tos); err != nil {
			return fmt.Errorf("set IPv4 TOS: %w", err)
		}
		return nil
	}
	if err := ipv6.NewConn(tcp).SetTrafficClass(tos); err != nil {
		return fmt.Errorf("set IPv6 traffic class: %w", err)
	}
	return nil
}

func isIPv4(addr net.Addr) bool {
	tcp, ok := addr.(*net.TCPAddr)
	return ok && tcp.IP.To4() != nil
}
