// Package endpoint parses and formats the IP-address-plus-port pairs that
// name either end of a transfer connection.
package endpoint

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// ErrInvalidEndpoint is returned when an endpoint string cannot be parsed.
var ErrInvalidEndpoint = errors.New("invalid endpoint")

// Endpoint is an immutable IP address and TCP port.
type Endpoint struct {
	ap netip.AddrPort
}

// Parse parses "a.b.c.d:port" or "[ipv6]:port".
//
// Host names are rejected; the address must be an IP literal and the port a
// decimal number in 1..65535. Surrounding whitespace is ignored.
func Parse(s string) (Endpoint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Endpoint{}, fmt.Errorf("%w: empty input", ErrInvalidEndpoint)
	}

	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %q: expected ADDRESS:PORT", ErrInvalidEndpoint, s)
	}
	if ap.Addr().Zone() != "" {
		return Endpoint{}, fmt.Errorf("%w: %q: zoned addresses are not supported", ErrInvalidEndpoint, s)
	}
	if ap.Port() == 0 {
		return Endpoint{}, fmt.Errorf("%w: %q: port must be non-zero", ErrInvalidEndpoint, s)
	}

	return Endpoint{ap: ap}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(s string) Endpoint {
	ep, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return ep
}

// FromAddrPort wraps an existing netip.AddrPort.
func FromAddrPort(ap netip.AddrPort) Endpoint {
	return Endpoint{ap: netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())}
}

// FromNetAddr converts a *net.TCPAddr (as returned by a listener or
// connection) into an Endpoint.
func FromNetAddr(addr net.Addr) (Endpoint, error) {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: unsupported address type %T", ErrInvalidEndpoint, addr)
	}
	return FromAddrPort(tcp.AddrPort()), nil
}

// AddrPort returns the underlying address and port.
func (e Endpoint) AddrPort() netip.AddrPort { return e.ap }

// Addr returns the IP address.
func (e Endpoint) Addr() netip.Addr { return e.ap.Addr() }

// Port returns the TCP port.
func (e Endpoint) Port() uint16 { return e.ap.Port() }

// IsValid reports whether the endpoint was produced by a successful parse or
// conversion.
func (e Endpoint) IsValid() bool { return e.ap.IsValid() }

// IsUnspecified reports whether the address is 0.0.0.0 or ::.
func (e Endpoint) IsUnspecified() bool { return e.ap.Addr().IsUnspecified() }

// String returns the endpoint in ADDRESS:PORT form, bracketing IPv6.
func (e Endpoint) String() string {
	if !e.ap.IsValid() {
		return ""
	}
	return e.ap.String()
}

// TCPAddr returns the endpoint as a *net.TCPAddr.
func (e Endpoint) TCPAddr() *net.TCPAddr {
	return net.TCPAddrFromAddrPort(e.ap)
}
