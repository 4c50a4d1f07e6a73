// Package version holds the program version and the wire protocol version
// advertised over mDNS.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Protocol is the wire protocol version: an 8-byte little-endian size
// prefix followed by the payload, inside TLS.
const Protocol = "1.0"

// Program is the build version, set with
// -ldflags "-X github.com/tcptransfer/tcptransfer-go/pkg/version.Program=v1.2.3".
var Program = "dev"

// ProtocolVersion represents a parsed "major.minor" protocol version.
type ProtocolVersion struct {
	Major uint16
	Minor uint16
}

// Parse parses a "major.minor" version string.
func Parse(s string) (ProtocolVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: expected major.minor", s)
	}

	major, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil || parts[0] == "" {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: bad major component", s)
	}

	minor, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil || parts[1] == "" {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: bad minor component", s)
	}

	return ProtocolVersion{Major: uint16(major), Minor: uint16(minor)}, nil
}

// Current returns Protocol parsed.
func Current() ProtocolVersion {
	v, err := Parse(Protocol)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the version as "major.minor".
func (v ProtocolVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compatible returns true if the other version has the same major version.
func (v ProtocolVersion) Compatible(other ProtocolVersion) bool {
	return v.Major == other.Major
}

// MajorString returns the major version alone, as carried in TXT records.
func (v ProtocolVersion) MajorString() string {
	return strconv.FormatUint(uint64(v.Major), 10)
}

// ParseMajor parses a bare major version such as "1".
func ParseMajor(s string) (uint16, error) {
	if s == "" {
		return 0, fmt.Errorf("empty major version")
	}
	major, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid major version %q: %w", s, err)
	}
	return uint16(major), nil
}

// String returns the program and protocol versions for -version output.
func String() string {
	return fmt.Sprintf("tcptransfer %s (protocol %s)", Program, Protocol)
}
