package discovery

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tcptransfer/tcptransfer-go/pkg/cert"
	"github.com/tcptransfer/tcptransfer-go/pkg/endpoint"
	"github.com/tcptransfer/tcptransfer-go/pkg/version"
)

// Service constants.
const (
	ServiceType = "_tcptransfer._tcp"
	Domain      = "local."

	TXTKeyVersion     = "v"
	TXTKeyFingerprint = "fp"

	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63

	// BrowseTimeout is the default time a browse waits for a sender.
	BrowseTimeout = 5 * time.Second

	// DefaultTTL for advertised records.
	DefaultTTL = 120 * time.Second
)

// Discovery errors.
var (
	ErrNoPeers             = errors.New("no sender discovered")
	ErrMissingRequired     = errors.New("missing required TXT record")
	ErrUnsupportedVersion  = errors.New("unsupported protocol version")
	ErrInstanceNameTooLong = errors.New("instance name too long")
	ErrNoAddresses         = errors.New("service has no usable address")
)

// Announcement is what a sender advertises.
type Announcement struct {
	// Instance is the DNS-SD instance name.
	Instance string

	// Port is the bound TCP port.
	Port uint16

	// Fingerprint is the SHA-256 of the served certificate.
	Fingerprint []byte
}

// Peer is a discovered sender.
type Peer struct {
	Instance string
	Host     string

	// Endpoints lists every advertised address with the service port,
	// IPv4 first.
	Endpoints []endpoint.Endpoint

	// Fingerprint from the TXT record.
	Fingerprint []byte
}

// Endpoint returns the preferred endpoint.
func (p *Peer) Endpoint() endpoint.Endpoint {
	if len(p.Endpoints) == 0 {
		return endpoint.Endpoint{}
	}
	return p.Endpoints[0]
}

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeTXT creates the TXT records for an announcement.
func EncodeTXT(a *Announcement) TXTRecordMap {
	txt := TXTRecordMap{TXTKeyVersion: version.Current().MajorString()}
	if len(a.Fingerprint) > 0 {
		txt[TXTKeyFingerprint] = cert.FormatFingerprint(a.Fingerprint)
	}
	return txt
}

// DecodeTXT validates the version and returns the advertised fingerprint.
func DecodeTXT(txt TXTRecordMap) ([]byte, error) {
	v, ok := txt[TXTKeyVersion]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyVersion)
	}
	major, err := version.ParseMajor(v)
	if err != nil || !version.Current().Compatible(version.ProtocolVersion{Major: major}) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, v)
	}

	fp, ok := txt[TXTKeyFingerprint]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyFingerprint)
	}
	return cert.ParseFingerprint(fp)
}

// TXTRecordsToStrings converts a TXTRecordMap to "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) == 2 {
			txt[parts[0]] = parts[1]
		} else if len(parts) == 1 && parts[0] != "" {
			// Key without value (boolean flag)
			txt[parts[0]] = ""
		}
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInstanceNameTooLong)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}

// TruncateInstanceName shortens name to MaxInstanceNameLen bytes.
func TruncateInstanceName(name string) string {
	if len(name) > MaxInstanceNameLen {
		return name[:MaxInstanceNameLen]
	}
	return name
}
