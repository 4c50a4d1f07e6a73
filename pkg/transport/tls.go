package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"

	"github.com/tcptransfer/tcptransfer-go/pkg/cert"
)

// DefaultServerName is sent as SNI by the client. The server ignores it.
const DefaultServerName = "tcptransfer"

// TLS errors.
var (
	ErrNoCertificate       = errors.New("server certificate required")
	ErrNoPeerCertificate   = errors.New("peer presented no certificate")
	ErrFingerprintMismatch = errors.New("server certificate fingerprint mismatch")
	ErrTLSVersion          = errors.New("negotiated TLS version below 1.2")
)

// intermediateCipherSuites are the TLS 1.2 suites offered, in preference order.
var intermediateCipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
}

// intermediateCurves are the key exchange groups offered.
var intermediateCurves = []tls.CurveID{tls.X25519, tls.CurveP256}

// CipherSuites returns a copy of the TLS 1.2 suites this package offers.
func CipherSuites() []uint16 {
	return append([]uint16(nil), intermediateCipherSuites...)
}

// TLSConfig holds the inputs for building either side's *tls.Config.
type TLSConfig struct {
	// Certificate is the server's key pair. Ignored by the client.
	Certificate tls.Certificate

	// PinnedFingerprint, when set, is the SHA-256 the client requires of
	// the server leaf certificate. Ignored by the server.
	PinnedFingerprint []byte

	// ServerName is the SNI value the client sends (default DefaultServerName).
	ServerName string

	// KeyLogWriter receives NSS key log lines when set. Debugging only.
	KeyLogWriter io.Writer
}

// NewServerTLSConfig builds the sender's configuration. No client
// certificate is requested.
func NewServerTLSConfig(config TLSConfig) (*tls.Config, error) {
	if len(config.Certificate.Certificate) == 0 {
		return nil, ErrNoCertificate
	}

	return &tls.Config{
		MinVersion:             tls.VersionTLS12,
		CipherSuites:           intermediateCipherSuites,
		CurvePreferences:       intermediateCurves,
		Certificates:           []tls.Certificate{config.Certificate},
		ClientAuth:             tls.NoClientCert,
		SessionTicketsDisabled: true,
		KeyLogWriter:           config.KeyLogWriter,
	}, nil
}

// NewClientTLSConfig builds the receiver's configuration. Chain and host name
// verification are disabled; a pinned fingerprint, if any, is checked in
// VerifyPeerCertificate.
func NewClientTLSConfig(config TLSConfig) *tls.Config {
	serverName := config.ServerName
	if serverName == "" {
		serverName = DefaultServerName
	}

	tlsConfig := &tls.Config{
		MinVersion:             tls.VersionTLS12,
		CipherSuites:           intermediateCipherSuites,
		CurvePreferences:       intermediateCurves,
		ServerName:             serverName,
		InsecureSkipVerify:     true, // identity comes from out-of-band comparison or the pin
		SessionTicketsDisabled: true,
		KeyLogWriter:           config.KeyLogWriter,
	}
	if len(config.PinnedFingerprint) > 0 {
		tlsConfig.VerifyPeerCertificate = verifyPinnedFingerprint(config.PinnedFingerprint)
	}
	return tlsConfig
}

func verifyPinnedFingerprint(want []byte) func([][]byte, [][]*x509.Certificate) error {
	pin := append([]byte(nil), want...)
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return ErrNoPeerCertificate
		}
		if !cert.MatchFingerprint(rawCerts[0], pin) {
			return fmt.Errorf("%w: got %s", ErrFingerprintMismatch,
				cert.FormatFingerprint(cert.Fingerprint(rawCerts[0])))
		}
		return nil
	}
}

// VerifyConnection checks the negotiated parameters after a handshake.
func VerifyConnection(state tls.ConnectionState) error {
	if !state.HandshakeComplete {
		return ErrHandshakeRequired
	}
	if state.Version < tls.VersionTLS12 {
		return fmt.Errorf("%w: %s", ErrTLSVersion, tls.VersionName(state.Version))
	}
	return nil
}
