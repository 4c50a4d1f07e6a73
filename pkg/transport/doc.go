// Package transport implements the connection side of a transfer: the
// one-shot TCP acceptor, the dialer, the TLS session wrapping either, and the
// size prefix codec that precedes the payload.
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│   Payload (SizePrefix bytes)   │
//	├────────────────────────────────┤
//	│   SizePrefix (8B, LE u64)      │
//	├────────────────────────────────┤
//	│   TLS 1.2+ (intermediate)      │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// There is no other framing: no magic, no version field, no checksum.
//
// # TLS Profile
//
// TLS 1.2 is the minimum. For TLS 1.2 only ECDHE suites with AEAD ciphers
// are offered:
//   - ECDHE-{ECDSA,RSA}-AES128-GCM-SHA256
//   - ECDHE-{ECDSA,RSA}-AES256-GCM-SHA384
//   - ECDHE-{ECDSA,RSA}-CHACHA20-POLY1305
//
// Key exchange uses X25519 or P-256. TLS 1.3 suites are fixed by crypto/tls.
//
// # Peer Verification
//
// The client does not verify the server certificate chain or host name. A
// SHA-256 fingerprint of the server leaf may be pinned; otherwise operators
// compare the fingerprint or the session confirmation code out of band.
package transport
