// Package cert loads and generates the sender's TLS certificate.
//
// Certificate material is either a PEM pair read once at startup or, when no
// paths are configured, an ephemeral self-signed ECDSA P-256 certificate. The
// SHA-256 fingerprint of the leaf is what operators compare out of band and
// what the receiver can pin.
package cert
