package cert

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// FingerprintSize is the length of a SHA-256 certificate fingerprint in bytes.
const FingerprintSize = sha256.Size

// ErrInvalidFingerprint is returned by ParseFingerprint.
var ErrInvalidFingerprint = errors.New("invalid fingerprint")

// Fingerprint returns the SHA-256 of the DER certificate.
func Fingerprint(der []byte) []byte {
	sum := sha256.Sum256(der)
	return sum[:]
}

// FormatFingerprint renders a fingerprint as lowercase hex.
func FormatFingerprint(fp []byte) string {
	return hex.EncodeToString(fp)
}

// ShortFingerprint is the first 16 hex characters of the fingerprint, used in
// console output.
func ShortFingerprint(fp []byte) string {
	s := FormatFingerprint(fp)
	if len(s) > 16 {
		return s[:16]
	}
	return s
}

// ParseFingerprint accepts the hex form with optional "sha256:" prefix and
// colon separators, in either case.
func ParseFingerprint(s string) ([]byte, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimPrefix(s, "sha256:")
	s = strings.ReplaceAll(s, ":", "")

	fp, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFingerprint, err)
	}
	if len(fp) != FingerprintSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidFingerprint, len(fp), FingerprintSize)
	}
	return fp, nil
}

// MatchFingerprint reports whether der hashes to want, in constant time.
func MatchFingerprint(der, want []byte) bool {
	return subtle.ConstantTimeCompare(Fingerprint(der), want) == 1
}
