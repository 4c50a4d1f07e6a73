package cert

import (
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/awnumar/memguard"
)

// ErrIncompleteKeyPair is returned when only one of the certificate and key
// paths is configured.
var ErrIncompleteKeyPair = errors.New("certificate and key paths must be set together")

// LoadKeyPair reads a PEM certificate chain and private key from disk.
//
// The key file contents are moved into a memguard buffer as soon as they are
// read and the buffer is destroyed once the key has been parsed, so the PEM
// text does not linger in ordinary heap memory.
func LoadKeyPair(certPath, keyPath string) (tls.Certificate, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("read certificate: %w", err)
	}
	chain, err := DecodeCertChainPEM(certPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("certificate %s: %w", certPath, err)
	}

	raw, err := os.ReadFile(keyPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("read private key: %w", err)
	}
	keyBuf := memguard.NewBufferFromBytes(raw)
	defer keyBuf.Destroy()

	key, err := DecodeKeyPEM(keyBuf.Bytes())
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("private key %s: %w", keyPath, err)
	}

	leaf, err := x509.ParseCertificate(chain[0])
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%w: %v", ErrInvalidPEM, err)
	}
	if !publicKeysEqual(leaf.PublicKey, key.Public()) {
		return tls.Certificate{}, ErrKeyMismatch
	}

	return tls.Certificate{
		Certificate: chain,
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}

// LoadOrGenerate loads the configured key pair. When both paths are empty it
// returns an ephemeral self-signed certificate; when both files are missing it
// generates one and writes it to certPath and keyPath.
func LoadOrGenerate(certPath, keyPath, commonName string) (tls.Certificate, bool, error) {
	switch {
	case certPath == "" && keyPath == "":
		c, err := GenerateSelfSigned(commonName, DefaultValidity)
		return c, true, err
	case certPath == "" || keyPath == "":
		return tls.Certificate{}, false, ErrIncompleteKeyPair
	case missing(certPath) && missing(keyPath):
		c, err := generateFiles(certPath, keyPath, commonName)
		return c, true, err
	default:
		c, err := LoadKeyPair(certPath, keyPath)
		return c, false, err
	}
}

func missing(path string) bool {
	_, err := os.Stat(path)
	return errors.Is(err, fs.ErrNotExist)
}

func generateFiles(certPath, keyPath, commonName string) (tls.Certificate, error) {
	c, err := GenerateSelfSigned(commonName, DefaultValidity)
	if err != nil {
		return tls.Certificate{}, err
	}
	signer, ok := c.PrivateKey.(crypto.Signer)
	if !ok {
		return tls.Certificate{}, fmt.Errorf("%w: unsupported key type %T", ErrInvalidKey, c.PrivateKey)
	}
	if err := WriteKeyFile(keyPath, signer); err != nil {
		return tls.Certificate{}, fmt.Errorf("write private key: %w", err)
	}
	if err := WriteCertFile(certPath, c.Certificate[0]); err != nil {
		return tls.Certificate{}, fmt.Errorf("write certificate: %w", err)
	}
	return c, nil
}

func publicKeysEqual(a, b crypto.PublicKey) bool {
	type equaler interface {
		Equal(x crypto.PublicKey) bool
	}
	e, ok := a.(equaler)
	return ok && e.Equal(b)
}
