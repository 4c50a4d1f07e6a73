// Package config loads tcptransfer settings from YAML and applies defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tcptransfer/tcptransfer-go/pkg/cert"
	"github.com/tcptransfer/tcptransfer-go/pkg/stream"
	"github.com/tcptransfer/tcptransfer-go/pkg/transport"
)

// DefaultDestinationName is the receiver's file name inside the temp directory.
const DefaultDestinationName = "received.bin"

// Log levels accepted by LogLevel.
var logLevels = []string{"debug", "info", "warn", "error"}

// Config holds every tunable. Zero values are replaced by ApplyDefaults.
type Config struct {
	// BindAddress is where the sender listens (default 0.0.0.0:0).
	BindAddress string `yaml:"bind_address"`

	// CertFile and KeyFile are PEM paths. Both empty means an ephemeral
	// self-signed certificate.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// Destination is the receiver's output file
	// (default <tempdir>/received.bin).
	Destination string `yaml:"destination"`

	// ServerName is the SNI the receiver sends.
	ServerName string `yaml:"server_name"`

	// PinFingerprint is the expected SHA-256 of the sender's certificate.
	PinFingerprint string `yaml:"pin_fingerprint"`

	// BufferSize is the copy chunk size in bytes.
	BufferSize int `yaml:"buffer_size"`

	// Timeouts. Zero disables each.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`

	// ConnectRetries is how many extra connects the receiver makes when
	// the sender is not reachable yet.
	ConnectRetries int `yaml:"connect_retries"`

	// DSCP marks the data socket (0..63).
	DSCP int `yaml:"dscp"`

	// ProtocolLog is a .tlog file to append protocol events to.
	ProtocolLog string `yaml:"protocol_log"`

	// KeyLog is a file that receives TLS session keys in NSS key log
	// format. Debugging only.
	KeyLog string `yaml:"key_log"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level"`

	// Progress shows a progress bar on stderr.
	Progress bool `yaml:"progress"`

	Discovery DiscoveryConfig `yaml:"discovery"`
}

// DiscoveryConfig controls optional mDNS announcement and lookup.
type DiscoveryConfig struct {
	// Advertise announces the sender's endpoint.
	Advertise bool `yaml:"advertise"`

	// Browse makes the receiver pick a peer from mDNS instead of prompting.
	Browse bool `yaml:"browse"`

	// Instance is the advertised instance name (default: host name).
	Instance string `yaml:"instance"`

	// Timeout bounds a browse.
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.BindAddress == "" {
		c.BindAddress = transport.DefaultBindAddress
	}
	if c.Destination == "" {
		c.Destination = filepath.Join(os.TempDir(), DefaultDestinationName)
	}
	if c.ServerName == "" {
		c.ServerName = transport.DefaultServerName
	}
	if c.BufferSize == 0 {
		c.BufferSize = stream.DefaultBufferSize
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Discovery.Timeout == 0 {
		c.Discovery.Timeout = 5 * time.Second
	}
	if c.Discovery.Instance == "" {
		if host, err := os.Hostname(); err == nil {
			c.Discovery.Instance = host
		} else {
			c.Discovery.Instance = "tcptransfer"
		}
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	if (c.CertFile == "") != (c.KeyFile == "") {
		errs = append(errs, cert.ErrIncompleteKeyPair)
	}
	if c.BufferSize < stream.MinBufferSize || c.BufferSize > stream.MaxBufferSize {
		errs = append(errs, fmt.Errorf("buffer_size %d not in %d..%d",
			c.BufferSize, stream.MinBufferSize, stream.MaxBufferSize))
	}
	if c.HandshakeTimeout < 0 || c.IdleTimeout < 0 || c.ConnectTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if c.ConnectRetries < 0 {
		errs = append(errs, errors.New("connect_retries must not be negative"))
	}
	if c.DSCP < 0 || c.DSCP > transport.MaxDSCP {
		errs = append(errs, fmt.Errorf("dscp %d not in 0..%d", c.DSCP, transport.MaxDSCP))
	}
	if c.PinFingerprint != "" {
		if _, err := cert.ParseFingerprint(c.PinFingerprint); err != nil {
			errs = append(errs, fmt.Errorf("pin_fingerprint: %w", err))
		}
	}
	if !validLogLevel(c.LogLevel) {
		errs = append(errs, fmt.Errorf("log_level %q must be one of %s", c.LogLevel, strings.Join(logLevels, ", ")))
	}
	if c.Destination == "" {
		errs = append(errs, errors.New("destination must not be empty"))
	}

	return errors.Join(errs...)
}

// Pin returns the decoded pin fingerprint, or nil when unset.
func (c *Config) Pin() []byte {
	if c.PinFingerprint == "" {
		return nil
	}
	fp, err := cert.ParseFingerprint(c.PinFingerprint)
	if err != nil {
		return nil
	}
	return fp
}

func validLogLevel(level string) bool {
	for _, l := range logLevels {
		if strings.EqualFold(level, l) {
			return true
		}
	}
	return false
}

// LoadError describes a configuration file that could not be used.
type LoadError struct {
	// File is the path that failed to load.
	File string

	// Message describes the failure.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return e.File + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.File + ": " + e.Message
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, &LoadError{Message: "invalid configuration", Cause: err}
	}
	return c, nil
}

// Load reads and parses the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}
	c, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
		}
		return Config{}, err
	}
	return c, nil
}
