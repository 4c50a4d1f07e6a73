package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"

	"github.com/tcptransfer/tcptransfer-go/pkg/cert"
	"github.com/tcptransfer/tcptransfer-go/pkg/config"
	"github.com/tcptransfer/tcptransfer-go/pkg/discovery"
	"github.com/tcptransfer/tcptransfer-go/pkg/endpoint"
	tlog "github.com/tcptransfer/tcptransfer-go/pkg/log"
	"github.com/tcptransfer/tcptransfer-go/pkg/prompt"
	"github.com/tcptransfer/tcptransfer-go/pkg/report"
	"github.com/tcptransfer/tcptransfer-go/pkg/transfer"
	"github.com/tcptransfer/tcptransfer-go/pkg/transport"
	"github.com/tcptransfer/tcptransfer-go/pkg/version"
)

// Exit codes.
const (
	exitOK       = 0
	exitTransfer = 1
	exitUsage    = 2
)

// newAdvertiser builds the sender's mDNS advertiser.
var newAdvertiser = func() (discovery.Advertiser, error) {
	return discovery.NewMDNSAdvertiser(discovery.DefaultAdvertiserConfig())
}

// cliFlags holds the raw command line.
type cliFlags struct {
	configFile       string
	send             string
	receive          string
	dest             string
	bind             string
	certFile         string
	keyFile          string
	pin              string
	bufferSize       int
	handshakeTimeout time.Duration
	idleTimeout      time.Duration
	connectTimeout   time.Duration
	connectRetries   int
	dscp             int
	protocolLog      string
	keyLog           string
	logLevel         string
	instance         string
	advertise        bool
	browse           bool
	progress         bool
	showVersion      bool
}

func newFlagSet(f *cliFlags, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("tcptransfer", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&f.configFile, "config", "", "Configuration file path (YAML)")
	fs.StringVar(&f.send, "send", "", "Send this file (skips the prompt)")
	fs.StringVar(&f.receive, "receive", "", "Receive from ADDRESS:PORT (skips the prompt)")
	fs.StringVar(&f.dest, "dest", "", "Receiver destination file")
	fs.StringVar(&f.bind, "bind", "", "Sender bind address (host:port)")
	fs.StringVar(&f.certFile, "cert", "", "PEM certificate file (created with -key when missing)")
	fs.StringVar(&f.keyFile, "key", "", "PEM private key file")
	fs.StringVar(&f.pin, "pin", "", "Expected SHA-256 fingerprint of the sender certificate")
	fs.IntVar(&f.bufferSize, "buffer-size", 0, "Copy chunk size in bytes")
	fs.DurationVar(&f.handshakeTimeout, "handshake-timeout", 0, "TLS handshake timeout (0 disables)")
	fs.DurationVar(&f.idleTimeout, "idle-timeout", 0, "Per read/write idle timeout (0 disables)")
	fs.DurationVar(&f.connectTimeout, "connect-timeout", 0, "TCP connect timeout (0 disables)")
	fs.IntVar(&f.connectRetries, "connect-retries", 0, "Extra connect attempts while the sender is unreachable")
	fs.IntVar(&f.dscp, "dscp", 0, "DSCP code point for the data socket (0-63)")
	fs.StringVar(&f.protocolLog, "protocol-log", "", "File or directory for protocol event logging (CBOR format)")
	fs.StringVar(&f.keyLog, "key-log", "", "Append TLS session keys to this file (NSS key log format, for debugging)")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&f.instance, "instance", "", "mDNS instance name (default: host name)")
	fs.BoolVar(&f.advertise, "advertise", false, "Announce the sender over mDNS")
	fs.BoolVar(&f.browse, "browse", false, "Find the sender over mDNS instead of prompting")
	fs.BoolVar(&f.progress, "progress", false, "Show a progress bar on stderr")
	fs.BoolVar(&f.showVersion, "version", false, "Print the version and exit")
	return fs
}

// loadConfig reads -config (or the defaults) and overlays the flags that were
// set explicitly.
func loadConfig(fs *flag.FlagSet, f *cliFlags) (config.Config, error) {
	cfg := config.Default()
	if f.configFile != "" {
		var err error
		if cfg, err = config.Load(f.configFile); err != nil {
			return config.Config{}, err
		}
	}

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "dest":
			cfg.Destination = f.dest
		case "bind":
			cfg.BindAddress = f.bind
		case "cert":
			cfg.CertFile = f.certFile
		case "key":
			cfg.KeyFile = f.keyFile
		case "pin":
			cfg.PinFingerprint = f.pin
		case "buffer-size":
			cfg.BufferSize = f.bufferSize
		case "handshake-timeout":
			cfg.HandshakeTimeout = f.handshakeTimeout
		case "idle-timeout":
			cfg.IdleTimeout = f.idleTimeout
		case "connect-timeout":
			cfg.ConnectTimeout = f.connectTimeout
		case "connect-retries":
			cfg.ConnectRetries = f.connectRetries
		case "dscp":
			cfg.DSCP = f.dscp
		case "protocol-log":
			cfg.ProtocolLog = f.protocolLog
		case "key-log":
			cfg.KeyLog = f.keyLog
		case "log-level":
			cfg.LogLevel = f.logLevel
		case "instance":
			cfg.Discovery.Instance = f.instance
		case "advertise":
			cfg.Discovery.Advertise = f.advertise
		case "browse":
			cfg.Discovery.Browse = f.browse
		case "progress":
			cfg.Progress = f.progress
		}
	})

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	var f cliFlags
	fs := newFlagSet(&f, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	if f.showVersion {
		fmt.Fprintln(stdout, version.String())
		return exitOK
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "Error: unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		return exitUsage
	}
	if f.send != "" && f.receive != "" {
		fmt.Fprintln(stderr, "Error: -send and -receive are mutually exclusive")
		return exitUsage
	}

	cfg, err := loadConfig(fs, &f)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	logger := setupLogging(cfg.LogLevel, stderr)
	defer memguard.Purge()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transferID := uuid.NewString()
	protocolLogger, err := openProtocolLog(cfg.ProtocolLog, transferID)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to create protocol logger: %v\n", err)
		return exitUsage
	}
	if protocolLogger != nil {
		defer protocolLogger.Close()
		log.Printf("Protocol logging to: %s", protocolLogger.Path())
	}

	tc := transfer.Config{
		ID:               transferID,
		BindAddress:      cfg.BindAddress,
		HandshakeTimeout: cfg.HandshakeTimeout,
		IdleTimeout:      cfg.IdleTimeout,
		ConnectTimeout:   cfg.ConnectTimeout,
		ConnectRetries:   cfg.ConnectRetries,
		BufferSize:       cfg.BufferSize,
		Destination:      cfg.Destination,
		Socket:           transport.SocketOptions{NoDelay: true, DSCP: cfg.DSCP},
		TLS: transport.TLSConfig{
			ServerName:        cfg.ServerName,
			PinnedFingerprint: cfg.Pin(),
		},
		Logger: buildLogger(protocolLogger, logger, cfg.LogLevel),
	}

	keyLog, err := openKeyLog(cfg.KeyLog)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to open key log: %v\n", err)
		return exitUsage
	}
	if keyLog != nil {
		defer keyLog.Close()
		log.Printf("Warning: writing TLS session keys to %s", cfg.KeyLog)
		tc.TLS.KeyLogWriter = keyLog
	}

	role, closePrompt, err := selectRole(ctx, &f, &cfg, &tc)
	if closePrompt != nil {
		defer closePrompt()
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCode(err)
	}

	consoleConfig := report.ConsoleConfig{Out: stdout}
	if cfg.Progress {
		consoleConfig.Progress = stderr
	}
	observers := transfer.MultiObserver{report.NewConsole(consoleConfig)}

	if _, ok := role.(transfer.Send); ok {
		certificate, err := loadCertificate(cfg)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitUsage
		}
		tc.TLS.Certificate = certificate

		if cfg.Discovery.Advertise {
			adv, err := newAdvertiser()
			if err != nil {
				log.Printf("Warning: mDNS advertiser unavailable: %v", err)
			} else {
				defer adv.Stop()
				announcer := discovery.NewAnnouncer(ctx, adv, cfg.Discovery.Instance)
				announcer.OnError = func(err error) { log.Printf("Warning: mDNS advertisement failed: %v", err) }
				observers = append(observers, announcer)
			}
		}
	}
	tc.Observer = observers

	logger.Debug("starting transfer",
		slog.String("transfer_id", transferID),
		slog.String("role", roleName(role)),
		slog.Int("buffer_size", cfg.BufferSize))

	if _, err := transfer.New(tc).Run(ctx, role); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	return exitOK
}

// selectRole decides what to do from flags, mDNS or the interactive prompt.
// The returned cleanup, when non-nil, restores the terminal.
func selectRole(ctx context.Context, f *cliFlags, cfg *config.Config, tc *transfer.Config) (transfer.Role, func(), error) {
	switch {
	case f.send != "":
		return transfer.Send{Path: f.send}, nil, nil

	case f.receive != "":
		// Parsed during READ_PEER so a bad endpoint is a logged transfer
		// failure like any other.
		raw := f.receive
		tc.PeerSource = func(context.Context) (endpoint.Endpoint, error) { return endpoint.Parse(raw) }
		return transfer.Receive{}, nil, nil

	case cfg.Discovery.Browse:
		peer, err := browse(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if len(tc.TLS.PinnedFingerprint) == 0 {
			tc.TLS.PinnedFingerprint = peer.Fingerprint
		}
		return transfer.Receive{Peer: peer.Endpoint()}, nil, nil
	}

	lr, err := prompt.NewReadline()
	if err != nil {
		return nil, nil, err
	}
	role, err := prompt.SelectRole(lr, cfg.Destination)
	if err != nil {
		return nil, func() { lr.Close() }, err
	}
	tc.PeerSource = prompt.PeerSource(lr)
	return role, func() { lr.Close() }, nil
}

func browse(ctx context.Context, cfg *config.Config) (*discovery.Peer, error) {
	browser, err := discovery.NewMDNSBrowser(discovery.BrowserConfig{Timeout: cfg.Discovery.Timeout})
	if err != nil {
		return nil, err
	}
	log.Printf("Browsing for senders (%s)...", cfg.Discovery.Timeout)
	peer, err := browser.FindPeer(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("Found %s at %s (sha256:%s)", peer.Instance, peer.Endpoint(), cert.FormatFingerprint(peer.Fingerprint))
	return peer, nil
}

// loadCertificate returns the configured key pair, creating the files when
// both are missing, or an ephemeral self-signed certificate when none is
// configured.
func loadCertificate(cfg config.Config) (tls.Certificate, error) {
	certificate, generated, err := cert.LoadOrGenerate(cfg.CertFile, cfg.KeyFile, transport.DefaultServerName)
	if err != nil {
		return tls.Certificate{}, err
	}
	if generated && cfg.CertFile != "" {
		log.Printf("Generated certificate %s", cfg.CertFile)
	}
	return certificate, nil
}

// openKeyLog opens path for appending NSS key log lines. An empty path
// disables key logging.
func openKeyLog(path string) (*os.File, error) {
	if path == "" {
		return nil, nil
	}
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
}

// openProtocolLog opens path as a .tlog file. A directory receives a file
// named after the transfer ID. An empty path disables protocol logging.
func openProtocolLog(path, transferID string) (*tlog.FileLogger, error) {
	if path == "" {
		return nil, nil
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return tlog.NewFileLoggerInDir(path, "tcptransfer-"+transferID)
	}
	return tlog.NewFileLogger(path)
}

// buildLogger combines the file logger with slog output at debug level.
func buildLogger(file *tlog.FileLogger, logger *slog.Logger, level string) tlog.Logger {
	var loggers []tlog.Logger
	// Only append when non-nil to avoid a typed-nil interface.
	if file != nil {
		loggers = append(loggers, file)
	}
	if strings.EqualFold(level, "debug") {
		loggers = append(loggers, tlog.NewSlogAdapter(logger))
	}
	if len(loggers) == 0 {
		return nil
	}
	return tlog.NewMultiLogger(loggers...)
}

func setupLogging(level string, w io.Writer) *slog.Logger {
	log.SetOutput(w)
	log.SetPrefix("[tcptransfer] ")
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	slogLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		log.SetFlags(log.Ltime | log.Lmicroseconds | log.Lshortfile)
		slogLevel = slog.LevelDebug
	case "warn":
		log.SetFlags(log.Ltime)
		slogLevel = slog.LevelWarn
	case "error":
		log.SetFlags(log.Ltime)
		slogLevel = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slogLevel}))
}

// exitCode maps a failure to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	if kind, ok := transfer.KindOf(err); ok && kind == transfer.KindConfiguration {
		return exitUsage
	}
	return exitTransfer
}

func roleName(role transfer.Role) string {
	if role == nil {
		return ""
	}
	return role.Kind().String()
}
