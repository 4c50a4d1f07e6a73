// Package report renders transfer progress and results for the operator.
package report

import (
	"fmt"
	"io"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/tcptransfer/tcptransfer-go/pkg/cert"
	"github.com/tcptransfer/tcptransfer-go/pkg/endpoint"
	"github.com/tcptransfer/tcptransfer-go/pkg/transfer"
)

// FormatResult returns the final summary line, e.g.
// "File sent in 1.5s (699050 bytes/s)".
func FormatResult(result transfer.Result) string {
	verb := "sent"
	if result.Role == transfer.RoleReceiver {
		verb = "received"
	}
	return fmt.Sprintf("File %s in %s (%.0f bytes/s)", verb, result.Elapsed, result.BytesPerSecond())
}

// NewProgressBar returns a byte-count progress bar for total bytes.
func NewProgressBar(w io.Writer, total uint64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(int64(total),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// ConsoleConfig configures a Console.
type ConsoleConfig struct {
	// Out receives the endpoint, confirmation code and result lines.
	Out io.Writer

	// Progress receives the progress bar. Nil disables it.
	Progress io.Writer

	// Interfaces lists local addresses to suggest when the sender is bound
	// to an unspecified address. Nil uses net.InterfaceAddrs.
	Interfaces func() ([]net.Addr, error)
}

// Console prints operator-facing transfer output.
type Console struct {
	transfer.NopObserver

	config ConsoleConfig

	mu   sync.Mutex
	role transfer.RoleKind
	bar  *progressbar.ProgressBar
}

// NewConsole creates a Console.
func NewConsole(config ConsoleConfig) *Console {
	if config.Interfaces == nil {
		config.Interfaces = net.InterfaceAddrs
	}
	return &Console{config: config, role: transfer.RoleReceiver}
}

// Listening prints "Listening on ADDR:PORT" and the certificate fingerprint.
func (c *Console) Listening(ep endpoint.Endpoint, fingerprint []byte) {
	c.mu.Lock()
	c.role = transfer.RoleSender
	c.mu.Unlock()

	fmt.Fprintf(c.config.Out, "Listening on %s\n", ep)
	if ep.IsUnspecified() {
		for _, addr := range c.reachable(ep.Port()) {
			fmt.Fprintf(c.config.Out, "  reachable at %s\n", addr)
		}
	}
	if len(fingerprint) > 0 {
		fmt.Fprintf(c.config.Out, "Certificate fingerprint: sha256:%s\n", cert.FormatFingerprint(fingerprint))
	}
}

// Secured prints the peer and the session confirmation code.
func (c *Console) Secured(peer net.Addr, fingerprint []byte, code string) {
	fmt.Fprintf(c.config.Out, "Connected to %s (server %s)\n", peer, cert.ShortFingerprint(fingerprint))
	fmt.Fprintf(c.config.Out, "Confirmation code: %s\n", code)
}

// PayloadStarted creates the progress bar.
func (c *Console) PayloadStarted(total uint64) {
	if c.config.Progress == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	description := "sending"
	if c.role == transfer.RoleReceiver {
		description = "receiving"
	}
	c.bar = NewProgressBar(c.config.Progress, total, description)
}

// PayloadProgress advances the progress bar.
func (c *Console) PayloadProgress(copied uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bar != nil {
		_ = c.bar.Set64(int64(copied))
	}
}

// Finished completes the progress bar and prints the result line.
func (c *Console) Finished(result transfer.Result) {
	c.mu.Lock()
	if c.bar != nil {
		_ = c.bar.Finish()
		c.bar = nil
	}
	c.mu.Unlock()

	fmt.Fprintln(c.config.Out, FormatResult(result))
}

// reachable lists non-loopback unicast addresses with port.
func (c *Console) reachable(port uint16) []endpoint.Endpoint {
	addrs, err := c.config.Interfaces()
	if err != nil {
		return nil
	}

	var out []endpoint.Endpoint
	for _, a := range addrs {
		prefix, err := netip.ParsePrefix(a.String())
		if err != nil {
			continue
		}
		ip := prefix.Addr().Unmap()
		if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsMulticast() {
			continue
		}
		out = append(out, endpoint.FromAddrPort(netip.AddrPortFrom(ip, port)))
	}
	return out
}

var _ transfer.Observer = (*Console)(nil)
