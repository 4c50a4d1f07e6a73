package discovery

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"

	"github.com/enbility/zeroconf/v3"

	"github.com/tcptransfer/tcptransfer-go/pkg/endpoint"
)

// MDNSAdvertiser implements the Advertiser interface using zeroconf.
type MDNSAdvertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewMDNSAdvertiser creates a new mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) (*MDNSAdvertiser, error) {
	return &MDNSAdvertiser{config: config}, nil
}

// getInterfaces returns the network interfaces to use for advertising.
// Returns nil to use all interfaces.
func (a *MDNSAdvertiser) getInterfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}

	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Advertise registers the sender's service.
func (a *MDNSAdvertiser) Advertise(ctx context.Context, info *Announcement) error {
	if info.Port == 0 {
		return fmt.Errorf("advertise: port must be non-zero")
	}
	instance := TruncateInstanceName(info.Instance)
	if err := ValidateInstanceName(instance); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Stop existing if any
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := zeroconf.Register(
		instance,
		ServiceType,
		Domain,
		int(info.Port),
		TXTRecordsToStrings(EncodeTXT(info)),
		a.getInterfaces(),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	a.server = server
	return nil
}

// Stop withdraws the announcement.
func (a *MDNSAdvertiser) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
	return nil
}

// MDNSBrowser implements the Browser interface using zeroconf.
type MDNSBrowser struct {
	config BrowserConfig
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) (*MDNSBrowser, error) {
	if config.Timeout <= 0 {
		config.Timeout = BrowseTimeout
	}
	return &MDNSBrowser{config: config}, nil
}

// Browse searches for senders. Services are aggregated by instance name, so
// each sender is emitted once even when seen on several interfaces.
func (b *MDNSBrowser) Browse(ctx context.Context) (<-chan *Peer, error) {
	out := make(chan *Peer)

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)

		seen := make(map[string]bool)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				peer, err := entryToPeer(entry)
				if err != nil || seen[peer.Instance] {
					continue
				}
				seen[peer.Instance] = true
				select {
				case out <- peer:
				case <-ctx.Done():
					return
				}

			case <-removed:
				// A sender withdraws its record once connected; peers
				// already emitted stay emitted.

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, b.browserOptions()...)
	}()

	return out, nil
}

// FindPeer returns the first sender found within the configured timeout.
func (b *MDNSBrowser) FindPeer(ctx context.Context) (*Peer, error) {
	ctx, cancel := context.WithTimeout(ctx, b.config.Timeout)
	defer cancel()

	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}

	select {
	case peer, ok := <-results:
		if ok && peer != nil {
			return peer, nil
		}
	case <-ctx.Done():
	}
	return nil, fmt.Errorf("%w within %s", ErrNoPeers, b.config.Timeout)
}

// browserOptions returns zeroconf client options based on config.
func (b *MDNSBrowser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption

	// Select specific interface if configured
	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}

	return opts
}

// entryToPeer converts a zeroconf entry to a Peer.
func entryToPeer(entry *zeroconf.ServiceEntry) (*Peer, error) {
	return newPeer(entry.Instance, entry.HostName, entry.Port, entry.Text, entry.AddrIPv4, entry.AddrIPv6)
}

func newPeer(instance, host string, port int, text []string, v4, v6 []net.IP) (*Peer, error) {
	fp, err := DecodeTXT(StringsToTXTRecords(text))
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 0xffff {
		return nil, fmt.Errorf("%w: port %d", ErrNoAddresses, port)
	}

	peer := &Peer{
		Instance:    instance,
		Host:        host,
		Fingerprint: fp,
	}
	for _, ips := range [][]net.IP{v4, v6} {
		for _, ip := range ips {
			addr, ok := netip.AddrFromSlice(ip)
			if !ok {
				continue
			}
			addr = addr.Unmap()
			// Link-local IPv6 needs a zone, which endpoints do not carry.
			if addr.Is6() && addr.IsLinkLocalUnicast() {
				continue
			}
			peer.Endpoints = append(peer.Endpoints,
				endpoint.FromAddrPort(netip.AddrPortFrom(addr, uint16(port))))
		}
	}
	if len(peer.Endpoints) == 0 {
		return nil, ErrNoAddresses
	}
	return peer, nil
}

// Ensure MDNSAdvertiser implements Advertiser interface.
var _ Advertiser = (*MDNSAdvertiser)(nil)

// Ensure MDNSBrowser implements Browser interface.
var _ Browser = (*MDNSBrowser)(nil)
