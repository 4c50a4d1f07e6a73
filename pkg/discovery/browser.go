package discovery

import (
	"context"
	"time"
)

// Browser finds advertised senders.
type Browser interface {
	// Browse streams senders as they are found. The channel is closed when
	// ctx ends.
	Browse(ctx context.Context) (<-chan *Peer, error)

	// FindPeer returns the first sender found within the configured timeout.
	FindPeer(ctx context.Context) (*Peer, error)
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// Timeout bounds FindPeer. Default: BrowseTimeout.
	Timeout time.Duration

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Timeout:   BrowseTimeout,
		Interface: "",
	}
}
