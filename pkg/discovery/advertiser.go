package discovery

import (
	"context"
	"time"
)

// Advertiser announces a waiting sender.
type Advertiser interface {
	// Advertise starts (or replaces) the announcement.
	Advertise(ctx context.Context, a *Announcement) error

	// Stop withdraws the announcement. Safe to call when not advertising.
	Stop() error
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL.
	// Default: 120 seconds.
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{
		Interface: "",
		TTL:       DefaultTTL,
	}
}
