package discovery

import (
	"context"
	"net"

	"github.com/tcptransfer/tcptransfer-go/pkg/endpoint"
	"github.com/tcptransfer/tcptransfer-go/pkg/transfer"
)

// Announcer advertises a sender while it waits for its peer. It implements
// transfer.Observer: the record is registered in PRINT_ENDPOINT and withdrawn
// once the session is secured or the transfer ends.
type Announcer struct {
	transfer.NopObserver

	ctx        context.Context
	advertiser Advertiser
	instance   string

	// OnError receives advertise failures. Discovery is best effort and
	// never fails the transfer.
	OnError func(error)
}

// NewAnnouncer creates an Announcer for instance.
func NewAnnouncer(ctx context.Context, advertiser Advertiser, instance string) *Announcer {
	return &Announcer{ctx: ctx, advertiser: advertiser, instance: instance}
}

// Listening starts the advertisement.
func (a *Announcer) Listening(ep endpoint.Endpoint, fingerprint []byte) {
	err := a.advertiser.Advertise(a.ctx, &Announcement{
		Instance:    a.instance,
		Port:        ep.Port(),
		Fingerprint: fingerprint,
	})
	if err != nil && a.OnError != nil {
		a.OnError(err)
	}
}

// Secured withdraws the advertisement.
func (a *Announcer) Secured(net.Addr, []byte, string) {
	_ = a.advertiser.Stop()
}

// StateChanged withdraws the advertisement when the transfer fails.
func (a *Announcer) StateChanged(_, to transfer.State) {
	if to.Terminal() {
		_ = a.advertiser.Stop()
	}
}

var _ transfer.Observer = (*Announcer)(nil)
