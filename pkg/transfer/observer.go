package transfer

import (
	"net"

	"github.com/tcptransfer/tcptransfer-go/pkg/endpoint"
)

// Observer is notified as a transfer advances. Calls happen on the
// coordinator's goroutine and must not block for long.
type Observer interface {
	// StateChanged reports every transition, including into FAILED.
	StateChanged(from, to State)

	// Listening is called in PRINT_ENDPOINT with the bound endpoint and the
	// SHA-256 fingerprint of the served certificate.
	Listening(ep endpoint.Endpoint, fingerprint []byte)

	// Secured is called after the handshake with the peer address, the
	// server certificate fingerprint and the session confirmation code.
	Secured(peer net.Addr, fingerprint []byte, code string)

	// PayloadStarted is called immediately before COPY_PAYLOAD.
	PayloadStarted(total uint64)

	// PayloadProgress reports the running byte count.
	PayloadProgress(copied uint64)

	// Finished is called in REPORT.
	Finished(result Result)
}

// NopObserver implements Observer with no-ops. Embed it to override only
// some methods.
type NopObserver struct{}

func (NopObserver) StateChanged(State, State) {}
func (NopObserver) Listening(endpoint.Endpoint, []byte) {}
func (NopObserver) Secured(net.Addr, []byte, string) {}
func (NopObserver) PayloadStarted(uint64) {}
func (NopObserver) PayloadProgress(uint64) {}
func (NopObserver) Finished(Result) {}

// MultiObserver forwards to each observer in order.
type MultiObserver []Observer

func (m MultiObserver) StateChanged(from, to State) {
	for _, o := range m {
		o.StateChanged(from, to)
	}
}

func (m MultiObserver) Listening(ep endpoint.Endpoint, fp []byte) {
	for _, o := range m {
		o.Listening(ep, fp)
	}
}

func (m MultiObserver) Secured(peer net.Addr, fp []byte, code string) {
	for _, o := range m {
		o.Secured(peer, fp, code)
	}
}

func (m MultiObserver) PayloadStarted(total uint64) {
	for _, o := range m {
		o.PayloadStarted(total)
	}
}

func (m MultiObserver) PayloadProgress(copied uint64) {
	for _, o := range m {
		o.PayloadProgress(copied)
	}
}

func (m MultiObserver) Finished(r Result) {
	for _, o := range m {
		o.Finished(r)
	}
}

var (
	_ Observer = NopObserver{}
	_ Observer = MultiObserver(nil)
)
