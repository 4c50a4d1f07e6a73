package transfer

import "time"

// Result summarizes a completed transfer.
type Result struct {
	// TransferID is the UUID used in protocol log events.
	TransferID string

	// Role that ran.
	Role RoleKind

	// Bytes is the payload size copied.
	Bytes uint64

	// Elapsed covers COPY_PAYLOAD only, measured on the monotonic clock.
	Elapsed time.Duration

	// Peer is the remote address.
	Peer string

	// Path is the source (sender) or destination (receiver) file.
	Path string
}

// BytesPerSecond returns throughput over Elapsed. A zero duration yields 0.
func (r Result) BytesPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Bytes) / r.Elapsed.Seconds()
}
