package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes events to an slog.Logger at debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter wraps logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log emits the event as a "protocol" record with one attribute per field.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("transfer_id", event.TransferID),
		slog.String("role", event.LocalRole.String()),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote_addr", event.RemoteAddr))
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.Uint64("size_prefix", event.Frame.Value),
		)
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Handshake != nil:
		attrs = append(attrs,
			slog.String("tls_version", event.Handshake.VersionName()),
			slog.String("cipher_suite", event.Handshake.CipherSuiteName()),
			slog.Duration("handshake_time", event.Handshake.Duration),
		)
		if event.Handshake.PeerFingerprint != "" {
			attrs = append(attrs, slog.String("peer_fingerprint", event.Handshake.PeerFingerprint))
		}
	case event.Progress != nil:
		attrs = append(attrs,
			slog.Uint64("bytes", event.Progress.Bytes),
			slog.Uint64("total", event.Progress.Total),
			slog.Duration("elapsed", event.Progress.Elapsed),
		)
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
		)
		if event.Error.Kind != "" {
			attrs = append(attrs, slog.String("error_kind", event.Error.Kind))
		}
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
