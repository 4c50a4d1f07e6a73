// Package commands implements the tcptransfer-log CLI commands.
package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tcptransfer/tcptransfer-go/pkg/log"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Layer     *log.Layer
	Direction *log.Direction
	Category  *log.Category
	Role      *log.Role
}

func (f ViewFilter) logFilter() log.Filter {
	return log.Filter{
		Layer:     f.Layer,
		Direction: f.Direction,
		Category:  f.Category,
		Role:      f.Role,
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [xfer:id] ROLE DIRECTION LAYER Type
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	xferID := shortenTransferID(event.TransferID)

	fmt.Fprintf(w, "%s [xfer:%s] %-8s %-3s %s %s\n",
		ts, xferID, event.LocalRole, event.Direction, event.Layer, typeLabel(event))

	if event.RemoteAddr != "" {
		fmt.Fprintf(w, "  Peer: %s\n", event.RemoteAddr)
	}

	switch {
	case event.Frame != nil:
		formatFrameDetails(w, event.Frame)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Handshake != nil:
		formatHandshakeDetails(w, event.Handshake)
	case event.Progress != nil:
		formatProgressDetails(w, event.Progress)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w) // Blank line between events
}

func typeLabel(event log.Event) string {
	switch {
	case event.Frame != nil:
		return "Frame"
	case event.StateChange != nil:
		return "State"
	case event.Handshake != nil:
		return "Handshake"
	case event.Progress != nil:
		return "Progress"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// shortenTransferID returns the first 8 characters of the transfer ID.
func shortenTransferID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatFrameDetails(w io.Writer, frame *log.FrameEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", frame.Size)
	fmt.Fprintf(w, "  Declared length: %d bytes\n", frame.Value)
	if len(frame.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s\n", hex.EncodeToString(frame.Data))
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity.String())
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatHandshakeDetails(w io.Writer, hs *log.HandshakeEvent) {
	fmt.Fprintf(w, "  Version: %s\n", hs.VersionName())
	fmt.Fprintf(w, "  Cipher: %s\n", hs.CipherSuiteName())
	if hs.ServerName != "" {
		fmt.Fprintf(w, "  ServerName: %s\n", hs.ServerName)
	}
	if hs.PeerFingerprint != "" {
		fmt.Fprintf(w, "  Peer certificate: sha256:%s\n", hs.PeerFingerprint)
	}
	fmt.Fprintf(w, "  Duration: %s\n", formatDuration(hs.Duration))
}

func formatProgressDetails(w io.Writer, p *log.ProgressEvent) {
	fmt.Fprintf(w, "  %d / %d bytes (%.1f%%)", p.Bytes, p.Total, p.Percent())
	if p.Final {
		fmt.Fprint(w, " final")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Elapsed: %s\n", formatDuration(p.Elapsed))
	if p.Elapsed > 0 {
		fmt.Fprintf(w, "  Rate: %.0f bytes/s\n", float64(p.Bytes)/p.Elapsed.Seconds())
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	if err.Kind != "" {
		fmt.Fprintf(w, "  Kind: %s\n", err.Kind)
	}
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ParseLayerFlag parses a layer name (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "tls":
		return log.LayerTLS, nil
	case "transfer":
		return log.LayerTransfer, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, tls, or transfer)", s)
	}
}

// ParseDirectionFlag parses a direction name (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	case "none":
		return log.DirectionNone, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in, out, or none)", s)
	}
}

// ParseCategoryFlag parses a category name (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "frame":
		return log.CategoryFrame, nil
	case "state":
		return log.CategoryState, nil
	case "handshake":
		return log.CategoryHandshake, nil
	case "progress":
		return log.CategoryProgress, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be frame, state, handshake, progress, or error)", s)
	}
}

// ParseRoleFlag parses a role name (case-insensitive).
func ParseRoleFlag(s string) (log.Role, error) {
	switch strings.ToLower(s) {
	case "sender":
		return log.RoleSender, nil
	case "receiver":
		return log.RoleReceiver, nil
	default:
		return 0, fmt.Errorf("invalid role: %s (must be sender or receiver)", s)
	}
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter.logFilter())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}

	return nil
}
