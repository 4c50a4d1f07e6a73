package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/tcptransfer/tcptransfer-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Transfers         map[string]*TransferStats
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// TransferStats holds statistics for a single transfer.
type TransferStats struct {
	FirstSeen  time.Time
	LastSeen   time.Time
	Events     int
	Role       log.Role
	RemoteAddr string

	// Bytes and Total come from the latest progress checkpoint.
	Bytes   uint64
	Total   uint64
	Elapsed time.Duration
	Final   bool

	// LastState is the newest transfer state seen.
	LastState string
	LastError string
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Transfers:         make(map[string]*TransferStats),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}

	printStats(w, stats)
	return nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	xfer, ok := s.Transfers[event.TransferID]
	if !ok {
		xfer = &TransferStats{
			FirstSeen: event.Timestamp,
			LastSeen:  event.Timestamp,
			Role:      event.LocalRole,
		}
		s.Transfers[event.TransferID] = xfer
	}
	xfer.Events++
	if event.Timestamp.After(xfer.LastSeen) {
		xfer.LastSeen = event.Timestamp
	}
	if event.RemoteAddr != "" && xfer.RemoteAddr == "" {
		xfer.RemoteAddr = event.RemoteAddr
	}

	switch {
	case event.Progress != nil:
		xfer.Bytes = event.Progress.Bytes
		xfer.Total = event.Progress.Total
		xfer.Elapsed = event.Progress.Elapsed
		xfer.Final = xfer.Final || event.Progress.Final
	case event.StateChange != nil && event.StateChange.Entity == log.StateEntityTransfer:
		xfer.LastState = event.StateChange.NewState
	case event.Error != nil:
		s.Errors++
		xfer.LastError = event.Error.Message
	}
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== tcptransfer Trace Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Millisecond))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerTLS, log.LayerTransfer} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryFrame, log.CategoryState, log.CategoryHandshake, log.CategoryProgress, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut, log.DirectionNone} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Transfers: %d\n", len(stats.Transfers))
	if len(stats.Transfers) > 0 {
		type xferInfo struct {
			id    string
			stats *TransferStats
		}
		xfers := make([]xferInfo, 0, len(stats.Transfers))
		for id, ts := range stats.Transfers {
			xfers = append(xfers, xferInfo{id, ts})
		}
		sort.Slice(xfers, func(i, j int) bool {
			return xfers[i].stats.FirstSeen.Before(xfers[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, x := range xfers {
			duration := x.stats.LastSeen.Sub(x.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %s, %d events, duration %s\n",
				shortenTransferID(x.id), x.stats.Role, x.stats.Events, duration)
			if x.stats.RemoteAddr != "" {
				fmt.Fprintf(w, "           Peer: %s\n", x.stats.RemoteAddr)
			}
			if x.stats.Total > 0 || x.stats.Final {
				fmt.Fprintf(w, "           Payload: %d/%d bytes", x.stats.Bytes, x.stats.Total)
				if x.stats.Elapsed > 0 {
					fmt.Fprintf(w, " (%.0f bytes/s)", float64(x.stats.Bytes)/x.stats.Elapsed.Seconds())
				}
				fmt.Fprintln(w)
			}
			if x.stats.LastState != "" {
				fmt.Fprintf(w, "           State: %s\n", x.stats.LastState)
			}
			if x.stats.LastError != "" {
				fmt.Fprintf(w, "           Error: %s\n", x.stats.LastError)
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
