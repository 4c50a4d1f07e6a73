package commands

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tcptransfer/tcptransfer-go/pkg/log"
)

func readAll(t *testing.T, path string) []log.Event {
	t.Helper()
	reader, err := log.NewReader(path)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer reader.Close()

	events, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("failed to read events: %v", err)
	}
	return events
}

func TestFilterByTransferIDPrefix(t *testing.T) {
	path := createTestLogFile(t, sampleTrace(time.Now()))
	out := filepath.Join(t.TempDir(), "filtered.tlog")

	var buf bytes.Buffer
	if err := RunFilter(path, FilterOptions{Output: out, TransferID: "6f1c2a9e"}, &buf); err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	events := readAll(t, out)
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}
	for _, e := range events {
		if e.TransferID != senderID {
			t.Errorf("unexpected transfer %s", e.TransferID)
		}
	}
	if !strings.Contains(buf.String(), "Filtered 5 events") {
		t.Errorf("unexpected summary: %s", buf.String())
	}
}

func TestFilterByTimeRange(t *testing.T) {
	base := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, sampleTrace(base))
	out := filepath.Join(t.TempDir(), "filtered.tlog")

	opts := FilterOptions{
		Output:    out,
		TimeStart: base.Add(time.Second).Format(time.RFC3339),
		TimeEnd:   base.Add(3 * time.Second).Format(time.RFC3339),
	}
	if err := RunFilter(path, opts, &bytes.Buffer{}); err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	// The progress and DONE events at +2s.
	if events := readAll(t, out); len(events) != 2 {
		t.Errorf("expected 2 events, got %d", len(events))
	}
}

func TestFilterCombined(t *testing.T) {
	path := createTestLogFile(t, sampleTrace(time.Now()))
	out := filepath.Join(t.TempDir(), "filtered.tlog")

	opts := FilterOptions{Output: out, Role: "sender", Layer: "transfer", Category: "state", Direction: "none"}
	if err := RunFilter(path, opts, &bytes.Buffer{}); err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	events := readAll(t, out)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].StateChange.NewState != "DONE" {
		t.Errorf("last state = %s", events[1].StateChange.NewState)
	}
}

func TestFilterInvalidOptions(t *testing.T) {
	path := createTestLogFile(t, nil)
	out := filepath.Join(t.TempDir(), "filtered.tlog")

	for _, opts := range []FilterOptions{
		{Output: out, TimeStart: "yesterday"},
		{Output: out, TimeEnd: "tomorrow"},
		{Output: out, Layer: "wire"},
		{Output: out, Direction: "up"},
		{Output: out, Category: "message"},
		{Output: out, Role: "relay"},
	} {
		if err := RunFilter(path, opts, &bytes.Buffer{}); err == nil {
			t.Errorf("expected error for %+v", opts)
		}
	}
}
