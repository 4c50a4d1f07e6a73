package log

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestFileLoggerCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "send.tlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("log file was not created: %v", err)
	}
	if logger.Path() != path {
		t.Errorf("Path: got %q, want %q", logger.Path(), path)
	}
}

func TestFileLoggerInDir(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewFileLoggerInDir(dir, "abc")
	if err != nil {
		t.Fatalf("NewFileLoggerInDir failed: %v", err)
	}
	defer logger.Close()

	if !strings.HasSuffix(logger.Path(), "abc"+FileExtension) {
		t.Errorf("unexpected path %q", logger.Path())
	}
}

func TestFileLoggerWritesSizePrefixFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recv.tlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	event := Event{
		Timestamp:  time.Now(),
		TransferID: "xfer-1",
		Direction:  DirectionIn,
		Layer:      LayerTransport,
		Category:   CategoryFrame,
		LocalRole:  RoleReceiver,
		Frame: &FrameEvent{
			Size:  8,
			Data:  []byte{1, 0, 0, 0, 0, 0, 0, 0},
			Value: 1,
		},
	}
	logger.Log(event)
	logger.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("decode event: %v", err)
	}

	if decoded.TransferID != "xfer-1" {
		t.Errorf("TransferID: got %q", decoded.TransferID)
	}
	if decoded.LocalRole != RoleReceiver {
		t.Errorf("LocalRole: got %v", decoded.LocalRole)
	}
	if decoded.Frame == nil || decoded.Frame.Value != 1 || decoded.Frame.Size != 8 {
		t.Errorf("Frame: got %+v", decoded.Frame)
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "append.tlog")

	for i := 0; i < 2; i++ {
		logger, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("NewFileLogger failed: %v", err)
		}
		logger.Log(Event{Timestamp: time.Now(), TransferID: "x", Category: CategoryState,
			StateChange: &StateChangeEvent{Entity: StateEntityTransfer, NewState: "INIT"}})
		logger.Close()
	}

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	events, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
}

func TestFileLoggerCloseIdempotent(t *testing.T) {
	logger, err := NewFileLogger(filepath.Join(t.TempDir(), "c.tlog"))
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	// Must not panic.
	logger.Log(Event{Timestamp: time.Now()})
}

func TestFileLoggerConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conc.tlog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				logger.Log(Event{
					Timestamp: time.Now(),
					Category:  CategoryProgress,
					Progress:  &ProgressEvent{Bytes: uint64(n*100 + j), Total: 1000},
				})
			}
		}(i)
	}
	wg.Wait()
	logger.Close()

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()
	events, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(events) != 200 {
		t.Errorf("got %d events, want 200", len(events))
	}
}

func TestFileLoggerBadPath(t *testing.T) {
	_, err := NewFileLogger(filepath.Join(t.TempDir(), "missing", "x.tlog"))
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}
