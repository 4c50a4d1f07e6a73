package commands

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/tcptransfer/tcptransfer-go/pkg/log"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.tlog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

const (
	senderID   = "6f1c2a9e-0d4b-4c1e-9a57-3b1f7e8d2c10"
	receiverID = "b2e4d6f8-1a3c-4e5f-8a9b-0c1d2e3f4a5b"
)

// sampleTrace is a sender trace followed by a failed receiver trace.
func sampleTrace(base time.Time) []log.Event {
	return []log.Event{
		{Timestamp: base, TransferID: senderID, LocalRole: log.RoleSender, Layer: log.LayerTransfer,
			Category: log.CategoryState, StateChange: &log.StateChangeEvent{
				Entity: log.StateEntityTransfer, OldState: "INIT", NewState: "OPEN_FILE"}},
		{Timestamp: base.Add(10 * time.Millisecond), TransferID: senderID, LocalRole: log.RoleSender,
			RemoteAddr: "10.0.0.9:41000", Layer: log.LayerTLS, Category: log.CategoryHandshake,
			Handshake: &log.HandshakeEvent{Version: 0x0304, CipherSuite: 0x1301, ServerName: "tcptransfer",
				Duration: 3 * time.Millisecond}},
		{Timestamp: base.Add(20 * time.Millisecond), TransferID: senderID, LocalRole: log.RoleSender,
			Direction: log.DirectionOut, Layer: log.LayerTransport, Category: log.CategoryFrame,
			Frame: &log.FrameEvent{Size: 8, Data: []byte{0x00, 0x10, 0, 0, 0, 0, 0, 0}, Value: 4096}},
		{Timestamp: base.Add(2 * time.Second), TransferID: senderID, LocalRole: log.RoleSender,
			Direction: log.DirectionOut, Layer: log.LayerTransfer, Category: log.CategoryProgress,
			Progress: &log.ProgressEvent{Bytes: 4096, Total: 4096, Elapsed: 2 * time.Second, Final: true}},
		{Timestamp: base.Add(2 * time.Second), TransferID: senderID, LocalRole: log.RoleSender, Layer: log.LayerTransfer,
			Category: log.CategoryState, StateChange: &log.StateChangeEvent{
				Entity: log.StateEntityTransfer, OldState: "REPORT", NewState: "DONE"}},
		{Timestamp: base.Add(3 * time.Second), TransferID: receiverID, LocalRole: log.RoleReceiver,
			Layer: log.LayerTransport, Category: log.CategoryError,
			Error: &log.ErrorEventData{Layer: log.LayerTransport, Kind: "protocol",
				Message: "size prefix truncated", Context: "READ_SIZE"}},
	}
}
