// Package transfer sequences a one-shot file transfer for either role.
//
// A Coordinator runs exactly one transfer. The sender walks
//
//	INIT → OPEN_FILE → BIND_LISTEN → PRINT_ENDPOINT → ACCEPT →
//	TLS_ACCEPT → WRITE_SIZE → COPY_PAYLOAD → REPORT → DONE
//
// and the receiver walks
//
//	INIT → READ_PEER → CONNECT → TLS_CONNECT → READ_SIZE →
//	OPEN_SINK → COPY_PAYLOAD → REPORT → DONE
//
// Any failed step moves to FAILED and ends the transfer with an *Error whose
// Kind classifies the failure. Nothing is retried. A receiver's partially
// written destination file is left in place.
package transfer
