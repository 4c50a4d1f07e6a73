// Package log records transfer protocol events.
//
// Operational messages go through the standard library log and slog
// packages. This package is the machine-readable trace next to them: every
// state transition, the size prefix as it crossed the wire, TLS handshake
// parameters, progress checkpoints and failures, each stamped with the
// transfer ID.
//
// # Basic Usage
//
//	// Console, at debug level
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// Binary trace file
//	fl, _ := log.NewFileLogger("/tmp/send.tlog")
//	defer fl.Close()
//	cfg.ProtocolLogger = fl
//
//	// Both
//	cfg.ProtocolLogger = log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fl)
//
// # File Format
//
// Trace files are a concatenation of CBOR-encoded Event values with integer
// map keys (.tlog). The tcptransfer-log command views, filters, summarizes
// and exports them.
package log
