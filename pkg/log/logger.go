package log

// Logger receives protocol events from the transfer core.
// A nil Logger or NoopLogger disables tracing.
type Logger interface {
	// Log records one event. Implementations must be safe for concurrent
	// use and should return quickly; the caller is on the data path.
	Log(event Event)
}

// NoopLogger drops every event. The zero value is ready to use.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// Or returns l, or NoopLogger when l is nil.
func Or(l Logger) Logger {
	if l == nil {
		return NoopLogger{}
	}
	return l
}

var _ Logger = NoopLogger{}
