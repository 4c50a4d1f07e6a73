package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcptransfer/tcptransfer-go/pkg/log"
)

func TestBackoffGrowsToMax(t *testing.T) {
	b := NewBackoff(BackoffConfig{Initial: 100 * time.Millisecond, Max: 500 * time.Millisecond})

	var got []time.Duration
	for range 5 {
		got = append(got, b.Next())
	}
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		500 * time.Millisecond,
		500 * time.Millisecond,
	}, got)
	assert.Equal(t, 5, b.Attempts())

	b.Reset()
	assert.Equal(t, 0, b.Attempts())
	assert.Equal(t, 100*time.Millisecond, b.Current())
}

func TestBackoffDefaultsAndJitter(t *testing.T) {
	b := NewBackoff(BackoffConfig{Jitter: JitterFactor})
	assert.Equal(t, InitialBackoff, b.Current())

	d := b.Next()
	assert.GreaterOrEqual(t, d, InitialBackoff)
	assert.LessOrEqual(t, d, InitialBackoff+time.Duration(float64(InitialBackoff)*JitterFactor))
	assert.Equal(t, 2*InitialBackoff, b.Current())
}

func TestDialRetriesExhausted(t *testing.T) {
	a := listenLoopback(t)
	ep := a.Endpoint()
	require.NoError(t, a.Close())

	logger := &captureLogger{}
	_, err := Dial(context.Background(), ep, ClientConfig{
		Retries: 2,
		Backoff: BackoffConfig{Initial: 10 * time.Millisecond},
		Logger:  logger,
	})
	require.Error(t, err)

	require.Len(t, logger.events, 2)
	for _, e := range logger.events {
		require.NotNil(t, e.Error)
		assert.Equal(t, log.LayerTransport, e.Error.Layer)
		assert.Contains(t, e.Error.Context, "retrying in")
	}
}

func TestDialRetrySucceedsOnceListening(t *testing.T) {
	a := listenLoopback(t)
	ep := a.Endpoint()
	require.NoError(t, a.Close())

	ready := make(chan net.Listener, 1)
	go func() {
		time.Sleep(100 * time.Millisecond)
		l, err := net.Listen("tcp", ep.String())
		if err != nil {
			close(ready)
			return
		}
		ready <- l
	}()

	conn, err := Dial(context.Background(), ep, ClientConfig{
		Retries: 20,
		Backoff: BackoffConfig{Initial: 25 * time.Millisecond, Max: 50 * time.Millisecond},
	})
	l, ok := <-ready
	if !ok {
		t.Skip("port was taken before it could be reused")
	}
	defer l.Close()
	require.NoError(t, err)
	conn.Close()
}

func TestDialRetryStopsOnCancel(t *testing.T) {
	a := listenLoopback(t)
	ep := a.Endpoint()
	require.NoError(t, a.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Dial(ctx, ep, ClientConfig{Retries: 100, Backoff: BackoffConfig{Initial: time.Second}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
