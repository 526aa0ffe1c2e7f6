package queue

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// silentBroker accepts TCP connections and never speaks AMQP.
type silentBroker struct {
	ln       net.Listener
	accepted atomic.Int32
	mu       sync.Mutex
	conns    []net.Conn
}

func newSilentBroker(t *testing.T) *silentBroker {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	b := &silentBroker{ln: ln}
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			b.accepted.Add(1)
			b.mu.Lock()
			b.conns = append(b.conns, c)
			b.mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, c := range b.conns {
			_ = c.Close()
		}
	})
	return b
}

func (b *silentBroker) url() string { return "amqp://guest:guest@" + b.ln.Addr().String() + "/" }

func TestPublishHonorsDeadlineAgainstSilentBroker(t *testing.T) {
	b := newSilentBroker(t)
	p := NewPublisher(b.url(), nil)
	t.Cleanup(func() { _ = p.Close() })

	const callers = 3
	var wg sync.WaitGroup
	elapsed := make([]time.Duration, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()
			start := time.Now()
			errs[i] = p.Publish(ctx, AuthEvent{ID: "ev", Type: EventLogin})
			elapsed[i] = time.Since(start)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		assert.Error(t, errs[i])
		assert.Less(t, elapsed[i], 2*time.Second, "caller %d", i)
	}
}

func TestPublishFailsFastAfterDialFailure(t *testing.T) {
	b := newSilentBroker(t)
	p := NewPublisher(b.url(), nil)
	t.Cleanup(func() { _ = p.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.Error(t, p.Publish(ctx, AuthEvent{ID: "ev-1", Type: EventLogin}))
	assert.Eventually(t, func() bool { return b.accepted.Load() == 1 }, time.Second, 5*time.Millisecond)

	start := time.Now()
	err := p.Publish(context.Background(), AuthEvent{ID: "ev-2", Type: EventLogin})
	assert.ErrorIs(t, err, ErrBrokerUnavailable)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.EqualValues(t, 1, b.accepted.Load())
}

func TestPublishWithDoneContextDoesNotDial(t *testing.T) {
	b := newSilentBroker(t)
	p := NewPublisher(b.url(), nil)
	t.Cleanup(func() { _ = p.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Publish(ctx, AuthEvent{ID: "ev", Type: EventLogin})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Never(t, func() bool { return b.accepted.Load() > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}
