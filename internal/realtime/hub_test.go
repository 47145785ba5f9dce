package realtime

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu       sync.Mutex
	received [][]byte
	fail     bool
	closed   bool
}

func (c *fakeClient) Send(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return false
	}
	c.received = append(c.received, message)
	return true
}

func (c *fakeClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// blockingClient holds every Send until unblock is closed.
type blockingClient struct {
	entered chan struct{}
	unblock chan struct{}
}

func (c *blockingClient) Send([]byte) bool {
	close(c.entered)
	<-c.unblock
	return true
}

func (c *blockingClient) Close() {}

func TestHub_PublishPerTopic(t *testing.T) {
	h := NewHub()
	a, b, broken := &fakeClient{}, &fakeClient{}, &fakeClient{fail: true}
	h.Register("cache", a)
	h.Register("cache", broken)
	h.Register("other", b)

	h.Publish("cache", []byte(`{"action":"clear"}`))

	require.Len(t, a.received, 1)
	require.Empty(t, b.received)
	// the failed client is dropped
	require.Equal(t, 1, h.Subscribers("cache"))
	require.True(t, broken.isClosed())

	h.Unregister("cache", a)
	require.Zero(t, h.Subscribers("cache"))
	h.Publish("cache", []byte("dropped"))
	require.Len(t, a.received, 1)
}

func TestHub_SlowClientDoesNotBlockHub(t *testing.T) {
	h := NewHub()
	slow := &blockingClient{entered: make(chan struct{}), unblock: make(chan struct{})}
	h.Register("cache", slow)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Publish("cache", []byte("event"))
	}()
	<-slow.entered

	registered := make(chan struct{})
	go func() {
		h.Register("cache", &fakeClient{})
		close(registered)
	}()

	select {
	case <-registered:
	case <-time.After(time.Second):
		t.Fatal("Register blocked behind a slow Send")
	}
	require.Equal(t, 2, h.Subscribers("cache"))

	close(slow.unblock)
	<-done
}
