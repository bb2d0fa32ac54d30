package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeChannel struct {
	mu       sync.Mutex
	fail     bool
	received [][]byte
	closed   int
}

func (c *fakeChannel) Deliver(_ context.Context, payload []byte) DeliveryResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail || c.closed > 0 {
		return Failed(errors.New("broken pipe"))
	}
	c.received = append(c.received, payload)
	return Delivered()
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
	return nil
}

func (c *fakeChannel) messages() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.received...)
}

func (c *fakeChannel) setFail(fail bool) {
	c.mu.Lock()
	c.fail = fail
	c.mu.Unlock()
}

func TestBroadcastEmptyRegistry(t *testing.T) {
	hub := NewHub(discardLogger())
	report := hub.Broadcast(context.Background(), NewEmailsUpdated("archive", 3))
	assert.Equal(t, Report{}, report)
	assert.Equal(t, int64(1), hub.Stats().Broadcasts)
}

func TestBroadcastDeliversToEveryChannel(t *testing.T) {
	hub := NewHub(discardLogger())
	a, b := &fakeChannel{}, &fakeChannel{}
	hub.Register(a)
	hub.Register(b)

	report := hub.Broadcast(context.Background(), NewEmailsUpdated("mark_read", 2))
	assert.Equal(t, Report{Delivered: 2}, report)

	for _, ch := range []*fakeChannel{a, b} {
		msgs := ch.messages()
		require.Len(t, msgs, 1)
		assert.JSONEq(t, `{"type":"emails_updated","action":"mark_read","count":2}`, string(msgs[0]))
	}
}

func TestBroadcastEvictsFailedChannels(t *testing.T) {
	hub := NewHub(discardLogger())
	healthy, broken, another := &fakeChannel{}, &fakeChannel{fail: true}, &fakeChannel{}
	hub.Register(healthy)
	hub.Register(broken)
	hub.Register(another)

	report := hub.Broadcast(context.Background(), NewEmailsUpdated("delete", 1))
	assert.Equal(t, Report{Delivered: 2, Evicted: 1}, report)
	for _, ch := range hub.Registry().Snapshot() {
		assert.NotSame(t, broken, ch)
	}
	assert.Equal(t, 1, broken.closed)
	assert.Equal(t, 2, hub.Registry().Len())

	// Recovery of the transport does not bring an evicted channel back.
	broken.setFail(false)
	hub.Broadcast(context.Background(), NewEmailsUpdated("delete", 1))
	assert.Empty(t, broken.messages())
	assert.Len(t, healthy.messages(), 2)
	assert.Len(t, another.messages(), 2)

	stats := hub.Stats()
	assert.Equal(t, int64(2), stats.Broadcasts)
	assert.Equal(t, int64(4), stats.Deliveries)
	assert.Equal(t, int64(1), stats.Evictions)
}

func TestUnregisterIsIdempotent(t *testing.T) {
	hub := NewHub(discardLogger())
	ch := &fakeChannel{}
	hub.Register(ch)

	hub.Unregister(ch)
	hub.Unregister(ch)

	assert.Equal(t, 0, hub.Registry().Len())
	assert.False(t, hub.Registry().Unregister(ch))
}

func TestCloseAll(t *testing.T) {
	hub := NewHub(discardLogger())
	a, b := &fakeChannel{}, &fakeChannel{}
	hub.Register(a)
	hub.Register(b)

	assert.Equal(t, 2, hub.CloseAll())
	assert.Equal(t, 0, hub.Registry().Len())
	assert.Equal(t, 1, a.closed)
	assert.Equal(t, 1, b.closed)
	assert.Equal(t, 0, hub.CloseAll())
}

func TestSnapshotIsACopy(t *testing.T) {
	reg := NewRegistry()
	a := &fakeChannel{}
	reg.Register(a)

	snap := reg.Snapshot()
	reg.Unregister(a)
	reg.Register(&fakeChannel{})

	require.Len(t, snap, 1)
	assert.Same(t, a, snap[0].(*fakeChannel))
}

// Channels registered before a broadcast starts get that event exactly once,
// even while other goroutines register and unregister channels.
func TestBroadcastExactlyOnceUnderChurn(t *testing.T) {
	hub := NewHub(discardLogger())
	stable := make([]*fakeChannel, 20)
	for i := range stable {
		stable[i] = &fakeChannel{}
		hub.Register(stable[i])
	}

	const broadcasts = 50
	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			ch := &fakeChannel{}
			hub.Register(ch)
			hub.Unregister(ch)
		}
	}()

	var senders sync.WaitGroup
	for i := 0; i < broadcasts; i++ {
		senders.Add(1)
		go func(n int) {
			defer senders.Done()
			hub.Broadcast(context.Background(), NewEmailsUpdated("mark_read", int64(n)))
		}(i)
	}
	senders.Wait()
	close(stop)
	wg.Wait()

	for _, ch := range stable {
		msgs := ch.messages()
		require.Len(t, msgs, broadcasts)
		seen := map[int64]bool{}
		for _, raw := range msgs {
			var evt EmailsUpdated
			require.NoError(t, json.Unmarshal(raw, &evt))
			assert.False(t, seen[evt.Count], "duplicate delivery of %d", evt.Count)
			seen[evt.Count] = true
		}
	}
}

func TestEventEncoding(t *testing.T) {
	cases := []struct {
		event Event
		want  string
	}{
		{NewConnected(), `{"type":"connected","message":"Realtime channel ready"}`},
		{NewEmailCreated(map[string]any{"id": "abc"}), `{"type":"email_created","email":{"id":"abc"}}`},
		{NewEmailsUpdated("add_tag", 0), `{"type":"emails_updated","action":"add_tag","count":0}`},
	}
	for _, tc := range cases {
		raw, err := json.Marshal(tc.event)
		require.NoError(t, err)
		assert.JSONEq(t, tc.want, string(raw))
	}
}
