package realtime

import (
	"context"
	"sync"
)

// DeliveryResult is the outcome of one send attempt on a Channel.
type DeliveryResult struct {
	Err error
}

func Delivered() DeliveryResult { return DeliveryResult{} }

func Failed(err error) DeliveryResult { return DeliveryResult{Err: err} }

func (r DeliveryResult) OK() bool { return r.Err == nil }

// Channel is one open realtime connection.
type Channel interface {
	Deliver(ctx context.Context, payload []byte) DeliveryResult
	Close() error
}

// Registry holds the channels currently eligible for broadcasts.
type Registry struct {
	mu       sync.RWMutex
	channels map[Channel]struct{}
}

func NewRegistry() *Registry {
	return &Registry{channels: make(map[Channel]struct{})}
}

func (r *Registry) Register(ch Channel) {
	r.mu.Lock()
	r.channels[ch] = struct{}{}
	r.mu.Unlock()
}

// Unregister removes ch and reports whether it was registered.
func (r *Registry) Unregister(ch Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.channels[ch]; !ok {
		return false
	}
	delete(r.channels, ch)
	return true
}

// Snapshot returns a copy of the registered channels.
func (r *Registry) Snapshot() []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Channel, 0, len(r.channels))
	for ch := range r.channels {
		out = append(out, ch)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
