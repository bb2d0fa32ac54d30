package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
)

// Report summarizes one broadcast.
type Report struct {
	Delivered int
	Evicted   int
}

type Stats struct {
	Connections int
	Broadcasts  int64
	Deliveries  int64
	Evictions   int64
}

// Hub fans events out to every registered channel. A channel whose delivery
// fails is unregistered and closed once the sweep is over; the remaining
// channels still receive the event.
type Hub struct {
	registry *Registry
	logger   *slog.Logger

	broadcasts atomic.Int64
	deliveries atomic.Int64
	evictions  atomic.Int64
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{registry: NewRegistry(), logger: logger}
}

func (h *Hub) Registry() *Registry {
	return h.registry
}

func (h *Hub) Register(ch Channel) {
	h.registry.Register(ch)
	h.logger.Debug("realtime channel registered", "connections", h.registry.Len())
}

// Unregister removes ch and closes it. Safe to call more than once.
func (h *Hub) Unregister(ch Channel) {
	if h.registry.Unregister(ch) {
		h.logger.Debug("realtime channel unregistered", "connections", h.registry.Len())
	}
	_ = ch.Close()
}

func (h *Hub) Broadcast(ctx context.Context, event Event) Report {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("encode realtime event", "type", event.Kind(), "error", err)
		return Report{}
	}

	var report Report
	var failed []Channel
	for _, ch := range h.registry.Snapshot() {
		result := ch.Deliver(ctx, payload)
		if !result.OK() {
			h.logger.Debug("realtime delivery failed", "type", event.Kind(), "error", result.Err)
			failed = append(failed, ch)
			continue
		}
		report.Delivered++
	}
	for _, ch := range failed {
		if h.registry.Unregister(ch) {
			report.Evicted++
		}
		_ = ch.Close()
	}

	h.broadcasts.Add(1)
	h.deliveries.Add(int64(report.Delivered))
	h.evictions.Add(int64(report.Evicted))
	return report
}

// CloseAll unregisters and closes every channel, returning how many were
// open.
func (h *Hub) CloseAll() int {
	closed := 0
	for _, ch := range h.registry.Snapshot() {
		if h.registry.Unregister(ch) {
			closed++
		}
		_ = ch.Close()
	}
	return closed
}

func (h *Hub) Stats() Stats {
	return Stats{
		Connections: h.registry.Len(),
		Broadcasts:  h.broadcasts.Load(),
		Deliveries:  h.deliveries.Load(),
		Evictions:   h.evictions.Load(),
	}
}
