// Package live re-runs stored queries whenever the tables they read change,
// pushing fresh results to every subscriber without a manual refetch.
//
// Writers call Hub.Notify with the tables they touched after the write has
// committed. Each subscription re-executes its own query; filtering is the
// query's job, not the hub's.
package live

import (
	"sync"
)

// Hub is an observer registry keyed by table name.
type Hub struct {
	mu     sync.Mutex
	tables map[string]map[trigger]struct{}
}

// trigger is the hub-facing side of a subscription.
type trigger interface {
	wake()
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{tables: make(map[string]map[trigger]struct{})}
}

// Notify schedules a re-run of every subscription watching any of tables.
// It never blocks on subscribers.
func (h *Hub) Notify(tables ...string) {
	h.mu.Lock()
	seen := make(map[trigger]struct{})
	for _, t := range tables {
		for sub := range h.tables[t] {
			seen[sub] = struct{}{}
		}
	}
	h.mu.Unlock()

	for sub := range seen {
		sub.wake()
	}
}

// Subscribers returns how many subscriptions currently watch table.
func (h *Hub) Subscribers(table string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.tables[table])
}

func (h *Hub) register(sub trigger, tables []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range tables {
		set, ok := h.tables[t]
		if !ok {
			set = make(map[trigger]struct{})
			h.tables[t] = set
		}
		set[sub] = struct{}{}
	}
}

func (h *Hub) unregister(sub trigger, tables []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range tables {
		set := h.tables[t]
		delete(set, sub)
		if len(set) == 0 {
			delete(h.tables, t)
		}
	}
}
