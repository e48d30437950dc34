// Package history keeps a bounded in-memory record of the chart
// series published on the bus, so a freshly connected UI can backfill
// its charts instead of starting from the current tick.
package history

import (
	"sort"
	"sync"

	"powercable/internal/wire"
)

// Store holds chart entries in memory, indexed by bus topic and kept
// sorted by timestamp.
type Store struct {
	mu      sync.RWMutex
	limit   int
	entries map[string][]wire.ChartEntry
}

// DefaultLimit bounds the per-topic history to roughly ten simulated
// days of quarter-hour entries.
const DefaultLimit = 1000

func New(limit int) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Store{
		limit:   limit,
		entries: make(map[string][]wire.ChartEntry),
	}
}

// Add records one entry, dropping the oldest once the topic is full.
func (s *Store) Add(topic string, e wire.ChartEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := append(s.entries[topic], e)
	// entries arrive almost in order; bubble the newcomer back if not
	for i := len(list) - 1; i > 0 && list[i].Timestamp < list[i-1].Timestamp; i-- {
		list[i], list[i-1] = list[i-1], list[i]
	}
	if len(list) > s.limit {
		list = list[len(list)-s.limit:]
	}
	s.entries[topic] = list
}

// Topics returns the recorded bus topics, sorted.
func (s *Store) Topics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	topics := make([]string, 0, len(s.entries))
	for t := range s.entries {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// Entries returns a copy of everything recorded for a topic.
func (s *Store) Entries(topic string) []wire.ChartEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.entries[topic]
	out := make([]wire.ChartEntry, len(all))
	copy(out, all)
	return out
}

// Since returns the entries at or after the given millisecond
// timestamp.
func (s *Store) Since(topic string, ts int64) []wire.ChartEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.entries[topic]
	idx := sort.Search(len(all), func(i int) bool {
		return all[i].Timestamp >= ts
	})
	if idx == len(all) {
		return nil
	}
	out := make([]wire.ChartEntry, len(all)-idx)
	copy(out, all[idx:])
	return out
}

// Len returns the number of entries recorded for a topic.
func (s *Store) Len(topic string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries[topic])
}
