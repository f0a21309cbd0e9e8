package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps a sliding log of admission timestamps per key in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	logs map[string][]time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{logs: make(map[string][]time.Time)}
}

// Admit records now for key unless limit admissions already fall inside the period.
func (s *MemoryStore) Admit(_ context.Context, key string, limit int, period time.Duration, now time.Time) (Admission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := prune(s.logs[key], now.Add(-period))
	if len(entries) >= limit {
		s.logs[key] = entries
		return Admission{Admitted: false, Count: len(entries), Oldest: entries[0]}, nil
	}

	entries = append(entries, now)
	s.logs[key] = entries
	return Admission{Admitted: true, Count: len(entries), Oldest: entries[0]}, nil
}

// Sweep drops entries older than maxAge and forgets keys with no remaining admissions.
func (s *MemoryStore) Sweep(now time.Time, maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entries := range s.logs {
		entries = prune(entries, now.Add(-maxAge))
		if len(entries) == 0 {
			delete(s.logs, key)
			removed++
			continue
		}
		s.logs[key] = entries
	}
	return removed
}

// RunJanitor sweeps the store on every tick until ctx is cancelled.
func (s *MemoryStore) RunJanitor(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(now, maxAge)
		}
	}
}

func prune(entries []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(entries) && !entries[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return entries
	}
	return append(entries[:0:0], entries[i:]...)
}
