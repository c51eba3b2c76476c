// Package guest counts questions asked by unidentified callers.
//
// Two backends satisfy contracts.GuestCounter: a Redis counter shared by
// every replica, and an in-memory counter for single-node and test use.
package guest

import (
	"context"
	"sync"
)

// MemoryCounter is a thread-safe in-memory guest counter.
type MemoryCounter struct {
	mu     sync.RWMutex
	counts map[string]int // key: guest id
}

// NewMemoryCounter creates an empty counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[string]int)}
}

// Count returns the number of questions recorded for guestID.
func (c *MemoryCounter) Count(_ context.Context, guestID string) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counts[guestID], nil
}

// Increment records one question and returns the new count.
func (c *MemoryCounter) Increment(_ context.Context, guestID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[guestID]++
	return c.counts[guestID], nil
}

func (c *MemoryCounter) Ping(context.Context) error { return nil }
func (c *MemoryCounter) Close() error               { return nil }

// Remaining returns how many questions are left under limit, never below 0.
func Remaining(limit, used int) int {
	if used >= limit {
		return 0
	}
	return limit - used
}
