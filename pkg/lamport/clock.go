// Package lamport implements the logical clock used to order coordinator events.
//
// A Clock is a single monotonically non-decreasing counter per process. It is
// advanced once for every local event and merged with counters carried on
// incoming requests, giving the standard Lamport guarantee: if event A causally
// precedes event B, then clock(A) < clock(B). It does not totally order
// causally unrelated events; ties are possible and are not broken.
package lamport

import "sync"

// Clock is a process-wide Lamport counter. The zero value is ready to use.
type Clock struct {
	mu  sync.Mutex
	val int64
}

// Tick records a local event and returns the new clock value.
func (c *Clock) Tick() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.val++
	return c.val
}

// Observe merges a counter received from another process and records the
// receive event: the clock becomes max(local, received) + 1. Values below
// zero are treated as zero.
func (c *Clock) Observe(received int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if received > c.val {
		c.val = received
	}
	c.val++
	return c.val
}

// Now returns the current value without recording an event.
func (c *Clock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.val
}
