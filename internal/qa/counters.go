// Package qa collects data-quality counters during a generalization run.
//
// Recoverable conditions (missing codes, priority-table misses, islands) are
// absorbed locally by the decision engine but must stay countable for
// post-run QA; the counters end up in the run store next to the iteration
// stats.
package qa

import "sync"

// Counter names the recoverable conditions tracked per run.
type Counter string

const (
	// CodeMissing counts polygons scored with the unknown-code sentinel
	// because their own code was absent.
	CodeMissing Counter = "code_missing"
	// PriorityDefault counts neighbor scorings that fell through to the
	// default priority sentinel.
	PriorityDefault Counter = "priority_default"
	// Islands counts eligible polygons with an empty neighbor set.
	Islands Counter = "islands"
	// BoundaryPreserved counts undersized polygons left untouched because
	// they touch the dataset boundary.
	BoundaryPreserved Counter = "boundary_preserved"
)

// Counters is a concurrency-safe counter set. The zero value is not usable;
// construct with NewCounters.
type Counters struct {
	mu     sync.Mutex
	counts map[Counter]int64
}

// NewCounters creates an empty counter set.
func NewCounters() *Counters {
	return &Counters{counts: make(map[Counter]int64)}
}

// Inc increments a counter by one.
func (c *Counters) Inc(name Counter) {
	c.Add(name, 1)
}

// Add increments a counter by n.
func (c *Counters) Add(name Counter, n int64) {
	c.mu.Lock()
	c.counts[name] += n
	c.mu.Unlock()
}

// Get returns the current value of a counter.
func (c *Counters) Get(name Counter) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[name]
}

// Snapshot returns a copy of all non-zero counters.
func (c *Counters) Snapshot() map[Counter]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[Counter]int64, len(c.counts))
	for k, v := range c.counts {
		if v != 0 {
			out[k] = v
		}
	}
	return out
}
