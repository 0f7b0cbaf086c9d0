package bootstrap

import (
	"time"

	"github.com/nixlim/storetimer/internal/kv"
	"github.com/nixlim/storetimer/internal/timeutil"
)

// ClosedKey is the durable store key of the closed-timer set.
const ClosedKey = "closed_timers"

// ClosedTTL is how long a closed timer stays suppressed.
const ClosedTTL = 24 * time.Hour

// ClosedSet is the durable map of timer id to close time.
type ClosedSet struct {
	store *kv.Safe
	clock timeutil.Clock
}

// NewClosedSet wraps the durable store.
func NewClosedSet(store *kv.Safe, clock timeutil.Clock) *ClosedSet {
	return &ClosedSet{store: store, clock: clock}
}

// Load returns the ids closed within ClosedTTL. Older entries are pruned
// and the pruned set written back.
func (c *ClosedSet) Load() map[string]int64 {
	closed := map[string]int64{}
	if !c.store.GetJSON(ClosedKey, &closed) || closed == nil {
		return map[string]int64{}
	}

	now := c.clock.Now()
	pruned := false
	for id, at := range closed {
		if now.Sub(timeutil.FromEpochMillis(at)) >= ClosedTTL {
			delete(closed, id)
			pruned = true
		}
	}
	if pruned {
		c.store.SetJSON(ClosedKey, closed)
	}
	return closed
}

// Has reports whether id is currently suppressed.
func (c *ClosedSet) Has(id string) bool {
	_, ok := c.Load()[id]
	return ok
}

// Add records id as closed now.
func (c *ClosedSet) Add(id string) {
	closed := c.Load()
	closed[id] = timeutil.EpochMillis(c.clock.Now())
	c.store.SetJSON(ClosedKey, closed)
}
