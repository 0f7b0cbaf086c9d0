package events

import "sync"

// RingBuffer is a fixed-capacity, thread-safe ring buffer of Deliveries.
// When the buffer is full, the oldest record is evicted.
type RingBuffer struct {
	mu    sync.RWMutex
	items []Delivery
	cap   int
	head  int // index of the oldest element
	count int
}

// NewRingBuffer creates a new RingBuffer. Capacities below 1 are clamped
// to 1.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{
		items: make([]Delivery, capacity),
		cap:   capacity,
	}
}

// Add inserts a record, formatting it first if Formatted is empty.
func (rb *RingBuffer) Add(d Delivery) {
	if d.Formatted == "" {
		d.Formatted = Format(d)
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.count == rb.cap {
		rb.items[rb.head] = d
		rb.head = (rb.head + 1) % rb.cap
		return
	}
	rb.items[(rb.head+rb.count)%rb.cap] = d
	rb.count++
}

// ListAll returns all records oldest first.
func (rb *RingBuffer) ListAll() []Delivery {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.listLocked()
}

// ListByTimer returns the records for one timer oldest first.
func (rb *RingBuffer) ListByTimer(timerID string) []Delivery {
	return rb.filter(func(d Delivery) bool { return d.TimerID == timerID })
}

// ListByOutcome returns the records with the given outcome oldest first.
func (rb *RingBuffer) ListByOutcome(o Outcome) []Delivery {
	return rb.filter(func(d Delivery) bool { return d.Outcome == o })
}

// Recent returns up to n of the newest records, newest last.
func (rb *RingBuffer) Recent(n int) []Delivery {
	all := rb.ListAll()
	if n >= 0 && len(all) > n {
		return all[len(all)-n:]
	}
	return all
}

func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

func (rb *RingBuffer) Cap() int {
	return rb.cap
}

func (rb *RingBuffer) filter(keep func(Delivery) bool) []Delivery {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	var out []Delivery
	for _, d := range rb.listLocked() {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}

// listLocked returns all records in chronological order.
// Caller must hold at least a read lock.
func (rb *RingBuffer) listLocked() []Delivery {
	if rb.count == 0 {
		return nil
	}
	result := make([]Delivery, rb.count)
	for i := 0; i < rb.count; i++ {
		result[i] = rb.items[(rb.head+i)%rb.cap]
	}
	return result
}
