package tui

import (
	"context"
	"sync"
	"time"
)

// ShutdownManager coordinates an orderly stop of the preview's components.
type ShutdownManager struct {
	// DrainTimeout bounds how long in-flight analytics may take to finish.
	DrainTimeout time.Duration

	// StopTimers halts the render loop and pending close animations.
	StopTimers func()

	// DrainAnalytics waits for in-flight analytics deliveries.
	DrainAnalytics func(ctx context.Context) error

	// Cleanup releases remaining resources, such as the durable store.
	Cleanup func()

	once sync.Once
	err  error
}

// NewShutdownManager creates a ShutdownManager with a 5-second drain timeout.
func NewShutdownManager() *ShutdownManager {
	return &ShutdownManager{
		DrainTimeout: 5 * time.Second,
	}
}

// Shutdown stops the timers, drains analytics up to DrainTimeout, then
// runs cleanup. The drain error, if any, is returned after cleanup. Only
// the first call does any work.
func (sm *ShutdownManager) Shutdown() error {
	sm.once.Do(func() { sm.err = sm.shutdown() })
	return sm.err
}

func (sm *ShutdownManager) shutdown() error {
	if sm.StopTimers != nil {
		sm.StopTimers()
	}

	var err error
	if sm.DrainAnalytics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), sm.DrainTimeout)
		err = sm.DrainAnalytics(ctx)
		cancel()
	}

	if sm.Cleanup != nil {
		sm.Cleanup()
	}
	return err
}
