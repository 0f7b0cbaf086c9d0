package timeutil

import "time"

// Timer is a pending AfterFunc call that can be stopped.
type Timer interface {
	Stop() bool
}

// Clock provides wall-clock sampling and deferred callbacks.
// Handlers, the engine and the analytics sender take a Clock so tests can
// drive time explicitly.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemClock is the default Clock backed by the time package.
var SystemClock Clock = systemClock{}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// EpochMillis returns t as milliseconds since the Unix epoch.
func EpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromEpochMillis converts milliseconds since the Unix epoch to a time.Time.
func FromEpochMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}
