package receiver

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nixlim/storetimer/internal/analytics"
)

// Logger records every event the sink accepts. Implementations must be
// safe for concurrent use.
type Logger interface {
	// LogEvent logs an accepted event and the protocol it arrived on.
	LogEvent(source string, ev analytics.Event)
}

// NopLogger discards all log output.
type NopLogger struct{}

// LogEvent is a no-op.
func (NopLogger) LogEvent(string, analytics.Event) {}

// logEntry is the JSON structure written by FileLogger.
type logEntry struct {
	Timestamp string `json:"ts"`
	Source    string `json:"source"`
	Event     string `json:"event"`
	TimerID   string `json:"timer"`
	URL       string `json:"url,omitempty"`
}

// FileLogger writes one JSON object per line to an io.Writer.
type FileLogger struct {
	w  io.Writer
	mu sync.Mutex
}

// NewFileLogger creates a FileLogger that writes to w.
func NewFileLogger(w io.Writer) *FileLogger {
	return &FileLogger{w: w}
}

// LogEvent writes a JSON line for an accepted event.
func (l *FileLogger) LogEvent(source string, ev analytics.Event) {
	ts := time.Now()
	if ev.Timestamp > 0 {
		ts = time.UnixMilli(ev.Timestamp)
	}

	data, err := json.Marshal(logEntry{
		Timestamp: ts.UTC().Format(time.RFC3339Nano),
		Source:    source,
		Event:     string(ev.Event),
		TimerID:   ev.TimerID,
		URL:       ev.URL,
	})
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "%s\n", data)
}
