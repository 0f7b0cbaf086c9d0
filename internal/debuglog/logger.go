// Package debuglog is the developer-facing diagnostic channel. It is silent
// unless explicitly enabled, so visitors never see runtime failures.
package debuglog

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"
)

// QueryParam is the page URL parameter that turns the debug channel on.
const QueryParam = "timer_debug"

// FlagKey is the durable store key that turns the debug channel on.
const FlagKey = "countdown_debug"

// Logger receives diagnostic records. Implementations must be safe for
// concurrent use.
type Logger interface {
	// Log records a message from a component with alternating key/value
	// fields.
	Log(component, message string, fields ...any)
}

// Nop discards all output. It is the default when debugging is not enabled.
type Nop struct{}

// Log is a no-op.
func (Nop) Log(string, string, ...any) {}

type entry struct {
	Timestamp string            `json:"ts"`
	Component string            `json:"component"`
	Message   string            `json:"msg"`
	Fields    map[string]string `json:"fields,omitempty"`
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

// Log writes a JSONL record. Serialisation errors are dropped.
func (l *FileLogger) Log(component, message string, fields ...any) {
	e := entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Component: component,
		Message:   message,
	}
	if len(fields) > 0 {
		e.Fields = make(map[string]string, len(fields)/2+1)
		for i := 0; i < len(fields); i += 2 {
			key := fmt.Sprint(fields[i])
			if i+1 >= len(fields) {
				e.Fields[key] = ""
				break
			}
			e.Fields[key] = fmt.Sprint(fields[i+1])
		}
	}

	data, err := json.Marshal(e)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "%s\n", data)
}

// Requested reports whether the page URL carries timer_debug=1 (or "true")
// or the persisted flag value is "1" or "true".
func Requested(pageURL, persisted string) bool {
	if isOn(persisted) {
		return true
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	return isOn(u.Query().Get(QueryParam))
}

func isOn(v string) bool {
	return v == "1" || v == "true"
}
