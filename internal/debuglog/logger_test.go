package debuglog

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestFileLogger_WritesJSONL(t *testing.T) {
	var buf bytes.Buffer
	l := NewFileLogger(&buf)

	l.Log("engine", "registered", "id", "t1", "kind", "EVERGREEN")
	l.Log("analytics", "dropped", "odd")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}

	var first entry
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line 1 is not JSON: %v", err)
	}
	if first.Component != "engine" || first.Message != "registered" {
		t.Errorf("unexpected entry: %+v", first)
	}
	if first.Fields["id"] != "t1" || first.Fields["kind"] != "EVERGREEN" {
		t.Errorf("unexpected fields: %v", first.Fields)
	}

	var second entry
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("line 2 is not JSON: %v", err)
	}
	if _, ok := second.Fields["odd"]; !ok {
		t.Errorf("dangling key should be kept with empty value, got %v", second.Fields)
	}
}

func TestRequested(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		persisted string
		want      bool
	}{
		{"off by default", "https://shop.example/products/a", "", false},
		{"query param", "https://shop.example/?timer_debug=1", "", true},
		{"query param true", "https://shop.example/cart?x=2&timer_debug=true", "", true},
		{"query param other", "https://shop.example/?timer_debug=0", "", false},
		{"persisted flag", "https://shop.example/", "1", true},
		{"bad url with flag", "://bad", "true", true},
		{"bad url", "://bad", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Requested(tt.url, tt.persisted); got != tt.want {
				t.Errorf("Requested(%q, %q) = %v, want %v", tt.url, tt.persisted, got, tt.want)
			}
		})
	}
}
