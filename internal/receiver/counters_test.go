package receiver

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nixlim/storetimer/internal/analytics"
	"github.com/nixlim/storetimer/internal/events"
)

func TestCounters_Record(t *testing.T) {
	buf := events.NewRingBuffer(10)
	c := NewCounters(buf, nil)

	c.Record("http", analytics.Event{Event: analytics.KindImpression, TimerID: "t1", Timestamp: 1795755600000})
	c.Record("http", analytics.Event{Event: analytics.KindImpression, TimerID: "t1"})
	got, err := c.Record("http", analytics.Event{Event: analytics.KindClick, TimerID: "t1"})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if got.Impressions != 2 || got.Clicks != 1 {
		t.Errorf("counts: got %+v", got)
	}
	if c.Get("t2") != (Counts{}) {
		t.Error("unknown timer should have zero counts")
	}

	if buf.Len() != 3 {
		t.Fatalf("buffer: want 3 deliveries, got %d", buf.Len())
	}
	for _, d := range buf.ListAll() {
		if d.Outcome != events.OutcomeReceived || d.TimerID != "t1" {
			t.Errorf("unexpected delivery %+v", d)
		}
	}
}

func TestCounters_RejectsInvalid(t *testing.T) {
	c := NewCounters(nil, nil)
	for _, ev := range []analytics.Event{
		{Event: analytics.KindImpression},
		{Event: "view", TimerID: "t1"},
	} {
		if _, err := c.Record("http", ev); !errors.Is(err, ErrInvalidEvent) {
			t.Errorf("%+v: want ErrInvalidEvent, got %v", ev, err)
		}
	}
	if len(c.TimerIDs()) != 0 {
		t.Error("rejected events must not create counters")
	}
}

func TestCounters_Concurrent(t *testing.T) {
	c := NewCounters(events.NewRingBuffer(5), nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Record("grpc", analytics.Event{Event: analytics.KindClick, TimerID: "t"})
		}()
	}
	wg.Wait()
	if got := c.Get("t").Clicks; got != 50 {
		t.Errorf("clicks: want 50, got %d", got)
	}
}

func TestFileLogger(t *testing.T) {
	var out bytes.Buffer
	c := NewCounters(nil, NewFileLogger(&out))
	c.Record("otlp-http", analytics.Event{Event: analytics.KindClick, TimerID: "bf", Timestamp: 1795755600000, URL: "https://shop.example/"})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("want one line, got %d", len(lines))
	}
	var entry map[string]string
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("invalid JSON line: %v", err)
	}
	if entry["source"] != "otlp-http" || entry["event"] != "click" || entry["timer"] != "bf" {
		t.Errorf("unexpected entry %v", entry)
	}
	if entry["ts"] != "2026-11-27T05:00:00Z" {
		t.Errorf("ts: got %q", entry["ts"])
	}
}
