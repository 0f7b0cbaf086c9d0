package events

import (
	"testing"
	"time"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		in   Delivery
		want string
	}{
		{
			name: "delivered",
			in:   Delivery{TimerID: "t1", Event: "impression", Status: 200, Outcome: OutcomeDelivered},
			want: "[t1] impression delivered (200)",
		},
		{
			name: "retrying after 503",
			in:   Delivery{TimerID: "t1", Event: "click", Status: 503, Attempt: 1, RetryIn: 2 * time.Second, Outcome: OutcomeRetrying},
			want: "[t1] click failed (503), retry 2 in 2s",
		},
		{
			name: "retrying after network error",
			in:   Delivery{TimerID: "t1", Event: "click", Err: "connection refused", RetryIn: time.Second, Outcome: OutcomeRetrying},
			want: "[t1] click failed (network error), retry 1 in 1s",
		},
		{
			name: "dropped",
			in:   Delivery{TimerID: "t1", Event: "impression", Status: 400, Outcome: OutcomeDropped},
			want: "[t1] impression dropped (400)",
		},
		{
			name: "deduped with long id",
			in:   Delivery{TimerID: "gid://shopify/Timer/12345", Event: "impression", Outcome: OutcomeDeduped},
			want: "[gid://shopif] impression already sent",
		},
		{
			name: "received",
			in:   Delivery{TimerID: "t2", Event: "click", Outcome: OutcomeReceived},
			want: "[t2] click received",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.in); got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatDelay(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{500 * time.Millisecond, "500ms"},
		{time.Second, "1s"},
		{4 * time.Second, "4s"},
		{90 * time.Second, "1m30s"},
	}
	for _, tt := range tests {
		if got := FormatDelay(tt.in); got != tt.want {
			t.Errorf("FormatDelay(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
