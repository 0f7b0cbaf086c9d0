package events

import (
	"fmt"
	"time"
)

// Format renders a delivery record as a single display line:
//   - delivered: "[timer] impression delivered (200)"
//   - retrying:  "[timer] click failed (503), retry 2 in 2s"
//   - dropped:   "[timer] impression dropped (400)"
//   - deduped:   "[timer] impression already sent"
//   - received:  "[timer] click received"
func Format(d Delivery) string {
	id := shortID(d.TimerID)
	switch d.Outcome {
	case OutcomeDelivered:
		return fmt.Sprintf("[%s] %s delivered (%s)", id, d.Event, statusText(d))
	case OutcomeRetrying:
		return fmt.Sprintf("[%s] %s failed (%s), retry %d in %s", id, d.Event, statusText(d), d.Attempt+1, FormatDelay(d.RetryIn))
	case OutcomeDropped:
		return fmt.Sprintf("[%s] %s dropped (%s)", id, d.Event, statusText(d))
	case OutcomeDeduped:
		return fmt.Sprintf("[%s] %s already sent", id, d.Event)
	case OutcomeReceived:
		return fmt.Sprintf("[%s] %s received", id, d.Event)
	}
	return fmt.Sprintf("[%s] %s", id, d.Event)
}

func statusText(d Delivery) string {
	if d.Status == 0 {
		if d.Err != "" {
			return "network error"
		}
		return "no status"
	}
	return fmt.Sprintf("%d", d.Status)
}

// FormatDelay renders a retry delay compactly: "500ms", "2s", "1m30s".
func FormatDelay(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(time.Second).String()
}

// shortID truncates long timer ids for display.
func shortID(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
