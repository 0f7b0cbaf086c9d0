package timer

import "time"

// Remaining is a countdown split into display units.
type Remaining struct {
	Total   time.Duration
	Days    int
	Hours   int
	Minutes int
	Seconds int
}

// Split breaks total into days/hours/minutes/seconds by floor division on
// milliseconds. A non-positive total yields all-zero units.
func Split(total time.Duration) Remaining {
	if total <= 0 {
		return Remaining{Total: total}
	}
	ms := total.Milliseconds()
	return Remaining{
		Total:   total,
		Days:    int(ms / 86_400_000),
		Hours:   int(ms/3_600_000) % 24,
		Minutes: int(ms/60_000) % 60,
		Seconds: int(ms/1000) % 60,
	}
}

// Expired reports whether nothing remains.
func (r Remaining) Expired() bool {
	return r.Total <= 0
}

// Unit returns the value for a display unit name, and false for an unknown
// name.
func (r Remaining) Unit(name string) (int, bool) {
	switch name {
	case UnitDays:
		return r.Days, true
	case UnitHours:
		return r.Hours, true
	case UnitMinutes:
		return r.Minutes, true
	case UnitSeconds:
		return r.Seconds, true
	}
	return 0, false
}

// Display unit names as used by the page's data-unit attributes.
const (
	UnitDays    = "days"
	UnitHours   = "hours"
	UnitMinutes = "minutes"
	UnitSeconds = "seconds"
)

// Units lists the display units from largest to smallest.
var Units = []string{UnitDays, UnitHours, UnitMinutes, UnitSeconds}

// ShowsUnit reports whether the config displays the named unit.
func (c Config) ShowsUnit(name string) bool {
	switch name {
	case UnitDays:
		return c.ShowDays
	case UnitHours:
		return c.ShowHours
	case UnitMinutes:
		return c.ShowMinutes
	case UnitSeconds:
		return c.ShowSeconds
	}
	return false
}
