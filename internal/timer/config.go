// Package timer holds the timer configuration model and the five
// time-window calculators that drive a countdown: fixed, evergreen,
// recurring, cart and shipping.
package timer

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/nixlim/storetimer/internal/timeutil"
)

// Kind selects the handler variant for a timer.
type Kind string

const (
	KindFixed     Kind = "FIXED"
	KindEvergreen Kind = "EVERGREEN"
	KindRecurring Kind = "RECURRING"
	KindCart      Kind = "CART"
	KindShipping  Kind = "SHIPPING"
)

// ParseKind normalises a kind string. An empty value is FIXED; other
// unknown values are kept so the registry can report them.
func ParseKind(s string) Kind {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return KindFixed
	}
	return Kind(s)
}

// Element attributes carrying a timer configuration.
const (
	AttrID                   = "data-timer-id"
	AttrKind                 = "data-timer-type"
	AttrTimeZone             = "data-timezone"
	AttrEndTime              = "data-end-time"
	AttrEvergreenDuration    = "data-evergreen-duration"
	AttrEvergreenReset       = "data-evergreen-reset"
	AttrRecurringStart       = "data-recurring-start"
	AttrRecurringEnd         = "data-recurring-end"
	AttrRecurringDays        = "data-recurring-days"
	AttrShippingCutoff       = "data-shipping-cutoff"
	AttrShippingExcludedDays = "data-shipping-excluded-days"
	AttrShippingHolidays     = "data-shipping-holidays"
	AttrNextDayText          = "data-next-day-text"
	AttrCartThreshold        = "data-cart-threshold"
	AttrCartDuration         = "data-cart-duration"
	AttrShowDays             = "data-show-days"
	AttrShowHours            = "data-show-hours"
	AttrShowMinutes          = "data-show-minutes"
	AttrShowSeconds          = "data-show-seconds"
	AttrShowLabels           = "data-show-labels"
	AttrClosable             = "data-closable"
	AttrShowEverywhere       = "data-show-everywhere"
	AttrIncludePages         = "data-include-pages"
	AttrExcludePages         = "data-exclude-pages"
	AttrExpiredText          = "data-expired-text"
)

// DefaultShippingCutoff is used when no parsable cutoff is configured.
const DefaultShippingCutoff = "14:00"

// Config is the immutable snapshot of one timer instance. Zero durations
// and a zero threshold mean the field was absent.
type Config struct {
	ID       string
	Kind     Kind
	TimeZone string

	EndTime time.Time

	EvergreenDuration time.Duration
	EvergreenReset    time.Duration

	RecurringStart string
	RecurringEnd   string
	RecurringDays  []time.Weekday

	ShippingCutoff       string
	ShippingExcludedDays []time.Weekday
	ShippingHolidays     []string
	NextDayText          string

	CartThreshold float64
	CartDuration  time.Duration

	ShowDays    bool
	ShowHours   bool
	ShowMinutes bool
	ShowSeconds bool
	ShowLabels  bool
	Closable    bool

	ShowEverywhere bool
	IncludePages   []string
	ExcludePages   []string

	ExpiredText string
}

// Location resolves the configured time zone, falling back to UTC.
func (c Config) Location() *time.Location {
	return timeutil.LoadLocation(c.TimeZone)
}

func allDays() []time.Weekday {
	return []time.Weekday{
		time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
		time.Thursday, time.Friday, time.Saturday,
	}
}

func defaultExcludedDays() []time.Weekday {
	return []time.Weekday{time.Sunday, time.Saturday}
}

// FromAttributes builds a Config from an element's attributes. Missing or
// malformed values fall back to their defaults; it never fails.
func FromAttributes(attrs map[string]string) Config {
	get := func(k string) string { return strings.TrimSpace(attrs[k]) }

	cfg := Config{
		ID:       get(AttrID),
		Kind:     ParseKind(get(AttrKind)),
		TimeZone: get(AttrTimeZone),

		EvergreenDuration: minutes(get(AttrEvergreenDuration)),
		EvergreenReset:    minutes(get(AttrEvergreenReset)),

		RecurringStart: get(AttrRecurringStart),
		RecurringEnd:   get(AttrRecurringEnd),
		RecurringDays:  weekdays(get(AttrRecurringDays), allDays()),

		ShippingCutoff:       get(AttrShippingCutoff),
		ShippingExcludedDays: weekdays(get(AttrShippingExcludedDays), defaultExcludedDays()),
		ShippingHolidays:     stringList(get(AttrShippingHolidays)),
		NextDayText:          get(AttrNextDayText),

		CartThreshold: number(get(AttrCartThreshold)),
		CartDuration:  minutes(get(AttrCartDuration)),

		ShowDays:    flag(attrs, AttrShowDays),
		ShowHours:   flag(attrs, AttrShowHours),
		ShowMinutes: flag(attrs, AttrShowMinutes),
		ShowSeconds: flag(attrs, AttrShowSeconds),
		ShowLabels:  flag(attrs, AttrShowLabels),
		Closable:    flag(attrs, AttrClosable),

		ShowEverywhere: flag(attrs, AttrShowEverywhere),
		IncludePages:   stringList(get(AttrIncludePages)),
		ExcludePages:   stringList(get(AttrExcludePages)),

		ExpiredText: get(AttrExpiredText),
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = "UTC"
	}
	if _, ok := timeutil.ParseHHMM(cfg.ShippingCutoff); !ok {
		cfg.ShippingCutoff = DefaultShippingCutoff
	}
	cfg.EndTime = endTime(get(AttrEndTime), cfg.Location())
	return cfg
}

// flag is true unless the attribute is literally "false".
func flag(attrs map[string]string, key string) bool {
	return attrs[key] != "false"
}

func number(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func minutes(s string) time.Duration {
	return time.Duration(number(s) * float64(time.Minute))
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// endTime accepts RFC 3339, epoch milliseconds, or a zone-less local
// timestamp interpreted in loc.
func endTime(s string, loc *time.Location) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return timeutil.FromEpochMillis(ms)
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t
		}
	}
	return time.Time{}
}

func weekdays(s string, def []time.Weekday) []time.Weekday {
	if s == "" {
		return def
	}
	var raw []int
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return def
	}
	out := make([]time.Weekday, 0, len(raw))
	for _, d := range raw {
		if d < 0 || d > 6 {
			return def
		}
		out = append(out, time.Weekday(d))
	}
	return out
}

func stringList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}
