package timeutil

import (
	"strconv"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"
)

// DateLayout is the holiday and date-string format used by timer configs.
const DateLayout = "2006-01-02"

// MinutesPerDay is the number of minutes between two local midnights on a
// day without a DST transition.
const MinutesPerDay = 24 * 60

var (
	locMu    sync.RWMutex
	locCache = map[string]*time.Location{}
)

// LoadLocation resolves an IANA zone name. Empty or unknown names resolve
// to UTC; lookups are cached because every render tick samples the zone.
func LoadLocation(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "UTC") {
		return time.UTC
	}

	locMu.RLock()
	loc, ok := locCache[name]
	locMu.RUnlock()
	if ok {
		return loc
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		loc = time.UTC
	}

	locMu.Lock()
	locCache[name] = loc
	locMu.Unlock()
	return loc
}

// ZoneTime is a wall-clock instant resolved in a configured time zone.
type ZoneTime struct {
	Time        time.Time
	Weekday     time.Weekday
	MinuteOfDay int
	Date        string
}

// In samples now in the named zone.
func In(now time.Time, zone string) ZoneTime {
	local := now.In(LoadLocation(zone))
	return ZoneTime{
		Time:        local,
		Weekday:     local.Weekday(),
		MinuteOfDay: local.Hour()*60 + local.Minute(),
		Date:        local.Format(DateLayout),
	}
}

// AddDays returns the calendar date n days after z in the same zone. The
// result is computed from the zone's calendar, not by adding 24h multiples,
// so DST transitions never shift it onto the wrong day.
func (z ZoneTime) AddDays(n int) ZoneTime {
	y, m, d := z.Time.Date()
	next := time.Date(y, m, d+n, 12, 0, 0, 0, z.Time.Location())
	return ZoneTime{
		Time:        next,
		Weekday:     next.Weekday(),
		MinuteOfDay: 12 * 60,
		Date:        next.Format(DateLayout),
	}
}

// ParseHHMM converts an "HH:MM" string into minutes after midnight.
func ParseHHMM(s string) (int, bool) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
