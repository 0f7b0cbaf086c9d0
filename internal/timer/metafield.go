package timer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DefaultExpiredText is assigned to published timers without expired text.
const DefaultExpiredText = "Offer expired!"

// MetafieldTimer is the JSON shape of one active timer as published by the
// storefront sync and served from the active-timer endpoint.
type MetafieldTimer struct {
	ID       string `json:"id"`
	Type     string `json:"type,omitempty"`
	Title    string `json:"title,omitempty"`
	TimeZone string `json:"timezone,omitempty"`
	EndTime  string `json:"endTime,omitempty"`

	EvergreenDuration *float64 `json:"evergreenDuration,omitempty"`
	EvergreenReset    *float64 `json:"evergreenReset,omitempty"`

	RecurringStart string `json:"recurringStart,omitempty"`
	RecurringEnd   string `json:"recurringEnd,omitempty"`
	RecurringDays  []int  `json:"recurringDays,omitempty"`

	ShippingCutoff       string   `json:"shippingCutoff,omitempty"`
	ShippingExcludedDays []int    `json:"shippingExcludedDays,omitempty"`
	ShippingHolidays     []string `json:"shippingHolidays,omitempty"`
	NextDayText          string   `json:"nextDayText,omitempty"`

	CartThreshold *float64 `json:"cartThreshold,omitempty"`
	CartDuration  *float64 `json:"cartDuration,omitempty"`

	ShowDays    *bool `json:"showDays,omitempty"`
	ShowHours   *bool `json:"showHours,omitempty"`
	ShowMinutes *bool `json:"showMinutes,omitempty"`
	ShowSeconds *bool `json:"showSeconds,omitempty"`
	ShowLabels  *bool `json:"showLabels,omitempty"`
	Closable    *bool `json:"closable,omitempty"`

	ShowEverywhere *bool    `json:"showEverywhere,omitempty"`
	IncludePages   []string `json:"includePages,omitempty"`
	ExcludePages   []string `json:"excludePages,omitempty"`

	ExpiredText string `json:"expiredText,omitempty"`

	CTAText string `json:"ctaText,omitempty"`
	CTAURL  string `json:"ctaUrl,omitempty"`
}

// List is the active-timer endpoint response body.
type List struct {
	Timers []MetafieldTimer `json:"timers"`
}

// DecodeList parses an active-timer endpoint response.
func DecodeList(data []byte) ([]MetafieldTimer, error) {
	var l List
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("decoding timer list: %w", err)
	}
	return l.Timers, nil
}

// Attributes renders the record as the element attributes a page carries
// for it. Unset expired text becomes DefaultExpiredText.
func (m MetafieldTimer) Attributes() map[string]string {
	attrs := map[string]string{
		AttrID:          m.ID,
		AttrKind:        string(ParseKind(m.Type)),
		AttrExpiredText: m.ExpiredText,
	}
	if strings.TrimSpace(m.ExpiredText) == "" {
		attrs[AttrExpiredText] = DefaultExpiredText
	}

	str := func(key, v string) {
		if v != "" {
			attrs[key] = v
		}
	}
	num := func(key string, v *float64) {
		if v != nil {
			attrs[key] = strconv.FormatFloat(*v, 'f', -1, 64)
		}
	}
	boolean := func(key string, v *bool) {
		if v != nil {
			attrs[key] = strconv.FormatBool(*v)
		}
	}
	list := func(key string, v any, n int) {
		if n == 0 {
			return
		}
		if data, err := json.Marshal(v); err == nil {
			attrs[key] = string(data)
		}
	}

	str(AttrTimeZone, m.TimeZone)
	str(AttrEndTime, m.EndTime)
	num(AttrEvergreenDuration, m.EvergreenDuration)
	num(AttrEvergreenReset, m.EvergreenReset)
	str(AttrRecurringStart, m.RecurringStart)
	str(AttrRecurringEnd, m.RecurringEnd)
	list(AttrRecurringDays, m.RecurringDays, len(m.RecurringDays))
	str(AttrShippingCutoff, m.ShippingCutoff)
	list(AttrShippingExcludedDays, m.ShippingExcludedDays, len(m.ShippingExcludedDays))
	list(AttrShippingHolidays, m.ShippingHolidays, len(m.ShippingHolidays))
	str(AttrNextDayText, m.NextDayText)
	num(AttrCartThreshold, m.CartThreshold)
	num(AttrCartDuration, m.CartDuration)
	boolean(AttrShowDays, m.ShowDays)
	boolean(AttrShowHours, m.ShowHours)
	boolean(AttrShowMinutes, m.ShowMinutes)
	boolean(AttrShowSeconds, m.ShowSeconds)
	boolean(AttrShowLabels, m.ShowLabels)
	boolean(AttrClosable, m.Closable)
	boolean(AttrShowEverywhere, m.ShowEverywhere)
	list(AttrIncludePages, m.IncludePages, len(m.IncludePages))
	list(AttrExcludePages, m.ExcludePages, len(m.ExcludePages))

	return attrs
}

// FromMetafield converts a published record into a Config. The record
// goes through the same attribute parsing as a rendered element.
func FromMetafield(m MetafieldTimer) Config {
	return FromAttributes(m.Attributes())
}
