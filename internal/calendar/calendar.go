// Package calendar defines the universe of bookable appointment slots:
// a fixed 30-minute grid between opening and closing time, bookable from
// today up to three calendar months ahead.
package calendar

import (
	"strings"
	"time"
)

const (
	// DateLayout is the canonical slot-date format used across the ledger,
	// the appointment store and the API.
	DateLayout = "2006-01-02"

	// legacyDateLayout is the underscore form still sent by older clients.
	// Accepted on input, normalized to DateLayout everywhere else.
	legacyDateLayout = "02_01_2006"

	timeLayout = "15:04"

	openingTime = "09:00"
	closingTime = "17:00"

	// SlotInterval is the length of one bookable slot.
	SlotInterval = 30 * time.Minute

	// BookingHorizonMonths limits how far ahead a slot may be booked.
	BookingHorizonMonths = 3
)

// DaySlots returns every bookable time of a business day, in order, from
// opening time up to but excluding closing time.
func DaySlots() []string {
	open, _ := time.Parse(timeLayout, openingTime)
	closing, _ := time.Parse(timeLayout, closingTime)

	var slots []string
	for t := open; t.Before(closing); t = t.Add(SlotInterval) {
		slots = append(slots, t.Format(timeLayout))
	}
	return slots
}

var slotSet = func() map[string]struct{} {
	set := make(map[string]struct{})
	for _, s := range DaySlots() {
		set[s] = struct{}{}
	}
	return set
}()

// IsValidTime reports whether t is exactly one of the day's bookable slots.
func IsValidTime(t string) bool {
	_, ok := slotSet[t]
	return ok
}

// IsValidDate reports whether date (in DateLayout) falls between today and
// the booking horizon, both inclusive. Time of day is ignored.
func IsValidDate(date string) bool {
	return isValidDateAt(date, time.Now())
}

func isValidDateAt(date string, now time.Time) bool {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	horizon := today.AddDate(0, BookingHorizonMonths, 0)
	return !d.Before(today) && !d.After(horizon)
}

// ParseDate normalizes a client-supplied slot date to DateLayout. Both the
// canonical form and the legacy underscore form are accepted.
func ParseDate(s string) (string, bool) {
	if d, err := time.Parse(DateLayout, s); err == nil {
		return d.Format(DateLayout), true
	}
	if strings.Count(s, "_") == 2 {
		if d, err := time.Parse(legacyDateLayout, s); err == nil {
			return d.Format(DateLayout), true
		}
	}
	return "", false
}
