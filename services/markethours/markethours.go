// Package markethours answers whether the configured market session is open
// at a given instant. The window is a weekday minute-of-day range in the
// market timezone (IST by default).
package markethours

import "time"

// Window describes a market session
type Window struct {
	Location    *time.Location
	OpenMinute  int // minutes after midnight, e.g. 9:15 -> 555
	CloseMinute int // e.g. 15:30 -> 930
}

// NewWindow builds a session window from hour:minute bounds
func NewWindow(location *time.Location, openHour, openMinute, closeHour, closeMinute int) Window {
	return Window{
		Location:    location,
		OpenMinute:  openHour*60 + openMinute,
		CloseMinute: closeHour*60 + closeMinute,
	}
}

// IsOpen reports whether the market is open at t. Weekends are always closed.
func (w Window) IsOpen(t time.Time) bool {
	local := t.In(w.Location)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	return minute >= w.OpenMinute && minute < w.CloseMinute
}

// IsWeekday reports whether t falls on a weekday in the market timezone
func (w Window) IsWeekday(t time.Time) bool {
	day := t.In(w.Location).Weekday()
	return day != time.Saturday && day != time.Sunday
}
