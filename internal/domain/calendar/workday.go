package calendar

import (
	"errors"
	"fmt"
	"time"
)

// ISOLayout is the wire format of calendar dates.
const ISOLayout = "2006-01-02"

// maxSteps bounds NextWorkingDay so an all-holiday calendar cannot loop forever.
const maxSteps = 366

var ErrCalendarExhausted = errors.New("no working day found within one year")

// Direction of a working day search.
type Direction int

const (
	Forward  Direction = 1
	Backward Direction = -1
)

// HolidaySet is a set of ISO dates that are non-working in addition to weekends.
// Sets for different years can be merged since every key carries its year.
type HolidaySet map[string]struct{}

// NewHolidaySet builds a set from ISO date strings.
func NewHolidaySet(dates ...string) HolidaySet {
	h := make(HolidaySet, len(dates))
	for _, d := range dates {
		h[d] = struct{}{}
	}
	return h
}

func (h HolidaySet) Contains(date time.Time) bool {
	_, ok := h[FormatISO(date)]
	return ok
}

// Merge adds every date of other to h.
func (h HolidaySet) Merge(other HolidaySet) {
	for d := range other {
		h[d] = struct{}{}
	}
}

// IsWeekend reports whether the date is a Saturday or a Sunday.
func IsWeekend(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsWorkingDay reports whether the date is neither a weekend nor a holiday.
func IsWorkingDay(date time.Time, holidays HolidaySet) bool {
	return !IsWeekend(date) && !holidays.Contains(date)
}

// NextWorkingDay returns date itself when it is a working day, otherwise the
// nearest working day in the given direction.
func NextWorkingDay(date time.Time, holidays HolidaySet, dir Direction) (time.Time, error) {
	if dir != Forward && dir != Backward {
		return time.Time{}, fmt.Errorf("invalid direction %d", dir)
	}
	d := Civil(date)
	for i := 0; i <= maxSteps; i++ {
		if IsWorkingDay(d, holidays) {
			return d, nil
		}
		d = d.AddDate(0, 0, int(dir))
	}
	return time.Time{}, fmt.Errorf("%w (from %s)", ErrCalendarExhausted, FormatISO(date))
}

// Step moves one day in dir and then on to the nearest working day.
func Step(date time.Time, holidays HolidaySet, dir Direction) (time.Time, error) {
	return NextWorkingDay(Civil(date).AddDate(0, 0, int(dir)), holidays, dir)
}

// Civil strips the clock from t, keeping its calendar date, and returns
// midnight UTC of that date.
func Civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date builds a civil date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Today returns the civil date of now as seen in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return Civil(now.In(loc))
}

func ParseISO(s string) (time.Time, error) {
	t, err := time.Parse(ISOLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected yyyy-MM-dd", s)
	}
	return t, nil
}

func FormatISO(t time.Time) string {
	return t.Format(ISOLayout)
}
