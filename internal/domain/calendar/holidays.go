package calendar

import (
	"sort"
	"time"
)

// fixedHolidays are the national holidays observed in Palermo, including the
// patron saint day of 15 July.
var fixedHolidays = []struct {
	month time.Month
	day   int
}{
	{time.January, 1},   // Capodanno
	{time.January, 6},   // Epifania
	{time.April, 25},    // Liberazione
	{time.May, 1},       // Festa del Lavoro
	{time.June, 2},      // Festa della Repubblica
	{time.July, 15},     // Santa Rosalia
	{time.August, 15},   // Ferragosto
	{time.November, 1},  // Ognissanti
	{time.December, 8},  // Immacolata
	{time.December, 25}, // Natale
	{time.December, 26}, // Santo Stefano
}

// HolidaysFor returns the sorted ISO dates of the non-working holidays of year.
func HolidaysFor(year int) []string {
	out := make([]string, 0, len(fixedHolidays)+2)
	for _, h := range fixedHolidays {
		out = append(out, FormatISO(Date(year, h.month, h.day)))
	}
	easter := Easter(year)
	for _, d := range []time.Time{easter, easter.AddDate(0, 0, 1)} {
		// Easter Monday can fall on 25 April.
		if iso := FormatISO(d); !containsString(out, iso) {
			out = append(out, iso)
		}
	}
	sort.Strings(out)
	return out
}

// Easter returns Easter Sunday of the Gregorian year (anonymous Gregorian
// algorithm, Meeus/Jones/Butcher).
func Easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return Date(year, time.Month(month), day)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
