// Package calendar provides the US trading calendar used to walk index
// dates: weekends and exchange holidays are skipped, everything else is
// a trading day.
package calendar

import "time"

// marketHolidays holds full-day US exchange closures by year.
var marketHolidays = map[time.Time]struct{}{
	// 2025
	date(2025, time.January, 1):   {}, // New Year's Day
	date(2025, time.January, 20):  {}, // MLK Day
	date(2025, time.February, 17): {}, // Presidents Day
	date(2025, time.April, 18):    {}, // Good Friday
	date(2025, time.May, 26):      {}, // Memorial Day
	date(2025, time.June, 19):     {}, // Juneteenth
	date(2025, time.July, 4):      {}, // Independence Day
	date(2025, time.September, 1): {}, // Labor Day
	date(2025, time.November, 27): {}, // Thanksgiving
	date(2025, time.December, 25): {}, // Christmas Day
	// 2026
	date(2026, time.January, 1):   {},
	date(2026, time.January, 19):  {},
	date(2026, time.February, 16): {},
	date(2026, time.April, 3):     {},
	date(2026, time.May, 25):      {},
	date(2026, time.June, 19):     {},
	date(2026, time.July, 3):      {}, // July 4 falls on a Saturday, observed Friday
	date(2026, time.September, 7): {},
	date(2026, time.November, 26): {},
	date(2026, time.December, 25): {},
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Normalize truncates a timestamp to a UTC calendar date.
func Normalize(t time.Time) time.Time {
	return date(t.Year(), t.Month(), t.Day())
}

// IsTradingDay reports whether d is a weekday and not a market holiday.
func IsTradingDay(d time.Time) bool {
	d = Normalize(d)
	if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	_, holiday := marketHolidays[d]
	return !holiday
}

// PrevTradingDay returns the trading day before d.
func PrevTradingDay(d time.Time) time.Time {
	prev := Normalize(d).AddDate(0, 0, -1)
	for !IsTradingDay(prev) {
		prev = prev.AddDate(0, 0, -1)
	}
	return prev
}

// NextTradingDay returns the trading day after d.
func NextTradingDay(d time.Time) time.Time {
	next := Normalize(d).AddDate(0, 0, 1)
	for !IsTradingDay(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Expand lists the trading days in [from, to], inclusive on both ends.
func Expand(from, to time.Time) []time.Time {
	from, to = Normalize(from), Normalize(to)

	var days []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if IsTradingDay(d) {
			days = append(days, d)
		}
	}
	return days
}
