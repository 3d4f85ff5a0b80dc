package emissions

import (
	"time"
)

// RecomputeTotals returns rec with TotalCO2e set to the sum of its entries'
// CO2e amounts. Every write path calls it before persisting.
func RecomputeTotals(rec Record) Record {
	var total float64
	for _, e := range rec.Entries {
		total += e.CO2eAmount
	}
	rec.TotalCO2e = total
	return rec
}

// Bounds returns the first and last calendar day covered by the period. A
// month takes precedence over a quarter, a quarter over the whole year.
func (p ReportingPeriod) Bounds() (time.Time, time.Time) {
	switch {
	case p.Month != nil && *p.Month >= 1 && *p.Month <= 12:
		start := time.Date(p.Year, time.Month(*p.Month), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, -1)
	case p.Quarter != nil && *p.Quarter >= 1 && *p.Quarter <= 4:
		start := time.Date(p.Year, time.Month((*p.Quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 3, -1)
	default:
		start := time.Date(p.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(1, 0, -1)
	}
}

// Within reports whether the period lies entirely inside [start, end],
// compared by calendar day.
func (p ReportingPeriod) Within(start, end time.Time) bool {
	from, to := p.Bounds()
	return !from.Before(truncateDay(start)) && !to.After(truncateDay(end))
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
