package nexus

import "time"

func startOfYear(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

func endOfYear(year int) time.Time {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func endOfMonth(t time.Time) time.Time {
	return startOfMonth(t).AddDate(0, 1, -1)
}

func addMonths(t time.Time, n int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
}

// quarterOf returns 1..4 for t's calendar quarter.
func quarterOf(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}

// quarterBounds returns the inclusive [start, end] of quarter q of year.
func quarterBounds(year, q int) (time.Time, time.Time) {
	startMonth := time.Month((q-1)*3 + 1)
	start := time.Date(year, startMonth, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 3, -1)
	return start, end
}

// precedingQuarter returns the (year, quarter) immediately before (year, q).
func precedingQuarter(year, q int) (int, int) {
	if q == 1 {
		return year - 1, 4
	}
	return year, q - 1
}

// precedingNQuarters returns the n quarters immediately preceding (year, q),
// oldest first.
func precedingNQuarters(year, q, n int) []struct{ Year, Q int } {
	out := make([]struct{ Year, Q int }, 0, n)
	y, qq := year, q
	for i := 0; i < n; i++ {
		y, qq = precedingQuarter(y, qq)
		out = append(out, struct{ Year, Q int }{y, qq})
	}
	// reverse to oldest-first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
