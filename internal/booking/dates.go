// Package booking holds the pure domain rules for reservations: date-range
// overlap, the lifecycle state machine and price calculation.
package booking

import "time"

// NormalizeDay truncates t to the start of its calendar day in UTC. All
// conflict and price math runs at day granularity.
func NormalizeDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Overlaps reports whether the half-open intervals [s1,e1) and [s2,e2) overlap
// after day normalization. A stay ending on day D never conflicts with one
// starting on day D (checkout day equals check-in day).
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	s1, e1 = NormalizeDay(s1), NormalizeDay(e1)
	s2, e2 = NormalizeDay(s2), NormalizeDay(e2)
	return s1.Before(e2) && s2.Before(e1)
}

// Days returns the number of whole calendar days between start and end after
// day normalization. Negative when end precedes start.
func Days(start, end time.Time) int {
	start, end = NormalizeDay(start), NormalizeDay(end)
	return int(end.Sub(start).Hours() / 24)
}
