package usage

import "time"

const weekKeyLayout = "2006-01-02"

// WeekStart returns Monday 00:00 of the ISO week containing t, in loc.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
}

// WeekKey is the bucket key of a week start.
func WeekKey(weekStart time.Time) string {
	return weekStart.Format(weekKeyLayout)
}
