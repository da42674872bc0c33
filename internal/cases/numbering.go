package cases

import (
	"fmt"
	"time"
)

// CaseNumber formats PREFIX-YYYY-MMDD-NNNN where NNNN is countToday+1.
func CaseNumber(prefix string, day time.Time, countToday int64) string {
	return fmt.Sprintf("%s-%04d-%02d%02d-%04d", prefix, day.Year(), int(day.Month()), day.Day(), countToday+1)
}

// DayBounds returns [start, end) of the calendar day containing t in loc.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
