package tracking

import (
	"fmt"
	"time"
)

const isoDate = "2006-01-02"

// ParseDateRange interprets the date arguments of report-style commands:
// zero args means today, one arg a single ISO date, two args an inclusive
// start/end pair. Dates are returned as civil dates (midnight UTC markers,
// no zone meaning attached).
func ParseDateRange(args []string, now time.Time) (start, end time.Time, err error) {
	today := civilDate(now)
	switch {
	case len(args) == 0:
		return today, today, nil
	case len(args) == 1:
		start, err = time.Parse(isoDate, args[0])
		if err != nil {
			return start, end, fmt.Errorf("%w: %q", ErrInvalidDateFormat, args[0])
		}
		return start, start, nil
	default:
		start, err = time.Parse(isoDate, args[0])
		if err != nil {
			return start, end, fmt.Errorf("%w: %q", ErrInvalidDateFormat, args[0])
		}
		end, err = time.Parse(isoDate, args[1])
		if err != nil {
			return start, end, fmt.Errorf("%w: %q", ErrInvalidDateFormat, args[1])
		}
		return start, end, nil
	}
}

// RangeBounds converts an inclusive civil date range to UTC instants in the
// given zone: local midnight of start through local 23:59:59.999999 of end.
func RangeBounds(start, end time.Time, loc *time.Location) (time.Time, time.Time) {
	lo := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	hi := time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 999999000, loc)
	return lo.UTC(), hi.UTC()
}

// WeekRange returns Monday through Sunday of the week containing now.
func WeekRange(now time.Time) (time.Time, time.Time) {
	today := civilDate(now)
	offset := int(today.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset += 7
	}
	start := today.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 6)
}

// MonthRange returns the first and last day of the month containing now.
func MonthRange(now time.Time) (time.Time, time.Time) {
	today := civilDate(now)
	start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, -1)
}

// FormatRange renders a period the way the bot prints it: "20 Apr 2025" for
// a single day, "01 Apr - 30 Apr 2025" for a range.
func FormatRange(start, end time.Time) string {
	if start.Equal(end) {
		return start.Format("02 Jan 2006")
	}
	return start.Format("02 Jan") + " - " + end.Format("02 Jan 2006")
}

func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
