package translator

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// ExpandWindow resolves a named time window to a closed [start, end] date
// pair anchored at now, formatted as ISO dates. Relative names never reach
// the analytics engine: a query built today and replayed next week describes
// the same dates.
func ExpandWindow(window string, now time.Time) (start, end string, err error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var from, to time.Time
	switch window {
	case "today":
		from, to = today, today
	case "yesterday":
		from = today.AddDate(0, 0, -1)
		to = from
	case "last_7_days":
		from, to = today.AddDate(0, 0, -7), today
	case "last_30_days":
		from, to = today.AddDate(0, 0, -30), today
	case "last_90_days":
		from, to = today.AddDate(0, 0, -90), today
	case "month_to_date":
		from = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		to = today
	case "quarter_to_date":
		from = quarterStart(today)
		to = today
	case "year_to_date":
		from = time.Date(today.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		to = today
	case "last_month":
		firstOfMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		to = firstOfMonth.AddDate(0, 0, -1)
		from = time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, time.UTC)
	case "last_quarter":
		thisQuarter := quarterStart(today)
		from = thisQuarter.AddDate(0, -3, 0)
		to = thisQuarter.AddDate(0, 0, -1)
	case "last_year":
		from = time.Date(today.Year()-1, 1, 1, 0, 0, 0, 0, time.UTC)
		to = time.Date(today.Year()-1, 12, 31, 0, 0, 0, 0, time.UTC)
	default:
		return "", "", fmt.Errorf("translator: unsupported time window %q", window)
	}

	return from.Format(dateLayout), to.Format(dateLayout), nil
}

func quarterStart(day time.Time) time.Time {
	month := ((int(day.Month())-1)/3)*3 + 1
	return time.Date(day.Year(), time.Month(month), 1, 0, 0, 0, 0, time.UTC)
}
