package membership

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/emcapital/memberbot/internal/models"
)

// DateLayout is the DD.MM.YYYY format used in admin commands and messages.
const DateLayout = "02.01.2006"

var ErrBadDate = errors.New("date must be DD.MM.YYYY")

// ParseDate parses DD.MM.YYYY (single digit day and month are accepted) as
// midnight in loc. Impossible dates such as 31.02.2024 are rejected.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if strings.Count(s, ".") != 2 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, s)
	}
	t, err := time.ParseInLocation("2.1.2006", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, s)
	}
	return t, nil
}

func FormatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// FormatOptionalDate formats t or returns the fallback for nil.
func FormatOptionalDate(t *time.Time, loc *time.Location, fallback string) string {
	if t == nil {
		return fallback
	}
	return FormatDate(*t, loc)
}

// AddCycle adds one billing cycle of kind to from using calendar months.
// Day overflow normalizes forward, so 31.01 + 1 month is 02.03 (or 03.03).
func AddCycle(kind models.MembershipKind, from time.Time) time.Time {
	return from.AddDate(0, kind.CycleMonths(), 0)
}

// DaysLeft returns whole days until paidUntil, rounded up. Negative once expired.
func DaysLeft(paidUntil, now time.Time) int {
	return int(math.Ceil(paidUntil.Sub(now).Hours() / 24))
}

// DayBucket returns the half-open calendar day [start, end) that lies
// offsetDays after the day of now, in loc.
func DayBucket(now time.Time, offsetDays int, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day()+offsetDays, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// Latest returns the latest of the given instants; nil entries are skipped.
func Latest(first time.Time, rest ...*time.Time) time.Time {
	latest := first
	for _, t := range rest {
		if t != nil && t.After(latest) {
			latest = *t
		}
	}
	return latest
}
