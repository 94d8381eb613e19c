package reminder

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// RecurrenceType selects the calendar unit a series advances by.
type RecurrenceType string

const (
	RecurrenceDaily   RecurrenceType = "daily"
	RecurrenceWeekly  RecurrenceType = "weekly"
	RecurrenceMonthly RecurrenceType = "monthly"
	RecurrenceYearly  RecurrenceType = "yearly"
)

var (
	ErrUnknownRecurrenceType = errors.New("unknown recurrence type")
	ErrInvalidRecurrence     = errors.New("invalid recurrence pattern")
)

// RecurrencePattern is stored as JSON in reminders.recurrence_pattern.
type RecurrencePattern struct {
	Type RecurrenceType `json:"type"`
	// Interval means "every N units". Zero is read as 1.
	Interval int `json:"interval,omitempty"`
	// DaysOfWeek uses ISO numbering, Monday=1 .. Sunday=7. Weekly only.
	DaysOfWeek []int `json:"daysOfWeek,omitempty"`
	// DayOfMonth pins monthly occurrences to a day, clamped to the month's length.
	DayOfMonth int `json:"dayOfMonth,omitempty"`
	// EndDate bounds the series: no occurrence strictly after it is produced.
	EndDate *time.Time `json:"endDate,omitempty"`
}

// Validate rejects patterns the calculator would otherwise have to clamp.
// It is applied when reminders are created, not when they fire.
func (p RecurrencePattern) Validate() error {
	switch p.Type {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRecurrenceType, p.Type)
	}
	if p.Interval < 0 {
		return fmt.Errorf("%w: interval must be positive, got %d", ErrInvalidRecurrence, p.Interval)
	}
	for _, d := range p.DaysOfWeek {
		if d < 1 || d > 7 {
			return fmt.Errorf("%w: day of week %d outside 1-7", ErrInvalidRecurrence, d)
		}
	}
	if p.DayOfMonth != 0 && (p.DayOfMonth < 1 || p.DayOfMonth > 31) {
		return fmt.Errorf("%w: day of month %d outside 1-31", ErrInvalidRecurrence, p.DayOfMonth)
	}
	return nil
}

func (p RecurrencePattern) interval() int {
	if p.Interval < 1 {
		return 1
	}
	return p.Interval
}

func (p RecurrencePattern) clone() RecurrencePattern {
	out := p
	if p.DaysOfWeek != nil {
		out.DaysOfWeek = slices.Clone(p.DaysOfWeek)
	}
	if p.EndDate != nil {
		end := *p.EndDate
		out.EndDate = &end
	}
	return out
}

// NextOccurrence computes the occurrence following current, which is the fired
// reminder's own reminder date rather than the wall clock. Calendar arithmetic is
// done in current's location. ok is false when the series has passed its EndDate.
func NextOccurrence(current time.Time, p RecurrencePattern) (next time.Time, ok bool, err error) {
	n := p.interval()

	switch p.Type {
	case RecurrenceDaily:
		next = current.AddDate(0, 0, n)
	case RecurrenceWeekly:
		next = nextWeekly(current, p.DaysOfWeek, n)
	case RecurrenceMonthly:
		next = addMonthsClamped(current, n, p.DayOfMonth)
	case RecurrenceYearly:
		next = addMonthsClamped(current, 12*n, 0)
	default:
		return time.Time{}, false, fmt.Errorf("%w: %q", ErrUnknownRecurrenceType, p.Type)
	}

	if p.EndDate != nil && next.After(*p.EndDate) {
		return time.Time{}, false, nil
	}
	return next, true, nil
}

// isoWeekday maps time.Weekday (Sunday=0) to Monday=1 .. Sunday=7.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func nextWeekly(current time.Time, daysOfWeek []int, interval int) time.Time {
	days := normalizeDays(daysOfWeek)
	if len(days) == 0 {
		return current.AddDate(0, 0, 7*interval)
	}

	today := isoWeekday(current)
	for _, d := range days {
		if d > today {
			return current.AddDate(0, 0, d-today)
		}
	}

	// Wrap to the first configured day, interval weeks on.
	return current.AddDate(0, 0, (7-today+days[0])+(interval-1)*7)
}

func normalizeDays(daysOfWeek []int) []int {
	days := make([]int, 0, len(daysOfWeek))
	for _, d := range daysOfWeek {
		if d >= 1 && d <= 7 {
			days = append(days, d)
		}
	}
	slices.Sort(days)
	return slices.Compact(days)
}

// addMonthsClamped moves t forward by months without overflowing into the
// following month: Jan 31 + 1 month is the last day of February. A positive
// dayOfMonth replaces t's day before clamping.
func addMonthsClamped(t time.Time, months, dayOfMonth int) time.Time {
	year, month, day := t.Date()
	if dayOfMonth > 0 {
		day = min(dayOfMonth, 31)
	}

	target := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	day = min(day, daysIn(target.Year(), target.Month(), t.Location()))

	return time.Date(target.Year(), target.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
