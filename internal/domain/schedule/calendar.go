// Package schedule holds the pure submission-calendar logic: calendar
// generation, expected-day classification, and refund tier evaluation.
// Nothing in here performs I/O.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"protagonist-billing/internal/domain"
	"protagonist-billing/internal/domain/model"
)

// InvalidScheduleError reports unusable schedule input (weekday name, deadline
// time, timezone, or date). It unwraps to domain.ErrInvalidArgument so the
// HTTP layer can map it to a bad-request.
type InvalidScheduleError struct {
	Reason string
}

func (e *InvalidScheduleError) Error() string { return "invalid schedule: " + e.Reason }
func (e *InvalidScheduleError) Unwrap() error { return domain.ErrInvalidArgument }

var weekdayByName = map[string]time.Weekday{
	"Sunday":    time.Sunday,
	"Monday":    time.Monday,
	"Tuesday":   time.Tuesday,
	"Wednesday": time.Wednesday,
	"Thursday":  time.Thursday,
	"Friday":    time.Friday,
	"Saturday":  time.Saturday,
}

// Generate walks every calendar date from startDate to endDate inclusive, in
// the given timezone, and emits a pending SubmissionDay for each date whose
// weekday is selected. Deadline is the date at deadlineTime in the timezone,
// converted to UTC; DeadlineLocal is the same wall clock, unconverted.
// Output is strictly ascending by target date.
func Generate(startDate, endDate string, selectedWeekdays []string, deadlineTime, timezone string) ([]model.SubmissionDay, error) {
	if len(selectedWeekdays) == 0 {
		return nil, &InvalidScheduleError{Reason: "no weekdays selected"}
	}
	selected := make(map[time.Weekday]bool, len(selectedWeekdays))
	for _, name := range selectedWeekdays {
		wd, ok := weekdayByName[name]
		if !ok {
			return nil, &InvalidScheduleError{Reason: "unknown weekday name: " + name}
		}
		selected[wd] = true
	}

	hours, minutes, err := parseDeadlineTime(deadlineTime)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, &InvalidScheduleError{Reason: "unknown timezone: " + timezone}
	}

	start, err := time.ParseInLocation(model.TargetDateLayout, startDate, loc)
	if err != nil {
		return nil, &InvalidScheduleError{Reason: "bad start date: " + startDate}
	}
	end, err := time.ParseInLocation(model.TargetDateLayout, endDate, loc)
	if err != nil {
		return nil, &InvalidScheduleError{Reason: "bad end date: " + endDate}
	}

	var calendar []model.SubmissionDay
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if !selected[d.Weekday()] {
			continue
		}
		local := time.Date(d.Year(), d.Month(), d.Day(), hours, minutes, 0, 0, loc)
		calendar = append(calendar, model.SubmissionDay{
			TargetDate:    d.Format(model.TargetDateLayout),
			DayOfWeek:     d.Weekday().String(),
			Deadline:      local.UTC(),
			DeadlineLocal: local.Format(model.DeadlineLocalLayout),
			Status:        model.SubmissionPending,
		})
	}
	return calendar, nil
}

// parseDeadlineTime accepts strict 24-hour "HH:mm" with hours 0-23 and
// minutes 0-59. Digits only; signed input like "+09:05" is rejected.
func parseDeadlineTime(s string) (hours, minutes int, err error) {
	bad := func() (int, int, error) {
		return 0, 0, &InvalidScheduleError{Reason: fmt.Sprintf("bad deadline time %q, expected HH:mm", s)}
	}
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return bad()
	}
	var ok bool
	if hours, ok = atoiDigits(parts[0]); !ok {
		return bad()
	}
	if minutes, ok = atoiDigits(parts[1]); !ok {
		return bad()
	}
	if hours > 23 || minutes > 59 {
		return bad()
	}
	return hours, minutes, nil
}

func atoiDigits(s string) (int, bool) {
	if len(s) == 0 || len(s) > 2 {
		return 0, false
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
