package schedule

import (
	"time"

	"protagonist-billing/internal/domain/model"
)

// expectedIndices returns the calendar indices of days owed in the window.
// A day qualifies iff its target date lies in [windowStart, windowEnd], its
// deadline has passed, and it has not been counted by a prior refund check.
// Status is deliberately ignored for the denominator: denied, missed, failed
// and stale pending days are all still an attempt owed.
func expectedIndices(cal []model.SubmissionDay, windowStart, windowEnd, now time.Time) []int {
	var idx []int
	for i := range cal {
		date, err := cal[i].Date()
		if err != nil {
			continue
		}
		if date.Before(windowStart) || date.After(windowEnd) {
			continue
		}
		if cal[i].Deadline.After(now) {
			continue
		}
		if cal[i].RefundCheckPeriod != "" {
			continue
		}
		idx = append(idx, i)
	}
	return idx
}

// Expected flattens the expected set across one or more challenge calendars.
// A billing period can straddle a challenge boundary, so callers pass the
// previous challenge's calendar alongside the current one when needed.
func Expected(calendars [][]model.SubmissionDay, windowStart, windowEnd, now time.Time) []model.SubmissionDay {
	var out []model.SubmissionDay
	for _, cal := range calendars {
		for _, i := range expectedIndices(cal, windowStart, windowEnd, now) {
			out = append(out, cal[i])
		}
	}
	return out
}

// ExpectedDates returns the target dates of the expected days in a single
// calendar, for repositories that mark days by date.
func ExpectedDates(cal []model.SubmissionDay, windowStart, windowEnd, now time.Time) []string {
	idx := expectedIndices(cal, windowStart, windowEnd, now)
	dates := make([]string, 0, len(idx))
	for _, i := range idx {
		dates = append(dates, cal[i].TargetDate)
	}
	return dates
}

// CountVerified returns how many of the given days count toward the numerator.
func CountVerified(days []model.SubmissionDay) int {
	n := 0
	for i := range days {
		if days[i].Status == model.SubmissionVerified {
			n++
		}
	}
	return n
}

// MarkChecked stamps every expected day in the calendar with the given
// year-month period token, in place, and returns how many days were marked.
// Once stamped, a day is excluded from every later classification; this is
// the sole idempotence guard against double-counting across billing cycles.
func MarkChecked(cal []model.SubmissionDay, windowStart, windowEnd, now time.Time, period string) int {
	idx := expectedIndices(cal, windowStart, windowEnd, now)
	for _, i := range idx {
		cal[i].RefundCheckPeriod = period
	}
	return len(idx)
}

// CheckPeriodToken derives the marker token for a check time: the UTC
// year-month of the instant the pre-billing check runs.
func CheckPeriodToken(checkTime time.Time) string {
	return checkTime.UTC().Format("2006-01")
}
