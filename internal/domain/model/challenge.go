package model

import (
	"time"

	"protagonist-billing/internal/domain"

	"github.com/google/uuid"
)

type SubmissionStatus string

const (
	SubmissionPending        SubmissionStatus = "pending"
	SubmissionProcessing     SubmissionStatus = "processing"
	SubmissionVerified       SubmissionStatus = "verified"
	SubmissionDenied         SubmissionStatus = "denied"
	SubmissionMissed         SubmissionStatus = "missed"
	SubmissionFailed         SubmissionStatus = "failed"
	SubmissionDoubleChecking SubmissionStatus = "double-checking"
)

// Terminal reports whether a submission day can no longer change state.
func (s SubmissionStatus) Terminal() bool {
	switch s {
	case SubmissionVerified, SubmissionDenied, SubmissionMissed, SubmissionFailed:
		return true
	}
	return false
}

const TargetDateLayout = "2006-01-02"

// DeadlineLocalLayout is the wall-clock form stored alongside the UTC
// deadline so clients can re-render local time without a tz database.
const DeadlineLocalLayout = "2006-01-02T15:04:05"

// SubmissionDay is one slot of a challenge's submission calendar. The whole
// calendar is embedded in the challenge row (JSONB), so fields carry JSON tags.
type SubmissionDay struct {
	TargetDate        string           `json:"targetDate"` // YYYY-MM-DD in the schedule's timezone
	DayOfWeek         string           `json:"dayOfWeek"`
	Deadline          time.Time        `json:"deadline"` // UTC instant
	DeadlineLocal     string           `json:"deadlineLocal"`
	Status            SubmissionStatus `json:"status"`
	SubmissionID      string           `json:"submissionId,omitempty"`
	SubmittedAt       *time.Time       `json:"submittedAt,omitempty"`
	RefundCheckPeriod string           `json:"refundCheckPeriod,omitempty"` // YYYY-MM of the cycle that counted this day
}

// Date returns TargetDate as a UTC midnight instant for window comparisons.
func (d SubmissionDay) Date() (time.Time, error) {
	return time.Parse(TargetDateLayout, d.TargetDate)
}

type ChallengeStatus string

const (
	ChallengeStatusActive    ChallengeStatus = "active"
	ChallengeStatusCompleted ChallengeStatus = "completed"
	ChallengeStatusAbandoned ChallengeStatus = "abandoned"
)

// Challenge is a commitment instance with its embedded submission calendar.
// The calendar's date structure is generated once at creation and never
// restructured; later writes only touch per-day status/verification fields
// and refund-check markers.
type Challenge struct {
	ID           string
	UserID       string
	Status       ChallengeStatus
	StartDate    string // YYYY-MM-DD
	EndDate      string // YYYY-MM-DD
	Weekdays     []string
	DeadlineTime string // HH:mm
	Timezone     string // IANA identifier
	CreatedAt    time.Time
	Calendar     []SubmissionDay
}

func NewChallenge(id, userID, startDate, endDate string, weekdays []string, deadlineTime, timezone string, calendar []SubmissionDay) (*Challenge, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Challenge{
		ID:           id,
		UserID:       userID,
		Status:       ChallengeStatusActive,
		StartDate:    startDate,
		EndDate:      endDate,
		Weekdays:     weekdays,
		DeadlineTime: deadlineTime,
		Timezone:     timezone,
		CreatedAt:    time.Now(),
		Calendar:     calendar,
	}, nil
}

// Day returns a pointer into the calendar for the given target date, or nil.
func (c *Challenge) Day(targetDate string) *SubmissionDay {
	for i := range c.Calendar {
		if c.Calendar[i].TargetDate == targetDate {
			return &c.Calendar[i]
		}
	}
	return nil
}

// StartedAfter reports whether the challenge start date falls strictly after
// the given instant. Used to decide whether a billing window straddles the
// previous challenge.
func (c *Challenge) StartedAfter(t time.Time) bool {
	start, err := time.Parse(TargetDateLayout, c.StartDate)
	if err != nil {
		return false
	}
	return start.After(t)
}
