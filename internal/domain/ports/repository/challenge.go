package repository

import (
	"context"
	"time"

	"protagonist-billing/internal/domain/model"
)

// -----------------------------
// Challenges
// -----------------------------

type ChallengeRepository interface {
	Save(ctx context.Context, qx Tx, c *model.Challenge) error
	FindByID(ctx context.Context, qx Tx, id string) (*model.Challenge, error)
	// ListByUser returns all of a user's challenges ordered by creation time
	// ascending. Finding "the challenge right before this one" is a linear
	// scan of this result; fine at a handful of challenges per user, but O(n).
	ListByUser(ctx context.Context, qx Tx, userID string) ([]*model.Challenge, error)
	CountByUser(ctx context.Context, qx Tx, userID string) (int, error)
	// UpdateDay overwrites a single calendar slot identified by target date.
	// The date structure of the calendar itself is immutable.
	UpdateDay(ctx context.Context, qx Tx, challengeID string, day model.SubmissionDay) error
	// MarkRefundChecked stamps refundCheckPeriod on the given target dates,
	// skipping days that already carry a marker, and returns how many days it
	// actually marked. Run inside a transaction this is the linearization
	// point that keeps concurrent checks from double-counting.
	MarkRefundChecked(ctx context.Context, qx Tx, challengeID string, targetDates []string, period string) (int, error)
	// ListWithOverduePending returns challenges that still have pending days
	// whose deadline passed before the cutoff. Used by the missed sweeper.
	ListWithOverduePending(ctx context.Context, qx Tx, before time.Time, limit int) ([]*model.Challenge, error)
}
