// File: internal/usecase/challenge_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"protagonist-billing/internal/domain"
	"protagonist-billing/internal/domain/model"
	"protagonist-billing/internal/domain/ports/repository"
	"protagonist-billing/internal/domain/schedule"
	"protagonist-billing/internal/infra/logging"
	"protagonist-billing/internal/infra/metrics"
)

// Compile-time check
var _ ChallengeUseCase = (*challengeUC)(nil)

type ChallengeUseCase interface {
	// Create generates the submission calendar and saves the challenge as the
	// user's current one. The calendar's date structure is fixed from here on.
	Create(ctx context.Context, userID, startDate, endDate string, weekdays []string, deadlineTime, timezone string) (*model.Challenge, error)
	Get(ctx context.Context, id string) (*model.Challenge, error)
	ListForUser(ctx context.Context, userID string) ([]*model.Challenge, error)
	// AttachSubmission ties a submitted proof to its calendar day and moves
	// the day to processing while the external verifier evaluates it.
	AttachSubmission(ctx context.Context, challengeID, targetDate, submissionID string) (*model.SubmissionDay, error)
	// ResolveSubmission records the verifier's verdict for a day.
	ResolveSubmission(ctx context.Context, challengeID, targetDate string, verdict model.SubmissionStatus) (*model.SubmissionDay, error)
	// MarkMissed flips overdue pending days to missed; returns how many.
	MarkMissed(ctx context.Context, before time.Time, limit int) (int, error)
}

type challengeUC struct {
	challenges repository.ChallengeRepository
	users      repository.UserRepository
	tm         repository.TransactionManager
	log        *zerolog.Logger
}

func NewChallengeUseCase(challenges repository.ChallengeRepository, users repository.UserRepository, tm repository.TransactionManager, logger *zerolog.Logger) *challengeUC {
	l := logger.With().Str("component", "ChallengeUC").Logger()
	return &challengeUC{challenges: challenges, users: users, tm: tm, log: &l}
}

func (u *challengeUC) Create(ctx context.Context, userID, startDate, endDate string, weekdays []string, deadlineTime, timezone string) (*model.Challenge, error) {
	defer logging.TraceDuration(u.log, "ChallengeUC.Create")()

	if _, err := u.users.FindByID(ctx, nil, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	calendar, err := schedule.Generate(startDate, endDate, weekdays, deadlineTime, timezone)
	if err != nil {
		return nil, err
	}

	ch, err := model.NewChallenge(uuid.NewString(), userID, startDate, endDate, weekdays, deadlineTime, timezone, calendar)
	if err != nil {
		return nil, err
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.challenges.Save(ctx, tx, ch); err != nil {
			return err
		}
		return u.users.SetCurrentChallenge(ctx, tx, userID, ch.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("save challenge: %w", err)
	}

	metrics.IncChallengeCreated()
	u.log.Info().Str("user_id", userID).Str("challenge_id", ch.ID).Int("calendar_days", len(calendar)).Msg("challenge created")
	return ch, nil
}

func (u *challengeUC) Get(ctx context.Context, id string) (*model.Challenge, error) {
	ch, err := u.challenges.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrChallengeNotFound
		}
		return nil, err
	}
	return ch, nil
}

func (u *challengeUC) ListForUser(ctx context.Context, userID string) ([]*model.Challenge, error) {
	return u.challenges.ListByUser(ctx, nil, userID)
}

func (u *challengeUC) AttachSubmission(ctx context.Context, challengeID, targetDate, submissionID string) (*model.SubmissionDay, error) {
	if submissionID == "" {
		return nil, domain.ErrInvalidArgument
	}
	ch, err := u.Get(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	day := ch.Day(targetDate)
	if day == nil {
		return nil, domain.ErrNotFound
	}
	if day.Status != model.SubmissionPending {
		return nil, fmt.Errorf("%w: day %s is %s", domain.ErrInvalidArgument, targetDate, day.Status)
	}

	now := time.Now()
	day.Status = model.SubmissionProcessing
	day.SubmissionID = submissionID
	day.SubmittedAt = &now
	if err := u.challenges.UpdateDay(ctx, nil, challengeID, *day); err != nil {
		return nil, fmt.Errorf("update day: %w", err)
	}
	return day, nil
}

func (u *challengeUC) ResolveSubmission(ctx context.Context, challengeID, targetDate string, verdict model.SubmissionStatus) (*model.SubmissionDay, error) {
	switch verdict {
	case model.SubmissionVerified, model.SubmissionDenied, model.SubmissionFailed:
	default:
		return nil, fmt.Errorf("%w: verdict %s", domain.ErrInvalidArgument, verdict)
	}
	ch, err := u.Get(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	day := ch.Day(targetDate)
	if day == nil {
		return nil, domain.ErrNotFound
	}
	if day.Status != model.SubmissionProcessing && day.Status != model.SubmissionDoubleChecking {
		return nil, fmt.Errorf("%w: day %s is %s, not under review", domain.ErrInvalidArgument, targetDate, day.Status)
	}

	day.Status = verdict
	if err := u.challenges.UpdateDay(ctx, nil, challengeID, *day); err != nil {
		return nil, fmt.Errorf("update day: %w", err)
	}
	u.log.Info().Str("challenge_id", challengeID).Str("target_date", targetDate).Str("verdict", string(verdict)).Msg("submission resolved")
	return day, nil
}

func (u *challengeUC) MarkMissed(ctx context.Context, before time.Time, limit int) (int, error) {
	overdue, err := u.challenges.ListWithOverduePending(ctx, nil, before, limit)
	if err != nil {
		return 0, err
	}
	marked := 0
	for _, ch := range overdue {
		for i := range ch.Calendar {
			day := &ch.Calendar[i]
			if day.Status != model.SubmissionPending || day.Deadline.After(before) {
				continue
			}
			day.Status = model.SubmissionMissed
			if err := u.challenges.UpdateDay(ctx, nil, ch.ID, *day); err != nil {
				return marked, err
			}
			marked++
		}
	}
	return marked, nil
}
