package sched

import (
	"context"
	"time"

	"protagonist-billing/internal/infra/metrics"
	"protagonist-billing/internal/usecase"

	"github.com/rs/zerolog"
)

// MissedSweeper periodically flips overdue pending calendar days to missed.
// The pre-billing check counts by deadline, not by status, so the sweeper is
// bookkeeping for readers of the calendar, not part of refund correctness.
type MissedSweeper struct {
	interval    time.Duration
	batch       int
	challengeUC usecase.ChallengeUseCase
	log         *zerolog.Logger
}

func NewMissedSweeper(interval time.Duration, batch int, challengeUC usecase.ChallengeUseCase, logger *zerolog.Logger) *MissedSweeper {
	sweepLog := logger.With().Str("component", "MissedSweeper").Logger()
	return &MissedSweeper{
		interval:    interval,
		batch:       batch,
		challengeUC: challengeUC,
		log:         &sweepLog,
	}
}

func (w *MissedSweeper) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting missed sweeper")
	// Run once on startup, then on every tick
	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping missed sweeper")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *MissedSweeper) sweep(ctx context.Context) {
	n, err := w.challengeUC.MarkMissed(ctx, time.Now().UTC(), w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("missed sweep failed")
	}
	if n > 0 {
		metrics.IncSubmissionsMissed(n)
		w.log.Info().Int("count", n).Msg("overdue submissions marked missed")
	}
}
