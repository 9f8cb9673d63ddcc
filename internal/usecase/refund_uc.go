// File: internal/usecase/refund_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"protagonist-billing/internal/domain"
	"protagonist-billing/internal/domain/model"
	"protagonist-billing/internal/domain/ports/adapter"
	"protagonist-billing/internal/domain/ports/repository"
	"protagonist-billing/internal/domain/schedule"
	"protagonist-billing/internal/infra/metrics"
)

// Compile-time check
var _ RefundUseCase = (*refundUC)(nil)

// CheckLocker serialises concurrent pre-billing checks for the same
// user/period. Implementations are best-effort mutual exclusion; the
// repository-level conditional mark is what actually guarantees no
// double-counting.
type CheckLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

type RefundUseCase interface {
	// RunPreBillingCheck evaluates the user's billing period one hour before
	// it ends and issues a partial refund when the completion tier warrants
	// one. Safe to re-run: days already counted in a prior check are never
	// counted again.
	RunPreBillingCheck(ctx context.Context, userID, subscriptionID, paymentID string) (*model.RefundComputation, error)
}

type refundUC struct {
	users      repository.UserRepository
	challenges repository.ChallengeRepository
	payments   repository.PaymentRecordRepository
	gateway    adapter.PaymentGateway
	scheduler  adapter.OneShotScheduler
	tm         repository.TransactionManager
	locker     CheckLocker // optional
	log        *zerolog.Logger
}

func NewRefundUseCase(
	users repository.UserRepository,
	challenges repository.ChallengeRepository,
	payments repository.PaymentRecordRepository,
	gateway adapter.PaymentGateway,
	scheduler adapter.OneShotScheduler,
	tm repository.TransactionManager,
	locker CheckLocker,
	logger *zerolog.Logger,
) *refundUC {
	l := logger.With().Str("component", "RefundUC").Logger()
	return &refundUC{
		users:      users,
		challenges: challenges,
		payments:   payments,
		gateway:    gateway,
		scheduler:  scheduler,
		tm:         tm,
		locker:     locker,
		log:        &l,
	}
}

func (u *refundUC) RunPreBillingCheck(ctx context.Context, userID, subscriptionID, paymentID string) (*model.RefundComputation, error) {
	started := time.Now()
	log := u.log.With().Str("user_id", userID).Str("subscription_id", subscriptionID).Logger()

	user, err := u.users.FindByID(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.HasBillingWindow() {
		return nil, domain.ErrInvalidState
	}

	windowStart := *user.CurrentPeriodStart
	// The check runs one hour before the period's true end so a refund or
	// cancellation decision can land before the next charge fires.
	checkTime := user.CurrentPeriodEnd.Add(-time.Hour)
	period := schedule.CheckPeriodToken(checkTime)

	if u.locker != nil {
		key := "refund-check:" + userID + ":" + period
		token, lockErr := u.locker.TryLock(ctx, key, 2*time.Minute)
		if errors.Is(lockErr, domain.ErrCheckInProgress) {
			log.Warn().Str("period", period).Msg("pre-billing check already in progress")
			return nil, domain.ErrCheckInProgress
		}
		if lockErr != nil {
			return nil, fmt.Errorf("acquire check lock: %w", lockErr)
		}
		defer func() {
			if err := u.locker.Unlock(ctx, key, token); err != nil {
				log.Warn().Err(err).Msg("failed to release refund-check lock")
			}
		}()
	}

	current, err := u.challenges.FindByID(ctx, nil, user.CurrentChallengeID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("load challenge: %w", err)
	}

	consulted, err := u.challengesToCheck(ctx, user, current, windowStart, &log)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	calendars := make([][]model.SubmissionDay, 0, len(consulted))
	for _, ch := range consulted {
		calendars = append(calendars, ch.Calendar)
	}
	expected := schedule.Expected(calendars, windowStart, checkTime, now)
	successful := schedule.CountVerified(expected)

	total, err := u.challenges.CountByUser(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("count challenges: %w", err)
	}
	// First cycle is tied to account lifetime: at most one challenge ever.
	firstCycle := total <= 1

	comp := schedule.Evaluate(len(expected), successful, firstCycle)
	log.Info().
		Int("expected", comp.TotalExpected).
		Int("successful", comp.SuccessfulSubmissions).
		Float64("completion_rate", comp.CompletionRate).
		Float64("refund_amount", comp.RefundAmount).
		Bool("first_cycle", comp.IsFirstBillingCycle).
		Str("period", period).
		Msg("refund computation")

	// Mark every classified day before acting on the money. The conditional
	// mark inside the transaction is the linearization point: if a concurrent
	// invocation already stamped some of these days, we see a short count and
	// must not refund a second time.
	marked, err := u.markChecked(ctx, consulted, windowStart, checkTime, now, period)
	if err != nil {
		return nil, fmt.Errorf("mark refund-checked: %w", err)
	}
	if marked < comp.TotalExpected {
		log.Warn().
			Int("marked", marked).
			Int("expected", comp.TotalExpected).
			Msg("days already counted by a concurrent check; refund step skipped")
		metrics.IncRefundCheck("duplicate")
		u.cleanupTrigger(ctx, userID, subscriptionID, &log)
		return &comp, nil
	}

	if comp.RefundAmount > 0 {
		if err := u.disburse(ctx, user, subscriptionID, paymentID, &comp, period); err != nil {
			// A known gap, not a silent success: the computation stands but
			// the money did not move. Must stay distinguishable in telemetry
			// from a true "no refund owed".
			log.Error().Err(err).Float64("refund_amount", comp.RefundAmount).Msg("refund not disbursed")
			metrics.IncRefundCheck("resolution_failed")
		} else {
			metrics.IncRefundCheck("refunded")
			metrics.AddRefundDisbursed(comp.RefundAmount)
			if total, sumErr := u.payments.SumRefundedByPeriod(ctx, nil, "month"); sumErr == nil {
				metrics.SetRefundedMonthToDate(total)
			}
		}
	} else {
		u.recordNotEligible(ctx, userID, subscriptionID, &comp, &log)
		metrics.IncRefundCheck("not_eligible")
	}

	u.cleanupTrigger(ctx, userID, subscriptionID, &log)
	metrics.ObserveRefundCheckDuration(time.Since(started))
	return &comp, nil
}

// challengesToCheck assembles the calendars the billing window covers. If the
// current challenge began strictly after the window start, the window spans
// the tail of the previous challenge too.
func (u *refundUC) challengesToCheck(ctx context.Context, user *model.User, current *model.Challenge, windowStart time.Time, log *zerolog.Logger) ([]*model.Challenge, error) {
	consulted := []*model.Challenge{current}
	if !current.StartedAfter(windowStart) {
		return consulted, nil
	}

	all, err := u.challenges.ListByUser(ctx, nil, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	for i, ch := range all {
		if ch.ID == current.ID && i > 0 {
			log.Debug().Str("previous_challenge_id", all[i-1].ID).Msg("billing window straddles challenge boundary")
			consulted = append([]*model.Challenge{all[i-1]}, consulted...)
			break
		}
	}
	return consulted, nil
}

// markChecked stamps the expected days of every consulted challenge inside a
// single transaction and reports how many days were newly marked.
func (u *refundUC) markChecked(ctx context.Context, consulted []*model.Challenge, windowStart, windowEnd, now time.Time, period string) (int, error) {
	marked := 0
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		for _, ch := range consulted {
			dates := schedule.ExpectedDates(ch.Calendar, windowStart, windowEnd, now)
			if len(dates) == 0 {
				continue
			}
			n, err := u.challenges.MarkRefundChecked(ctx, tx, ch.ID, dates, period)
			if err != nil {
				return err
			}
			marked += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return marked, nil
}

// disburse resolves the chargeable transaction behind paymentID and issues a
// partial refund, then appends the refund ledger row.
func (u *refundUC) disburse(ctx context.Context, user *model.User, subscriptionID, paymentID string, comp *model.RefundComputation, period string) error {
	payment, err := u.resolvePaymentRecord(ctx, user.ID, subscriptionID, paymentID)
	if err != nil {
		return err
	}
	if payment.Type != model.PaymentTypePayment || payment.Status != model.PaymentStatusSucceeded {
		return fmt.Errorf("%w: ledger row %s is %s/%s", domain.ErrPaymentResolution, payment.ID, payment.Type, payment.Status)
	}

	txID := payment.StripePaymentIntentID
	if txID == "" {
		txID, err = u.resolveFromInvoice(ctx, payment)
		if err != nil {
			return err
		}
	}

	cents := model.AmountCents(comp.RefundAmount)
	res, err := u.gateway.Refund(ctx, txID, cents, "requested_by_customer", map[string]string{
		"userId":                user.ID,
		"subscriptionId":        subscriptionID,
		"completionRate":        fmt.Sprintf("%.2f", comp.CompletionRate),
		"successfulSubmissions": fmt.Sprintf("%d", comp.SuccessfulSubmissions),
		"totalExpected":         fmt.Sprintf("%d", comp.TotalExpected),
		"refundCheckPeriod":     period,
	})
	if err != nil {
		return fmt.Errorf("issue refund: %w", err)
	}

	rec := &model.PaymentRecord{
		ID:                    ulid.Make().String(),
		UserID:                user.ID,
		SubscriptionID:        subscriptionID,
		Type:                  model.PaymentTypeRefund,
		Amount:                comp.RefundAmount,
		Status:                model.PaymentStatusSucceeded,
		StripeInvoiceID:       payment.StripeInvoiceID,
		StripePaymentIntentID: txID,
		RefundReason:          fmt.Sprintf("Partial refund: %d/%d submissions completed", comp.SuccessfulSubmissions, comp.TotalExpected),
		CreatedAt:             time.Now(),
	}
	if err := u.payments.Save(ctx, nil, rec); err != nil {
		return fmt.Errorf("record refund %s: %w", res.ID, err)
	}
	u.log.Info().Str("refund_id", res.ID).Float64("amount", comp.RefundAmount).Msg("refund issued")
	return nil
}

// resolvePaymentRecord prefers the ledger row named by the trigger payload and
// falls back to the latest succeeded charge for the subscription (triggers
// scheduled before the charge landed carry no payment id).
func (u *refundUC) resolvePaymentRecord(ctx context.Context, userID, subscriptionID, paymentID string) (*model.PaymentRecord, error) {
	if paymentID != "" {
		rec, err := u.payments.FindByID(ctx, nil, paymentID)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("load payment %s: %w", paymentID, err)
		}
	}
	rec, err := u.payments.FindLatestSucceededPayment(ctx, nil, userID, subscriptionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: no succeeded payment for subscription %s", domain.ErrPaymentResolution, subscriptionID)
		}
		return nil, fmt.Errorf("load latest payment: %w", err)
	}
	return rec, nil
}

// resolveFromInvoice derives a transaction reference by amount-matching among
// the invoice customer's recent transactions. Amount collisions are possible,
// so an ambiguous match resolves to nothing rather than to a guess.
func (u *refundUC) resolveFromInvoice(ctx context.Context, payment *model.PaymentRecord) (string, error) {
	if payment.StripeInvoiceID == "" {
		return "", fmt.Errorf("%w: ledger row %s has no transaction or invoice reference", domain.ErrPaymentResolution, payment.ID)
	}
	inv, err := u.gateway.RetrieveInvoice(ctx, payment.StripeInvoiceID)
	if err != nil {
		return "", fmt.Errorf("retrieve invoice %s: %w", payment.StripeInvoiceID, err)
	}
	if inv.CustomerID == "" {
		return "", fmt.Errorf("%w: invoice %s has no customer", domain.ErrPaymentResolution, inv.ID)
	}
	txs, err := u.gateway.ListTransactionsForCustomer(ctx, inv.CustomerID, 10)
	if err != nil {
		return "", fmt.Errorf("list transactions for %s: %w", inv.CustomerID, err)
	}
	var matches []string
	for _, tx := range txs {
		if tx.AmountCents == inv.AmountPaidCents && tx.Status == "succeeded" {
			matches = append(matches, tx.ID)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", fmt.Errorf("%w: no transaction matches invoice %s amount %d", domain.ErrPaymentResolution, inv.ID, inv.AmountPaidCents)
	default:
		return "", fmt.Errorf("%w: %d transactions match invoice %s amount %d", domain.ErrPaymentResolution, len(matches), inv.ID, inv.AmountPaidCents)
	}
}

// recordNotEligible appends the zero-amount audit row. Best-effort: a failed
// write must not fail the overall check.
func (u *refundUC) recordNotEligible(ctx context.Context, userID, subscriptionID string, comp *model.RefundComputation, log *zerolog.Logger) {
	rec := &model.PaymentRecord{
		ID:             ulid.Make().String(),
		UserID:         userID,
		SubscriptionID: subscriptionID,
		Type:           model.PaymentTypeRefund,
		Amount:         0,
		Status:         model.PaymentStatusNotEligible,
		RefundReason:   fmt.Sprintf("Not eligible: %d/%d submissions completed (%.2f%%)", comp.SuccessfulSubmissions, comp.TotalExpected, comp.CompletionRate),
		CreatedAt:      time.Now(),
	}
	if err := u.payments.Save(ctx, nil, rec); err != nil {
		log.Error().Err(err).Msg("failed to write not-eligible ledger row")
	}
}

// cleanupTrigger tears down the one-shot trigger. The trigger is one-shot and
// harmless if it cannot be cleaned up, so failure is logged, not propagated.
func (u *refundUC) cleanupTrigger(ctx context.Context, userID, subscriptionID string, log *zerolog.Logger) {
	name := adapter.TriggerName(userID, subscriptionID)
	if err := u.scheduler.DeleteOneShot(ctx, name); err != nil {
		log.Warn().Err(err).Str("trigger", name).Msg("failed to delete one-shot trigger")
		metrics.IncTriggerCleanupFailure()
	}
}
