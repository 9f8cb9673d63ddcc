// File: internal/usecase/subscription_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"protagonist-billing/internal/domain"
	"protagonist-billing/internal/domain/model"
	"protagonist-billing/internal/domain/ports/adapter"
	"protagonist-billing/internal/domain/ports/repository"
	"protagonist-billing/internal/infra/metrics"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

// SubscriptionUseCase applies payment-provider lifecycle events to the local
// user record and the billing ledger. Events arrive via the provider webhook;
// this layer never calls the provider to mutate subscriptions.
type SubscriptionUseCase interface {
	// ApplyPeriod records the provider-reported billing period and schedules
	// the one-shot pre-billing trigger at one hour before the period ends.
	ApplyPeriod(ctx context.Context, userID, subscriptionID string, status model.SubscriptionState, periodStart, periodEnd time.Time, cancelAtPeriodEnd bool) error
	// Deactivate clears the subscription state after a provider-side deletion.
	Deactivate(ctx context.Context, userID, subscriptionID string) error
	// RecordInvoicePaid appends a succeeded charge to the ledger.
	RecordInvoicePaid(ctx context.Context, userID, subscriptionID, invoiceID, paymentIntentID string, amountCents int64) (*model.PaymentRecord, error)
	// RecordInvoiceFailed appends a failed charge to the ledger.
	RecordInvoiceFailed(ctx context.Context, userID, subscriptionID, invoiceID string, amountCents int64) (*model.PaymentRecord, error)
}

type subscriptionUC struct {
	users     repository.UserRepository
	payments  repository.PaymentRecordRepository
	scheduler adapter.OneShotScheduler
	log       *zerolog.Logger
}

func NewSubscriptionUseCase(users repository.UserRepository, payments repository.PaymentRecordRepository, scheduler adapter.OneShotScheduler, logger *zerolog.Logger) *subscriptionUC {
	l := logger.With().Str("component", "SubscriptionUC").Logger()
	return &subscriptionUC{users: users, payments: payments, scheduler: scheduler, log: &l}
}

func (u *subscriptionUC) ApplyPeriod(ctx context.Context, userID, subscriptionID string, status model.SubscriptionState, periodStart, periodEnd time.Time, cancelAtPeriodEnd bool) error {
	if userID == "" || subscriptionID == "" || periodEnd.Before(periodStart) {
		return domain.ErrInvalidArgument
	}
	if err := u.users.UpdateBillingPeriod(ctx, nil, userID, subscriptionID, status, &periodStart, &periodEnd, cancelAtPeriodEnd); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("update billing period: %w", err)
	}

	checkTime := periodEnd.Add(-time.Hour)
	name := adapter.TriggerName(userID, subscriptionID)
	payload := adapter.TriggerPayload{
		UserID:         userID,
		SubscriptionID: subscriptionID,
		Action:         adapter.ActionPreBillingCheck,
		ScheduledTime:  checkTime.UTC().Format(time.RFC3339),
	}
	if err := u.scheduler.ScheduleOneShot(ctx, name, checkTime.UTC(), payload); err != nil {
		return fmt.Errorf("schedule pre-billing trigger: %w", err)
	}
	metrics.IncTriggerScheduled()
	u.log.Info().
		Str("user_id", userID).
		Str("subscription_id", subscriptionID).
		Time("check_time", checkTime.UTC()).
		Msg("billing period applied, pre-billing trigger scheduled")
	return nil
}

func (u *subscriptionUC) Deactivate(ctx context.Context, userID, subscriptionID string) error {
	if err := u.users.UpdateBillingPeriod(ctx, nil, userID, subscriptionID, model.SubscriptionStateCanceled, nil, nil, false); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrUserNotFound
		}
		return err
	}
	// Best-effort: a dangling trigger aborts on its own when the user has no
	// billing window left.
	name := adapter.TriggerName(userID, subscriptionID)
	if err := u.scheduler.DeleteOneShot(ctx, name); err != nil {
		u.log.Warn().Err(err).Str("trigger", name).Msg("failed to delete trigger on deactivate")
	}
	return nil
}

func (u *subscriptionUC) RecordInvoicePaid(ctx context.Context, userID, subscriptionID, invoiceID, paymentIntentID string, amountCents int64) (*model.PaymentRecord, error) {
	rec := &model.PaymentRecord{
		ID:                    ulid.Make().String(),
		UserID:                userID,
		SubscriptionID:        subscriptionID,
		Type:                  model.PaymentTypePayment,
		Amount:                model.AmountDollars(amountCents),
		Status:                model.PaymentStatusSucceeded,
		StripeInvoiceID:       invoiceID,
		StripePaymentIntentID: paymentIntentID,
		CreatedAt:             time.Now(),
	}
	if err := u.payments.Save(ctx, nil, rec); err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}
	metrics.IncLedgerRecord(string(rec.Type), string(rec.Status))
	return rec, nil
}

func (u *subscriptionUC) RecordInvoiceFailed(ctx context.Context, userID, subscriptionID, invoiceID string, amountCents int64) (*model.PaymentRecord, error) {
	rec := &model.PaymentRecord{
		ID:              ulid.Make().String(),
		UserID:          userID,
		SubscriptionID:  subscriptionID,
		Type:            model.PaymentTypePayment,
		Amount:          model.AmountDollars(amountCents),
		Status:          model.PaymentStatusFailed,
		StripeInvoiceID: invoiceID,
		CreatedAt:       time.Now(),
	}
	if err := u.payments.Save(ctx, nil, rec); err != nil {
		return nil, fmt.Errorf("record failed payment: %w", err)
	}
	metrics.IncLedgerRecord(string(rec.Type), string(rec.Status))
	return rec, nil
}
