package repository

import (
	"context"

	"protagonist-billing/internal/domain/model"
)

// -----------------------------
// Payment ledger
// -----------------------------

// PaymentRecordRepository is append-only: rows are inserted and read, never
// updated or deleted.
type PaymentRecordRepository interface {
	Save(ctx context.Context, qx Tx, rec *model.PaymentRecord) error
	FindByID(ctx context.Context, qx Tx, id string) (*model.PaymentRecord, error)
	// FindLatestSucceededPayment returns the most recent succeeded charge for
	// a user/subscription pair, or domain.ErrNotFound.
	FindLatestSucceededPayment(ctx context.Context, qx Tx, userID, subscriptionID string) (*model.PaymentRecord, error)
	// SumRefundedByPeriod sums disbursed refund dollars since the start of the
	// given date_trunc period ("week", "month", "year").
	SumRefundedByPeriod(ctx context.Context, qx Tx, period string) (float64, error)
}
