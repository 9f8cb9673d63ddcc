package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"protagonist-billing/internal/domain"
	"protagonist-billing/internal/domain/model"
	"protagonist-billing/internal/domain/ports/repository"
)

var _ repository.PaymentRecordRepository = (*PostgresPaymentRepo)(nil)

// PostgresPaymentRepo persists the append-only billing ledger. Rows are only
// ever inserted; there is deliberately no update or delete path.
type PostgresPaymentRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresPaymentRepo(pool *pgxpool.Pool) *PostgresPaymentRepo {
	return &PostgresPaymentRepo{pool: pool}
}

func (r *PostgresPaymentRepo) Save(ctx context.Context, qx repository.Tx, rec *model.PaymentRecord) error {
	const q = `
INSERT INTO payment_records (
  id, user_id, subscription_id, type, amount, status,
  stripe_invoice_id, stripe_payment_intent_id, refund_reason, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);
`
	_, err := execSQL(ctx, r.pool, qx, q,
		rec.ID, rec.UserID, rec.SubscriptionID, string(rec.Type), rec.Amount, string(rec.Status),
		nullStr(rec.StripeInvoiceID), nullStr(rec.StripePaymentIntentID), nullStr(rec.RefundReason), rec.CreatedAt)
	return err
}

func (r *PostgresPaymentRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.PaymentRecord, error) {
	const q = paymentSelectCols + ` FROM payment_records WHERE id=$1;`
	return scanPaymentRecord(pickRow(ctx, r.pool, qx, q, id))
}

func (r *PostgresPaymentRepo) FindLatestSucceededPayment(ctx context.Context, qx repository.Tx, userID, subscriptionID string) (*model.PaymentRecord, error) {
	const q = paymentSelectCols + `
  FROM payment_records
 WHERE user_id=$1 AND subscription_id=$2 AND type=$3 AND status=$4
 ORDER BY created_at DESC
 LIMIT 1;
`
	return scanPaymentRecord(pickRow(ctx, r.pool, qx, q,
		userID, subscriptionID, string(model.PaymentTypePayment), string(model.PaymentStatusSucceeded)))
}

func (r *PostgresPaymentRepo) SumRefundedByPeriod(ctx context.Context, qx repository.Tx, period string) (float64, error) {
	switch period {
	case "week", "month", "year":
	default:
		return 0, domain.ErrInvalidArgument
	}
	q := fmt.Sprintf(`
SELECT COALESCE(SUM(amount), 0)
  FROM payment_records
 WHERE type=$1 AND status=$2
   AND created_at >= date_trunc('%s', now());
`, period)
	row := pickRow(ctx, r.pool, qx, q, string(model.PaymentTypeRefund), string(model.PaymentStatusSucceeded))
	var sum float64
	if err := row.Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum refunded: %w", err)
	}
	return sum, nil
}

const paymentSelectCols = `
SELECT id, user_id, subscription_id, type, amount, status,
       stripe_invoice_id, stripe_payment_intent_id, refund_reason, created_at`

func scanPaymentRecord(row pgx.Row) (*model.PaymentRecord, error) {
	var rec model.PaymentRecord
	var typ, status string
	var invoiceID, intentID, reason *string
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.SubscriptionID, &typ, &rec.Amount, &status,
		&invoiceID, &intentID, &reason, &rec.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	rec.Type = model.PaymentType(typ)
	rec.Status = model.PaymentRecordStatus(status)
	rec.StripeInvoiceID = deref(invoiceID)
	rec.StripePaymentIntentID = deref(intentID)
	rec.RefundReason = deref(reason)
	return &rec, nil
}
