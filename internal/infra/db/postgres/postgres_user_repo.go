package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"protagonist-billing/internal/domain"
	"protagonist-billing/internal/domain/model"
	"protagonist-billing/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*PostgresUserRepo)(nil)

type PostgresUserRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{pool: pool}
}

func (r *PostgresUserRepo) Save(ctx context.Context, qx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (
  id, email, first_name, last_name,
  stripe_customer_id, stripe_subscription_id, subscription_status,
  current_period_start, current_period_end, cancel_at_period_end,
  current_challenge_id, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
) ON CONFLICT (id) DO UPDATE SET
  email=$2, first_name=$3, last_name=$4,
  stripe_customer_id=$5, stripe_subscription_id=$6, subscription_status=$7,
  current_period_start=$8, current_period_end=$9, cancel_at_period_end=$10,
  current_challenge_id=$11, updated_at=$13;
`
	_, err := execSQL(ctx, r.pool, qx, q,
		u.ID, u.Email, u.FirstName, u.LastName,
		nullStr(u.StripeCustomerID), nullStr(u.StripeSubscriptionID), nullStr(string(u.SubscriptionStatus)),
		u.CurrentPeriodStart, u.CurrentPeriodEnd, u.CancelAtPeriodEnd,
		nullStr(u.CurrentChallengeID), u.CreatedAt, time.Now())
	return err
}

func (r *PostgresUserRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.User, error) {
	const q = userSelectCols + ` FROM users WHERE id=$1;`
	return r.scanOne(pickRow(ctx, r.pool, qx, q, id))
}

func (r *PostgresUserRepo) FindByStripeCustomerID(ctx context.Context, qx repository.Tx, customerID string) (*model.User, error) {
	const q = userSelectCols + ` FROM users WHERE stripe_customer_id=$1;`
	return r.scanOne(pickRow(ctx, r.pool, qx, q, customerID))
}

func (r *PostgresUserRepo) UpdateBillingPeriod(ctx context.Context, qx repository.Tx, userID string, subscriptionID string, status model.SubscriptionState, periodStart, periodEnd *time.Time, cancelAtPeriodEnd bool) error {
	const q = `
UPDATE users
   SET stripe_subscription_id=$2, subscription_status=$3,
       current_period_start=$4, current_period_end=$5, cancel_at_period_end=$6,
       updated_at=now()
 WHERE id=$1;
`
	tag, err := execSQL(ctx, r.pool, qx, q, userID, nullStr(subscriptionID), string(status), periodStart, periodEnd, cancelAtPeriodEnd)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *PostgresUserRepo) SetCurrentChallenge(ctx context.Context, qx repository.Tx, userID, challengeID string) error {
	tag, err := execSQL(ctx, r.pool, qx,
		`UPDATE users SET current_challenge_id=$2, updated_at=now() WHERE id=$1;`,
		userID, nullStr(challengeID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

const userSelectCols = `
SELECT id, email, first_name, last_name,
       stripe_customer_id, stripe_subscription_id, subscription_status,
       current_period_start, current_period_end, cancel_at_period_end,
       current_challenge_id, created_at, updated_at`

func (r *PostgresUserRepo) scanOne(row pgx.Row) (*model.User, error) {
	var u model.User
	var customerID, subscriptionID, status, challengeID *string
	if err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName,
		&customerID, &subscriptionID, &status,
		&u.CurrentPeriodStart, &u.CurrentPeriodEnd, &u.CancelAtPeriodEnd,
		&challengeID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	u.StripeCustomerID = deref(customerID)
	u.StripeSubscriptionID = deref(subscriptionID)
	u.SubscriptionStatus = model.SubscriptionState(deref(status))
	u.CurrentChallengeID = deref(challengeID)
	return &u, nil
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
