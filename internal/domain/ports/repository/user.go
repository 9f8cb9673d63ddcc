package repository

import (
	"context"
	"time"

	"protagonist-billing/internal/domain/model"
)

// -----------------------------
// Users
// -----------------------------

type UserRepository interface {
	Save(ctx context.Context, qx Tx, u *model.User) error
	FindByID(ctx context.Context, qx Tx, id string) (*model.User, error)
	FindByStripeCustomerID(ctx context.Context, qx Tx, customerID string) (*model.User, error)
	// UpdateBillingPeriod writes the provider-sourced subscription fields.
	UpdateBillingPeriod(ctx context.Context, qx Tx, userID string, subscriptionID string, status model.SubscriptionState, periodStart, periodEnd *time.Time, cancelAtPeriodEnd bool) error
	SetCurrentChallenge(ctx context.Context, qx Tx, userID, challengeID string) error
}
