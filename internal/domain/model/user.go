package model

import (
	"time"

	"protagonist-billing/internal/domain"

	"github.com/google/uuid"
)

type SubscriptionState string

const (
	SubscriptionStateActive   SubscriptionState = "active"
	SubscriptionStateCanceled SubscriptionState = "canceled"
	SubscriptionStatePastDue  SubscriptionState = "past_due"
	SubscriptionStateUnpaid   SubscriptionState = "unpaid"
)

// User is a domain entity representing an account holder. Billing period
// fields mirror what the payment provider reports for the subscription and
// are only ever written from provider events.
type User struct {
	ID                   string
	Email                string
	FirstName            string
	LastName             string
	StripeCustomerID     string
	StripeSubscriptionID string
	SubscriptionStatus   SubscriptionState
	CurrentPeriodStart   *time.Time
	CurrentPeriodEnd     *time.Time
	CancelAtPeriodEnd    bool
	CurrentChallengeID   string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func NewUser(id, email, firstName, lastName string) (*User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if email == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &User{
		ID:        id,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }

// HasBillingWindow reports whether the pre-billing check has everything it
// needs: a provider-sourced billing period and a challenge to evaluate.
func (u *User) HasBillingWindow() bool {
	return u.CurrentPeriodStart != nil && u.CurrentPeriodEnd != nil && u.CurrentChallengeID != ""
}
