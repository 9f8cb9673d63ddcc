package model

import (
	"math"
	"time"
)

type PaymentType string

const (
	PaymentTypePayment PaymentType = "payment"
	PaymentTypeRefund  PaymentType = "refund"
)

type PaymentRecordStatus string

const (
	PaymentStatusSucceeded PaymentRecordStatus = "succeeded"
	PaymentStatusFailed    PaymentRecordStatus = "failed"
	// PaymentStatusNotEligible marks the audit row written when a pre-billing
	// check decided no refund was owed. Distinct from a succeeded zero-amount
	// refund on purpose.
	PaymentStatusNotEligible PaymentRecordStatus = "not_eligible"
)

// PaymentRecord is one row of the append-only billing ledger. A row is written
// for every charge, every refund, and every explicit not-eligible decision.
// Rows are never updated after insert.
type PaymentRecord struct {
	ID                    string
	UserID                string
	SubscriptionID        string
	Type                  PaymentType
	Amount                float64 // whole dollars; converted to cents at the gateway boundary
	Status                PaymentRecordStatus
	StripeInvoiceID       string
	StripePaymentIntentID string
	RefundReason          string
	CreatedAt             time.Time
}

// AmountCents converts an internal whole-dollar amount to the provider's
// minor currency unit.
func AmountCents(dollars float64) int64 {
	return int64(math.Round(dollars * 100))
}

// AmountDollars converts provider cents back to internal whole-dollar form.
func AmountDollars(cents int64) float64 {
	return float64(cents) / 100
}
