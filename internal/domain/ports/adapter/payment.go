package adapter

import (
	"context"
)

// Transaction is the provider's chargeable object (a PaymentIntent in Stripe
// terms). Amounts cross this boundary in the provider's minor currency unit.
type Transaction struct {
	ID          string
	CustomerID  string
	AmountCents int64
	Status      string // provider status, "succeeded" when captured
}

// Invoice is the provider's billing document for a subscription cycle. It
// does not carry a transaction reference directly; resolving one may require
// amount-matching among the customer's recent transactions.
type Invoice struct {
	ID              string
	CustomerID      string
	AmountPaidCents int64
}

// RefundResult captures a minimal, provider-agnostic result of a refund.
type RefundResult struct {
	ID          string
	Status      string
	AmountCents int64
}

// PaymentGateway is the hex port for the payment provider.
type PaymentGateway interface {
	Name() string

	RetrieveTransaction(ctx context.Context, id string) (*Transaction, error)
	// ListTransactionsForCustomer returns the customer's most recent
	// transactions, newest first.
	ListTransactionsForCustomer(ctx context.Context, customerID string, limit int) ([]Transaction, error)
	RetrieveInvoice(ctx context.Context, id string) (*Invoice, error)
	// Refund issues a partial refund against a captured transaction.
	Refund(ctx context.Context, transactionID string, amountCents int64, reason string, metadata map[string]string) (*RefundResult, error)
}
