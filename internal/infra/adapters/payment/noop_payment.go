package payment

import (
	"context"

	"protagonist-billing/internal/domain"
	"protagonist-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopGateway)(nil)

// NoopGateway is a dev-mode stand-in. Lookups miss and refunds pretend to
// succeed without touching any provider.
type NoopGateway struct{}

func NewNoopGateway() *NoopGateway { return &NoopGateway{} }

func (NoopGateway) Name() string { return "noop" }

func (NoopGateway) RetrieveTransaction(ctx context.Context, id string) (*adapter.Transaction, error) {
	return nil, domain.ErrNotFound
}

func (NoopGateway) ListTransactionsForCustomer(ctx context.Context, customerID string, limit int) ([]adapter.Transaction, error) {
	return nil, nil
}

func (NoopGateway) RetrieveInvoice(ctx context.Context, id string) (*adapter.Invoice, error) {
	return nil, domain.ErrNotFound
}

func (NoopGateway) Refund(ctx context.Context, transactionID string, amountCents int64, reason string, metadata map[string]string) (*adapter.RefundResult, error) {
	return &adapter.RefundResult{ID: "noop_" + transactionID, Status: "succeeded", AmountCents: amountCents}, nil
}
