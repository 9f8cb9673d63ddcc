package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"protagonist-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*StripeGateway)(nil)

// StripeGateway implements adapter.PaymentGateway using direct HTTP calls
// against Stripe's form-encoded REST API.
type StripeGateway struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

// NewStripeGateway creates a new direct Stripe gateway.
func NewStripeGateway(secretKey, baseURL string) *StripeGateway {
	if baseURL == "" {
		baseURL = "https://api.stripe.com/v1"
	}
	return &StripeGateway{
		secretKey: secretKey,
		baseURL:   baseURL,
		client:    &http.Client{},
	}
}

func (g *StripeGateway) Name() string { return "stripe" }

// stripePaymentIntent represents the subset of a PaymentIntent we consume.
type stripePaymentIntent struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	Amount   int64  `json:"amount"`
	Status   string `json:"status"`
}

type stripePaymentIntentList struct {
	Data []stripePaymentIntent `json:"data"`
}

type stripeInvoice struct {
	ID         string `json:"id"`
	Customer   string `json:"customer"`
	AmountPaid int64  `json:"amount_paid"`
}

type stripeRefund struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount int64  `json:"amount"`
}

type stripeErrorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (g *StripeGateway) RetrieveTransaction(ctx context.Context, id string) (*adapter.Transaction, error) {
	var pi stripePaymentIntent
	if err := g.do(ctx, "GET", "/payment_intents/"+url.PathEscape(id), nil, &pi); err != nil {
		return nil, err
	}
	return &adapter.Transaction{
		ID:          pi.ID,
		CustomerID:  pi.Customer,
		AmountCents: pi.Amount,
		Status:      pi.Status,
	}, nil
}

func (g *StripeGateway) ListTransactionsForCustomer(ctx context.Context, customerID string, limit int) ([]adapter.Transaction, error) {
	if limit <= 0 {
		limit = 10
	}
	path := "/payment_intents?customer=" + url.QueryEscape(customerID) + "&limit=" + strconv.Itoa(limit)
	var list stripePaymentIntentList
	if err := g.do(ctx, "GET", path, nil, &list); err != nil {
		return nil, err
	}
	out := make([]adapter.Transaction, 0, len(list.Data))
	for _, pi := range list.Data {
		out = append(out, adapter.Transaction{
			ID:          pi.ID,
			CustomerID:  pi.Customer,
			AmountCents: pi.Amount,
			Status:      pi.Status,
		})
	}
	return out, nil
}

func (g *StripeGateway) RetrieveInvoice(ctx context.Context, id string) (*adapter.Invoice, error) {
	var inv stripeInvoice
	if err := g.do(ctx, "GET", "/invoices/"+url.PathEscape(id), nil, &inv); err != nil {
		return nil, err
	}
	return &adapter.Invoice{
		ID:              inv.ID,
		CustomerID:      inv.Customer,
		AmountPaidCents: inv.AmountPaid,
	}, nil
}

func (g *StripeGateway) Refund(ctx context.Context, transactionID string, amountCents int64, reason string, metadata map[string]string) (*adapter.RefundResult, error) {
	form := url.Values{}
	form.Set("payment_intent", transactionID)
	form.Set("amount", strconv.FormatInt(amountCents, 10))
	if reason != "" {
		form.Set("metadata[reason]", reason)
	}
	for k, v := range metadata {
		form.Set("metadata["+k+"]", v)
	}
	var ref stripeRefund
	if err := g.do(ctx, "POST", "/refunds", form, &ref); err != nil {
		return nil, err
	}
	return &adapter.RefundResult{
		ID:          ref.ID,
		Status:      ref.Status,
		AmountCents: ref.Amount,
	}, nil
}

func (g *StripeGateway) do(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var env stripeErrorEnvelope
		if json.Unmarshal(raw, &env) == nil && env.Error.Message != "" {
			return fmt.Errorf("stripe error: %s (%s)", env.Error.Message, env.Error.Type)
		}
		return fmt.Errorf("stripe error: status %d, body: %s", resp.StatusCode, string(raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(raw))
	}
	return nil
}
