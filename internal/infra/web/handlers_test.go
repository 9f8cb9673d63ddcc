//go:build !integration

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"protagonist-billing/internal/domain"
	"protagonist-billing/internal/domain/model"
	"protagonist-billing/internal/domain/ports/adapter"
	"protagonist-billing/internal/usecase"
)

// --- Mock use cases (the handlers' only dependencies) ---

type mockUserUC struct {
	RegisterFunc              func(ctx context.Context, email, firstName, lastName string) (*model.User, error)
	GetFunc                   func(ctx context.Context, id string) (*model.User, error)
	GetByStripeCustomerIDFunc func(ctx context.Context, customerID string) (*model.User, error)
	LinkStripeCustomerFunc    func(ctx context.Context, userID, customerID, subscriptionID string) (*model.User, error)
}

var _ usecase.UserUseCase = (*mockUserUC)(nil)

func (m *mockUserUC) Register(ctx context.Context, email, firstName, lastName string) (*model.User, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, email, firstName, lastName)
	}
	return &model.User{ID: "user-1", Email: email}, nil
}

func (m *mockUserUC) Get(ctx context.Context, id string) (*model.User, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, domain.ErrUserNotFound
}

func (m *mockUserUC) GetByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	if m.GetByStripeCustomerIDFunc != nil {
		return m.GetByStripeCustomerIDFunc(ctx, customerID)
	}
	return nil, domain.ErrUserNotFound
}

func (m *mockUserUC) LinkStripeCustomer(ctx context.Context, userID, customerID, subscriptionID string) (*model.User, error) {
	if m.LinkStripeCustomerFunc != nil {
		return m.LinkStripeCustomerFunc(ctx, userID, customerID, subscriptionID)
	}
	return nil, domain.ErrUserNotFound
}

type mockChallengeUC struct {
	CreateFunc func(ctx context.Context, userID, startDate, endDate string, weekdays []string, deadlineTime, timezone string) (*model.Challenge, error)
	GetFunc    func(ctx context.Context, id string) (*model.Challenge, error)
}

var _ usecase.ChallengeUseCase = (*mockChallengeUC)(nil)

func (m *mockChallengeUC) Create(ctx context.Context, userID, startDate, endDate string, weekdays []string, deadlineTime, timezone string) (*model.Challenge, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, userID, startDate, endDate, weekdays, deadlineTime, timezone)
	}
	return &model.Challenge{ID: "ch-1", UserID: userID}, nil
}

func (m *mockChallengeUC) Get(ctx context.Context, id string) (*model.Challenge, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, domain.ErrChallengeNotFound
}

func (m *mockChallengeUC) ListForUser(ctx context.Context, userID string) ([]*model.Challenge, error) {
	return nil, nil
}

func (m *mockChallengeUC) AttachSubmission(ctx context.Context, challengeID, targetDate, submissionID string) (*model.SubmissionDay, error) {
	return nil, domain.ErrNotFound
}

func (m *mockChallengeUC) ResolveSubmission(ctx context.Context, challengeID, targetDate string, verdict model.SubmissionStatus) (*model.SubmissionDay, error) {
	return nil, domain.ErrNotFound
}

func (m *mockChallengeUC) MarkMissed(ctx context.Context, before time.Time, limit int) (int, error) {
	return 0, nil
}

type mockSubUC struct {
	ApplyPeriodFunc       func(ctx context.Context, userID, subscriptionID string, status model.SubscriptionState, periodStart, periodEnd time.Time, cancelAtPeriodEnd bool) error
	DeactivateFunc        func(ctx context.Context, userID, subscriptionID string) error
	RecordInvoicePaidFunc func(ctx context.Context, userID, subscriptionID, invoiceID, paymentIntentID string, amountCents int64) (*model.PaymentRecord, error)
}

var _ usecase.SubscriptionUseCase = (*mockSubUC)(nil)

func (m *mockSubUC) ApplyPeriod(ctx context.Context, userID, subscriptionID string, status model.SubscriptionState, periodStart, periodEnd time.Time, cancelAtPeriodEnd bool) error {
	if m.ApplyPeriodFunc != nil {
		return m.ApplyPeriodFunc(ctx, userID, subscriptionID, status, periodStart, periodEnd, cancelAtPeriodEnd)
	}
	return nil
}

func (m *mockSubUC) Deactivate(ctx context.Context, userID, subscriptionID string) error {
	if m.DeactivateFunc != nil {
		return m.DeactivateFunc(ctx, userID, subscriptionID)
	}
	return nil
}

func (m *mockSubUC) RecordInvoicePaid(ctx context.Context, userID, subscriptionID, invoiceID, paymentIntentID string, amountCents int64) (*model.PaymentRecord, error) {
	if m.RecordInvoicePaidFunc != nil {
		return m.RecordInvoicePaidFunc(ctx, userID, subscriptionID, invoiceID, paymentIntentID, amountCents)
	}
	return &model.PaymentRecord{ID: "rec-1"}, nil
}

func (m *mockSubUC) RecordInvoiceFailed(ctx context.Context, userID, subscriptionID, invoiceID string, amountCents int64) (*model.PaymentRecord, error) {
	return &model.PaymentRecord{ID: "rec-2"}, nil
}

type mockRefundUC struct {
	RunFunc func(ctx context.Context, userID, subscriptionID, paymentID string) (*model.RefundComputation, error)
}

var _ usecase.RefundUseCase = (*mockRefundUC)(nil)

func (m *mockRefundUC) RunPreBillingCheck(ctx context.Context, userID, subscriptionID, paymentID string) (*model.RefundComputation, error) {
	if m.RunFunc != nil {
		return m.RunFunc(ctx, userID, subscriptionID, paymentID)
	}
	return &model.RefundComputation{}, nil
}

// --- helpers ---

type serverDeps struct {
	users      *mockUserUC
	challenges *mockChallengeUC
	subs       *mockSubUC
	refunds    *mockRefundUC
	auth       *AuthManager
}

func newTestServer() (*Server, *serverDeps) {
	deps := &serverDeps{
		users:      &mockUserUC{},
		challenges: &mockChallengeUC{},
		subs:       &mockSubUC{},
		refunds:    &mockRefundUC{},
		auth:       NewAuthManager("test-secret", time.Minute),
	}
	logger := zerolog.New(io.Discard)
	srv := NewServer(deps.users, deps.challenges, deps.subs, deps.refunds, deps.auth, "hook-secret", &logger)
	return srv, deps
}

func doJSON(t *testing.T, srv *Server, method, path, token, webhookSecret string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if webhookSecret != "" {
		req.Header.Set("X-Webhook-Secret", webhookSecret)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

// --- tests ---

func TestPreBillingCheckEndpoint(t *testing.T) {
	srv, deps := newTestServer()
	token, err := deps.auth.Mint("scheduler")
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	valid := adapter.TriggerPayload{
		UserID:         "user-1",
		SubscriptionID: "sub_00000001",
		Action:         adapter.ActionPreBillingCheck,
	}

	t.Run("happy path returns the computation", func(t *testing.T) {
		deps.refunds.RunFunc = func(ctx context.Context, userID, subscriptionID, paymentID string) (*model.RefundComputation, error) {
			return &model.RefundComputation{TotalExpected: 10, SuccessfulSubmissions: 9, CompletionRate: 90, RefundAmount: 98, IsFirstBillingCycle: true}, nil
		}
		rec := doJSON(t, srv, http.MethodPost, "/api/v1/triggers/pre-billing-check", token, "", valid)
		if rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d, body=%s", rec.Code, rec.Body.String())
		}
		var comp model.RefundComputation
		if err := json.NewDecoder(rec.Body).Decode(&comp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if comp.RefundAmount != 98 {
			t.Errorf("want refund 98, got %v", comp.RefundAmount)
		}
	})

	t.Run("rejects a wrong action", func(t *testing.T) {
		bad := valid
		bad.Action = "post_billing_check"
		rec := doJSON(t, srv, http.MethodPost, "/api/v1/triggers/pre-billing-check", token, "", bad)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("want 400, got %d", rec.Code)
		}
	})

	t.Run("requires a token", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/v1/triggers/pre-billing-check", "", "", valid)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d", rec.Code)
		}
	})

	t.Run("unknown user maps to 404", func(t *testing.T) {
		deps.refunds.RunFunc = func(ctx context.Context, userID, subscriptionID, paymentID string) (*model.RefundComputation, error) {
			return nil, domain.ErrUserNotFound
		}
		rec := doJSON(t, srv, http.MethodPost, "/api/v1/triggers/pre-billing-check", token, "", valid)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("want 404, got %d", rec.Code)
		}
	})

	t.Run("missing billing window maps to 400", func(t *testing.T) {
		deps.refunds.RunFunc = func(ctx context.Context, userID, subscriptionID, paymentID string) (*model.RefundComputation, error) {
			return nil, domain.ErrInvalidState
		}
		rec := doJSON(t, srv, http.MethodPost, "/api/v1/triggers/pre-billing-check", token, "", valid)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("want 400, got %d", rec.Code)
		}
	})

	t.Run("concurrent check maps to 409", func(t *testing.T) {
		deps.refunds.RunFunc = func(ctx context.Context, userID, subscriptionID, paymentID string) (*model.RefundComputation, error) {
			return nil, domain.ErrCheckInProgress
		}
		rec := doJSON(t, srv, http.MethodPost, "/api/v1/triggers/pre-billing-check", token, "", valid)
		if rec.Code != http.StatusConflict {
			t.Fatalf("want 409, got %d", rec.Code)
		}
	})
}

func TestStripeWebhook(t *testing.T) {
	srv, deps := newTestServer()
	user := &model.User{ID: "user-1", StripeCustomerID: "cus_1"}
	deps.users.GetByStripeCustomerIDFunc = func(ctx context.Context, customerID string) (*model.User, error) {
		if customerID == "cus_1" {
			return user, nil
		}
		return nil, domain.ErrUserNotFound
	}

	event := func(typ string) map[string]interface{} {
		return map[string]interface{}{
			"type": typ,
			"data": map[string]interface{}{
				"object": map[string]interface{}{
					"id":                   "sub_00000001",
					"customer":             "cus_1",
					"subscription":         "sub_00000001",
					"status":               "active",
					"current_period_start": time.Now().Unix(),
					"current_period_end":   time.Now().AddDate(0, 1, 0).Unix(),
					"amount_paid":          12000,
					"payment_intent":       "pi_1",
				},
			},
		}
	}

	t.Run("requires the shared secret", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/webhooks/stripe", "", "wrong", event("invoice.paid"))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("want 403, got %d", rec.Code)
		}
	})

	t.Run("subscription update applies the billing period", func(t *testing.T) {
		applied := false
		deps.subs.ApplyPeriodFunc = func(ctx context.Context, userID, subscriptionID string, status model.SubscriptionState, periodStart, periodEnd time.Time, cancelAtPeriodEnd bool) error {
			applied = true
			if userID != "user-1" || subscriptionID != "sub_00000001" || status != model.SubscriptionStateActive {
				t.Errorf("unexpected ApplyPeriod args: %s %s %s", userID, subscriptionID, status)
			}
			return nil
		}
		rec := doJSON(t, srv, http.MethodPost, "/webhooks/stripe", "", "hook-secret", event("customer.subscription.updated"))
		if rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d, body=%s", rec.Code, rec.Body.String())
		}
		if !applied {
			t.Error("ApplyPeriod was not called")
		}
	})

	t.Run("invoice paid lands in the ledger", func(t *testing.T) {
		recorded := false
		deps.subs.RecordInvoicePaidFunc = func(ctx context.Context, userID, subscriptionID, invoiceID, paymentIntentID string, amountCents int64) (*model.PaymentRecord, error) {
			recorded = true
			if amountCents != 12000 || paymentIntentID != "pi_1" {
				t.Errorf("unexpected invoice args: cents=%d intent=%s", amountCents, paymentIntentID)
			}
			return &model.PaymentRecord{ID: "rec-1"}, nil
		}
		rec := doJSON(t, srv, http.MethodPost, "/webhooks/stripe", "", "hook-secret", event("invoice.paid"))
		if rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d", rec.Code)
		}
		if !recorded {
			t.Error("RecordInvoicePaid was not called")
		}
	})

	t.Run("unknown customer is acknowledged", func(t *testing.T) {
		ev := event("invoice.paid")
		ev["data"].(map[string]interface{})["object"].(map[string]interface{})["customer"] = "cus_other"
		rec := doJSON(t, srv, http.MethodPost, "/webhooks/stripe", "", "hook-secret", ev)
		if rec.Code != http.StatusOK {
			t.Fatalf("unknown customers must be acked to stop retries: got %d", rec.Code)
		}
	})
}

func TestChallengeEndpoints(t *testing.T) {
	srv, deps := newTestServer()
	token, err := deps.auth.Mint("ops")
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	t.Run("create returns 201", func(t *testing.T) {
		body := map[string]interface{}{
			"userId":       "user-1",
			"startDate":    "2025-11-01",
			"endDate":      "2025-11-30",
			"weekdays":     []string{"Monday", "Wednesday", "Friday"},
			"deadlineTime": "22:00",
			"timezone":     "America/New_York",
		}
		rec := doJSON(t, srv, http.MethodPost, "/api/v1/challenges", token, "", body)
		if rec.Code != http.StatusCreated {
			t.Fatalf("want 201, got %d, body=%s", rec.Code, rec.Body.String())
		}
	})

	t.Run("bad schedule returns 400", func(t *testing.T) {
		deps.challenges.CreateFunc = func(ctx context.Context, userID, startDate, endDate string, weekdays []string, deadlineTime, timezone string) (*model.Challenge, error) {
			return nil, domain.ErrInvalidArgument
		}
		rec := doJSON(t, srv, http.MethodPost, "/api/v1/challenges", token, "", map[string]interface{}{"userId": "user-1"})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("want 400, got %d", rec.Code)
		}
		deps.challenges.CreateFunc = nil
	})

	t.Run("missing challenge returns 404", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/api/v1/challenges/nope", token, "", nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("want 404, got %d", rec.Code)
		}
	})
}
