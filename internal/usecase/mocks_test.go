//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"protagonist-billing/internal/domain"
	"protagonist-billing/internal/domain/model"
	"protagonist-billing/internal/domain/ports/adapter"
	"protagonist-billing/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
// It writes to io.Discard to prevent logs from cluttering test output.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// =============================
// Repositories
// =============================

// ---- Mock UserRepository ----

type MockUserRepo struct {
	mu    sync.RWMutex
	store map[string]*model.User

	SaveFunc                func(ctx context.Context, qx repository.Tx, u *model.User) error
	FindByIDFunc            func(ctx context.Context, qx repository.Tx, id string) (*model.User, error)
	UpdateBillingPeriodFunc func(ctx context.Context, qx repository.Tx, userID string, subscriptionID string, status model.SubscriptionState, periodStart, periodEnd *time.Time, cancelAtPeriodEnd bool) error
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{store: make(map[string]*model.User)}
}

func (m *MockUserRepo) Save(ctx context.Context, qx repository.Tx, u *model.User) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, qx, u)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.store[u.ID] = &cp
	return nil
}

func (m *MockUserRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.User, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, qx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepo) FindByStripeCustomerID(ctx context.Context, qx repository.Tx, customerID string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.store {
		if u.StripeCustomerID == customerID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockUserRepo) UpdateBillingPeriod(ctx context.Context, qx repository.Tx, userID string, subscriptionID string, status model.SubscriptionState, periodStart, periodEnd *time.Time, cancelAtPeriodEnd bool) error {
	if m.UpdateBillingPeriodFunc != nil {
		return m.UpdateBillingPeriodFunc(ctx, qx, userID, subscriptionID, status, periodStart, periodEnd, cancelAtPeriodEnd)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.StripeSubscriptionID = subscriptionID
	u.SubscriptionStatus = status
	u.CurrentPeriodStart = periodStart
	u.CurrentPeriodEnd = periodEnd
	u.CancelAtPeriodEnd = cancelAtPeriodEnd
	return nil
}

func (m *MockUserRepo) SetCurrentChallenge(ctx context.Context, qx repository.Tx, userID, challengeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.CurrentChallengeID = challengeID
	return nil
}

// ---- Mock ChallengeRepository ----

// MockChallengeRepo keeps the conditional-mark semantics of the real store:
// MarkRefundChecked stamps only unmarked days and returns the count actually
// stamped, which is what the concurrency tests exercise.
type MockChallengeRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Challenge

	MarkRefundCheckedFunc func(ctx context.Context, qx repository.Tx, challengeID string, targetDates []string, period string) (int, error)
	UpdateDayFunc         func(ctx context.Context, qx repository.Tx, challengeID string, day model.SubmissionDay) error
}

var _ repository.ChallengeRepository = (*MockChallengeRepo)(nil)

func NewMockChallengeRepo() *MockChallengeRepo {
	return &MockChallengeRepo{store: make(map[string]*model.Challenge)}
}

func (m *MockChallengeRepo) Save(ctx context.Context, qx repository.Tx, c *model.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	cp.Calendar = append([]model.SubmissionDay(nil), c.Calendar...)
	m.store[c.ID] = &cp
	return nil
}

func (m *MockChallengeRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.Challenge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneChallenge(c), nil
}

func (m *MockChallengeRepo) ListByUser(ctx context.Context, qx repository.Tx, userID string) ([]*model.Challenge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Challenge
	for _, c := range m.store {
		if c.UserID == userID {
			out = append(out, cloneChallenge(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MockChallengeRepo) CountByUser(ctx context.Context, qx repository.Tx, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.store {
		if c.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *MockChallengeRepo) UpdateDay(ctx context.Context, qx repository.Tx, challengeID string, day model.SubmissionDay) error {
	if m.UpdateDayFunc != nil {
		return m.UpdateDayFunc(ctx, qx, challengeID, day)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[challengeID]
	if !ok {
		return domain.ErrNotFound
	}
	for i := range c.Calendar {
		if c.Calendar[i].TargetDate == day.TargetDate {
			c.Calendar[i] = day
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *MockChallengeRepo) MarkRefundChecked(ctx context.Context, qx repository.Tx, challengeID string, targetDates []string, period string) (int, error) {
	if m.MarkRefundCheckedFunc != nil {
		return m.MarkRefundCheckedFunc(ctx, qx, challengeID, targetDates, period)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[challengeID]
	if !ok {
		return 0, domain.ErrChallengeNotFound
	}
	wanted := make(map[string]struct{}, len(targetDates))
	for _, d := range targetDates {
		wanted[d] = struct{}{}
	}
	marked := 0
	for i := range c.Calendar {
		if _, ok := wanted[c.Calendar[i].TargetDate]; !ok {
			continue
		}
		if c.Calendar[i].RefundCheckPeriod != "" {
			continue
		}
		c.Calendar[i].RefundCheckPeriod = period
		marked++
	}
	return marked, nil
}

func (m *MockChallengeRepo) ListWithOverduePending(ctx context.Context, qx repository.Tx, before time.Time, limit int) ([]*model.Challenge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Challenge
	for _, c := range m.store {
		if c.Status != model.ChallengeStatusActive {
			continue
		}
		for _, d := range c.Calendar {
			if d.Status == model.SubmissionPending && d.Deadline.Before(before) {
				out = append(out, cloneChallenge(c))
				break
			}
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func cloneChallenge(c *model.Challenge) *model.Challenge {
	cp := *c
	cp.Calendar = append([]model.SubmissionDay(nil), c.Calendar...)
	return &cp
}

// ---- Mock PaymentRecordRepository ----

type MockPaymentRepo struct {
	mu   sync.RWMutex
	rows []*model.PaymentRecord

	SaveFunc func(ctx context.Context, qx repository.Tx, rec *model.PaymentRecord) error
}

var _ repository.PaymentRecordRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{}
}

func (m *MockPaymentRepo) Save(ctx context.Context, qx repository.Tx, rec *model.PaymentRecord) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, qx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *MockPaymentRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rows {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockPaymentRepo) FindLatestSucceededPayment(ctx context.Context, qx repository.Tx, userID, subscriptionID string) (*model.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *model.PaymentRecord
	for _, r := range m.rows {
		if r.UserID != userID || r.SubscriptionID != subscriptionID {
			continue
		}
		if r.Type != model.PaymentTypePayment || r.Status != model.PaymentStatusSucceeded {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *MockPaymentRepo) SumRefundedByPeriod(ctx context.Context, qx repository.Tx, period string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sum := 0.0
	for _, r := range m.rows {
		if r.Type == model.PaymentTypeRefund && r.Status == model.PaymentStatusSucceeded {
			sum += r.Amount
		}
	}
	return sum, nil
}

// Rows returns a snapshot of everything saved, oldest first.
func (m *MockPaymentRepo) Rows() []model.PaymentRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.PaymentRecord, len(m.rows))
	for i, r := range m.rows {
		out[i] = *r
	}
	return out
}

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type refundCall struct {
	TransactionID string
	AmountCents   int64
	Reason        string
	Metadata      map[string]string
}

type MockPaymentGateway struct {
	mu      sync.Mutex
	Refunds []refundCall

	RetrieveTransactionFunc         func(ctx context.Context, id string) (*adapter.Transaction, error)
	ListTransactionsForCustomerFunc func(ctx context.Context, customerID string, limit int) ([]adapter.Transaction, error)
	RetrieveInvoiceFunc             func(ctx context.Context, id string) (*adapter.Invoice, error)
	RefundFunc                      func(ctx context.Context, transactionID string, amountCents int64, reason string, metadata map[string]string) (*adapter.RefundResult, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (m *MockPaymentGateway) Name() string { return "mock" }

func (m *MockPaymentGateway) RetrieveTransaction(ctx context.Context, id string) (*adapter.Transaction, error) {
	if m.RetrieveTransactionFunc != nil {
		return m.RetrieveTransactionFunc(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *MockPaymentGateway) ListTransactionsForCustomer(ctx context.Context, customerID string, limit int) ([]adapter.Transaction, error) {
	if m.ListTransactionsForCustomerFunc != nil {
		return m.ListTransactionsForCustomerFunc(ctx, customerID, limit)
	}
	return nil, nil
}

func (m *MockPaymentGateway) RetrieveInvoice(ctx context.Context, id string) (*adapter.Invoice, error) {
	if m.RetrieveInvoiceFunc != nil {
		return m.RetrieveInvoiceFunc(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *MockPaymentGateway) Refund(ctx context.Context, transactionID string, amountCents int64, reason string, metadata map[string]string) (*adapter.RefundResult, error) {
	m.mu.Lock()
	m.Refunds = append(m.Refunds, refundCall{TransactionID: transactionID, AmountCents: amountCents, Reason: reason, Metadata: metadata})
	m.mu.Unlock()
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, transactionID, amountCents, reason, metadata)
	}
	return &adapter.RefundResult{ID: "re_mock", Status: "succeeded", AmountCents: amountCents}, nil
}

// ---- Mock OneShotScheduler ----

type MockScheduler struct {
	mu        sync.Mutex
	Scheduled []string
	Deleted   []string

	ScheduleOneShotFunc func(ctx context.Context, name string, whenUTC time.Time, payload adapter.TriggerPayload) error
	DeleteOneShotFunc   func(ctx context.Context, name string) error
}

var _ adapter.OneShotScheduler = (*MockScheduler)(nil)

func (m *MockScheduler) ScheduleOneShot(ctx context.Context, name string, whenUTC time.Time, payload adapter.TriggerPayload) error {
	m.mu.Lock()
	m.Scheduled = append(m.Scheduled, name)
	m.mu.Unlock()
	if m.ScheduleOneShotFunc != nil {
		return m.ScheduleOneShotFunc(ctx, name, whenUTC, payload)
	}
	return nil
}

func (m *MockScheduler) DeleteOneShot(ctx context.Context, name string) error {
	m.mu.Lock()
	m.Deleted = append(m.Deleted, name)
	m.mu.Unlock()
	if m.DeleteOneShotFunc != nil {
		return m.DeleteOneShotFunc(ctx, name)
	}
	return nil
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

// WithTx runs the function immediately without a real transaction by default.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, nil)
}

// ---- Mock CheckLocker ----

type MockLocker struct {
	TryLockFunc func(ctx context.Context, key string, ttl time.Duration) (string, error)
	UnlockFunc  func(ctx context.Context, key, token string) error
}

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if m.TryLockFunc != nil {
		return m.TryLockFunc(ctx, key, ttl)
	}
	return "token", nil
}

func (m *MockLocker) Unlock(ctx context.Context, key, token string) error {
	if m.UnlockFunc != nil {
		return m.UnlockFunc(ctx, key, token)
	}
	return nil
}
