package scheduler

import (
	"context"
	"time"

	"protagonist-billing/internal/domain/ports/adapter"
)

var _ adapter.OneShotScheduler = (*NoopScheduler)(nil)

// NoopScheduler is a dev-mode stand-in; triggers are fired by hand against
// the HTTP endpoint instead.
type NoopScheduler struct{}

func NewNoopScheduler() *NoopScheduler { return &NoopScheduler{} }

func (NoopScheduler) ScheduleOneShot(ctx context.Context, name string, whenUTC time.Time, payload adapter.TriggerPayload) error {
	return nil
}

func (NoopScheduler) DeleteOneShot(ctx context.Context, name string) error { return nil }
