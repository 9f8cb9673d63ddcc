package adapter

import (
	"context"
	"time"
)

// ActionPreBillingCheck is the only trigger action the refund entry point
// accepts; anything else is rejected as a bad request.
const ActionPreBillingCheck = "pre_billing_check"

// TriggerPayload is the JSON contract a fired one-shot trigger delivers to
// the pre-billing check endpoint.
type TriggerPayload struct {
	UserID         string `json:"userId"`
	SubscriptionID string `json:"subscriptionId"`
	PaymentID      string `json:"paymentId,omitempty"`
	Action         string `json:"action"`
	ScheduledTime  string `json:"scheduledTime,omitempty"` // RFC3339
}

// OneShotScheduler is the hex port for the managed scheduling service. A
// trigger fires once at the requested instant; redelivery is possible
// (at-least-once), so consumers must be idempotent.
type OneShotScheduler interface {
	ScheduleOneShot(ctx context.Context, name string, whenUTC time.Time, payload TriggerPayload) error
	// DeleteOneShot removes a trigger by name. Deleting a trigger that no
	// longer exists is not an error.
	DeleteOneShot(ctx context.Context, name string) error
}

// TriggerName derives the one-shot trigger name for a user/subscription pair.
// Deterministic, so delete can find what create made, and bounded well under
// the target system's 64-char rule-name limit.
func TriggerName(userID, subscriptionID string) string {
	uid := userID
	if len(uid) > 8 {
		uid = uid[:8]
	}
	sub := subscriptionID
	if len(sub) > 8 {
		sub = sub[len(sub)-8:]
	}
	return "pre-billing-" + uid + "-" + sub
}
