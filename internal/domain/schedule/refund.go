package schedule

import "protagonist-billing/internal/domain/model"

// refundTier maps an inclusive completion-rate lower bound to a whole-dollar
// refund. First match wins, so tiers are ordered highest bound first.
type refundTier struct {
	minRate float64
	amount  float64
}

// First-cycle tiers are more generous: the first cycle is tied to account
// lifetime (at most one challenge ever), not to a calendar month.
var (
	firstCycleTiers = []refundTier{
		{minRate: 90, amount: 98},
		{minRate: 70, amount: 49},
		{minRate: 50, amount: 30},
	}
	laterCycleTiers = []refundTier{
		{minRate: 90, amount: 50},
		{minRate: 70, amount: 25},
	}
)

// Evaluate computes the completion rate and refund tier for a billing period.
// Zero expected submissions yields zero completion and no refund.
func Evaluate(totalExpected, successfulCount int, isFirstBillingCycle bool) model.RefundComputation {
	rate := 0.0
	if totalExpected > 0 {
		rate = float64(successfulCount) / float64(totalExpected) * 100
	}

	tiers := laterCycleTiers
	if isFirstBillingCycle {
		tiers = firstCycleTiers
	}
	amount := 0.0
	for _, t := range tiers {
		if rate >= t.minRate {
			amount = t.amount
			break
		}
	}

	return model.RefundComputation{
		TotalExpected:         totalExpected,
		SuccessfulSubmissions: successfulCount,
		MissedSubmissions:     totalExpected - successfulCount,
		CompletionRate:        rate,
		RefundAmount:          amount,
		IsFirstBillingCycle:   isFirstBillingCycle,
	}
}
