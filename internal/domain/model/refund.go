package model

// RefundComputation is the transient result of a pre-billing check. It is not
// persisted directly; the ledger gets a derived PaymentRecord instead.
type RefundComputation struct {
	TotalExpected         int     `json:"totalExpected"`
	SuccessfulSubmissions int     `json:"successfulSubmissions"`
	MissedSubmissions     int     `json:"missedSubmissions"`
	CompletionRate        float64 `json:"completionRate"`
	RefundAmount          float64 `json:"refundAmount"`
	IsFirstBillingCycle   bool    `json:"isFirstBillingCycle"`
}
