package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(challengesCreatedTotal, submissionsMissedTotal)
}

var (
	challengesCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "challenges_created_total",
		Help: "Challenges created with a generated submission calendar.",
	})
	submissionsMissedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "submissions_missed_total",
		Help: "Calendar days flipped to missed after their deadline passed.",
	})
)

func IncChallengeCreated() {
	challengesCreatedTotal.Inc()
}

func IncSubmissionsMissed(n int) {
	submissionsMissedTotal.Add(float64(n))
}
