package observability

import (
	"sync"

	"github.com/danmuck/scramctl/internal/protocol/session"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	authAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scramctl",
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Handshake attempts by outcome.",
		},
		[]string{"outcome"},
	)
	authAttemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scramctl",
			Subsystem: "auth",
			Name:      "attempt_duration_seconds",
			Help:      "Handshake attempt duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
	authResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scramctl",
			Subsystem: "auth",
			Name:      "results_total",
			Help:      "Authenticate calls by final result.",
		},
		[]string{"result"},
	)
	authRetriesUsed = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "scramctl",
			Subsystem: "auth",
			Name:      "retries_used",
			Help:      "Retries consumed per Authenticate call.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8},
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(authAttempts, authAttemptDuration, authResults, authRetriesUsed)
	})
}

// RecordAttempt labels an attempt "succeeded" or by its failure kind.
func RecordAttempt(rec session.AttemptRecord) {
	RegisterMetrics()
	outcome := "succeeded"
	if !rec.Succeeded {
		outcome = rec.Failure.String()
	}
	authAttempts.WithLabelValues(outcome).Inc()
	authAttemptDuration.WithLabelValues(outcome).Observe(rec.Duration.Seconds())
}

func RecordAuthentication(rep session.Report) {
	RegisterMetrics()
	var result string
	switch {
	case rep.Succeeded:
		result = "succeeded"
	case rep.Err != nil:
		result = "aborted"
	default:
		result = "exhausted"
	}
	authResults.WithLabelValues(result).Inc()
	authRetriesUsed.Observe(float64(rep.RetriesUsed()))
}

// SessionObserver adapts the recorders to session.Observer.
type SessionObserver struct{}

func (SessionObserver) ObserveAttempt(rec session.AttemptRecord) { RecordAttempt(rec) }

func (SessionObserver) ObserveAuthentication(rep session.Report) { RecordAuthentication(rep) }

// WriteTextfile dumps the default registry in the node-exporter textfile
// format. One-shot runs use it instead of serving /metrics.
func WriteTextfile(path string) error {
	RegisterMetrics()
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
