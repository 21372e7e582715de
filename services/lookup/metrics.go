package lookup

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeFound              = "found"
	outcomeNotFound           = "not_found"
	outcomeInputMissing       = "input_missing"
	outcomeInvalidFormat      = "invalid_format"
	outcomeStorageUnavailable = "storage_unavailable"
	outcomeQueryFailed        = "query_failed"
	outcomeError              = "error"
)

var (
	lookupRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "macfinder",
		Subsystem: "lookup",
		Name:      "requests_total",
		Help:      "MAC lookups by outcome.",
	}, []string{"outcome"})

	lookupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "macfinder",
		Subsystem: "lookup",
		Name:      "duration_seconds",
		Help:      "Time spent answering a MAC lookup.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
	})
)

// Outcome classifies a Search result for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return outcomeFound
	case errors.Is(err, ErrNotFound):
		return outcomeNotFound
	case errors.Is(err, ErrInputMissing):
		return outcomeInputMissing
	case errors.Is(err, ErrInvalidMACFormat):
		return outcomeInvalidFormat
	case errors.Is(err, ErrStorageUnavailable):
		return outcomeStorageUnavailable
	case errors.Is(err, ErrQueryFailed):
		return outcomeQueryFailed
	default:
		return outcomeError
	}
}

func observeLookup(outcome string, elapsed time.Duration) {
	lookupRequests.WithLabelValues(outcome).Inc()
	lookupDuration.Observe(elapsed.Seconds())
}
