package llm

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fabled_llm_requests_total",
		Help: "Generation provider calls by provider name and outcome.",
	}, []string{"provider", "outcome"})

	generateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fabled_llm_request_duration_seconds",
		Help:    "Generation provider call duration in seconds.",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"provider"})
)

// instrumentedProvider records call counts and durations around an
// inner provider.
type instrumentedProvider struct {
	name  string
	inner Provider
}

func instrument(name string, p Provider) Provider {
	return &instrumentedProvider{name: name, inner: p}
}

func (m *instrumentedProvider) Generate(ctx context.Context, prompt, model string) (string, error) {
	start := time.Now()
	answer, err := m.inner.Generate(ctx, prompt, model)
	generateDuration.WithLabelValues(m.name).Observe(time.Since(start).Seconds())
	generateTotal.WithLabelValues(m.name, outcome(err)).Inc()
	return answer, err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrEmptyOutput):
		return "empty_output"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "unavailable"
	}
}
