package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once         sync.Once
	pollRounds   prom.Counter
	fetches      prom.Counter
	terminals    *prom.CounterVec
	waitDuration prom.Histogram
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.pollRounds = prom.NewCounter(prom.CounterOpts{
			Namespace: "copr",
			Name:      "wait_poll_rounds_total",
			Help:      "Total poll rounds executed by build wait sessions",
		})
		pr.fetches = prom.NewCounter(prom.CounterOpts{
			Namespace: "copr",
			Name:      "wait_build_fetches_total",
			Help:      "Total build status fetches performed while waiting",
		})
		pr.terminals = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "copr",
			Name:      "wait_terminal_states_total",
			Help:      "Builds reaching a terminal state, by final state",
		}, []string{"state"})
		pr.waitDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "copr",
			Name:      "wait_session_duration_seconds",
			Help:      "Duration of completed wait sessions",
			Buckets:   prom.ExponentialBuckets(1, 4, 10),
		})
		reg.MustRegister(pr.pollRounds, pr.fetches, pr.terminals, pr.waitDuration)
	})
	return pr
}

func (p *PrometheusRecorder) IncPollRound() {
	if p == nil || p.pollRounds == nil {
		return
	}
	p.pollRounds.Inc()
}

func (p *PrometheusRecorder) IncFetch() {
	if p == nil || p.fetches == nil {
		return
	}
	p.fetches.Inc()
}

func (p *PrometheusRecorder) IncTerminal(state string) {
	if p == nil || p.terminals == nil {
		return
	}
	p.terminals.WithLabelValues(state).Inc()
}

func (p *PrometheusRecorder) ObserveWaitDuration(d time.Duration) {
	if p == nil || p.waitDuration == nil {
		return
	}
	p.waitDuration.Observe(d.Seconds())
}
