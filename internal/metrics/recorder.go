// Package metrics provides observability hooks for the build waiter. The
// default NoopRecorder keeps the hot path free of nil checks; a Prometheus
// implementation is available for callers that run a registry.
package metrics

import "time"

// Recorder defines observability hooks for wait sessions. Implementations
// may forward to Prometheus, OpenTelemetry, etc.
type Recorder interface {
	IncPollRound()
	IncFetch()
	IncTerminal(state string)
	ObserveWaitDuration(d time.Duration)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncPollRound()                     {}
func (NoopRecorder) IncFetch()                         {}
func (NoopRecorder) IncTerminal(string)                {}
func (NoopRecorder) ObserveWaitDuration(time.Duration) {}
