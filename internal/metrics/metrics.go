package metrics

import (
	"sync"
	"time"
)

type providerStats struct {
	calls           int
	errors          int
	lastCallLatency time.Duration
}

// Recorder captures lightweight, in-memory metrics about engine activity and
// forwards them to OpenTelemetry instruments when telemetry is enabled.
// All methods are safe on a nil Recorder.
type Recorder struct {
	mu       sync.Mutex
	stats    map[string]*providerStats
	counters map[string]int
	otel     *otelInstruments
}

func NewRecorder() *Recorder {
	return newRecorder(nil)
}

func newRecorder(otel *otelInstruments) *Recorder {
	return &Recorder{
		stats:    make(map[string]*providerStats),
		counters: make(map[string]int),
		otel:     otel,
	}
}

// RecordProviderAttempt increments counters for an external collaborator call and stores the last observed latency.
func (r *Recorder) RecordProviderAttempt(provider string, duration time.Duration, err error) {
	if r == nil {
		return
	}

	r.mu.Lock()
	stats, ok := r.stats[provider]
	if !ok {
		stats = &providerStats{}
		r.stats[provider] = stats
	}
	stats.calls++
	stats.lastCallLatency = duration
	if err != nil {
		stats.errors++
	}
	r.mu.Unlock()

	if r.otel != nil {
		r.otel.recordProviderAttempt(provider, duration, err)
	}
}

// RecordRetry tracks a retried collaborator call and the delay before the next attempt.
func (r *Recorder) RecordRetry(provider string, delay time.Duration) {
	if r == nil {
		return
	}
	r.incr("retry:" + provider)
	if r.otel != nil {
		r.otel.recordRetry(provider, delay)
	}
}

// RecordCommit tracks a store commit or revert by origin and outcome.
func (r *Recorder) RecordCommit(origin, outcome string, duration time.Duration) {
	if r == nil {
		return
	}
	r.incr("commit:" + origin + ":" + outcome)
	if r.otel != nil {
		r.otel.recordCommit(origin, outcome, duration)
	}
}

// RecordConflicts tracks the conflict set size after a change.
func (r *Recorder) RecordConflicts(hard, soft int) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.counters["conflicts:hard"] = hard
	r.counters["conflicts:soft"] = soft
	r.mu.Unlock()
	if r.otel != nil {
		r.otel.recordConflicts(hard, soft)
	}
}

// RecordDragOutcome tracks how drag sessions end.
func (r *Recorder) RecordDragOutcome(state string) {
	if r == nil {
		return
	}
	r.incr("drag:" + state)
	if r.otel != nil {
		r.otel.recordDrag(state)
	}
}

// RecordSuggestion tracks suggestion status transitions.
func (r *Recorder) RecordSuggestion(status string) {
	if r == nil {
		return
	}
	r.incr("suggestion:" + status)
	if r.otel != nil {
		r.otel.recordSuggestion(status)
	}
}

// RecordPersistenceFailure tracks saves and loads that did not complete.
func (r *Recorder) RecordPersistenceFailure(op string) {
	if r == nil {
		return
	}
	r.incr("persistence_failure:" + op)
	if r.otel != nil {
		r.otel.recordPersistenceFailure(op)
	}
}

// RecordCollab tracks collaboration envelopes by direction (in|out) and outcome.
func (r *Recorder) RecordCollab(direction, outcome string) {
	if r == nil {
		return
	}
	r.incr("collab:" + direction + ":" + outcome)
	if r.otel != nil {
		r.otel.recordCollab(direction, outcome)
	}
}

// RecordHTTPRequest tracks basic HTTP metrics.
func (r *Recorder) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if r == nil || r.otel == nil {
		return
	}
	r.otel.recordHTTPRequest(method, path, status, duration)
}

// RecordPollerCycle tracks poller cycles and errors.
func (r *Recorder) RecordPollerCycle(duration time.Duration, err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.incr("poller:error")
	} else {
		r.incr("poller:ok")
	}
	if r.otel != nil {
		r.otel.recordPoller(duration, err)
	}
}

// Count returns an in-memory counter, e.g. "commit:local:applied" or "drag:dropped".
func (r *Recorder) Count(name string) int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[name]
}

// ProviderCalls returns the total attempts recorded for a provider.
func (r *Recorder) ProviderCalls(provider string) int {
	return r.Snapshot(provider).Calls
}

// ProviderErrors returns the total failed attempts recorded for a provider.
func (r *Recorder) ProviderErrors(provider string) int {
	return r.Snapshot(provider).Errors
}

// LastCallLatency returns the last recorded latency for a provider call.
func (r *Recorder) LastCallLatency(provider string) time.Duration {
	return r.Snapshot(provider).LastCallLatency
}

// Snapshot returns a copy of the current stats for the provider.
type Snapshot struct {
	Calls           int
	Errors          int
	LastCallLatency time.Duration
}

func (r *Recorder) Snapshot(provider string) Snapshot {
	if r == nil {
		return Snapshot{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stats, ok := r.stats[provider]
	if !ok || stats == nil {
		return Snapshot{}
	}
	return Snapshot{
		Calls:           stats.calls,
		Errors:          stats.errors,
		LastCallLatency: stats.lastCallLatency,
	}
}

func (r *Recorder) incr(name string) {
	r.mu.Lock()
	r.counters[name]++
	r.mu.Unlock()
}
