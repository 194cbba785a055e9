// Package health tracks per-provider outcome statistics for selection.
//
// The rolling window is the last 100 recorded calls per provider. The success
// rate is exponentially weighted (alpha 0.2) so recent outcomes dominate, and
// the tracker is never persisted: a process restart starts every provider
// from a clean, optimistic state.
package health

import (
	"sync"
	"time"
)

// Status classifies a provider for selection purposes.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

const windowSize = 100

// Health is a point-in-time snapshot of one provider's statistics.
type Health struct {
	SuccessRate          float64
	AverageLatencyMS     float64
	WindowedRequestCount int
	ConsecutiveFailures  int
	Status               Status
}

// Config tunes the tracker thresholds.
type Config struct {
	// DegradedThreshold marks a provider degraded when its success rate
	// falls below it. Default 0.9.
	DegradedThreshold float64

	// UnhealthyFailures is the number of consecutive failures that opens
	// the circuit. Default 3.
	UnhealthyFailures int

	// Cooldown is how long an unhealthy provider is excluded before a
	// half-open probe is allowed. Default 30s.
	Cooldown time.Duration

	// Alpha is the EWMA smoothing factor for success rate and latency.
	Alpha float64

	// MinSamples is how many outcomes are required before the degraded
	// threshold applies, so a single early failure does not demote a
	// provider.
	MinSamples int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		DegradedThreshold: 0.9,
		UnhealthyFailures: 3,
		Cooldown:          30 * time.Second,
		Alpha:             0.2,
		MinSamples:        5,
	}
}

type providerState struct {
	successRate         float64
	avgLatencyMS        float64
	window              []bool // ring of the last windowSize outcomes
	windowPos           int
	windowFilled        bool
	consecutiveFailures int
	unhealthyUntil      time.Time
	probing             bool // a half-open probe is in flight
	probeDeadline       time.Time
	samples             int
}

// Tracker maintains rolling statistics per provider. It is an injected,
// explicitly-owned instance: construct one per orchestrator, never share
// through package state.
type Tracker struct {
	mu     sync.RWMutex
	cfg    Config
	states map[string]*providerState
	now    func() time.Time
}

// NewTracker creates a tracker with the given config.
func NewTracker(cfg Config) *Tracker {
	if cfg.DegradedThreshold == 0 {
		cfg = DefaultConfig()
	}
	return &Tracker{
		cfg:    cfg,
		states: make(map[string]*providerState),
		now:    time.Now,
	}
}

func (t *Tracker) state(provider string) *providerState {
	st, ok := t.states[provider]
	if !ok {
		st = &providerState{successRate: 1.0, window: make([]bool, windowSize)}
		t.states[provider] = st
	}
	return st
}

// RecordOutcome folds one provider invocation into the statistics. A timeout
// counts as a failure. Permanent errors that are workspace-local (for example
// a bad workspace-scoped key) should not be recorded here.
func (t *Tracker) RecordOutcome(provider string, latency time.Duration, success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.state(provider)
	st.samples++

	outcome := 0.0
	if success {
		outcome = 1.0
	}
	st.successRate = t.cfg.Alpha*outcome + (1-t.cfg.Alpha)*st.successRate
	if success {
		latencyMS := float64(latency.Milliseconds())
		if st.avgLatencyMS == 0 {
			st.avgLatencyMS = latencyMS
		} else {
			st.avgLatencyMS = t.cfg.Alpha*latencyMS + (1-t.cfg.Alpha)*st.avgLatencyMS
		}
	}

	st.window[st.windowPos] = success
	st.windowPos = (st.windowPos + 1) % windowSize
	if st.windowPos == 0 {
		st.windowFilled = true
	}

	if success {
		st.consecutiveFailures = 0
		st.unhealthyUntil = time.Time{}
		st.probing = false
		return
	}

	st.consecutiveFailures++
	if st.probing {
		// Failed half-open probe: restart the cool-down.
		st.unhealthyUntil = t.now().Add(t.cfg.Cooldown)
		st.probing = false
		return
	}
	if st.consecutiveFailures >= t.cfg.UnhealthyFailures {
		st.unhealthyUntil = t.now().Add(t.cfg.Cooldown)
	}
}

// Snapshot returns the current statistics for a provider. Unknown providers
// report an optimistic healthy snapshot.
func (t *Tracker) Snapshot(provider string) Health {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st, ok := t.states[provider]
	if !ok {
		return Health{SuccessRate: 1.0, Status: StatusHealthy}
	}

	count := st.windowPos
	if st.windowFilled {
		count = windowSize
	}

	return Health{
		SuccessRate:          st.successRate,
		AverageLatencyMS:     st.avgLatencyMS,
		WindowedRequestCount: count,
		ConsecutiveFailures:  st.consecutiveFailures,
		Status:               t.statusLocked(st),
	}
}

// Available reports whether the provider may be invoked. Once a cool-down
// expires exactly one caller is admitted as a half-open probe; everyone else
// keeps seeing the provider as unavailable until that probe resolves.
func (t *Tracker) Available(provider string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.states[provider]
	if !ok {
		return true
	}
	if st.unhealthyUntil.IsZero() {
		return true
	}
	now := t.now()
	if now.Before(st.unhealthyUntil) {
		return false
	}
	if st.probing && now.Before(st.probeDeadline) {
		return false
	}
	// Claim the probe slot. The deadline lets the slot expire if the claimed
	// probe is never actually invoked.
	st.probing = true
	st.probeDeadline = now.Add(t.cfg.Cooldown)
	return true
}

func (t *Tracker) statusLocked(st *providerState) Status {
	if !st.unhealthyUntil.IsZero() && t.now().Before(st.unhealthyUntil) {
		return StatusUnhealthy
	}
	if st.samples >= t.cfg.MinSamples && st.successRate < t.cfg.DegradedThreshold {
		return StatusDegraded
	}
	return StatusHealthy
}
