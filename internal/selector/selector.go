package selector

import (
	"sort"

	"translation_gateway/internal/health"
	"translation_gateway/internal/models"
	"translation_gateway/internal/providers"
)

// Criteria carries everything selection needs for one request.
type Criteria struct {
	SourceLang string
	TargetLang string
	TextLength int
	Complexity Complexity
	Domain     Domain
	Quality    models.QualityTier

	// Excluded holds provider IDs that must not appear in the chain, e.g.
	// after a permanent failure earlier in the same request.
	Excluded map[string]bool
}

// Candidate is one entry of the ordered fallback chain.
type Candidate struct {
	Translator providers.Translator
	Capability providers.Capability
	Score      float64
}

const (
	preferredPairBonus = 0.2
	degradedPenalty    = 0.25
	// latencyCeilingMS normalizes observed latency into [0,1].
	latencyCeilingMS = 2000.0
)

// Selector turns the provider registry plus live health data into an ordered
// fallback chain. It never invokes providers itself.
type Selector struct {
	registry *providers.Registry
	tracker  *health.Tracker
}

// New creates a selector over a registry and health tracker.
func New(registry *providers.Registry, tracker *health.Tracker) *Selector {
	return &Selector{registry: registry, tracker: tracker}
}

// Select returns the ordered candidate chain for the criteria. Providers that
// do not support the pair, are explicitly excluded, or are circuit-open are
// filtered out entirely; degraded providers are penalized but kept.
func (s *Selector) Select(criteria Criteria) []Candidate {
	descriptors := s.registry.List()

	eligible := make([]providers.Descriptor, 0, len(descriptors))
	maxCost := 0.0
	for _, d := range descriptors {
		if criteria.Excluded[d.Translator.ID()] {
			continue
		}
		if !d.Capability.SupportsPair(criteria.SourceLang, criteria.TargetLang) {
			continue
		}
		if !s.tracker.Available(d.Translator.ID()) {
			continue
		}
		eligible = append(eligible, d)
		if d.Capability.CostPerCharUSD > maxCost {
			maxCost = d.Capability.CostPerCharUSD
		}
	}

	wLatency, wCost, wSuccess := weights(criteria.Quality)

	candidates := make([]Candidate, 0, len(eligible))
	for _, d := range eligible {
		snap := s.tracker.Snapshot(d.Translator.ID())

		successScore := d.Capability.QualityRating
		if snap.WindowedRequestCount > 0 {
			successScore = snap.SuccessRate
		}

		latencyScore := 1.0
		if snap.AverageLatencyMS > 0 {
			observed := snap.AverageLatencyMS
			if observed > latencyCeilingMS {
				observed = latencyCeilingMS
			}
			latencyScore = 1.0 - observed/latencyCeilingMS
		}

		costScore := 1.0
		if maxCost > 0 {
			costScore = 1.0 - d.Capability.CostPerCharUSD/maxCost
		}

		score := wSuccess*successScore + wLatency*latencyScore + wCost*costScore
		if snap.Status == health.StatusDegraded {
			score -= degradedPenalty
		}
		if d.Capability.PrefersPair(criteria.SourceLang, criteria.TargetLang) {
			score += preferredPairBonus
		}

		candidates = append(candidates, Candidate{
			Translator: d.Translator,
			Capability: d.Capability,
			Score:      score,
		})
	}

	// Stable sort keeps registration order as the tie-breaker.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

// weights maps the quality tier to (latency, cost, success) weights. Fast
// favors cheap low-latency providers, quality favors historical success rate.
func weights(tier models.QualityTier) (wLatency, wCost, wSuccess float64) {
	switch tier {
	case models.QualityFast:
		return 0.4, 0.3, 0.3
	case models.QualityQuality:
		return 0.1, 0.1, 0.8
	default:
		return 0.25, 0.25, 0.5
	}
}
