package selector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"translation_gateway/internal/health"
	"translation_gateway/internal/models"
	"translation_gateway/internal/providers"
)

type stubTranslator struct {
	id string
}

func (s *stubTranslator) ID() string   { return s.id }
func (s *stubTranslator) Type() string { return "stub" }
func (s *stubTranslator) Translate(ctx context.Context, req providers.Request) (*providers.Result, error) {
	return nil, nil
}
func (s *stubTranslator) DetectLanguage(ctx context.Context, text string) (*models.Detection, error) {
	return nil, nil
}
func (s *stubTranslator) Close() error { return nil }

func buildRegistry(t *testing.T, caps map[string]providers.Capability, order []string) *providers.Registry {
	t.Helper()
	reg := providers.NewRegistry()
	for _, id := range order {
		require.NoError(t, reg.Add(&stubTranslator{id: id}, caps[id]))
	}
	return reg
}

func ids(candidates []Candidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.Translator.ID()
	}
	return out
}

func TestSelectFiltersUnsupportedPairs(t *testing.T) {
	reg := buildRegistry(t, map[string]providers.Capability{
		"deepl":  {Pairs: []string{"lt:en"}, QualityRating: 0.9},
		"openai": {QualityRating: 0.8},
	}, []string{"deepl", "openai"})
	sel := New(reg, health.NewTracker(health.DefaultConfig()))

	chain := sel.Select(Criteria{SourceLang: "fr", TargetLang: "de", Quality: models.QualityBalanced})
	assert.Equal(t, []string{"openai"}, ids(chain))
}

func TestSelectExcludesUnhealthyProviders(t *testing.T) {
	reg := buildRegistry(t, map[string]providers.Capability{
		"deepl":  {QualityRating: 0.9},
		"openai": {QualityRating: 0.8},
	}, []string{"deepl", "openai"})
	tracker := health.NewTracker(health.DefaultConfig())
	for i := 0; i < 3; i++ {
		tracker.RecordOutcome("deepl", time.Second, false)
	}
	sel := New(reg, tracker)

	chain := sel.Select(Criteria{SourceLang: "lt", TargetLang: "en"})
	assert.Equal(t, []string{"openai"}, ids(chain))
}

func TestSelectHonorsExclusionSet(t *testing.T) {
	reg := buildRegistry(t, map[string]providers.Capability{
		"deepl":  {QualityRating: 0.9},
		"openai": {QualityRating: 0.8},
	}, []string{"deepl", "openai"})
	sel := New(reg, health.NewTracker(health.DefaultConfig()))

	chain := sel.Select(Criteria{
		SourceLang: "lt", TargetLang: "en",
		Excluded: map[string]bool{"deepl": true},
	})
	assert.Equal(t, []string{"openai"}, ids(chain))
}

func TestSelectPrefersSpecializedProvider(t *testing.T) {
	reg := buildRegistry(t, map[string]providers.Capability{
		"deepl":  {QualityRating: 0.8, PreferredPairs: []string{"lt:en"}},
		"openai": {QualityRating: 0.8},
	}, []string{"openai", "deepl"})
	sel := New(reg, health.NewTracker(health.DefaultConfig()))

	chain := sel.Select(Criteria{SourceLang: "lt", TargetLang: "en"})
	require.Len(t, chain, 2)
	assert.Equal(t, "deepl", chain[0].Translator.ID())
}

func TestSelectQualityTierWeighting(t *testing.T) {
	caps := map[string]providers.Capability{
		"cheap-fast":   {CostPerCharUSD: 0.00001, QualityRating: 0.7},
		"premium-slow": {CostPerCharUSD: 0.0001, QualityRating: 0.99},
	}
	order := []string{"cheap-fast", "premium-slow"}

	tracker := health.NewTracker(health.DefaultConfig())
	// Observed latencies: cheap-fast answers quickly, premium-slow crawls.
	for i := 0; i < 10; i++ {
		tracker.RecordOutcome("cheap-fast", 100*time.Millisecond, true)
		tracker.RecordOutcome("premium-slow", 1800*time.Millisecond, true)
	}

	fastChain := New(buildRegistry(t, caps, order), tracker).
		Select(Criteria{SourceLang: "lt", TargetLang: "en", Quality: models.QualityFast})
	require.Len(t, fastChain, 2)
	assert.Equal(t, "cheap-fast", fastChain[0].Translator.ID())

	// For the quality tier, historical success dominates.
	qualityTracker := health.NewTracker(health.DefaultConfig())
	for i := 0; i < 20; i++ {
		qualityTracker.RecordOutcome("premium-slow", 1800*time.Millisecond, true)
	}
	for i := 0; i < 20; i++ {
		ok := i%3 != 0 // roughly 2/3 success rate
		qualityTracker.RecordOutcome("cheap-fast", 100*time.Millisecond, ok)
	}
	qualityChain := New(buildRegistry(t, caps, order), qualityTracker).
		Select(Criteria{SourceLang: "lt", TargetLang: "en", Quality: models.QualityQuality})
	require.Len(t, qualityChain, 2)
	assert.Equal(t, "premium-slow", qualityChain[0].Translator.ID())
}

func TestSelectDegradedProviderPenalized(t *testing.T) {
	reg := buildRegistry(t, map[string]providers.Capability{
		"deepl":  {QualityRating: 0.9},
		"openai": {QualityRating: 0.9},
	}, []string{"deepl", "openai"})
	tracker := health.NewTracker(health.DefaultConfig())
	for i := 0; i < 10; i++ {
		tracker.RecordOutcome("deepl", 100*time.Millisecond, true)
		tracker.RecordOutcome("openai", 100*time.Millisecond, true)
	}
	// Two failures degrade deepl without opening its circuit.
	tracker.RecordOutcome("deepl", 100*time.Millisecond, false)
	tracker.RecordOutcome("deepl", 100*time.Millisecond, true)
	tracker.RecordOutcome("deepl", 100*time.Millisecond, false)

	sel := New(reg, tracker)
	chain := sel.Select(Criteria{SourceLang: "lt", TargetLang: "en"})
	require.Len(t, chain, 2, "degraded providers stay in the chain")
	assert.Equal(t, "openai", chain[0].Translator.ID())
}

func TestSelectEmptyChainForUncoveredPair(t *testing.T) {
	reg := buildRegistry(t, map[string]providers.Capability{
		"deepl": {Pairs: []string{"lt:en"}},
	}, []string{"deepl"})
	sel := New(reg, health.NewTracker(health.DefaultConfig()))

	chain := sel.Select(Criteria{SourceLang: "ja", TargetLang: "ko"})
	assert.Empty(t, chain)
}
