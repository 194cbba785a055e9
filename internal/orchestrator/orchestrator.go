// Package orchestrator runs the full request pass: validation, cache lookup,
// admission, provider selection, the fallback chain, cache write-back and
// usage emission. Concurrent identical requests are collapsed onto one
// provider call.
package orchestrator

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/viccon/sturdyc"

	"translation_gateway/internal/cache"
	"translation_gateway/internal/health"
	"translation_gateway/internal/models"
	"translation_gateway/internal/providers"
	"translation_gateway/internal/selector"
	"translation_gateway/internal/utils"
)

// Admitter gates requests and reserves estimated cost. Implemented by
// admission.Controller.
type Admitter interface {
	CheckAndReserve(ctx context.Context, actor models.UserContext, estimatedCost float64) error
	CheckRate(ctx context.Context, actor models.UserContext) error
	Release(ctx context.Context, actor models.UserContext, estimatedCost float64)
}

// Store is the tiered translation cache. Implemented by cache.TieredStore.
type Store interface {
	Lookup(ctx context.Context, fingerprint string) (*models.CacheEntry, bool)
	Store(ctx context.Context, entry *models.CacheEntry) error
}

// UsageSink receives one record per completed request. Implemented by
// usage.Emitter.
type UsageSink interface {
	Emit(record *models.UsageRecord)
}

// Config tunes per-attempt timeouts and the admission cost estimate.
type Config struct {
	// BaseTimeout plus PerCharTimeout per character of input bounds each
	// provider attempt, capped at MaxTimeout.
	BaseTimeout    time.Duration
	PerCharTimeout time.Duration
	MaxTimeout     time.Duration

	// EstimatedCostPerCharUSD prices a request before the provider is
	// chosen, for the quota reservation.
	EstimatedCostPerCharUSD float64

	// FlightTTL is how long a deduplicated result stays in the in-process
	// hot tier.
	FlightTTL time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		BaseTimeout:             2 * time.Second,
		PerCharTimeout:          10 * time.Millisecond,
		MaxTimeout:              30 * time.Second,
		EstimatedCostPerCharUSD: 0.00005,
		FlightTTL:               30 * time.Second,
	}
}

const (
	flightCapacity = 10000
	flightShards   = 64
	// flightEvictionPercentage is the share of a shard evicted when full.
	flightEvictionPercentage = 10
)

// Orchestrator coordinates one translation request end to end.
type Orchestrator struct {
	cache    Store
	admitter Admitter
	selector *selector.Selector
	registry *providers.Registry
	tracker  *health.Tracker
	sink     UsageSink
	flight   *sturdyc.Client[*models.TranslationResult]
	cfg      Config
	logger   *utils.Logger
}

// New creates an orchestrator.
func New(store Store, admitter Admitter, sel *selector.Selector, registry *providers.Registry, tracker *health.Tracker, sink UsageSink, cfg Config) *Orchestrator {
	if cfg.BaseTimeout == 0 {
		cfg = DefaultConfig()
	}

	return &Orchestrator{
		cache:    store,
		admitter: admitter,
		selector: sel,
		registry: registry,
		tracker:  tracker,
		sink:     sink,
		flight:   sturdyc.New[*models.TranslationResult](flightCapacity, flightShards, cfg.FlightTTL, flightEvictionPercentage),
		cfg:      cfg,
		logger:   utils.NewLogger("orchestrator"),
	}
}

// Translate runs the request pass. Returned errors are typed: validation,
// missing user context, admission denial, no provider, or chain exhaustion.
func (o *Orchestrator) Translate(ctx context.Context, req *models.TranslationRequest) (*models.TranslationResult, error) {
	start := time.Now()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Actor.WorkspaceID == "" || req.Actor.UserID == "" {
		return nil, models.ErrMissingUserContext
	}

	fingerprint := cache.Fingerprint(req.Text, req.EffectiveSourceLang(), req.TargetLang, req.ProviderHint)

	// Cache hits are free: they bypass admission entirely.
	if entry, ok := o.cache.Lookup(ctx, fingerprint); ok {
		result := resultFromEntry(entry, start)
		o.emitUsage(req, result)
		return result, nil
	}

	estimatedCost := o.estimateCost(req.Text)
	if err := o.admitter.CheckAndReserve(ctx, req.Actor, estimatedCost); err != nil {
		return nil, err
	}

	executed := false
	result, err := o.flight.GetOrFetch(ctx, fingerprint, func(fetchCtx context.Context) (*models.TranslationResult, error) {
		executed = true
		return o.translateMiss(fetchCtx, req, fingerprint, start)
	})
	if err != nil {
		o.release(req.Actor, estimatedCost)
		return nil, err
	}

	if ctx.Err() != nil {
		// The caller is gone: nothing is emitted for this attempt, so the
		// reservation has no usage record to settle against.
		o.release(req.Actor, estimatedCost)
		return nil, ctx.Err()
	}

	if !executed {
		// Another in-flight request already paid for this translation.
		o.release(req.Actor, estimatedCost)
		shared := *result
		shared.Cached = true
		shared.CostUSD = 0
		shared.ProcessingTimeMS = time.Since(start).Milliseconds()
		o.emitUsage(req, &shared)
		return &shared, nil
	}

	o.emitUsage(req, result)
	return result, nil
}

// translateMiss is the winning path under the in-flight lock: classify,
// select, walk the fallback chain, write back to the cache.
func (o *Orchestrator) translateMiss(ctx context.Context, req *models.TranslationRequest, fingerprint string, start time.Time) (*models.TranslationResult, error) {
	criteria := selector.Criteria{
		SourceLang: req.EffectiveSourceLang(),
		TargetLang: req.TargetLang,
		TextLength: utf8.RuneCountInString(req.Text),
		Complexity: selector.ClassifyComplexity(req.Text),
		Domain:     selector.ClassifyDomain(req.Text, ""),
		Quality:    req.EffectiveQuality(),
	}

	candidates := o.selector.Select(criteria)
	candidates = promoteHint(candidates, req.ProviderHint)
	if len(candidates) == 0 {
		return nil, models.ErrNoProvider
	}

	timeout := o.attemptTimeout(criteria.TextLength)
	attempts := 0
	var lastErr error

	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		attempts++
		providerID := candidate.Translator.ID()

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		attemptStart := time.Now()
		res, err := candidate.Translator.Translate(attemptCtx, providers.Request{
			Text:       req.Text,
			SourceLang: req.EffectiveSourceLang(),
			TargetLang: req.TargetLang,
			Context:    req.Context,
			Quality:    req.EffectiveQuality(),
		})
		latency := time.Since(attemptStart)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				// Caller went away; the attempt's fate says nothing
				// about the provider.
				return nil, ctx.Err()
			}

			lastErr = err
			var perr *models.ProviderError
			if errors.As(err, &perr) && !perr.Transient {
				// Permanent errors are about this request, not the
				// provider's health.
				o.logger.Warn("provider rejected request", "provider", providerID, "error", err)
				continue
			}

			o.tracker.RecordOutcome(providerID, latency, false)
			o.logger.Warn("provider attempt failed", "provider", providerID, "latency_ms", latency.Milliseconds(), "error", err)
			continue
		}

		o.tracker.RecordOutcome(providerID, latency, true)

		result := &models.TranslationResult{
			TranslatedText:   res.TranslatedText,
			SourceLang:       resolvedSourceLang(req, res),
			TargetLang:       req.TargetLang,
			Provider:         providerID,
			Model:            res.Model,
			Confidence:       res.Confidence,
			Cached:           false,
			CostUSD:          res.CostUSD,
			ProcessingTimeMS: time.Since(start).Milliseconds(),
		}

		if ctx.Err() == nil {
			o.writeBack(ctx, fingerprint, result)
		}

		return result, nil
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, &models.ChainExhaustedError{Attempts: attempts, LastErr: lastErr}
}

// Detect identifies the language of a text sample using the first available
// provider. Detection is unmetered, so only the rate-limit scopes apply; no
// quota is reserved.
func (o *Orchestrator) Detect(ctx context.Context, actor models.UserContext, text string) (*models.Detection, error) {
	if text == "" {
		return nil, models.NewValidationError("text", "must not be empty")
	}

	if err := o.admitter.CheckRate(ctx, actor); err != nil {
		return nil, err
	}

	var lastErr error
	for _, d := range o.registry.List() {
		providerID := d.Translator.ID()
		if !o.tracker.Available(providerID) {
			continue
		}

		attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.BaseTimeout)
		detection, err := d.Translator.DetectLanguage(attemptCtx, text)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		return detection, nil
	}

	if lastErr != nil {
		return nil, &models.ChainExhaustedError{Attempts: 1, LastErr: lastErr}
	}
	return nil, models.ErrNoProvider
}

// writeBack stores the fresh translation in both cache tiers.
func (o *Orchestrator) writeBack(ctx context.Context, fingerprint string, result *models.TranslationResult) {
	entry := &models.CacheEntry{
		Fingerprint:    fingerprint,
		SourceLang:     result.SourceLang,
		TargetLang:     result.TargetLang,
		TranslatedText: result.TranslatedText,
		Provider:       result.Provider,
		Model:          result.Model,
		Confidence:     result.Confidence,
		CostUSD:        result.CostUSD,
	}
	if err := o.cache.Store(ctx, entry); err != nil {
		o.logger.Warn("cache write-back failed", "fingerprint", fingerprint, "error", err)
	}
}

func (o *Orchestrator) emitUsage(req *models.TranslationRequest, result *models.TranslationResult) {
	if o.sink == nil {
		return
	}

	o.sink.Emit(&models.UsageRecord{
		RequestID:      uuid.New(),
		WorkspaceID:    req.Actor.WorkspaceID,
		UserID:         req.Actor.UserID,
		Provider:       result.Provider,
		Model:          result.Model,
		SourceLang:     result.SourceLang,
		TargetLang:     result.TargetLang,
		Characters:     utf8.RuneCountInString(req.Text),
		CostUSD:        result.CostUSD,
		CacheHit:       result.Cached,
		ResponseTimeMS: result.ProcessingTimeMS,
	})
}

// release gives back a quota reservation, detached from the caller's context
// so cancellation cannot leak reserved budget.
func (o *Orchestrator) release(actor models.UserContext, estimatedCost float64) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	o.admitter.Release(ctx, actor, estimatedCost)
}

func (o *Orchestrator) estimateCost(text string) float64 {
	return float64(utf8.RuneCountInString(text)) * o.cfg.EstimatedCostPerCharUSD
}

// attemptTimeout scales with input size: short texts fail fast, long ones get
// room to finish.
func (o *Orchestrator) attemptTimeout(chars int) time.Duration {
	timeout := o.cfg.BaseTimeout + time.Duration(chars)*o.cfg.PerCharTimeout
	if timeout > o.cfg.MaxTimeout {
		timeout = o.cfg.MaxTimeout
	}
	return timeout
}

// promoteHint moves the hinted provider to the front of the chain when it
// survived the selector's filters.
func promoteHint(candidates []selector.Candidate, hint string) []selector.Candidate {
	if hint == "" {
		return candidates
	}
	for i, c := range candidates {
		if c.Translator.ID() == hint {
			promoted := append([]selector.Candidate{c}, candidates[:i]...)
			return append(promoted, candidates[i+1:]...)
		}
	}
	return candidates
}

func resolvedSourceLang(req *models.TranslationRequest, res *providers.Result) string {
	if req.EffectiveSourceLang() != models.SourceLangAuto {
		return req.SourceLang
	}
	if res.DetectedSourceLang != "" {
		return res.DetectedSourceLang
	}
	return models.SourceLangAuto
}

func resultFromEntry(entry *models.CacheEntry, start time.Time) *models.TranslationResult {
	return &models.TranslationResult{
		TranslatedText:   entry.TranslatedText,
		SourceLang:       entry.SourceLang,
		TargetLang:       entry.TargetLang,
		Provider:         entry.Provider,
		Model:            entry.Model,
		Confidence:       entry.Confidence,
		Cached:           true,
		CostUSD:          0,
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}
}
