package providers

import (
	"context"

	"translation_gateway/internal/models"
)

// Request is a normalized internal request to a translation provider.
type Request struct {
	Text       string
	SourceLang string // ISO 639-1 or "auto"
	TargetLang string
	Context    []models.ContextTurn
	Quality    models.QualityTier
}

// Result is a normalized provider response.
type Result struct {
	TranslatedText     string
	DetectedSourceLang string
	Model              string
	Confidence         float64
	CostUSD            float64
}

// Translator is implemented by each concrete translation provider
// (DeepL, OpenAI, ...).
type Translator interface {
	// ID returns the unique identifier for this provider instance
	ID() string

	// Type returns the provider type (deepl, openai, ...)
	Type() string

	// Translate sends one translation request to the provider. Failures
	// are returned as *models.ProviderError so the orchestrator can tell
	// transient from permanent.
	Translate(ctx context.Context, req Request) (*Result, error)

	// DetectLanguage identifies the language of a text sample
	DetectLanguage(ctx context.Context, text string) (*models.Detection, error)

	// Close performs cleanup when the provider is no longer needed
	Close() error
}

// Config holds configuration for creating a provider instance.
type Config struct {
	ID             string
	Type           string
	BaseURL        string
	APIKey         string
	Model          string
	CostPerCharUSD float64
}

// Capability describes what a configured provider can do; the selector
// consumes it together with live health data.
type Capability struct {
	// Pairs lists supported language pairs as "src:dst"; either side may
	// be "*". An empty list means every pair is supported.
	Pairs []string

	// CostPerCharUSD is the estimated spend per source character.
	CostPerCharUSD float64

	// QualityRating is a static prior in [0,1] used before enough health
	// samples exist.
	QualityRating float64

	// PreferredPairs lists pairs this provider is specialized for; the
	// selector grants them a fixed bonus.
	PreferredPairs []string
}

// SupportsPair reports whether the capability covers src→dst.
func (c Capability) SupportsPair(src, dst string) bool {
	if len(c.Pairs) == 0 {
		return true
	}
	for _, p := range c.Pairs {
		if pairMatches(p, src, dst) {
			return true
		}
	}
	return false
}

// PrefersPair reports whether src→dst is in the preference table.
func (c Capability) PrefersPair(src, dst string) bool {
	for _, p := range c.PreferredPairs {
		if pairMatches(p, src, dst) {
			return true
		}
	}
	return false
}

func pairMatches(pair, src, dst string) bool {
	for i := 0; i < len(pair); i++ {
		if pair[i] == ':' {
			ps, pd := pair[:i], pair[i+1:]
			srcOK := ps == "*" || ps == src || src == models.SourceLangAuto
			dstOK := pd == "*" || pd == dst
			return srcOK && dstOK
		}
	}
	return false
}
