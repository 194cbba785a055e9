package models

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

// MaxTextLength is the maximum number of characters accepted for translation.
const MaxTextLength = 10000

// MaxContextTurns bounds the amount of prior conversation sent to a provider.
const MaxContextTurns = 10

// QualityTier selects the latency/quality trade-off for provider selection.
type QualityTier string

const (
	QualityFast     QualityTier = "fast"
	QualityBalanced QualityTier = "balanced"
	QualityQuality  QualityTier = "quality"
)

// SourceLangAuto requests provider-side language detection.
const SourceLangAuto = "auto"

var langCodeRe = regexp.MustCompile(`^[a-z]{2}$`)

// UserContext identifies the authenticated caller. It is produced by the
// authentication layer and trusted unconditionally by the core.
type UserContext struct {
	WorkspaceID      string
	UserID           string
	SubscriptionTier Tier
	RemoteAddr       string
}

// ContextTurn is a single prior utterance passed along for context-aware
// translation.
type ContextTurn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// TranslationRequest is the immutable per-call input to the orchestrator.
type TranslationRequest struct {
	Text         string        `json:"text"`
	SourceLang   string        `json:"sourceLang,omitempty"`
	TargetLang   string        `json:"targetLang"`
	Context      []ContextTurn `json:"context,omitempty"`
	Quality      QualityTier   `json:"quality,omitempty"`
	ProviderHint string        `json:"provider,omitempty"`
	Actor        UserContext   `json:"-"`
}

// Validate checks the request at the boundary. It returns a *ValidationError
// so callers can surface a 400 without consulting any backend.
func (r *TranslationRequest) Validate() error {
	if r.Text == "" {
		return NewValidationError("text", "must not be empty")
	}
	if utf8.RuneCountInString(r.Text) > MaxTextLength {
		return NewValidationError("text", fmt.Sprintf("must not exceed %d characters", MaxTextLength))
	}
	if r.TargetLang == "" {
		return NewValidationError("targetLang", "is required")
	}
	if !langCodeRe.MatchString(r.TargetLang) {
		return NewValidationError("targetLang", "must be an ISO 639-1 code")
	}
	if r.SourceLang != "" && r.SourceLang != SourceLangAuto && !langCodeRe.MatchString(r.SourceLang) {
		return NewValidationError("sourceLang", "must be an ISO 639-1 code or \"auto\"")
	}
	if r.SourceLang != "" && r.SourceLang == r.TargetLang {
		return NewValidationError("targetLang", "must differ from sourceLang")
	}
	if len(r.Context) > MaxContextTurns {
		return NewValidationError("context", fmt.Sprintf("must not exceed %d turns", MaxContextTurns))
	}
	switch r.Quality {
	case "", QualityFast, QualityBalanced, QualityQuality:
	default:
		return NewValidationError("quality", "must be one of fast, balanced, quality")
	}
	return nil
}

// EffectiveQuality returns the requested quality tier, defaulting to balanced.
func (r *TranslationRequest) EffectiveQuality() QualityTier {
	if r.Quality == "" {
		return QualityBalanced
	}
	return r.Quality
}

// EffectiveSourceLang returns the source language, defaulting to auto-detect.
func (r *TranslationRequest) EffectiveSourceLang() string {
	if r.SourceLang == "" {
		return SourceLangAuto
	}
	return r.SourceLang
}

// TranslationResult is the terminal success payload of one orchestration pass.
type TranslationResult struct {
	TranslatedText   string  `json:"translatedText"`
	SourceLang       string  `json:"sourceLang"`
	TargetLang       string  `json:"targetLang"`
	Provider         string  `json:"provider"`
	Model            string  `json:"model,omitempty"`
	Confidence       float64 `json:"confidence"`
	Cached           bool    `json:"cached"`
	CostUSD          float64 `json:"cost"`
	ProcessingTimeMS int64   `json:"processingTimeMs"`
}

// Detection is the result of provider-side language detection.
type Detection struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}
