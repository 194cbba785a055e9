package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"translation_gateway/internal/models"
)

const (
	deepLDefaultBaseURL = "https://api-free.deepl.com"
	deepLTimeout        = 60 * time.Second
)

// DeepLProvider implements the Translator interface against the DeepL REST
// API. DeepL does not report a confidence score, so a static one derived from
// its quality rating is attached by the caller via Capability; the adapter
// reports 0.95.
type DeepLProvider struct {
	id             string
	apiKey         string
	baseURL        string
	costPerCharUSD float64
	client         *http.Client
}

// NewDeepLProvider creates a new DeepL provider instance
func NewDeepLProvider(config Config) (Translator, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("api key is required for DeepL provider")
	}

	baseURL := deepLDefaultBaseURL
	if config.BaseURL != "" {
		baseURL = strings.TrimSuffix(config.BaseURL, "/")
	}

	client := &http.Client{
		Timeout: deepLTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &DeepLProvider{
		id:             config.ID,
		apiKey:         config.APIKey,
		baseURL:        baseURL,
		costPerCharUSD: config.CostPerCharUSD,
		client:         client,
	}, nil
}

// ID returns the provider ID
func (p *DeepLProvider) ID() string {
	return p.id
}

// Type returns the provider type
func (p *DeepLProvider) Type() string {
	return "deepl"
}

type deepLResponse struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
}

// Translate sends one translation request to DeepL
func (p *DeepLProvider) Translate(ctx context.Context, req Request) (*Result, error) {
	form := url.Values{}
	form.Set("text", req.Text)
	form.Set("target_lang", strings.ToUpper(req.TargetLang))
	if req.SourceLang != "" && req.SourceLang != models.SourceLangAuto {
		form.Set("source_lang", strings.ToUpper(req.SourceLang))
	}
	if len(req.Context) > 0 {
		form.Set("context", joinContext(req.Context))
	}

	body, err := p.post(ctx, "/v2/translate", form)
	if err != nil {
		return nil, err
	}

	var parsed deepLResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, p.transient(fmt.Errorf("decode response: %w", err))
	}
	if len(parsed.Translations) == 0 {
		return nil, p.transient(fmt.Errorf("empty translation response"))
	}

	tr := parsed.Translations[0]
	return &Result{
		TranslatedText:     tr.Text,
		DetectedSourceLang: strings.ToLower(tr.DetectedSourceLanguage),
		Model:              "deepl-v2",
		Confidence:         0.95,
		CostUSD:            float64(utf8.RuneCountInString(req.Text)) * p.costPerCharUSD,
	}, nil
}

// DetectLanguage identifies the language of a text sample. DeepL has no
// dedicated detection endpoint, so a translation to English is used and the
// detected source language returned.
func (p *DeepLProvider) DetectLanguage(ctx context.Context, text string) (*models.Detection, error) {
	form := url.Values{}
	form.Set("text", text)
	form.Set("target_lang", "EN")

	body, err := p.post(ctx, "/v2/translate", form)
	if err != nil {
		return nil, err
	}

	var parsed deepLResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, p.transient(fmt.Errorf("decode response: %w", err))
	}
	if len(parsed.Translations) == 0 {
		return nil, p.transient(fmt.Errorf("empty detection response"))
	}

	return &models.Detection{
		Language:   strings.ToLower(parsed.Translations[0].DetectedSourceLanguage),
		Confidence: 0.9,
	}, nil
}

// Close performs cleanup
func (p *DeepLProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

func (p *DeepLProvider) post(ctx context.Context, path string, form url.Values) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, p.transient(fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", "DeepL-Auth-Key "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, p.transient(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, p.transient(fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, p.transient(fmt.Errorf("deepl returned status %d", resp.StatusCode))
	case resp.StatusCode == 456:
		return nil, p.transient(fmt.Errorf("deepl quota exceeded"))
	default:
		// 400 unsupported pair, 401/403 bad key: do not poison health.
		return nil, p.permanent(fmt.Errorf("deepl returned status %d", resp.StatusCode))
	}
}

func (p *DeepLProvider) transient(err error) error {
	return &models.ProviderError{Provider: p.id, Transient: true, Err: err}
}

func (p *DeepLProvider) permanent(err error) error {
	return &models.ProviderError{Provider: p.id, Transient: false, Err: err}
}

func joinContext(turns []models.ContextTurn) string {
	parts := make([]string, 0, len(turns))
	for _, t := range turns {
		if t.Speaker != "" {
			parts = append(parts, t.Speaker+": "+t.Text)
		} else {
			parts = append(parts, t.Text)
		}
	}
	return strings.Join(parts, "\n")
}
