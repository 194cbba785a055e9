package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"translation_gateway/internal/models"
)

const (
	openAIDefaultBaseURL = "https://api.openai.com/v1"
	openAIDefaultModel   = "gpt-4o-mini"
	openAITimeout        = 60 * time.Second
)

// OpenAIProvider implements the Translator interface over the OpenAI chat
// completions API with a fixed translation system prompt.
type OpenAIProvider struct {
	id             string
	apiKey         string
	baseURL        string
	model          string
	costPerCharUSD float64
	client         *http.Client
}

// NewOpenAIProvider creates a new OpenAI provider instance
func NewOpenAIProvider(config Config) (Translator, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("api key is required for OpenAI provider")
	}

	baseURL := openAIDefaultBaseURL
	if config.BaseURL != "" {
		baseURL = strings.TrimSuffix(config.BaseURL, "/")
	}
	model := config.Model
	if model == "" {
		model = openAIDefaultModel
	}

	client := &http.Client{
		Timeout: openAITimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &OpenAIProvider{
		id:             config.ID,
		apiKey:         config.APIKey,
		baseURL:        baseURL,
		model:          model,
		costPerCharUSD: config.CostPerCharUSD,
		client:         client,
	}, nil
}

// ID returns the provider ID
func (p *OpenAIProvider) ID() string {
	return p.id
}

// Type returns the provider type
func (p *OpenAIProvider) Type() string {
	return "openai"
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Translate sends one translation request through chat completions
func (p *OpenAIProvider) Translate(ctx context.Context, req Request) (*Result, error) {
	system := fmt.Sprintf(
		"You are a translation engine. Translate the user message from %s to %s. "+
			"Reply with the translation only, no commentary.",
		sourceLabel(req.SourceLang), req.TargetLang,
	)
	messages := []chatMessage{{Role: "system", Content: system}}
	for _, turn := range req.Context {
		messages = append(messages, chatMessage{
			Role:    "system",
			Content: "Conversation context: " + turn.Speaker + ": " + turn.Text,
		})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Text})

	content, err := p.chat(ctx, messages)
	if err != nil {
		return nil, err
	}

	return &Result{
		TranslatedText:     content,
		DetectedSourceLang: req.SourceLang,
		Model:              p.model,
		Confidence:         0.9,
		CostUSD:            float64(utf8.RuneCountInString(req.Text)) * p.costPerCharUSD,
	}, nil
}

// DetectLanguage identifies the language of a text sample
func (p *OpenAIProvider) DetectLanguage(ctx context.Context, text string) (*models.Detection, error) {
	messages := []chatMessage{
		{Role: "system", Content: "Identify the language of the user message. Reply with the ISO 639-1 code only."},
		{Role: "user", Content: text},
	}

	content, err := p.chat(ctx, messages)
	if err != nil {
		return nil, err
	}

	code := strings.ToLower(strings.TrimSpace(content))
	if len(code) != 2 {
		return nil, p.transient(fmt.Errorf("unexpected detection reply %q", content))
	}
	return &models.Detection{Language: code, Confidence: 0.85}, nil
}

// Close performs cleanup
func (p *OpenAIProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

func (p *OpenAIProvider) chat(ctx context.Context, messages []chatMessage) (string, error) {
	payload := map[string]any{
		"model":       p.model,
		"messages":    messages,
		"temperature": 0,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", p.transient(fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", p.transient(fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", p.transient(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", p.transient(fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", p.transient(fmt.Errorf("openai returned status %d", resp.StatusCode))
	default:
		return "", p.permanent(fmt.Errorf("openai returned status %d", resp.StatusCode))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", p.transient(fmt.Errorf("decode response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return "", p.transient(fmt.Errorf("empty completion response"))
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func (p *OpenAIProvider) transient(err error) error {
	return &models.ProviderError{Provider: p.id, Transient: true, Err: err}
}

func (p *OpenAIProvider) permanent(err error) error {
	return &models.ProviderError{Provider: p.id, Transient: false, Err: err}
}

func sourceLabel(sourceLang string) string {
	if sourceLang == "" || sourceLang == models.SourceLangAuto {
		return "the detected source language"
	}
	return sourceLang
}
