package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"translation_gateway/internal/middleware"
	"translation_gateway/internal/models"
)

type stubOrchestrator struct {
	result    *models.TranslationResult
	detection *models.Detection
	err       error
	gotActor  models.UserContext
}

func (s *stubOrchestrator) Translate(ctx context.Context, req *models.TranslationRequest) (*models.TranslationResult, error) {
	s.gotActor = req.Actor
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubOrchestrator) Detect(ctx context.Context, actor models.UserContext, text string) (*models.Detection, error) {
	s.gotActor = actor
	if s.err != nil {
		return nil, s.err
	}
	return s.detection, nil
}

type okPinger struct{}

func (okPinger) Ping(ctx context.Context) error { return nil }

func doTranslate(t *testing.T, orch *stubOrchestrator, authenticated bool, body string) *httptest.ResponseRecorder {
	t.Helper()

	router := NewRouter(&Dependencies{Orchestrator: orch, Postgres: okPinger{}, Redis: okPinger{}})

	req := httptest.NewRequest(http.MethodPost, "/v1/translate", strings.NewReader(body))
	if authenticated {
		req.Header.Set(middleware.HeaderWorkspaceID, "ws-1")
		req.Header.Set(middleware.HeaderUserID, "u-1")
		req.Header.Set(middleware.HeaderSubscriptionTier, "managed")
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestTranslateEndpointSuccess(t *testing.T) {
	orch := &stubOrchestrator{result: &models.TranslationResult{
		TranslatedText: "bonjour",
		SourceLang:     "en",
		TargetLang:     "fr",
		Provider:       "deepl-main",
		Confidence:     0.95,
	}}

	rec := doTranslate(t, orch, true, `{"text":"hello","sourceLang":"en","targetLang":"fr"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.TranslationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "bonjour", result.TranslatedText)

	assert.Equal(t, "ws-1", orch.gotActor.WorkspaceID)
	assert.Equal(t, models.TierManaged, orch.gotActor.SubscriptionTier)
}

func TestTranslateEndpointStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", models.NewValidationError("text", "must not be empty"), http.StatusBadRequest},
		{"rate limited", &models.AdmissionDeniedError{Reason: models.DeniedRateLimit, RetryAfter: 30 * time.Second}, http.StatusTooManyRequests},
		{"quota", &models.AdmissionDeniedError{Reason: models.DeniedQuota, RetryAfter: time.Hour}, http.StatusTooManyRequests},
		{"no provider", models.ErrNoProvider, http.StatusServiceUnavailable},
		{"chain exhausted", &models.ChainExhaustedError{Attempts: 2}, http.StatusBadGateway},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doTranslate(t, &stubOrchestrator{err: tc.err}, true, `{"text":"hello","targetLang":"fr"}`)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestTranslateEndpointRetryAfterHeader(t *testing.T) {
	orch := &stubOrchestrator{err: &models.AdmissionDeniedError{
		Reason:     models.DeniedRateLimit,
		RetryAfter: 42 * time.Second,
	}}

	rec := doTranslate(t, orch, true, `{"text":"hello","targetLang":"fr"}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "42", rec.Header().Get("Retry-After"))
}

func TestTranslateEndpointUnauthenticated(t *testing.T) {
	rec := doTranslate(t, &stubOrchestrator{}, false, `{"text":"hello","targetLang":"fr"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTranslateEndpointBadJSON(t *testing.T) {
	rec := doTranslate(t, &stubOrchestrator{}, true, `{"text":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDetectEndpoint(t *testing.T) {
	orch := &stubOrchestrator{detection: &models.Detection{Language: "fr", Confidence: 0.98}}
	router := NewRouter(&Dependencies{Orchestrator: orch, Postgres: okPinger{}, Redis: okPinger{}})

	req := httptest.NewRequest(http.MethodPost, "/v1/detect", strings.NewReader(`{"text":"bonjour"}`))
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var detection models.Detection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detection))
	assert.Equal(t, "fr", detection.Language)
	assert.Equal(t, "203.0.113.9", orch.gotActor.RemoteAddr, "anonymous caller identity reaches admission")
}

func TestDetectEndpointRateLimited(t *testing.T) {
	orch := &stubOrchestrator{err: &models.AdmissionDeniedError{
		Reason:     models.DeniedRateLimit,
		Scope:      "ip:203.0.113.9",
		RetryAfter: 30 * time.Second,
	}}
	router := NewRouter(&Dependencies{Orchestrator: orch, Postgres: okPinger{}, Redis: okPinger{}})

	req := httptest.NewRequest(http.MethodPost, "/v1/detect", strings.NewReader(`{"text":"bonjour"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
}

func TestHealthzEndpoint(t *testing.T) {
	router := NewRouter(&Dependencies{Orchestrator: &stubOrchestrator{}, Postgres: okPinger{}, Redis: okPinger{}})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}
