package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"translation_gateway/internal/middleware"
	"translation_gateway/internal/models"
	"translation_gateway/internal/quota"
)

// handleTranslate is the entry point for translation requests.
//
// Flow:
//  1. Validate method and identity
//  2. Decode JSON body
//  3. Run the orchestrator (cache, admission, provider chain)
//  4. Map typed errors onto status codes
func (d *Dependencies) handleTranslate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "missing identity headers")
		return
	}

	var req models.TranslationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Actor = actor

	result, err := d.Orchestrator.Translate(r.Context(), &req)
	if err != nil {
		d.writeTranslateError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleDetect identifies the language of a text sample. Unlike translate it
// accepts anonymous callers, who are rate limited by address.
func (d *Dependencies) handleDetect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	actor, _ := middleware.ActorFromContext(r.Context())

	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	detection, err := d.Orchestrator.Detect(r.Context(), actor, body.Text)
	if err != nil {
		d.writeTranslateError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, detection)
}

// writeTranslateError maps orchestrator errors onto the API's status codes.
func (d *Dependencies) writeTranslateError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		writeJSONError(w, http.StatusBadRequest, verr.Error())
		return
	}

	if errors.Is(err, models.ErrMissingUserContext) {
		writeJSONError(w, http.StatusUnauthorized, "missing identity headers")
		return
	}

	var denied *models.AdmissionDeniedError
	if errors.As(err, &denied) {
		seconds := int(denied.RetryAfter.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
		writeJSONError(w, http.StatusTooManyRequests, denied.Error())
		return
	}

	if errors.Is(err, quota.ErrStateUnavailable) {
		writeJSONError(w, http.StatusServiceUnavailable, "quota state unavailable")
		return
	}

	if errors.Is(err, models.ErrNoProvider) {
		writeJSONError(w, http.StatusServiceUnavailable, "no provider available for language pair")
		return
	}

	var exhausted *models.ChainExhaustedError
	if errors.As(err, &exhausted) {
		writeJSONError(w, http.StatusBadGateway, "all providers failed")
		return
	}

	d.logger.Error("translate request failed", "error", err)
	writeJSONError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeJSONError writes a structured error response.
func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    statusCode,
		},
	}

	_ = json.NewEncoder(w).Encode(errorResp)
}
