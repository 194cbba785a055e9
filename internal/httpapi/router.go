// Package httpapi is the HTTP surface of the gateway: translation, language
// detection and health. Authentication happens upstream; see middleware.
package httpapi

import (
	"context"
	"net/http"

	"translation_gateway/internal/middleware"
	"translation_gateway/internal/models"
	"translation_gateway/internal/utils"
)

// Translator is the orchestrator surface the handlers need.
type Translator interface {
	Translate(ctx context.Context, req *models.TranslationRequest) (*models.TranslationResult, error)
	Detect(ctx context.Context, actor models.UserContext, text string) (*models.Detection, error)
}

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	Orchestrator Translator
	Postgres     Pinger
	Redis        Pinger

	logger *utils.Logger
}

// NewRouter wires the routes and middleware.
func NewRouter(deps *Dependencies) *http.ServeMux {
	deps.logger = utils.NewLogger("http")

	mux := http.NewServeMux()
	mux.Handle("/v1/translate", middleware.UserContext(http.HandlerFunc(deps.handleTranslate)))
	mux.Handle("/v1/detect", middleware.UserContext(http.HandlerFunc(deps.handleDetect)))
	mux.HandleFunc("/healthz", deps.handleHealthz)
	return mux
}
