package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/saltyorg/flowcharts/internal/database"
	"github.com/saltyorg/flowcharts/internal/web/middleware"
)

// Handlers contains all HTTP handlers. Storage access goes through the
// per-request scope installed by middleware.ConnScope.
type Handlers struct{}

// New creates a new Handlers instance
func New() *Handlers {
	return &Handlers{}
}

// conn returns the request's database connection, writing a 500 response
// when it cannot be obtained.
func (h *Handlers) conn(w http.ResponseWriter, r *http.Request) (*database.Conn, bool) {
	scope := middleware.GetScope(r.Context())
	if scope == nil {
		log.Error().Str("path", r.URL.Path).Msg("No database scope on request")
		h.jsonError(w, "Internal server error", http.StatusInternalServerError)
		return nil, false
	}

	c, err := scope.Conn(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to acquire database connection")
		h.jsonError(w, "Internal server error", http.StatusInternalServerError)
		return nil, false
	}
	return c, true
}

// NotFound answers unknown routes with a JSON body
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.jsonError(w, "Not found", http.StatusNotFound)
}

// MethodNotAllowed answers known routes hit with an unsupported method
func (h *Handlers) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
}

func (h *Handlers) jsonResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handlers) jsonError(w http.ResponseWriter, message string, status int) {
	h.jsonResponse(w, status, map[string]string{"error": message})
}

func (h *Handlers) jsonStatus(w http.ResponseWriter, status string) {
	h.jsonResponse(w, http.StatusOK, map[string]string{"status": status})
}
