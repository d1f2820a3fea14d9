package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/photopoet/internal/llm"
	"github.com/nikhilbhutani/photopoet/internal/multimodal"
	"github.com/nikhilbhutani/photopoet/internal/multimodal/tts"
	"github.com/nikhilbhutani/photopoet/internal/poem"
)

type HealthHandler struct {
	redis *redis.Client // nil when Redis is not configured
}

func NewHealthHandler(rdb *redis.Client) *HealthHandler {
	return &HealthHandler{redis: rdb}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}

	if h.redis != nil {
		if err := h.redis.Ping(r.Context()).Err(); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
		} else {
			checks["redis"] = "ok"
		}
	}

	status := http.StatusOK
	for _, v := range checks {
		if v != "ok" {
			status = http.StatusServiceUnavailable
			break
		}
	}

	writeJSON(w, status, map[string]any{"status": statusStr(status), "checks": checks})
}

func statusStr(code int) string {
	if code == http.StatusOK {
		return "ok"
	}
	return "unhealthy"
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, llm.ErrProviderNotConfigured), errors.Is(err, tts.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, multimodal.ErrImageTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, poem.ErrValidation),
		errors.Is(err, multimodal.ErrInvalidImage),
		errors.Is(err, multimodal.ErrRead),
		errors.Is(err, tts.ErrValidation),
		errors.Is(err, tts.ErrInvalidVoice):
		return http.StatusBadRequest
	case errors.Is(err, poem.ErrGeneration), errors.Is(err, multimodal.ErrAnalysis), errors.Is(err, tts.ErrSynthesis):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError answers with the mapped status. Client errors carry the
// error text; upstream failures get fallback and the detail is logged.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := statusFor(err)
	if status < http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		writeError(w, status, err.Error())
		return
	}
	slog.ErrorContext(r.Context(), fallback, "error", err, "status", status)
	writeError(w, status, fallback)
}
