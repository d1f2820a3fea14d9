package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/photopoet/internal/llm"
	"github.com/nikhilbhutani/photopoet/internal/poem"
)

// MetaHandler serves the static vocabularies the UI renders as pickers.
type MetaHandler struct {
	gateway llm.Gateway
	voices  []string
}

func NewMetaHandler(gw llm.Gateway, voices []string) *MetaHandler {
	return &MetaHandler{gateway: gw, voices: voices}
}

func (h *MetaHandler) Voices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"voices": h.voices})
}

func (h *MetaHandler) Tones(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"tones": poem.Tones})
}

func (h *MetaHandler) Models(w http.ResponseWriter, r *http.Request) {
	models := h.gateway.ListModels()
	if models == nil {
		models = []llm.ModelInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}
