package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/nikhilbhutani/photopoet/internal/metrics"
	"github.com/nikhilbhutani/photopoet/internal/multimodal/tts"
)

const invalidVoiceLabel = "invalid"

type SpeechHandler struct {
	synth   *tts.Synthesizer
	metrics *metrics.Metrics
}

func NewSpeechHandler(synth *tts.Synthesizer, m *metrics.Metrics) *SpeechHandler {
	return &SpeechHandler{synth: synth, metrics: m}
}

type speechRequest struct {
	Text            string   `json:"text"`
	Voice           string   `json:"voice"`
	Stability       *float64 `json:"stability"`
	SimilarityBoost *float64 `json:"similarity_boost"`
}

// Speak converts poem text to MP3 audio.
func (h *SpeechHandler) Speak(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var body speechRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBodyError(w, err)
		return
	}

	req := tts.NewSpeechRequest(body.Text)
	if body.Voice != "" {
		req.Voice = body.Voice
	}
	if body.Stability != nil {
		req.Stability = *body.Stability
	}
	if body.SimilarityBoost != nil {
		req.SimilarityBoost = *body.SimilarityBoost
	}

	// Unknown names share one label so request bodies cannot mint series.
	voiceLabel := invalidVoiceLabel
	if h.synth.HasVoice(req.Voice) {
		voiceLabel = req.Voice
	}

	start := time.Now()
	result, err := h.synth.Synthesize(r.Context(), req)
	if err != nil {
		h.metrics.ObserveSpeech(voiceLabel, outcomeFor(err), 0, time.Since(start))
		h.writeSpeechError(w, r, err)
		return
	}
	h.metrics.ObserveSpeech(voiceLabel, metrics.OutcomeOK, len(result.Audio), time.Since(start))

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Audio)))
	w.WriteHeader(http.StatusOK)
	w.Write(result.Audio)
}

// writeSpeechError keeps the browser client's contract: 400 for bad text or
// voice, 500 for any upstream failure.
func (h *SpeechHandler) writeSpeechError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tts.ErrInvalidVoice):
		writeError(w, http.StatusBadRequest, "Invalid voice selected")
	case errors.Is(err, tts.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, tts.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		slog.ErrorContext(r.Context(), "speech synthesis failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate speech")
	}
}
