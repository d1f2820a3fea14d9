package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nikhilbhutani/photopoet/internal/metrics"
	"github.com/nikhilbhutani/photopoet/internal/multimodal"
	"github.com/nikhilbhutani/photopoet/internal/poem"
)

// multipartOverhead is the allowance for form fields around the file part.
const multipartOverhead = 1 << 20

type PoemHandler struct {
	svc      *poem.Service
	metrics  *metrics.Metrics
	maxImage int64
}

func NewPoemHandler(svc *poem.Service, m *metrics.Metrics, maxImageBytes int64) *PoemHandler {
	return &PoemHandler{svc: svc, metrics: m, maxImage: maxImageBytes}
}

type generatePoemRequest struct {
	ImageData      string `json:"imageData"`
	Tone           string `json:"tone"`
	StanzaCount    *int   `json:"stanzaCount"`
	LinesPerStanza *int   `json:"linesPerStanza"`
}

// Generate accepts a JSON body whose imageData is a data URI or an http(s) URL.
func (h *PoemHandler) Generate(w http.ResponseWriter, r *http.Request) {
	// base64 inflates by 4/3.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxImage/3*4+multipartOverhead)

	var req generatePoemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBodyError(w, err)
		return
	}
	if strings.TrimSpace(req.ImageData) == "" {
		writeError(w, http.StatusBadRequest, "imageData required")
		return
	}

	opts := poem.DefaultOptions()
	opts.Tone = req.Tone
	if req.StanzaCount != nil {
		opts.StanzaCount = *req.StanzaCount
	}
	if req.LinesPerStanza != nil {
		opts.LinesPerStanza = *req.LinesPerStanza
	}

	h.compose(w, r, multimodal.ImageInputFromRef(req.ImageData), opts)
}

// Upload accepts a multipart form with a "file" part and optional style fields.
func (h *PoemHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxImage+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxImage + multipartOverhead); err != nil {
		writeFormError(w, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file required")
		return
	}
	defer file.Close()

	opts := poem.DefaultOptions()
	opts.Tone = r.FormValue("tone")
	if opts.StanzaCount, err = formInt(r, "stanzaCount", opts.StanzaCount); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if opts.LinesPerStanza, err = formInt(r, "linesPerStanza", opts.LinesPerStanza); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.compose(w, r, multimodal.ImageInput{
		Reader:   file,
		MimeType: uploadMIME(header.Header.Get("Content-Type")),
		Filename: header.Filename,
	}, opts)
}

func (h *PoemHandler) compose(w http.ResponseWriter, r *http.Request, img multimodal.ImageInput, opts poem.Options) {
	start := time.Now()
	result, err := h.svc.Compose(r.Context(), img, opts)
	if err != nil {
		h.metrics.ObservePoem("", outcomeFor(err), time.Since(start))
		writeServiceError(w, r, err, "failed to generate poem")
		return
	}
	h.metrics.ObservePoem(result.Provider, metrics.OutcomeOK, time.Since(start))
	writeJSON(w, http.StatusOK, result)
}

type downloadRequest struct {
	Poem string `json:"poem"`
}

// Download returns the poem as a plain-text attachment.
func (h *PoemHandler) Download(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, multipartOverhead)

	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Poem) == "" {
		writeError(w, http.StatusBadRequest, "poem required")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="poem.txt"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(req.Poem))
}

func formInt(r *http.Request, key string, fallback int) (int, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

// uploadMIME keeps the part's declared type only when it names an image;
// browsers often send application/octet-stream.
func uploadMIME(contentType string) string {
	if strings.HasPrefix(contentType, "image/") {
		return contentType
	}
	return ""
}

func writeBodyError(w http.ResponseWriter, err error) {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "invalid request body")
}

func writeFormError(w http.ResponseWriter, err error) {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "invalid multipart form")
}

func outcomeFor(err error) string {
	switch statusFor(err) {
	case http.StatusServiceUnavailable:
		return metrics.OutcomeNotConfigured
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeUpstreamFailed
	}
}
