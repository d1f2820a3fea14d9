package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/photopoet/internal/multimodal"
)

type ImageHandler struct {
	vision   *multimodal.VisionService
	maxImage int64
}

func NewImageHandler(vision *multimodal.VisionService, maxImageBytes int64) *ImageHandler {
	return &ImageHandler{vision: vision, maxImage: maxImageBytes}
}

// Describe returns a free-form description of an uploaded image.
func (h *ImageHandler) Describe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxImage+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxImage + multipartOverhead); err != nil {
		writeFormError(w, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded.")
		return
	}
	defer file.Close()

	text, err := h.vision.Describe(r.Context(), multimodal.ImageInput{
		Reader:   file,
		MimeType: uploadMIME(header.Header.Get("Content-Type")),
		Filename: header.Filename,
	})
	if err != nil {
		writeServiceError(w, r, err, "failed to describe image")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}
