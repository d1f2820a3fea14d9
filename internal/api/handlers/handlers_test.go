package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/photopoet/internal/config"
	"github.com/nikhilbhutani/photopoet/internal/llm"
	"github.com/nikhilbhutani/photopoet/internal/metrics"
	"github.com/nikhilbhutani/photopoet/internal/multimodal"
	"github.com/nikhilbhutani/photopoet/internal/multimodal/tts"
	"github.com/nikhilbhutani/photopoet/internal/poem"
	"github.com/nikhilbhutani/photopoet/pkg/datauri"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDRrest")

type fakeGateway struct {
	reply string
	err   error
	last  llm.ChatRequest
}

func (f *fakeGateway) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Provider: "fake", Model: "fake-vision", Content: f.reply}, nil
}

func (f *fakeGateway) Provider(string) (llm.Provider, error) { return nil, llm.ErrProviderNotConfigured }

func (f *fakeGateway) ListModels() []llm.ModelInfo {
	return []llm.ModelInfo{{Provider: "fake", Model: "fake-vision", Default: true}}
}

type fakeTTS struct {
	calls int
	err   error
}

func (f *fakeTTS) Name() string { return "fake" }

func (f *fakeTTS) Synthesize(context.Context, tts.SynthesisRequest) (*tts.SynthesisResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &tts.SynthesisResult{Audio: []byte("ID3-mp3"), ContentType: "audio/mpeg"}, nil
}

func newPoemHandler(gw llm.Gateway) *PoemHandler {
	cfg := config.ImageConfig{MaxBytes: 1 << 20}
	normalizer := multimodal.NewNormalizer(cfg)
	svc := poem.NewService(normalizer, poem.NewClient(gw, ""))
	return NewPoemHandler(svc, metrics.New(), cfg.MaxBytes)
}

func postJSON(h http.HandlerFunc, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func multipartRequest(t *testing.T, fields map[string]string, fileName, contentType string, file []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
		hdr.Set("Content-Type", contentType)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["error"]
}

func TestGeneratePoem(t *testing.T) {
	gw := &fakeGateway{reply: `{"poem":"Gulls over harbor\nsalt on the wind"}`}
	image := datauri.Encode("image/png", pngBytes)

	rec := postJSON(newPoemHandler(gw).Generate, map[string]any{
		"imageData":      image,
		"tone":           "reflective",
		"stanzaCount":    1,
		"linesPerStanza": 2,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result poem.Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, "Gulls over harbor\nsalt on the wind", result.Poem)
	assert.NotEmpty(t, result.ID)

	sent := gw.last.Messages[1]
	assert.Equal(t, []string{image}, sent.Images)
	assert.Contains(t, sent.Content, "exactly 1 stanzas")
	assert.Contains(t, sent.Content, "exactly 2 lines")
}

func TestGeneratePoemDefaults(t *testing.T) {
	gw := &fakeGateway{reply: `{"poem":"x"}`}
	rec := postJSON(newPoemHandler(gw).Generate, map[string]any{"imageData": datauri.Encode("image/png", pngBytes)})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, gw.last.Messages[1].Content, "exactly 3 stanzas")
	assert.Contains(t, gw.last.Messages[1].Content, "exactly 4 lines")
	assert.NotContains(t, gw.last.Messages[1].Content, "tone")
}

func TestGeneratePoemErrors(t *testing.T) {
	image := datauri.Encode("image/png", pngBytes)
	cases := map[string]struct {
		gw   *fakeGateway
		body any
		want int
	}{
		"bad json":        {&fakeGateway{}, "not an object", http.StatusBadRequest},
		"missing image":   {&fakeGateway{}, map[string]any{"tone": "sad"}, http.StatusBadRequest},
		"blob url":        {&fakeGateway{}, map[string]any{"imageData": "blob:http://localhost:3000/abc"}, http.StatusBadRequest},
		"zero stanzas":    {&fakeGateway{}, map[string]any{"imageData": image, "stanzaCount": 0}, http.StatusBadRequest},
		"eleven lines":    {&fakeGateway{}, map[string]any{"imageData": image, "linesPerStanza": 11}, http.StatusBadRequest},
		"not configured":  {&fakeGateway{err: llm.ErrProviderNotConfigured}, map[string]any{"imageData": image}, http.StatusServiceUnavailable},
		"upstream failed": {&fakeGateway{err: errors.New("boom")}, map[string]any{"imageData": image}, http.StatusBadGateway},
		"no poem field":   {&fakeGateway{reply: `{"verse":"x"}`}, map[string]any{"imageData": image}, http.StatusBadGateway},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := postJSON(newPoemHandler(tc.gw).Generate, tc.body)
			assert.Equal(t, tc.want, rec.Code)
			assert.NotEmpty(t, decodeError(t, rec))
		})
	}
}

func TestGeneratePoemRejectsUndecodableImage(t *testing.T) {
	gw := &fakeGateway{reply: `{"poem":"x"}`}
	rec := postJSON(newPoemHandler(gw).Generate, map[string]any{"imageData": "data:image/png;base64,!!!not-base64!!!"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, decodeError(t, rec))
	assert.Empty(t, gw.last.Messages)
}

func TestGeneratePoemHidesUpstreamDetail(t *testing.T) {
	gw := &fakeGateway{err: errors.New("api key sk-live-123 rejected")}
	rec := postJSON(newPoemHandler(gw).Generate, map[string]any{"imageData": datauri.Encode("image/png", pngBytes)})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "failed to generate poem", decodeError(t, rec))
}

func TestUploadPoem(t *testing.T) {
	gw := &fakeGateway{reply: `{"poem":"Morning light"}`}
	req := multipartRequest(t, map[string]string{"tone": "happy", "stanzaCount": "2", "linesPerStanza": "4"},
		"photo.png", "application/octet-stream", pngBytes)
	rec := httptest.NewRecorder()
	newPoemHandler(gw).Upload(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	sent := gw.last.Messages[1]
	require.Len(t, sent.Images, 1)
	decoded, err := datauri.Parse(sent.Images[0])
	require.NoError(t, err)
	assert.Equal(t, "image/png", decoded.MIMEType)
	assert.Equal(t, pngBytes, decoded.Data)
	assert.Contains(t, sent.Content, "The tone of the poem should be happy.")
}

func TestUploadPoemErrors(t *testing.T) {
	h := newPoemHandler(&fakeGateway{reply: `{"poem":"x"}`})

	rec := httptest.NewRecorder()
	h.Upload(rec, multipartRequest(t, map[string]string{"tone": "sad"}, "", "", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Upload(rec, multipartRequest(t, map[string]string{"stanzaCount": "three"}, "a.png", "image/png", pngBytes))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "stanzaCount must be an integer", decodeError(t, rec))

	rec = httptest.NewRecorder()
	h.Upload(rec, multipartRequest(t, nil, "notes.txt", "text/plain", []byte("just some text")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadPoem(t *testing.T) {
	h := newPoemHandler(&fakeGateway{})

	rec := postJSON(h.Download, map[string]string{"poem": "Line one\nLine two"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="poem.txt"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Line one\nLine two", rec.Body.String())

	rec = postJSON(h.Download, map[string]string{"poem": " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSpeak(t *testing.T) {
	provider := &fakeTTS{}
	h := NewSpeechHandler(tts.NewSynthesizer(provider, tts.ElevenLabsVoices()), nil)

	rec := postJSON(h.Speak, map[string]any{"text": "Petals on the pond"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "ID3-mp3", rec.Body.String())
	assert.Equal(t, 1, provider.calls)
}

func TestSpeakErrors(t *testing.T) {
	cases := map[string]struct {
		providerErr error
		body        any
		want        int
		message     string
		calls       int
	}{
		"missing text":   {nil, map[string]any{"voice": "Rachel"}, http.StatusBadRequest, "", 0},
		"unknown voice":  {nil, map[string]any{"text": "hi", "voice": "Zed"}, http.StatusBadRequest, "Invalid voice selected", 0},
		"bad stability":  {nil, map[string]any{"text": "hi", "stability": 2}, http.StatusBadRequest, "", 0},
		"upstream":       {tts.ErrSynthesis, map[string]any{"text": "hi"}, http.StatusInternalServerError, "Failed to generate speech", 1},
		"not configured": {tts.ErrNotConfigured, map[string]any{"text": "hi"}, http.StatusServiceUnavailable, "", 1},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			provider := &fakeTTS{err: tc.providerErr}
			h := NewSpeechHandler(tts.NewSynthesizer(provider, tts.ElevenLabsVoices()), metrics.New())

			rec := postJSON(h.Speak, tc.body)
			assert.Equal(t, tc.want, rec.Code)
			msg := decodeError(t, rec)
			if tc.message != "" {
				assert.Equal(t, tc.message, msg)
			}
			assert.Equal(t, tc.calls, provider.calls)
		})
	}
}

func TestSpeakVoiceLabelsStayBounded(t *testing.T) {
	m := metrics.New()
	h := NewSpeechHandler(tts.NewSynthesizer(&fakeTTS{}, tts.ElevenLabsVoices()), m)

	for i := range 50 {
		rec := postJSON(h.Speak, map[string]any{"text": "hi", "voice": fmt.Sprintf("voice-%d", i)})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	}
	rec := postJSON(h.Speak, map[string]any{"text": "hi", "voice": "Adam"})
	require.Equal(t, http.StatusOK, rec.Code)

	series, err := testutil.GatherAndCount(m.Registry(), "photopoet_speech_syntheses_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series)
}

func TestDescribeImage(t *testing.T) {
	gw := &fakeGateway{reply: "A lighthouse at dusk."}
	vision := multimodal.NewVisionService(gw, multimodal.NewNormalizer(config.ImageConfig{MaxBytes: 1 << 20}), "")
	h := NewImageHandler(vision, 1<<20)

	rec := httptest.NewRecorder()
	h.Describe(rec, multipartRequest(t, nil, "a.png", "image/png", pngBytes))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"text":"A lighthouse at dusk."}`, rec.Body.String())
	assert.Equal(t, "Describe this image.", gw.last.Messages[1].Content)

	rec = httptest.NewRecorder()
	h.Describe(rec, multipartRequest(t, nil, "", "", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDescribeImageUpstreamFailure(t *testing.T) {
	cases := map[string]*fakeGateway{
		"gateway error": {err: errors.New("provider exploded: secret detail")},
		"empty reply":   {reply: "   "},
	}
	for name, gw := range cases {
		t.Run(name, func(t *testing.T) {
			vision := multimodal.NewVisionService(gw, multimodal.NewNormalizer(config.ImageConfig{MaxBytes: 1 << 20}), "")
			rec := httptest.NewRecorder()
			NewImageHandler(vision, 1<<20).Describe(rec, multipartRequest(t, nil, "a.png", "image/png", pngBytes))

			assert.Equal(t, http.StatusBadGateway, rec.Code)
			assert.Equal(t, "failed to describe image", decodeError(t, rec))
		})
	}
}

func TestMeta(t *testing.T) {
	h := NewMetaHandler(&fakeGateway{}, tts.ElevenLabsVoices().Names())

	rec := httptest.NewRecorder()
	h.Voices(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.JSONEq(t, `{"voices":["Rachel","Domi","Bella","Antoni","Josh","Arnold","Adam","Sam"]}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.Tones(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, strings.Contains(rec.Body.String(), "melancholic"))

	rec = httptest.NewRecorder()
	h.Models(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.JSONEq(t, `{"models":[{"provider":"fake","model":"fake-vision","default":true}]}`, rec.Body.String())
}

func TestReadyz(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(nil).Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()
	h := NewHealthHandler(client)

	rec = httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"ok"`)

	server.Close()
	rec = httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		poem.ErrValidation:            http.StatusBadRequest,
		multimodal.ErrInvalidImage:    http.StatusBadRequest,
		multimodal.ErrRead:            http.StatusBadRequest,
		multimodal.ErrImageTooLarge:   http.StatusRequestEntityTooLarge,
		tts.ErrInvalidVoice:           http.StatusBadRequest,
		poem.ErrGeneration:            http.StatusBadGateway,
		multimodal.ErrAnalysis:        http.StatusBadGateway,
		tts.ErrSynthesis:              http.StatusBadGateway,
		llm.ErrProviderNotConfigured:  http.StatusServiceUnavailable,
		tts.ErrNotConfigured:          http.StatusServiceUnavailable,
		errors.New("something broke"): http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(err), err.Error())
	}
}
