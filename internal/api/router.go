package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/photopoet/internal/api/handlers"
	"github.com/nikhilbhutani/photopoet/internal/api/middleware"
	"github.com/nikhilbhutani/photopoet/internal/config"
	"github.com/nikhilbhutani/photopoet/internal/llm"
	"github.com/nikhilbhutani/photopoet/internal/metrics"
	"github.com/nikhilbhutani/photopoet/internal/multimodal"
	"github.com/nikhilbhutani/photopoet/internal/multimodal/tts"
	"github.com/nikhilbhutani/photopoet/internal/poem"
)

type Router struct {
	mux     *chi.Mux
	redis   *redis.Client
	cfg     *config.Config
	llmGW   llm.Gateway
	tts     tts.TTSProvider
	metrics *metrics.Metrics
}

// NewRouter wires the services. rdb may be nil; the in-memory limiter is
// used then. gw and ttsProvider may be nil to use the configured providers.
func NewRouter(rdb *redis.Client, cfg *config.Config, gw llm.Gateway, ttsProvider tts.TTSProvider, m *metrics.Metrics) *Router {
	if gw == nil {
		gw = llm.NewGateway(cfg.LLM)
	}
	if ttsProvider == nil && cfg.TTS.ElevenLabsKey != "" {
		ttsProvider = tts.NewElevenLabs(tts.ElevenLabsConfig{
			APIKey:  cfg.TTS.ElevenLabsKey,
			BaseURL: cfg.TTS.ElevenLabsBaseURL,
			Model:   cfg.TTS.ElevenLabsModel,
		})
	}
	return &Router{
		mux:     chi.NewRouter(),
		redis:   rdb,
		cfg:     cfg,
		llmGW:   gw,
		tts:     ttsProvider,
		metrics: m,
	}
}

// Setup builds the handler tree. ctx bounds background work such as the
// rate limiter's janitor.
func (rt *Router) Setup(ctx context.Context) http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(rt.metrics.Middleware)
	r.Use(middleware.CORS(rt.cfg.Server.AllowedOrigins))

	// Health and metrics endpoints (not rate limited)
	health := handlers.NewHealthHandler(rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())

	// Initialize services
	normalizer := multimodal.NewNormalizer(rt.cfg.Image)
	poemSvc := poem.NewService(normalizer, poem.NewClient(rt.llmGW, ""))
	vision := multimodal.NewVisionService(rt.llmGW, normalizer, "")

	if rt.tts == nil {
		slog.Warn("ELEVEN_LABS_API_KEY not set, speech synthesis disabled")
	}
	synth := tts.NewSynthesizer(rt.tts, tts.ElevenLabsVoices())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.limiter(ctx).Limit)

		poemH := handlers.NewPoemHandler(poemSvc, rt.metrics, rt.cfg.Image.MaxBytes)
		r.Route("/poems", func(r chi.Router) {
			r.Post("/", poemH.Generate)
			r.Post("/upload", poemH.Upload)
			r.Post("/download", poemH.Download)
		})

		imageH := handlers.NewImageHandler(vision, rt.cfg.Image.MaxBytes)
		r.Post("/images/describe", imageH.Describe)

		speechH := handlers.NewSpeechHandler(synth, rt.metrics)
		r.Post("/speech", speechH.Speak)

		metaH := handlers.NewMetaHandler(rt.llmGW, synth.Voices())
		r.Get("/voices", metaH.Voices)
		r.Get("/tones", metaH.Tones)
		r.Get("/models", metaH.Models)
	})

	return r
}

func (rt *Router) limiter(ctx context.Context) middleware.Limiter {
	if rt.redis != nil {
		return middleware.NewRedisRateLimiter(rt.redis, rt.cfg.RateLimit.RPM)
	}
	return middleware.NewRateLimiter(ctx, rt.cfg.RateLimit.RPS, rt.cfg.RateLimit.Burst)
}
