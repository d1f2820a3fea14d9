package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	LLM       LLMConfig
	Image     ImageConfig
	TTS       TTSConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

type LogConfig struct {
	Level slog.Level
}

// RedisConfig is optional. An empty Addr keeps rate limiting in memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
	RPM   int
}

type LLMConfig struct {
	GeminiKey        string
	OpenAIKey        string
	OpenAIBaseURL    string
	AnthropicKey     string
	OllamaURL        string
	DefaultProvider  string
	DefaultModel     string
	FallbackProvider string
	FallbackModel    string
	MaxRetries       int
}

type ImageConfig struct {
	MaxBytes          int64
	AllowPrivateHosts bool
}

type TTSConfig struct {
	ElevenLabsKey     string
	ElevenLabsBaseURL string
	ElevenLabsModel   string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	rps, err := getEnvFloat("RATE_LIMIT_RPS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}
	burst, err := getEnvInt("RATE_LIMIT_BURST", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}
	rpm, err := getEnvInt("RATE_LIMIT_RPM", 60)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPM: %w", err)
	}

	maxRetries, err := getEnvInt("LLM_MAX_RETRIES", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_MAX_RETRIES: %w", err)
	}

	maxBytes, err := getEnvInt("IMAGE_MAX_BYTES", 10<<20)
	if err != nil {
		return nil, fmt.Errorf("invalid IMAGE_MAX_BYTES: %w", err)
	}
	allowPrivate, err := getEnvBool("IMAGE_ALLOW_PRIVATE_URLS", false)
	if err != nil {
		return nil, fmt.Errorf("invalid IMAGE_ALLOW_PRIVATE_URLS: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           port,
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		},
		Log: LogConfig{Level: level},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		RateLimit: RateLimitConfig{
			RPS:   rps,
			Burst: burst,
			RPM:   rpm,
		},
		LLM: LLMConfig{
			GeminiKey:        getEnv("GOOGLE_GENAI_API_KEY", ""),
			OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
			AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
			OllamaURL:        getEnv("OLLAMA_URL", ""),
			DefaultProvider:  getEnv("LLM_DEFAULT_PROVIDER", "gemini"),
			DefaultModel:     getEnv("LLM_DEFAULT_MODEL", "gemini-2.0-flash"),
			FallbackProvider: getEnv("LLM_FALLBACK_PROVIDER", ""),
			FallbackModel:    getEnv("LLM_FALLBACK_MODEL", ""),
			MaxRetries:       maxRetries,
		},
		Image: ImageConfig{
			MaxBytes:          int64(maxBytes),
			AllowPrivateHosts: allowPrivate,
		},
		TTS: TTSConfig{
			ElevenLabsKey:     getEnv("ELEVEN_LABS_API_KEY", ""),
			ElevenLabsBaseURL: getEnv("ELEVEN_LABS_BASE_URL", "https://api.elevenlabs.io/v1"),
			ElevenLabsModel:   getEnv("ELEVEN_LABS_MODEL", "eleven_monolingual_v1"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate checks ranges only. Missing API keys are allowed: the matching
// feature answers with a "not configured" error instead.
func (c *Config) Validate() error {
	var problems []string
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "SERVER_PORT out of range")
	}
	if c.LLM.MaxRetries < 0 {
		problems = append(problems, "LLM_MAX_RETRIES must be >= 0")
	}
	if c.Image.MaxBytes <= 0 {
		problems = append(problems, "IMAGE_MAX_BYTES must be > 0")
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		problems = append(problems, "RATE_LIMIT_RPS and RATE_LIMIT_BURST must be > 0")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// LogValue keeps credentials out of logs.
func (c LLMConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("default_provider", c.DefaultProvider),
		slog.String("default_model", c.DefaultModel),
		slog.String("fallback_provider", c.FallbackProvider),
		slog.Int("max_retries", c.MaxRetries),
		slog.Bool("gemini_key_set", c.GeminiKey != ""),
		slog.Bool("openai_key_set", c.OpenAIKey != ""),
		slog.String("openai_base_url", c.OpenAIBaseURL),
		slog.Bool("anthropic_key_set", c.AnthropicKey != ""),
		slog.Bool("ollama_enabled", c.OllamaURL != ""),
	)
}

func (c TTSConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("base_url", c.ElevenLabsBaseURL),
		slog.String("model", c.ElevenLabsModel),
		slog.Bool("api_key_set", c.ElevenLabsKey != ""),
	)
}

func (c RedisConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("addr", c.Addr),
		slog.Int("db", c.DB),
		slog.Bool("password_set", c.Password != ""),
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
