package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/karatrack-backend/internal/observability"
	"github.com/yungbote/karatrack-backend/internal/platform/envutil"
	"github.com/yungbote/karatrack-backend/internal/platform/logger"
)

const (
	TranscribeProviderGCPSpeech = "gcp_speech"
	TranscribeProviderHTTP      = "http"
)

type Config struct {
	LogMode string
	Env     string
	Port    string

	RunAPI    bool
	RunWorker bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	JobTTL        time.Duration

	WorkerConcurrency int
	JobTimeout        time.Duration
	RenderConcurrency int
	WorkRoot          string

	TranscribeProvider string
	SpeechLanguage     string
	SpeechModel        string
	SpeechUseEnhanced  bool
	TranscribeBaseURL  string
	TranscribeAPIKey   string

	SeparationBaseURL string
	SeparationAPIKey  string
	SeparationModel   string

	FontPath           string
	StylePresetsPath   string
	ProfanityListPath  string
	FreeTierLogoURL    string
	GuideVocalLevel    float64
	ReferenceTolerance float64

	APIKeys      []string
	JWTSecretKey string
	CORSOrigins  []string

	MetricsEnabled bool
	Otel           observability.OtelConfig
}

func LoadConfig(log *logger.Logger) Config {
	env := envutil.String("APP_ENV", "development")
	cfg := Config{
		LogMode: envutil.String("LOG_MODE", "development"),
		Env:     env,
		Port:    envutil.String("PORT", "8080"),

		RunAPI:    envutil.Bool("RUN_API", true),
		RunWorker: envutil.Bool("RUN_WORKER", true),

		RedisAddr:     envutil.String("REDIS_ADDR", ""),
		RedisPassword: envutil.String("REDIS_PASSWORD", ""),
		RedisDB:       envutil.Int("REDIS_DB", 0),
		RedisPrefix:   envutil.String("REDIS_PREFIX", "karatrack"),
		JobTTL:        envutil.Duration("JOB_TTL", 7*24*time.Hour),

		WorkerConcurrency: envutil.Int("WORKER_CONCURRENCY", 1),
		JobTimeout:        envutil.Duration("JOB_TIMEOUT", time.Hour),
		RenderConcurrency: envutil.Int("RENDER_CONCURRENCY", 4),
		WorkRoot:          envutil.String("WORK_ROOT", ""),

		TranscribeProvider: strings.ToLower(envutil.String("TRANSCRIBE_PROVIDER", TranscribeProviderGCPSpeech)),
		SpeechLanguage:     envutil.String("SPEECH_LANGUAGE", "en-US"),
		SpeechModel:        envutil.String("SPEECH_MODEL", "latest_long"),
		SpeechUseEnhanced:  envutil.Bool("SPEECH_USE_ENHANCED", true),
		TranscribeBaseURL:  envutil.String("TRANSCRIBE_BASE_URL", ""),
		TranscribeAPIKey:   envutil.String("TRANSCRIBE_API_KEY", ""),

		SeparationBaseURL: envutil.String("SEPARATION_BASE_URL", ""),
		SeparationAPIKey:  envutil.String("SEPARATION_API_KEY", ""),
		SeparationModel:   envutil.String("SEPARATION_MODEL", "htdemucs"),

		FontPath:           envutil.String("FONT_PATH", ""),
		StylePresetsPath:   envutil.String("STYLE_PRESETS_PATH", ""),
		ProfanityListPath:  envutil.String("PROFANITY_LIST_PATH", ""),
		FreeTierLogoURL:    envutil.String("FREE_TIER_LOGO_URL", ""),
		GuideVocalLevel:    envutil.Float("GUIDE_VOCAL_LEVEL", 0.3),
		ReferenceTolerance: envutil.Float("REFERENCE_TOLERANCE", 0.15),

		APIKeys:      envutil.List("API_KEYS", nil),
		JWTSecretKey: envutil.String("JWT_SECRET_KEY", ""),
		CORSOrigins:  envutil.List("CORS_ORIGINS", nil),

		MetricsEnabled: envutil.Bool("METRICS_ENABLED", true),
		Otel: observability.OtelConfig{
			Enabled:     envutil.Bool("OTEL_ENABLED", false),
			ServiceName: envutil.String("OTEL_SERVICE_NAME", "karatrack-api"),
			Environment: env,
			Version:     envutil.String("OTEL_SERVICE_VERSION", "dev"),
			Endpoint:    envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:     envutil.String("OTEL_EXPORTER_OTLP_HEADERS", ""),
			Insecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false),
			SampleRatio: envutil.Float("OTEL_SAMPLER_RATIO", 1),
		},
	}
	if cfg.GuideVocalLevel < 0 || cfg.GuideVocalLevel > 1 {
		log.Warn("GUIDE_VOCAL_LEVEL out of range; using 0.3", "value", cfg.GuideVocalLevel)
		cfg.GuideVocalLevel = 0.3
	}
	if cfg.WorkerConcurrency < 1 {
		cfg.WorkerConcurrency = 1
	}
	if cfg.RenderConcurrency < 1 {
		cfg.RenderConcurrency = 1
	}
	if len(cfg.APIKeys) == 0 && cfg.JWTSecretKey == "" {
		log.Warn("API_KEYS and JWT_SECRET_KEY not set; API routes are unauthenticated")
	}
	return cfg
}

// Validate reports settings that make the configured roles unusable.
func (c Config) Validate() error {
	if !c.RunAPI && !c.RunWorker {
		return fmt.Errorf("RUN_API and RUN_WORKER are both false")
	}
	switch c.TranscribeProvider {
	case TranscribeProviderGCPSpeech:
	case TranscribeProviderHTTP:
		if c.RunWorker && c.TranscribeBaseURL == "" {
			return fmt.Errorf("TRANSCRIBE_PROVIDER=http requires TRANSCRIBE_BASE_URL")
		}
	default:
		return fmt.Errorf("invalid TRANSCRIBE_PROVIDER=%q (allowed: %q, %q)", c.TranscribeProvider, TranscribeProviderGCPSpeech, TranscribeProviderHTTP)
	}
	if c.RunWorker && c.SeparationBaseURL == "" {
		return fmt.Errorf("missing env var SEPARATION_BASE_URL")
	}
	// the in-memory queue is only shared inside one process
	if !(c.RunAPI && c.RunWorker) && c.RedisAddr == "" {
		return fmt.Errorf("split API/worker processes require REDIS_ADDR")
	}
	return nil
}

func (c Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}
