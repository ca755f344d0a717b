package app

import (
	"testing"
	"time"

	"github.com/yungbote/karatrack-backend/internal/platform/logger"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig(logger.Nop())
	if cfg.Addr() != ":8080" {
		t.Fatalf("addr: want=:8080 got=%s", cfg.Addr())
	}
	if !cfg.RunAPI || !cfg.RunWorker {
		t.Fatalf("roles: want both got api=%v worker=%v", cfg.RunAPI, cfg.RunWorker)
	}
	if cfg.TranscribeProvider != TranscribeProviderGCPSpeech {
		t.Fatalf("provider: want=%s got=%s", TranscribeProviderGCPSpeech, cfg.TranscribeProvider)
	}
	if cfg.GuideVocalLevel != 0.3 || cfg.ReferenceTolerance != 0.15 {
		t.Fatalf("levels: want=0.3/0.15 got=%v/%v", cfg.GuideVocalLevel, cfg.ReferenceTolerance)
	}
	if cfg.JobTTL != 7*24*time.Hour {
		t.Fatalf("ttl: want=168h got=%v", cfg.JobTTL)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("API_KEYS", "k1, k2")
	t.Setenv("TRANSCRIBE_PROVIDER", "HTTP")
	t.Setenv("GUIDE_VOCAL_LEVEL", "4")
	t.Setenv("WORKER_CONCURRENCY", "0")
	t.Setenv("JOB_TIMEOUT", "90s")

	cfg := LoadConfig(logger.Nop())
	if cfg.Addr() != ":9090" {
		t.Fatalf("addr: want=:9090 got=%s", cfg.Addr())
	}
	if len(cfg.APIKeys) != 2 || cfg.APIKeys[1] != "k2" {
		t.Fatalf("api keys: want=[k1 k2] got=%v", cfg.APIKeys)
	}
	if cfg.TranscribeProvider != TranscribeProviderHTTP {
		t.Fatalf("provider: want=http got=%s", cfg.TranscribeProvider)
	}
	if cfg.GuideVocalLevel != 0.3 {
		t.Fatalf("out of range level: want=0.3 got=%v", cfg.GuideVocalLevel)
	}
	if cfg.WorkerConcurrency != 1 {
		t.Fatalf("concurrency: want=1 got=%d", cfg.WorkerConcurrency)
	}
	if cfg.JobTimeout != 90*time.Second {
		t.Fatalf("timeout: want=90s got=%v", cfg.JobTimeout)
	}
}

func TestConfigValidate(t *testing.T) {
	base := Config{
		RunAPI:             true,
		RunWorker:          true,
		TranscribeProvider: TranscribeProviderGCPSpeech,
		SeparationBaseURL:  "http://sep",
	}
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"ok", func(*Config) {}, false},
		{"no roles", func(c *Config) { c.RunAPI, c.RunWorker = false, false }, true},
		{"bad provider", func(c *Config) { c.TranscribeProvider = "whisper" }, true},
		{"http provider without url", func(c *Config) { c.TranscribeProvider = TranscribeProviderHTTP }, true},
		{"worker without separation", func(c *Config) { c.SeparationBaseURL = "" }, true},
		{"api only without redis", func(c *Config) { c.RunWorker = false }, true},
		{"api only with redis", func(c *Config) { c.RunWorker = false; c.RedisAddr = "redis:6379" }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base
			tc.mutate(&c)
			err := c.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("want err=%v got=%v", tc.wantErr, err)
			}
		})
	}
}
