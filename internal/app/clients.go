package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/yungbote/karatrack-backend/internal/platform/gcp"
	"github.com/yungbote/karatrack-backend/internal/platform/localmedia"
	"github.com/yungbote/karatrack-backend/internal/platform/logger"
	"github.com/yungbote/karatrack-backend/internal/platform/separation"
	"github.com/yungbote/karatrack-backend/internal/platform/transcribe"
)

type Clients struct {
	HTTP        *http.Client
	Bucket      gcp.BucketService
	Media       localmedia.Tools
	Separator   separation.Client
	Transcriber transcribe.Transcriber

	closers []func() error
}

// wireClients builds outbound clients. Worker-only clients are skipped when
// the process does not run the worker.
func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	out := Clients{HTTP: &http.Client{Timeout: 10 * time.Minute}}

	bucket, err := gcp.NewBucketService(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init bucket: %w", err)
	}
	out.Bucket = bucket
	out.closers = append(out.closers, bucket.Close)

	if !cfg.RunWorker {
		return out, nil
	}

	out.Media = localmedia.New(log, localmedia.WithHTTPClient(out.HTTP))
	if err := out.Media.AssertReady(context.Background()); err != nil {
		out.Close()
		return Clients{}, err
	}

	sep, err := separation.NewHTTPClient(log, out.Media, separation.HTTPConfig{
		BaseURL: cfg.SeparationBaseURL,
		APIKey:  cfg.SeparationAPIKey,
		Model:   cfg.SeparationModel,
		Client:  out.HTTP,
	})
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init separation: %w", err)
	}
	out.Separator = sep

	switch cfg.TranscribeProvider {
	case TranscribeProviderHTTP:
		tr, err := transcribe.NewHTTPClient(log, transcribe.HTTPConfig{
			BaseURL:  cfg.TranscribeBaseURL,
			APIKey:   cfg.TranscribeAPIKey,
			Language: cfg.SpeechLanguage,
			Client:   out.HTTP,
		})
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init transcriber: %w", err)
		}
		out.Transcriber = tr
	default:
		sp, err := gcp.NewSpeech(log, gcp.SpeechConfig{
			LanguageCode: cfg.SpeechLanguage,
			Model:        cfg.SpeechModel,
			UseEnhanced:  cfg.SpeechUseEnhanced,
		})
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init speech: %w", err)
		}
		out.Transcriber = sp
		out.closers = append(out.closers, sp.Close)
	}
	log.Info("Clients ready", "transcribe_provider", cfg.TranscribeProvider, "separation_model", cfg.SeparationModel)
	return out, nil
}

func (c Clients) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i]()
	}
}
