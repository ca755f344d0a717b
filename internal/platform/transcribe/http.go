package transcribe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/karatrack-backend/internal/lyrics"
	"github.com/yungbote/karatrack-backend/internal/platform/ctxutil"
	"github.com/yungbote/karatrack-backend/internal/platform/httpx"
	"github.com/yungbote/karatrack-backend/internal/platform/logger"
)

const (
	DefaultPollInterval = 3 * time.Second
	DefaultMaxPolls     = 400
)

var ErrPollLimit = errors.New("transcription did not finish within the poll limit")

type HTTPConfig struct {
	BaseURL      string
	APIKey       string
	Language     string
	PollInterval time.Duration
	MaxPolls     int
	Client       *http.Client
}

// HTTPClient talks to an asynchronous transcription job API:
//
//	POST {base}/v1/transcriptions       {audio_url, language, word_timestamps}
//	GET  {base}/v1/transcriptions/{id}  {status, words, error}
//
// Status is polled until completed or error, at most MaxPolls times.
type HTTPClient struct {
	log  *logger.Logger
	http *http.Client
	cfg  HTTPConfig
}

func NewHTTPClient(log *logger.Logger, cfg HTTPConfig) (*HTTPClient, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("transcription base url required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = DefaultMaxPolls
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPClient{log: log.With("service", "TranscribeHTTP"), http: hc, cfg: cfg}, nil
}

type createRequest struct {
	AudioURL       string `json:"audio_url"`
	Language       string `json:"language"`
	WordTimestamps bool   `json:"word_timestamps"`
}

type jobResponse struct {
	ID     string        `json:"id"`
	Status string        `json:"status"`
	Words  []lyrics.Word `json:"words"`
	Error  string        `json:"error"`
}

func (c *HTTPClient) headers() map[string]string {
	if c.cfg.APIKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
}

func (c *HTTPClient) Transcribe(ctx context.Context, audio Audio) (lyrics.Timeline, error) {
	ctx = ctxutil.Default(ctx)
	if strings.TrimSpace(audio.URL) == "" {
		return nil, fmt.Errorf("transcribe: audio url required")
	}
	var created jobResponse
	err := httpx.DoJSON(ctx, c.http, "transcribe", http.MethodPost, c.cfg.BaseURL+"/v1/transcriptions", c.headers(),
		createRequest{AudioURL: audio.URL, Language: c.cfg.Language, WordTimestamps: true}, &created)
	if err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, fmt.Errorf("transcribe: provider returned no job id")
	}
	c.log.Info("transcription submitted", "transcript_id", created.ID)

	statusURL := c.cfg.BaseURL + "/v1/transcriptions/" + url.PathEscape(created.ID)
	timer := time.NewTimer(c.cfg.PollInterval)
	defer timer.Stop()
	for poll := 1; poll <= c.cfg.MaxPolls; poll++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
		var job jobResponse
		if err := httpx.DoJSON(ctx, c.http, "transcribe", http.MethodGet, statusURL, c.headers(), nil, &job); err != nil {
			return nil, err
		}
		switch strings.ToLower(job.Status) {
		case "completed":
			c.log.Info("transcription completed", "transcript_id", created.ID, "polls", poll, "words", len(job.Words))
			return lyrics.Timeline(job.Words).Sorted(), nil
		case "error", "failed":
			msg := job.Error
			if msg == "" {
				msg = "unknown provider error"
			}
			return nil, fmt.Errorf("transcribe: %s", msg)
		}
		timer.Reset(c.cfg.PollInterval)
	}
	return nil, fmt.Errorf("transcribe %s after %d polls: %w", created.ID, c.cfg.MaxPolls, ErrPollLimit)
}
