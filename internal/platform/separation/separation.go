package separation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yungbote/karatrack-backend/internal/platform/ctxutil"
	"github.com/yungbote/karatrack-backend/internal/platform/httpx"
	"github.com/yungbote/karatrack-backend/internal/platform/logger"
)

// Stems are local paths of the separated tracks. Instrumental is the sum of
// every non-vocal stem.
type Stems struct {
	Vocals       string
	Instrumental string
}

type Client interface {
	Separate(ctx context.Context, audioPath, outDir string) (Stems, error)
}

// Downloader fetches a URL to a local path.
type Downloader interface {
	Download(ctx context.Context, url, dstPath string) error
}

type HTTPConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

// HTTPClient uploads the mix to a demucs-style service:
//
//	POST {base}/v1/separate  multipart{audio, model} -> {vocals_url, instrumental_url}
//
// and downloads both stems into outDir.
type HTTPClient struct {
	log  *logger.Logger
	http *http.Client
	dl   Downloader
	cfg  HTTPConfig
}

func NewHTTPClient(log *logger.Logger, dl Downloader, cfg HTTPConfig) (*HTTPClient, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("separation base url required")
	}
	if dl == nil {
		return nil, fmt.Errorf("separation downloader required")
	}
	if cfg.Model == "" {
		cfg.Model = "htdemucs"
	}
	hc := cfg.Client
	if hc == nil {
		// separation of a full song routinely takes minutes
		hc = &http.Client{Timeout: 20 * time.Minute}
	}
	return &HTTPClient{log: log.With("service", "Separation"), http: hc, dl: dl, cfg: cfg}, nil
}

type separateResponse struct {
	VocalsURL       string `json:"vocals_url"`
	InstrumentalURL string `json:"instrumental_url"`
}

func (c *HTTPClient) Separate(ctx context.Context, audioPath, outDir string) (Stems, error) {
	ctx = ctxutil.Default(ctx)
	f, err := os.Open(audioPath)
	if err != nil {
		return Stems{}, fmt.Errorf("separation: open source: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("audio", filepath.Base(audioPath))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.WriteField("model", c.cfg.Model)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/separate", pr)
	if err != nil {
		return Stems{}, fmt.Errorf("separation: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return Stems{}, fmt.Errorf("separation: %w", err)
	}
	if err := httpx.CheckResponse("separation", resp); err != nil {
		return Stems{}, err
	}
	var out separateResponse
	err = json.NewDecoder(resp.Body).Decode(&out)
	resp.Body.Close()
	if err != nil {
		return Stems{}, fmt.Errorf("separation: decode response: %w", err)
	}
	if out.VocalsURL == "" || out.InstrumentalURL == "" {
		return Stems{}, fmt.Errorf("separation: response missing stem urls")
	}

	stems := Stems{
		Vocals:       filepath.Join(outDir, "vocals.wav"),
		Instrumental: filepath.Join(outDir, "instrumental.wav"),
	}
	if err := c.dl.Download(ctx, out.VocalsURL, stems.Vocals); err != nil {
		return Stems{}, fmt.Errorf("separation: fetch vocals: %w", err)
	}
	if err := c.dl.Download(ctx, out.InstrumentalURL, stems.Instrumental); err != nil {
		return Stems{}, fmt.Errorf("separation: fetch instrumental: %w", err)
	}
	c.log.Info("separation finished", "model", c.cfg.Model, "elapsed_ms", time.Since(start).Milliseconds())
	return stems, nil
}
