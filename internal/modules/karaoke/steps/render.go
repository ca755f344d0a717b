package steps

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/yungbote/karatrack-backend/internal/domain"
	"github.com/yungbote/karatrack-backend/internal/lyrics"
	"github.com/yungbote/karatrack-backend/internal/platform/logger"
	"github.com/yungbote/karatrack-backend/internal/render"
	"github.com/yungbote/karatrack-backend/internal/video"
)

type RenderDeps struct {
	Log       *logger.Logger
	Fonts     *render.Fonts
	Layout    render.Layout
	Presets   render.StylePresets
	Assembler *video.Assembler
	// HTTP fetches watermark logos.
	HTTP *http.Client
	// FreeLogoURL is the house logo drawn for the free tier.
	FreeLogoURL string
}

type RenderInput struct {
	Timeline lyrics.Timeline
	// AudioPath already starts with Layout.IntroDuration seconds of lead-in.
	AudioPath string
	// SongDuration excludes the intro.
	SongDuration float64
	Presentation domain.Presentation
	WorkDir      string
	Progress     ProgressFunc
	// ProgressFrom..ProgressTo is the job-wide range frame progress maps to.
	ProgressFrom int
	ProgressTo   int
}

type RenderOutput struct {
	VideoPath   string             `json:"-"`
	Mode        lyrics.DisplayMode `json:"display_mode"`
	Quality     video.Quality      `json:"video_quality"`
	Width       int                `json:"width"`
	Height      int                `json:"height"`
	Frames      int                `json:"frames"`
	DurationSec float64            `json:"duration_seconds"`
	Gaps        []lyrics.Gap       `json:"gaps"`
}

func RenderVideo(ctx context.Context, deps RenderDeps, in RenderInput) (RenderOutput, error) {
	out := RenderOutput{}
	if deps.Fonts == nil || deps.Assembler == nil {
		return out, fmt.Errorf("render: missing deps")
	}
	p := in.Presentation
	style, err := render.ParseStyle(p.Style, deps.Presets)
	if err != nil {
		return out, &domain.InputError{Field: "style", Reason: err.Error()}
	}
	requested, err := lyrics.ParseDisplayMode(p.DisplayMode)
	if err != nil {
		return out, &domain.InputError{Field: "display_mode", Reason: err.Error()}
	}

	tl := in.Timeline
	out.Mode = lyrics.SelectMode(tl, in.SongDuration, requested)
	out.Quality = video.ParseQuality(p.VideoQuality)

	marks := render.NewWatermarkCache(deps.HTTP)
	wm := watermarkFor(p, deps.FreeLogoURL)
	if err := marks.Prefetch(ctx, wm); err != nil {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		// the overlay degrades to text-only (free) or nothing (studio)
		if deps.Log != nil {
			deps.Log.Warn("watermark logo unavailable", "tier", wm.Tier, "logo_url", wm.LogoURL, "error", err)
		}
	}

	scene := render.NewScene(tl, nil, out.Mode, in.SongDuration, p.Track, wm, deps.Layout)
	out.Gaps = scene.Gaps
	renderer := render.NewRenderer(deps.Layout, deps.Fonts, marks)

	out.DurationSec = deps.Layout.IntroDuration + in.SongDuration
	out.VideoPath = filepath.Join(in.WorkDir, "video.mp4")
	span := in.ProgressTo - in.ProgressFrom
	var (
		mu      sync.Mutex
		lastPct = -1
	)
	res, err := deps.Assembler.Assemble(ctx, video.Job{
		Renderer:  renderer,
		Scene:     scene,
		Style:     &style,
		Quality:   out.Quality,
		FPS:       video.DefaultFPS,
		Duration:  out.DurationSec,
		AudioPath: in.AudioPath,
		OutPath:   out.VideoPath,
		WorkDir:   in.WorkDir,
		Progress: func(done, total int) {
			if in.Progress == nil || span <= 0 {
				return
			}
			pct := in.ProgressFrom + span*done/total
			mu.Lock()
			defer mu.Unlock()
			// coarse steps keep job-store writes rare
			if pct > lastPct && done%max(1, total/20) == 0 {
				lastPct = pct
				in.Progress.report("render", pct, fmt.Sprintf("Rendered %d/%d frames", done, total))
			}
		},
	})
	if err != nil {
		return out, fmt.Errorf("render: %w", err)
	}
	out.Frames = res.Frames
	out.Width = res.Width
	out.Height = res.Height
	return out, nil
}

func watermarkFor(p domain.Presentation, freeLogo string) render.Watermark {
	wm := render.Watermark{Tier: render.Tier(strings.ToLower(strings.TrimSpace(p.Tier)))}
	switch wm.Tier {
	case render.TierFree:
		wm.LogoURL = freeLogo
	case render.TierStudio:
		wm.LogoURL = p.LogoURL
	}
	return wm
}
