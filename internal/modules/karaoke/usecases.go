package karaoke

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/yungbote/karatrack-backend/internal/lyrics"
	"github.com/yungbote/karatrack-backend/internal/modules/karaoke/steps"
	"github.com/yungbote/karatrack-backend/internal/platform/gcp"
	"github.com/yungbote/karatrack-backend/internal/platform/localmedia"
	"github.com/yungbote/karatrack-backend/internal/platform/logger"
	"github.com/yungbote/karatrack-backend/internal/platform/separation"
	"github.com/yungbote/karatrack-backend/internal/platform/transcribe"
	"github.com/yungbote/karatrack-backend/internal/render"
	"github.com/yungbote/karatrack-backend/internal/video"
)

type UsecasesDeps struct {
	Log *logger.Logger

	Media       localmedia.Tools
	Separator   separation.Client
	Transcriber transcribe.Transcriber
	Bucket      gcp.BucketService
	Assembler   *video.Assembler

	Fonts     *render.Fonts
	Layout    render.Layout
	Presets   render.StylePresets
	Profanity *lyrics.ProfanityFilter

	// WorkRoot holds per-job scratch directories; empty means os.TempDir.
	WorkRoot string

	HTTP               *http.Client
	FreeLogoURL        string
	GuideLevel         float64
	ReferenceTolerance float64
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases { return Usecases{deps: deps} }

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

func (u Usecases) Presets() render.StylePresets { return u.deps.Presets }

type (
	SeparateInput    = steps.SeparateInput
	SeparateOutput   = steps.SeparateOutput
	TranscribeInput  = steps.TranscribeInput
	TranscribeOutput = steps.TranscribeOutput
	RenderInput      = steps.RenderInput
	RenderOutput     = steps.RenderOutput
	Publisher        = steps.Publisher
	ProgressFunc     = steps.ProgressFunc
)

func (u Usecases) NewPublisher(projectID string) *Publisher {
	return steps.NewPublisher(u.deps.Log, u.deps.Bucket, projectID)
}

// WorkDir creates a scratch directory owned by one job. The returned func
// removes it.
func (u Usecases) WorkDir(jobID string) (string, func(), error) {
	if u.deps.WorkRoot != "" {
		if err := os.MkdirAll(u.deps.WorkRoot, 0o755); err != nil {
			return "", nil, fmt.Errorf("work root: %w", err)
		}
	}
	dir, err := os.MkdirTemp(u.deps.WorkRoot, "job-"+jobID+"-")
	if err != nil {
		return "", nil, fmt.Errorf("work dir: %w", err)
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil && u.deps.Log != nil {
			u.deps.Log.Warn("work dir cleanup failed", "dir", dir, "error", err)
		}
	}, nil
}

func (u Usecases) IntroDuration() float64 { return u.deps.Layout.IntroDuration }

// CleanLyrics applies the profanity filter to a supplied timeline.
func (u Usecases) CleanLyrics(tl lyrics.Timeline) lyrics.Timeline {
	f := u.deps.Profanity
	if f == nil {
		f = lyrics.NewProfanityFilter()
	}
	return f.Apply(tl)
}

// Analyze reports the gaps of tl and the display mode auto selection would
// pick for a song of the given duration.
func (u Usecases) Analyze(tl lyrics.Timeline, songDuration float64) ([]lyrics.Gap, lyrics.DisplayMode) {
	gaps := lyrics.DetectGaps(tl, u.deps.Layout.IntroGapSeconds, u.deps.Layout.MidGapSeconds)
	if gaps == nil {
		gaps = []lyrics.Gap{}
	}
	return gaps, lyrics.SelectMode(tl, songDuration, lyrics.ModeAuto)
}

// Fetch downloads the caller's audio into workDir.
func (u Usecases) Fetch(ctx context.Context, url, workDir string) (string, error) {
	dst := filepath.Join(workDir, "source"+sourceExt(url))
	if err := u.deps.Media.Download(ctx, url, dst); err != nil {
		return "", fmt.Errorf("fetch source: %w", err)
	}
	return dst, nil
}

// Probe returns the duration of a local audio file in seconds.
func (u Usecases) Probe(ctx context.Context, path string) (float64, error) {
	d, err := u.deps.Media.ProbeDuration(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("probe audio: %w", err)
	}
	return d, nil
}

// PadForIntro writes a copy of audio that starts with the intro's silence
// and returns it with the unpadded duration.
func (u Usecases) PadForIntro(ctx context.Context, audioPath, workDir string) (string, float64, error) {
	d, err := u.Probe(ctx, audioPath)
	if err != nil {
		return "", 0, err
	}
	out := filepath.Join(workDir, "video_audio.wav")
	if err := u.deps.Media.PadAudio(ctx, audioPath, out, u.deps.Layout.IntroDuration); err != nil {
		return "", 0, fmt.Errorf("pad audio: %w", err)
	}
	return out, d, nil
}

func (u Usecases) Separate(ctx context.Context, in SeparateInput) (SeparateOutput, error) {
	if in.GuideLevel == 0 {
		in.GuideLevel = u.deps.GuideLevel
	}
	return steps.Separate(ctx, steps.SeparateDeps{
		Log:       u.deps.Log,
		Media:     u.deps.Media,
		Separator: u.deps.Separator,
	}, in)
}

func (u Usecases) Transcribe(ctx context.Context, pub *Publisher, in TranscribeInput) (TranscribeOutput, error) {
	if in.Tolerance == 0 {
		in.Tolerance = u.deps.ReferenceTolerance
	}
	return steps.TranscribeLyrics(ctx, steps.TranscribeDeps{
		Log:         u.deps.Log,
		Media:       u.deps.Media,
		Transcriber: u.deps.Transcriber,
		Bucket:      u.deps.Bucket,
		Publisher:   pub,
		Profanity:   u.deps.Profanity,
	}, in)
}

func (u Usecases) Render(ctx context.Context, in RenderInput) (RenderOutput, error) {
	return steps.RenderVideo(ctx, steps.RenderDeps{
		Log:         u.deps.Log,
		Fonts:       u.deps.Fonts,
		Layout:      u.deps.Layout,
		Presets:     u.deps.Presets,
		Assembler:   u.deps.Assembler,
		HTTP:        u.deps.HTTP,
		FreeLogoURL: u.deps.FreeLogoURL,
	}, in)
}

func sourceExt(url string) string {
	ext := filepath.Ext(stripQuery(url))
	switch ext {
	case ".mp3", ".wav", ".flac", ".m4a", ".ogg", ".aac":
		return ext
	}
	return ".audio"
}

func stripQuery(u string) string {
	for i, r := range u {
		if r == '?' || r == '#' {
			return u[:i]
		}
	}
	return u
}
