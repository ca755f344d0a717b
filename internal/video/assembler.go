package video

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/karatrack-backend/internal/observability"
	"github.com/yungbote/karatrack-backend/internal/platform/localmedia"
	"github.com/yungbote/karatrack-backend/internal/platform/logger"
	"github.com/yungbote/karatrack-backend/internal/render"
)

const FramePattern = "frame_%06d.png"

func FrameName(i int) string { return fmt.Sprintf(FramePattern, i) }

// TotalFrames is round(duration * fps); never negative.
func TotalFrames(duration float64, fps int) int {
	if duration <= 0 || fps <= 0 {
		return 0
	}
	return int(math.Round(duration * float64(fps)))
}

// Encoder muxes a numbered PNG sequence with an audio track.
type Encoder interface {
	EncodeFrameSequence(ctx context.Context, opts localmedia.EncodeOptions) error
}

// Job describes one video. Duration is the full video length in seconds,
// intro included.
type Job struct {
	Renderer  *render.Renderer
	Scene     *render.Scene
	Style     *render.Style
	Quality   Quality
	FPS       int
	Duration  float64
	AudioPath string
	OutPath   string
	// WorkDir is where the frame directory is created; empty means os.TempDir.
	WorkDir string
	// Progress, when set, is called from render goroutines after each frame.
	Progress func(done, total int)
}

type Result struct {
	Path   string
	Frames int
	Width  int
	Height int
}

type Assembler struct {
	log         *logger.Logger
	enc         Encoder
	concurrency int
}

// NewAssembler renders with up to concurrency goroutines; <= 0 means
// GOMAXPROCS.
func NewAssembler(log *logger.Logger, enc Encoder, concurrency int) *Assembler {
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	return &Assembler{log: log.With("service", "VideoAssembler"), enc: enc, concurrency: concurrency}
}

func (a *Assembler) Assemble(ctx context.Context, job Job) (Result, error) {
	if job.Renderer == nil || job.Scene == nil || job.Style == nil {
		return Result{}, fmt.Errorf("assemble: renderer, scene and style required")
	}
	if job.FPS <= 0 {
		job.FPS = DefaultFPS
	}
	res := job.Quality.Resolution()
	total := TotalFrames(job.Duration, job.FPS)
	if total == 0 {
		return Result{}, fmt.Errorf("assemble: video duration %.3fs yields no frames", job.Duration)
	}

	dir, err := os.MkdirTemp(job.WorkDir, "frames-")
	if err != nil {
		return Result{}, fmt.Errorf("assemble: frames dir: %w", err)
	}
	defer os.RemoveAll(dir)

	start := time.Now()
	if err := a.renderFrames(ctx, job, res, total, dir); err != nil {
		return Result{}, err
	}
	observability.Current().AddFrames(total)
	a.log.Info("frames rendered",
		"frames", total,
		"width", res.Width,
		"height", res.Height,
		"mode", job.Scene.Mode,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if err := a.enc.EncodeFrameSequence(ctx, localmedia.EncodeOptions{
		FramesDir: dir,
		Pattern:   FramePattern,
		FPS:       job.FPS,
		AudioPath: job.AudioPath,
		OutPath:   job.OutPath,
	}); err != nil {
		return Result{}, fmt.Errorf("assemble: encode: %w", err)
	}
	return Result{Path: job.OutPath, Frames: total, Width: res.Width, Height: res.Height}, nil
}

// renderFrames splits frame indices across goroutines by stride; each
// goroutine owns one FrameWorker.
func (a *Assembler) renderFrames(ctx context.Context, job Job, res Resolution, total int, dir string) error {
	n := min(a.concurrency, total)
	g, gctx := errgroup.WithContext(ctx)
	var done atomic.Int64

	for k := 0; k < n; k++ {
		g.Go(func() error {
			w := job.Renderer.NewWorker()
			enc := png.Encoder{CompressionLevel: png.BestSpeed}
			for i := k; i < total; i += n {
				if err := gctx.Err(); err != nil {
					return err
				}
				img := w.Render(render.RenderContext{
					Instant: float64(i) / float64(job.FPS),
					Width:   res.Width,
					Height:  res.Height,
					Style:   job.Style,
					Scene:   job.Scene,
				})
				if err := writePNG(&enc, filepath.Join(dir, FrameName(i)), img); err != nil {
					return fmt.Errorf("frame %d: %w", i, err)
				}
				if job.Progress != nil {
					job.Progress(int(done.Add(1)), total)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("assemble: render: %w", err)
	}
	return nil
}

func writePNG(enc *png.Encoder, path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := enc.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
