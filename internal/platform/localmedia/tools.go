package localmedia

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/karatrack-backend/internal/platform/ctxutil"
	"github.com/yungbote/karatrack-backend/internal/platform/httpx"
	"github.com/yungbote/karatrack-backend/internal/platform/logger"
)

// Tools is the glue around ffmpeg/ffprobe and plain HTTP downloads.
//
// REQUIRED BINARIES in worker runtime: ffmpeg, ffprobe.
//
// Calls block until the subprocess exits and are meant for worker jobs, not
// request handlers. Every call honours ctx cancellation.
type Tools interface {
	AssertReady(ctx context.Context) error

	Download(ctx context.Context, url, dstPath string) error
	ProbeDuration(ctx context.Context, path string) (float64, error)

	// PadAudio prepends lead seconds of silence to every channel.
	PadAudio(ctx context.Context, inPath, outPath string, lead float64) error
	// MixGuideVocal lays vocals at level (0..1) under the instrumental.
	MixGuideVocal(ctx context.Context, instrumentalPath, vocalsPath, outPath string, level float64) error
	// TranscodeForSpeech writes mono 16 kHz FLAC.
	TranscodeForSpeech(ctx context.Context, inPath, outPath string) error

	EncodeFrameSequence(ctx context.Context, opts EncodeOptions) error
}

// EncodeOptions describe an image-sequence + audio mux.
type EncodeOptions struct {
	FramesDir    string
	Pattern      string // printf-style, e.g. frame_%06d.png
	FPS          int
	AudioPath    string
	OutPath      string
	Preset       string
	CRF          int
	AudioBitrate string
}

func (o EncodeOptions) withDefaults() EncodeOptions {
	if o.Pattern == "" {
		o.Pattern = "frame_%06d.png"
	}
	if o.FPS <= 0 {
		o.FPS = 30
	}
	if o.Preset == "" {
		o.Preset = "medium"
	}
	if o.CRF <= 0 {
		o.CRF = 23
	}
	if o.AudioBitrate == "" {
		o.AudioBitrate = "192k"
	}
	return o
}

type tools struct {
	log *logger.Logger

	ffmpegPath  string
	ffprobePath string
	http        *http.Client

	defaultTimeout time.Duration
	maxDownload    int64
}

type Option func(*tools)

func WithHTTPClient(c *http.Client) Option { return func(t *tools) { t.http = c } }
func WithTimeout(d time.Duration) Option   { return func(t *tools) { t.defaultTimeout = d } }

func New(log *logger.Logger, opts ...Option) Tools {
	t := &tools{
		log:            log.With("service", "MediaTools"),
		ffmpegPath:     "ffmpeg",
		ffprobePath:    "ffprobe",
		http:           &http.Client{Timeout: 10 * time.Minute},
		defaultTimeout: 30 * time.Minute,
		maxDownload:    1 << 30,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (m *tools) AssertReady(ctx context.Context) error {
	for _, bin := range []string{m.ffmpegPath, m.ffprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("missing required binary %q in PATH: %w", bin, err)
		}
	}
	return nil
}

func (m *tools) Download(ctx context.Context, url, dstPath string) error {
	ctx = ctxutil.Default(ctx)
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("download: url required")
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("download: mkdir: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("download: build request: %w", err)
	}
	resp, err := m.http.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	if err := httpx.CheckResponse("download", resp); err != nil {
		return err
	}
	defer resp.Body.Close()

	f, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("download: create: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(resp.Body, m.maxDownload+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > m.maxDownload {
		err = fmt.Errorf("exceeds %d bytes", m.maxDownload)
	}
	if err != nil {
		_ = os.Remove(dstPath)
		return fmt.Errorf("download: write: %w", err)
	}
	m.log.Debug("downloaded", "url", url, "bytes", n)
	return nil
}

func (m *tools) ProbeDuration(ctx context.Context, path string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), 30*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, m.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseProbeDuration(string(out))
}

func parseProbeDuration(out string) (float64, error) {
	s := strings.TrimSpace(out)
	d, err := strconv.ParseFloat(s, 64)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("ffprobe: unexpected duration %q", s)
	}
	return d, nil
}

func (m *tools) PadAudio(ctx context.Context, inPath, outPath string, lead float64) error {
	return m.ffmpeg(ctx, "pad audio", padArgs(inPath, outPath, lead))
}

func padArgs(in, out string, lead float64) []string {
	ms := int(lead*1000 + 0.5)
	return []string{"-y", "-i", in, "-af", fmt.Sprintf("adelay=%d:all=1", ms), out}
}

func (m *tools) MixGuideVocal(ctx context.Context, instrumentalPath, vocalsPath, outPath string, level float64) error {
	return m.ffmpeg(ctx, "mix guide vocal", mixArgs(instrumentalPath, vocalsPath, outPath, level))
}

func mixArgs(inst, vocals, out string, level float64) []string {
	filter := fmt.Sprintf("[1:a]volume=%.2f[guide];[0:a][guide]amix=inputs=2:duration=longest:normalize=0[mix]", level)
	return []string{"-y", "-i", inst, "-i", vocals, "-filter_complex", filter, "-map", "[mix]", out}
}

func (m *tools) TranscodeForSpeech(ctx context.Context, inPath, outPath string) error {
	return m.ffmpeg(ctx, "transcode for speech", []string{"-y", "-i", inPath, "-vn", "-ac", "1", "-ar", "16000", "-c:a", "flac", outPath})
}

func (m *tools) EncodeFrameSequence(ctx context.Context, opts EncodeOptions) error {
	opts = opts.withDefaults()
	frames, err := globSorted(opts.FramesDir, `^frame_\d+\.png$`)
	if err != nil {
		return fmt.Errorf("encode: scan frames: %w", err)
	}
	if len(frames) == 0 {
		return fmt.Errorf("encode: no frames in %s", opts.FramesDir)
	}
	return m.ffmpeg(ctx, "encode video", encodeArgs(opts))
}

func encodeArgs(o EncodeOptions) []string {
	return []string{
		"-y",
		"-framerate", strconv.Itoa(o.FPS),
		"-i", filepath.Join(o.FramesDir, o.Pattern),
		"-i", o.AudioPath,
		"-c:v", "libx264",
		"-preset", o.Preset,
		"-crf", strconv.Itoa(o.CRF),
		"-c:a", "aac",
		"-b:a", o.AudioBitrate,
		"-pix_fmt", "yuv420p",
		"-shortest",
		o.OutPath,
	}
}

func (m *tools) ffmpeg(ctx context.Context, what string, args []string) error {
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), m.defaultTimeout)
	defer cancel()
	start := time.Now()
	out, err := exec.CommandContext(ctx, m.ffmpegPath, args...).CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg %s: %w", what, ctx.Err())
		}
		return fmt.Errorf("ffmpeg %s failed: %w; out=%s", what, err, tail(out, 2048))
	}
	m.log.Debug("ffmpeg finished", "step", what, "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return strings.TrimSpace(string(b))
}

func globSorted(dir string, pattern string) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if re.MatchString(strings.ToLower(e.Name())) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
