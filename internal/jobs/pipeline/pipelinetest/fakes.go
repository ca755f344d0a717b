// Package pipelinetest provides in-process stand-ins for the media, storage,
// separation and speech backends so pipelines can run end to end in tests.
package pipelinetest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/karatrack-backend/internal/data/repos"
	"github.com/yungbote/karatrack-backend/internal/domain"
	jobrt "github.com/yungbote/karatrack-backend/internal/jobs/runtime"
	"github.com/yungbote/karatrack-backend/internal/lyrics"
	karaokemod "github.com/yungbote/karatrack-backend/internal/modules/karaoke"
	"github.com/yungbote/karatrack-backend/internal/platform/localmedia"
	"github.com/yungbote/karatrack-backend/internal/platform/logger"
	"github.com/yungbote/karatrack-backend/internal/platform/separation"
	"github.com/yungbote/karatrack-backend/internal/platform/transcribe"
	"github.com/yungbote/karatrack-backend/internal/render"
	"github.com/yungbote/karatrack-backend/internal/video"
)

// Media fakes ffmpeg by writing placeholder files.
type Media struct {
	Duration    float64
	DownloadErr error

	mu       sync.Mutex
	Padded   []float64
	Guides   []float64
	Encoded  []localmedia.EncodeOptions
	FramesAt []int
}

func (m *Media) AssertReady(ctx context.Context) error { return nil }

func (m *Media) Download(ctx context.Context, url, dst string) error {
	if m.DownloadErr != nil {
		return m.DownloadErr
	}
	return touch(dst)
}

func (m *Media) ProbeDuration(ctx context.Context, path string) (float64, error) {
	return m.Duration, nil
}

func (m *Media) PadAudio(ctx context.Context, in, out string, lead float64) error {
	m.mu.Lock()
	m.Padded = append(m.Padded, lead)
	m.mu.Unlock()
	return touch(out)
}

func (m *Media) MixGuideVocal(ctx context.Context, inst, vocals, out string, level float64) error {
	m.mu.Lock()
	m.Guides = append(m.Guides, level)
	m.mu.Unlock()
	return touch(out)
}

func (m *Media) TranscodeForSpeech(ctx context.Context, in, out string) error { return touch(out) }

func (m *Media) EncodeFrameSequence(ctx context.Context, opts localmedia.EncodeOptions) error {
	entries, err := os.ReadDir(opts.FramesDir)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.Encoded = append(m.Encoded, opts)
	m.FramesAt = append(m.FramesAt, len(entries))
	m.mu.Unlock()
	return touch(opts.OutPath)
}

type Separator struct {
	Err   error
	Calls int
}

func (s *Separator) Separate(ctx context.Context, audioPath, outDir string) (separation.Stems, error) {
	s.Calls++
	if s.Err != nil {
		return separation.Stems{}, s.Err
	}
	st := separation.Stems{
		Vocals:       filepath.Join(outDir, "vocals.wav"),
		Instrumental: filepath.Join(outDir, "no_vocals.wav"),
	}
	if err := touch(st.Vocals); err != nil {
		return st, err
	}
	return st, touch(st.Instrumental)
}

type Transcriber struct {
	Words lyrics.Timeline
	Err   error

	mu  sync.Mutex
	Got []transcribe.Audio
}

func (t *Transcriber) Transcribe(ctx context.Context, audio transcribe.Audio) (lyrics.Timeline, error) {
	t.mu.Lock()
	t.Got = append(t.Got, audio)
	t.mu.Unlock()
	if t.Err != nil {
		return nil, t.Err
	}
	return append(lyrics.Timeline(nil), t.Words...), nil
}

// Bucket keeps uploaded keys in memory. FailKey makes one upload fail.
type Bucket struct {
	FailKey string

	mu      sync.Mutex
	objects map[string]bool
	deleted []string
}

func (b *Bucket) UploadFile(ctx context.Context, key string, r io.Reader) error {
	if key == b.FailKey {
		return fmt.Errorf("upload %s refused", key)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.objects == nil {
		b.objects = map[string]bool{}
	}
	b.objects[key] = true
	return nil
}

func (b *Bucket) UploadLocalFile(ctx context.Context, key, localPath string) (string, error) {
	if _, err := os.Stat(localPath); err != nil {
		return "", err
	}
	if err := b.UploadFile(ctx, key, nil); err != nil {
		return "", err
	}
	return b.GetPublicURL(key), nil
}

func (b *Bucket) DeleteFile(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	b.deleted = append(b.deleted, key)
	return nil
}

func (b *Bucket) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []string{}
	for k := range b.objects {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (b *Bucket) DeletePrefix(ctx context.Context, prefix string) error {
	keys, _ := b.ListKeys(ctx, prefix)
	for _, k := range keys {
		_ = b.DeleteFile(ctx, k)
	}
	return nil
}

func (b *Bucket) GetPublicURL(key string) string { return "https://cdn.test/" + key }
func (b *Bucket) GCSURI(key string) string       { return "gs://test/" + key }
func (b *Bucket) Close() error                   { return nil }

// Keys lists the objects currently stored.
func (b *Bucket) Keys() []string {
	keys, _ := b.ListKeys(context.Background(), "")
	return keys
}

// Notifier records terminal notifications.
type Notifier struct {
	mu     sync.Mutex
	Stages []string
	Failed []string
	Done   []domain.JobStatus
}

func (n *Notifier) JobProgress(job *domain.JobRun, stage string, pct int, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Stages = append(n.Stages, stage)
}

func (n *Notifier) JobFailed(job *domain.JobRun, stage, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Failed = append(n.Failed, stage+": "+msg)
}

func (n *Notifier) JobDone(job *domain.JobRun) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Done = append(n.Done, job.Status)
}

// Env bundles the fakes behind one karaoke.Usecases.
type Env struct {
	Media       *Media
	Separator   *Separator
	Transcriber *Transcriber
	Bucket      *Bucket
	Repo        repos.JobRunRepo
	Notify      *Notifier
	Log         *logger.Logger
}

// NewEnv returns fakes describing a 1.5s song with a short intro so a full
// render stays to a few dozen 720p frames.
func NewEnv(tb testing.TB) *Env {
	tb.Helper()
	repo := repos.NewMemoryJobRunRepo(16)
	tb.Cleanup(func() { _ = repo.Close() })
	return &Env{
		Media:     &Media{Duration: 1.5},
		Separator: &Separator{},
		Transcriber: &Transcriber{Words: lyrics.Timeline{
			{Text: "hello", Start: 0.1, End: 0.4},
			{Text: "damn", Start: 0.5, End: 0.8},
			{Text: "world", Start: 0.9, End: 1.3},
		}},
		Bucket: &Bucket{},
		Repo:   repo,
		Notify: &Notifier{},
		Log:    logger.Nop(),
	}
}

func (e *Env) Usecases(tb testing.TB) karaokemod.Usecases {
	tb.Helper()
	fonts, err := render.LoadFonts("")
	if err != nil {
		tb.Fatalf("LoadFonts: %v", err)
	}
	layout := render.DefaultLayout()
	layout.IntroDuration = 0.5
	return karaokemod.New(karaokemod.UsecasesDeps{
		Log:         e.Log,
		Media:       e.Media,
		Separator:   e.Separator,
		Transcriber: e.Transcriber,
		Bucket:      e.Bucket,
		Assembler:   video.NewAssembler(e.Log, e.Media, 2),
		Fonts:       fonts,
		Layout:      layout,
		Presets:     render.StylePresets{},
		Profanity:   lyrics.NewProfanityFilter(),
		WorkRoot:    tb.TempDir(),
	})
}

// Claim enqueues a job with payload and claims it, the way the worker does.
func (e *Env) Claim(tb testing.TB, jobType domain.JobType, payload any) *jobrt.Context {
	tb.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		tb.Fatalf("marshal payload: %v", err)
	}
	ctx := context.Background()
	job := &domain.JobRun{
		ID:        uuid.New(),
		ProjectID: "proj-1",
		JobType:   jobType,
		Status:    domain.JobStatusQueued,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.Repo.Create(ctx, job); err != nil {
		tb.Fatalf("Create: %v", err)
	}
	claimed, err := e.Repo.ClaimNext(ctx, time.Second)
	if err != nil || claimed == nil {
		tb.Fatalf("ClaimNext: %v %v", claimed, err)
	}
	return jobrt.NewContext(ctx, claimed, e.Repo, e.Notify)
}

// Stored reloads the job record.
func (e *Env) Stored(tb testing.TB, id uuid.UUID) *domain.JobRun {
	tb.Helper()
	j, err := e.Repo.GetByID(context.Background(), id)
	if err != nil {
		tb.Fatalf("GetByID: %v", err)
	}
	return j
}

func touch(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("x"), 0o644)
}
