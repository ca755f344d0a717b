package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/karatrack-backend/internal/data/repos"
	"github.com/yungbote/karatrack-backend/internal/domain"
)

type recordingNotifier struct {
	mu       sync.Mutex
	progress []string
	failed   []string
	done     []domain.JobStatus
}

func (n *recordingNotifier) JobProgress(job *domain.JobRun, stage string, pct int, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.progress = append(n.progress, stage)
}

func (n *recordingNotifier) JobFailed(job *domain.JobRun, stage, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, msg)
}

func (n *recordingNotifier) JobDone(job *domain.JobRun) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.done = append(n.done, job.Status)
}

func claimedJob(t *testing.T, repo repos.JobRunRepo, payload string) *domain.JobRun {
	t.Helper()
	job := &domain.JobRun{
		ID:        uuid.New(),
		ProjectID: "p",
		JobType:   domain.JobTypeLyricsTranscribe,
		Status:    domain.JobStatusQueued,
		Payload:   []byte(payload),
		CreatedAt: time.Now(),
	}
	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.ClaimNext(context.Background(), time.Second)
	if err != nil || got == nil {
		t.Fatalf("ClaimNext: %v %v", got, err)
	}
	return got
}

func TestContextSucceed(t *testing.T) {
	repo := repos.NewMemoryJobRunRepo(4)
	n := &recordingNotifier{}
	job := claimedJob(t, repo, `{"project_id":"p"}`)
	jc := NewContext(context.Background(), job, repo, n)

	jc.Progress("transcribe", 30, "Transcribing")
	jc.Succeed(domain.JobStatusTranscribed, "done", map[string]int{"words": 3})

	stored, _ := repo.GetByID(context.Background(), job.ID)
	if stored.Status != domain.JobStatusTranscribed || stored.Progress != 100 || string(stored.Result) != `{"words":3}` {
		t.Fatalf("stored: got=%+v result=%s", stored, stored.Result)
	}
	if len(n.progress) != 1 || len(n.done) != 1 || n.done[0] != domain.JobStatusTranscribed {
		t.Fatalf("notifications: %+v", n)
	}
}

func TestContextFailAfterCancelKeepsCanceledButNotifies(t *testing.T) {
	repo := repos.NewMemoryJobRunRepo(4)
	n := &recordingNotifier{}
	job := claimedJob(t, repo, `{}`)
	if _, err := repo.Cancel(context.Background(), job.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	jc := NewContext(ctx, job, repo, n)

	jc.Progress("render", 50, "ignored")
	jc.Fail("render", ctx.Err())

	stored, _ := repo.GetByID(context.Background(), job.ID)
	if stored.Status != domain.JobStatusCanceled {
		t.Fatalf("status: want=canceled got=%s", stored.Status)
	}
	if len(n.progress) != 0 {
		t.Fatalf("progress after cancel should be dropped, got=%v", n.progress)
	}
	if len(n.failed) != 1 || n.failed[0] != "job canceled: context canceled" {
		t.Fatalf("failure notification: got=%v", n.failed)
	}
}

func TestDecodePayloadStrict(t *testing.T) {
	jc := NewContext(context.Background(), &domain.JobRun{ID: uuid.New(), Payload: []byte(`{"project_id":"p","bogus":1}`)}, nil, nil)
	var dst struct {
		ProjectID string `json:"project_id"`
	}
	err := jc.DecodePayload(&dst)
	var ie *domain.InputError
	if !errors.As(err, &ie) {
		t.Fatalf("want InputError got=%v", err)
	}
}

type nopHandler struct{ t domain.JobType }

func (h nopHandler) Type() domain.JobType   { return h.t }
func (h nopHandler) Run(ctx *Context) error { return nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(nopHandler{t: domain.JobTypeKaraokeBuild}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(nopHandler{t: domain.JobTypeKaraokeBuild}); err == nil {
		t.Fatalf("duplicate registration should fail")
	}
	if err := r.Register(nopHandler{}); err == nil {
		t.Fatalf("empty type should fail")
	}
	if _, ok := r.Get(domain.JobTypeKaraokeRender); ok {
		t.Fatalf("unexpected handler")
	}
}
