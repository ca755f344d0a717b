package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/yungbote/karatrack-backend/internal/data/repos"
	"github.com/yungbote/karatrack-backend/internal/domain"
	"github.com/yungbote/karatrack-backend/internal/jobs/pipeline/pipelinetest"
	"github.com/yungbote/karatrack-backend/internal/platform/apierr"
	"github.com/yungbote/karatrack-backend/internal/platform/logger"
	"github.com/yungbote/karatrack-backend/internal/render"
	"github.com/yungbote/karatrack-backend/internal/services"
)

type svcEnv struct {
	svc    services.JobService
	repo   repos.JobRunRepo
	bucket *pipelinetest.Bucket
	notify *pipelinetest.Notifier
}

func newSvc(t *testing.T) *svcEnv {
	t.Helper()
	repo := repos.NewMemoryJobRunRepo(8)
	bucket := &pipelinetest.Bucket{}
	notify := &pipelinetest.Notifier{}
	return &svcEnv{
		svc:    services.NewJobService(logger.Nop(), repo, notify, bucket, render.StylePresets{}),
		repo:   repo,
		bucket: bucket,
		notify: notify,
	}
}

func wantAPIErr(t *testing.T, err error, status int, code string) {
	t.Helper()
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("want apierr got=%v", err)
	}
	if ae.Status != status || ae.Code != code {
		t.Fatalf("want=%d/%s got=%d/%s (%v)", status, code, ae.Status, ae.Code, ae.Err)
	}
}

func TestSubmitStoresNormalizedPayload(t *testing.T) {
	e := newSvc(t)
	job, err := e.svc.Submit(context.Background(), domain.JobTypeKaraokeBuild,
		[]byte(`{"project_id":" p1 ","audio_url":"https://x.test/a.mp3"}`))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.Status != domain.JobStatusQueued || job.ProjectID != "p1" {
		t.Fatalf("want queued p1 got=%s %q", job.Status, job.ProjectID)
	}
	var req domain.BuildRequest
	if err := json.Unmarshal(job.Payload, &req); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if req.ProcessingType != domain.ProcessingRemoveVocals {
		t.Fatalf("processing_type: want=%s got=%s", domain.ProcessingRemoveVocals, req.ProcessingType)
	}
	if req.VideoQuality != domain.DefaultVideoQuality {
		t.Fatalf("video_quality: want=%s got=%s", domain.DefaultVideoQuality, req.VideoQuality)
	}
	stored, err := e.svc.Get(context.Background(), job.ID)
	if err != nil || stored.ID != job.ID {
		t.Fatalf("get: want=%s got=%v err=%v", job.ID, stored, err)
	}
}

func TestSubmitRejects(t *testing.T) {
	cases := []struct {
		name    string
		jobType domain.JobType
		body    string
		code    string
	}{
		{"unknown type", "karaoke_mix", `{}`, "invalid_job_type"},
		{"empty body", domain.JobTypeKaraokeBuild, ``, "invalid_body"},
		{"unknown field", domain.JobTypeKaraokeBuild, `{"project_id":"p","audio_url":"https://x.test/a","tempo":2}`, "invalid_body"},
		{"missing audio", domain.JobTypeKaraokeBuild, `{"project_id":"p"}`, "invalid_input"},
		{"path in project", domain.JobTypeLyricsTranscribe, `{"project_id":"a/b","audio_url":"https://x.test/a"}`, "invalid_input"},
		{"render with blank word", domain.JobTypeKaraokeRender, `{"project_id":"p","audio_url":"https://x.test/a","lyrics":[{"word":" ","start":0,"end":1}]}`, "invalid_input"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newSvc(t)
			_, err := e.svc.Submit(context.Background(), tc.jobType, []byte(tc.body))
			wantAPIErr(t, err, http.StatusBadRequest, tc.code)
		})
	}
}

func TestCancelQueuedNotifiesOnce(t *testing.T) {
	e := newSvc(t)
	ctx := context.Background()
	job, err := e.svc.Submit(ctx, domain.JobTypeLyricsTranscribe,
		[]byte(`{"project_id":"p1","audio_url":"https://x.test/a.mp3"}`))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	got, err := e.svc.Cancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != domain.JobStatusCanceled {
		t.Fatalf("status: want=%s got=%s", domain.JobStatusCanceled, got.Status)
	}
	if len(e.notify.Failed) != 1 || !strings.HasPrefix(e.notify.Failed[0], "queued: job canceled") {
		t.Fatalf("notify: want one cancel got=%v", e.notify.Failed)
	}

	_, err = e.svc.Cancel(ctx, job.ID)
	wantAPIErr(t, err, http.StatusConflict, "job_finished")
	if len(e.notify.Failed) != 1 {
		t.Fatalf("second cancel notified again: %v", e.notify.Failed)
	}
}

func TestPurgeArtifacts(t *testing.T) {
	e := newSvc(t)
	ctx := context.Background()
	for _, k := range []string{"processed/p1/video.mp4", "processed/p1/work/vocals.flac", "processed/p2/video.mp4"} {
		if err := e.bucket.UploadFile(ctx, k, strings.NewReader("x")); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	n, err := e.svc.PurgeArtifacts(ctx, "p1")
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 2 {
		t.Fatalf("purged: want=2 got=%d", n)
	}
	if keys := e.bucket.Keys(); len(keys) != 1 || keys[0] != "processed/p2/video.mp4" {
		t.Fatalf("remaining: want=[processed/p2/video.mp4] got=%v", keys)
	}

	_, err = e.svc.PurgeArtifacts(ctx, "../p2")
	wantAPIErr(t, err, http.StatusBadRequest, "invalid_project_id")
}
