package lyrics_transcribe

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/yungbote/karatrack-backend/internal/domain"
	"github.com/yungbote/karatrack-backend/internal/jobs/pipeline/pipelinetest"
	karaokemod "github.com/yungbote/karatrack-backend/internal/modules/karaoke"
)

func TestTranscribeStopsAfterAlignment(t *testing.T) {
	env := pipelinetest.NewEnv(t)
	p := New(env.Log, env.Usecases(t))
	jc := env.Claim(t, domain.JobTypeLyricsTranscribe, map[string]any{
		"project_id": "proj-1",
		"audio_url":  "https://media.test/song.mp3",
	})

	if err := p.Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	job := env.Stored(t, jc.Job.ID)
	if job.Status != domain.JobStatusTranscribed {
		t.Fatalf("want=%v got=%v (%s)", domain.JobStatusTranscribed, job.Status, job.Error)
	}
	var res karaokemod.TranscribeResults
	if err := json.Unmarshal(job.Result, &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.TranscribedWords != 3 || len(res.Lyrics) != 3 {
		t.Fatalf("want 3 words got=%+v", res)
	}
	if res.Lyrics[1].Text != "damn" {
		t.Fatalf("clean_version unset should keep words, got=%q", res.Lyrics[1].Text)
	}
	if res.SuggestedMode == "" || res.Gaps == nil {
		t.Fatalf("want analysis in result got=%+v", res)
	}
	if env.Separator.Calls != 1 {
		t.Fatalf("want vocals separated once got=%d", env.Separator.Calls)
	}
	if got := env.Transcriber.Got; len(got) != 1 || !strings.HasPrefix(got[0].GCSURI, "gs://test/processed/proj-1/work/") {
		t.Fatalf("unexpected transcriber input %+v", got)
	}
	if keys := env.Bucket.Keys(); len(keys) != 0 {
		t.Fatalf("staged speech audio should be discarded, got=%v", keys)
	}
	if len(env.Media.Encoded) != 0 {
		t.Fatalf("transcribe jobs must not render")
	}
}

func TestTranscribeWithoutSeparation(t *testing.T) {
	env := pipelinetest.NewEnv(t)
	p := New(env.Log, env.Usecases(t))
	jc := env.Claim(t, domain.JobTypeLyricsTranscribe, map[string]any{
		"project_id":      "proj-1",
		"audio_url":       "https://media.test/song.mp3",
		"separate_vocals": false,
		"clean_version":   true,
	})
	_ = p.Run(jc)
	if env.Separator.Calls != 0 {
		t.Fatalf("want=0 got=%d", env.Separator.Calls)
	}
	job := env.Stored(t, jc.Job.ID)
	var res karaokemod.TranscribeResults
	if err := json.Unmarshal(job.Result, &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Lyrics[1].Text != "d***" {
		t.Fatalf("want=d*** got=%q", res.Lyrics[1].Text)
	}
}

func TestTranscribeProviderFailure(t *testing.T) {
	env := pipelinetest.NewEnv(t)
	env.Transcriber.Err = errors.New("quota exceeded")
	p := New(env.Log, env.Usecases(t))
	jc := env.Claim(t, domain.JobTypeLyricsTranscribe, map[string]any{
		"project_id": "proj-1",
		"audio_url":  "https://media.test/song.mp3",
	})
	_ = p.Run(jc)
	job := env.Stored(t, jc.Job.ID)
	if job.Status != domain.JobStatusFailed || job.Stage != "transcribe" {
		t.Fatalf("want failed at transcribe got=%v at %s", job.Status, job.Stage)
	}
	if len(env.Notify.Failed) != 1 || !strings.Contains(env.Notify.Failed[0], "quota exceeded") {
		t.Fatalf("unexpected failure notifications %v", env.Notify.Failed)
	}
}
