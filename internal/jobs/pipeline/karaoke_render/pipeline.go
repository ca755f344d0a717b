package karaoke_render

import (
	"github.com/yungbote/karatrack-backend/internal/domain"
	jobrt "github.com/yungbote/karatrack-backend/internal/jobs/runtime"
	karaokemod "github.com/yungbote/karatrack-backend/internal/modules/karaoke"
)

// Run renders a caller-supplied timeline. The audio is used as-is, so it
// must already start with the intro lead-in.
func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	var req domain.RenderRequest
	if err := jc.DecodePayload(&req); err != nil {
		jc.Fail("validate", err)
		return nil
	}
	if err := req.Normalize(p.uc.Presets()); err != nil {
		jc.Fail("validate", err)
		return nil
	}

	workDir, cleanup, err := p.uc.WorkDir(jc.Job.ID.String())
	if err != nil {
		jc.Fail("prepare", err)
		return nil
	}
	defer cleanup()

	pub := p.uc.NewPublisher(req.ProjectID)

	jc.Progress("download", 2, "Downloading audio")
	end := jc.StartStage("download")
	src, err := p.uc.Fetch(jc.Ctx, req.AudioURL, workDir)
	end(err)
	if err != nil {
		jc.Fail("download", err)
		return nil
	}
	total, err := p.uc.Probe(jc.Ctx, src)
	if err != nil {
		jc.Fail("download", err)
		return nil
	}
	songDuration := max(0, total-p.uc.IntroDuration())

	tl := req.Lyrics
	if req.CleanVersion {
		tl = p.uc.CleanLyrics(tl)
	}

	jc.Progress("render", 10, "Rendering video")
	end = jc.StartStage("render")
	vid, err := p.uc.Render(jc.Ctx, karaokemod.RenderInput{
		Timeline:     tl,
		AudioPath:    src,
		SongDuration: songDuration,
		Presentation: req.Presentation,
		WorkDir:      workDir,
		Progress:     jc.Progress,
		ProgressFrom: 10,
		ProgressTo:   95,
	})
	end(err)
	if err != nil {
		jc.Fail("render", err)
		return nil
	}

	jc.Progress("publish_video", 96, "Uploading video")
	url, err := pub.Publish(jc.Ctx, "video.mp4", vid.VideoPath)
	if err != nil {
		pub.Rollback(jc.Ctx)
		jc.Fail("publish_video", err)
		return nil
	}

	jc.Succeed(domain.JobStatusCompleted, "done", karaokemod.BuildResults{
		Lyrics:   tl,
		VideoURL: url,
		Video:    &vid,
	})
	return nil
}
