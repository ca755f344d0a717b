package karaoke_build

import (
	"github.com/yungbote/karatrack-backend/internal/domain"
	jobrt "github.com/yungbote/karatrack-backend/internal/jobs/runtime"
	"github.com/yungbote/karatrack-backend/internal/lyrics"
	karaokemod "github.com/yungbote/karatrack-backend/internal/modules/karaoke"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	var req domain.BuildRequest
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
	fail := func(stage string, err error) error {
		pub.Rollback(jc.Ctx)
		jc.Fail(stage, err)
		return nil
	}
	results := karaokemod.BuildResults{Lyrics: lyrics.Timeline{}}

	jc.Progress("download", 2, "Downloading audio")
	end := jc.StartStage("download")
	src, err := p.uc.Fetch(jc.Ctx, req.AudioURL, workDir)
	end(err)
	if err != nil {
		return fail("download", err)
	}

	jc.Progress("separate", 10, "Separating vocals")
	end = jc.StartStage("separate")
	sep, err := p.uc.Separate(jc.Ctx, karaokemod.SeparateInput{
		SourcePath:     src,
		ProcessingType: req.ProcessingType,
		WorkDir:        workDir,
	})
	end(err)
	if err != nil {
		return fail("separate", err)
	}

	jc.Progress("publish_audio", 30, "Uploading processed audio")
	if req.ProcessingType.UploadsInstrumental() {
		if results.ProcessedAudioURL, err = pub.Publish(jc.Ctx, "instrumental.wav", sep.Instrumental); err != nil {
			return fail("publish_audio", err)
		}
	}
	if req.ProcessingType.UploadsVocals() {
		if results.VocalsAudioURL, err = pub.Publish(jc.Ctx, "vocals.wav", sep.Vocals); err != nil {
			return fail("publish_audio", err)
		}
	}
	if sep.Guide != "" {
		if results.GuideAudioURL, err = pub.Publish(jc.Ctx, "guide.wav", sep.Guide); err != nil {
			return fail("publish_audio", err)
		}
	}

	if req.WantsLyrics() {
		jc.Progress("transcribe", 35, "Transcribing lyrics")
		end = jc.StartStage("transcribe")
		tr, err := p.uc.Transcribe(jc.Ctx, pub, karaokemod.TranscribeInput{
			AudioPath:       sep.Vocals,
			ReferenceLyrics: req.ReferenceLyrics,
			CleanVersion:    req.CleanVersion,
			WorkDir:         workDir,
		})
		end(err)
		if err != nil {
			return fail("transcribe", err)
		}
		results.Lyrics = tr.Words
		results.ReferenceApplied = tr.ReferenceApplied
	}

	jc.Progress("prepare_audio", 55, "Aligning audio with intro")
	videoAudio, songDuration, err := p.uc.PadForIntro(jc.Ctx, sep.VideoAudio, workDir)
	if err != nil {
		return fail("prepare_audio", err)
	}

	jc.Progress("render", 58, "Rendering video")
	end = jc.StartStage("render")
	vid, err := p.uc.Render(jc.Ctx, karaokemod.RenderInput{
		Timeline:     results.Lyrics,
		AudioPath:    videoAudio,
		SongDuration: songDuration,
		Presentation: req.Presentation,
		WorkDir:      workDir,
		Progress:     jc.Progress,
		ProgressFrom: 58,
		ProgressTo:   95,
	})
	end(err)
	if err != nil {
		return fail("render", err)
	}
	results.Video = &vid

	jc.Progress("publish_video", 96, "Uploading video")
	if results.VideoURL, err = pub.Publish(jc.Ctx, "video.mp4", vid.VideoPath); err != nil {
		return fail("publish_video", err)
	}

	jc.Succeed(domain.JobStatusCompleted, "done", results)
	return nil
}
