package lyrics_transcribe

import (
	"github.com/yungbote/karatrack-backend/internal/domain"
	jobrt "github.com/yungbote/karatrack-backend/internal/jobs/runtime"
	karaokemod "github.com/yungbote/karatrack-backend/internal/modules/karaoke"
)

// Run stops after alignment so a caller can review the timeline before
// submitting a karaoke_render job. The job ends with status transcribed.
func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	var req domain.TranscribeRequest
	if err := jc.DecodePayload(&req); err != nil {
		jc.Fail("validate", err)
		return nil
	}
	if err := req.Normalize(); err != nil {
		jc.Fail("validate", err)
		return nil
	}

	workDir, cleanup, err := p.uc.WorkDir(jc.Job.ID.String())
	if err != nil {
		jc.Fail("prepare", err)
		return nil
	}
	defer cleanup()

	jc.Progress("download", 5, "Downloading audio")
	end := jc.StartStage("download")
	src, err := p.uc.Fetch(jc.Ctx, req.AudioURL, workDir)
	end(err)
	if err != nil {
		jc.Fail("download", err)
		return nil
	}
	songDuration, err := p.uc.Probe(jc.Ctx, src)
	if err != nil {
		jc.Fail("download", err)
		return nil
	}

	speechSrc := src
	if req.WantsSeparation() {
		jc.Progress("separate", 15, "Separating vocals")
		end = jc.StartStage("separate")
		sep, err := p.uc.Separate(jc.Ctx, karaokemod.SeparateInput{
			SourcePath:     src,
			ProcessingType: domain.ProcessingRemoveVocals,
			WorkDir:        workDir,
		})
		end(err)
		if err != nil {
			jc.Fail("separate", err)
			return nil
		}
		speechSrc = sep.Vocals
	}

	jc.Progress("transcribe", 50, "Transcribing lyrics")
	end = jc.StartStage("transcribe")
	pub := p.uc.NewPublisher(req.ProjectID)
	tr, err := p.uc.Transcribe(jc.Ctx, pub, karaokemod.TranscribeInput{
		AudioPath:       speechSrc,
		ReferenceLyrics: req.ReferenceLyrics,
		CleanVersion:    req.CleanVersion,
		WorkDir:         workDir,
	})
	end(err)
	if err != nil {
		jc.Fail("transcribe", err)
		return nil
	}

	gaps, mode := p.uc.Analyze(tr.Words, songDuration)
	jc.Succeed(domain.JobStatusTranscribed, "transcribed", karaokemod.TranscribeResults{
		Lyrics:           tr.Words,
		ReferenceApplied: tr.ReferenceApplied,
		ReferenceWords:   tr.ReferenceWords,
		TranscribedWords: tr.TranscribedWords,
		Gaps:             gaps,
		SuggestedMode:    mode,
	})
	return nil
}
