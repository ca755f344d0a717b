package app

import (
	"fmt"

	"github.com/yungbote/karatrack-backend/internal/jobs/pipeline/karaoke_build"
	"github.com/yungbote/karatrack-backend/internal/jobs/pipeline/karaoke_render"
	"github.com/yungbote/karatrack-backend/internal/jobs/pipeline/lyrics_transcribe"
	jobrt "github.com/yungbote/karatrack-backend/internal/jobs/runtime"
	"github.com/yungbote/karatrack-backend/internal/jobs/worker"
	"github.com/yungbote/karatrack-backend/internal/lyrics"
	karaokemod "github.com/yungbote/karatrack-backend/internal/modules/karaoke"
	"github.com/yungbote/karatrack-backend/internal/platform/logger"
	"github.com/yungbote/karatrack-backend/internal/render"
	"github.com/yungbote/karatrack-backend/internal/services"
	"github.com/yungbote/karatrack-backend/internal/video"
)

type Services struct {
	Notifier services.JobNotifier
	Jobs     services.JobService

	// Worker-side; nil when RUN_WORKER is false.
	Karaoke   *karaokemod.Usecases
	Registry  *jobrt.Registry
	JobWorker *worker.Worker
}

func wireServices(log *logger.Logger, cfg Config, clients Clients, reposet Repos) (Services, error) {
	log.Info("Wiring services...")

	presets, err := render.LoadStylePresets(cfg.StylePresetsPath)
	if err != nil {
		return Services{}, err
	}
	notifier := services.NewJobNotifier(log, clients.HTTP)
	out := Services{
		Notifier: notifier,
		Jobs:     services.NewJobService(log, reposet.JobRun, notifier, clients.Bucket, presets),
	}
	if !cfg.RunWorker {
		return out, nil
	}

	fonts, err := render.LoadFonts(cfg.FontPath)
	if err != nil {
		return Services{}, fmt.Errorf("load fonts: %w", err)
	}
	profanity, err := lyrics.LoadProfanityFilter(cfg.ProfanityListPath)
	if err != nil {
		return Services{}, err
	}
	uc := karaokemod.New(karaokemod.UsecasesDeps{
		Log:                log,
		Media:              clients.Media,
		Separator:          clients.Separator,
		Transcriber:        clients.Transcriber,
		Bucket:             clients.Bucket,
		Assembler:          video.NewAssembler(log, clients.Media, cfg.RenderConcurrency),
		Fonts:              fonts,
		Layout:             render.DefaultLayout(),
		Presets:            presets,
		Profanity:          profanity,
		WorkRoot:           cfg.WorkRoot,
		HTTP:               clients.HTTP,
		FreeLogoURL:        cfg.FreeTierLogoURL,
		GuideLevel:         cfg.GuideVocalLevel,
		ReferenceTolerance: cfg.ReferenceTolerance,
	})

	registry := jobrt.NewRegistry()
	for _, h := range []jobrt.Handler{
		karaoke_build.New(log, uc),
		karaoke_render.New(log, uc),
		lyrics_transcribe.New(log, uc),
	} {
		if err := registry.Register(h); err != nil {
			return Services{}, fmt.Errorf("register pipeline: %w", err)
		}
	}

	out.Karaoke = &uc
	out.Registry = registry
	out.JobWorker = worker.NewWorker(log, reposet.JobRun, registry, notifier, worker.Config{
		Concurrency: cfg.WorkerConcurrency,
		JobTimeout:  cfg.JobTimeout,
	})
	return out, nil
}
