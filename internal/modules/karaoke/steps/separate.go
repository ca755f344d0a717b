package steps

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/yungbote/karatrack-backend/internal/domain"
	"github.com/yungbote/karatrack-backend/internal/platform/localmedia"
	"github.com/yungbote/karatrack-backend/internal/platform/logger"
	"github.com/yungbote/karatrack-backend/internal/platform/separation"
)

type SeparateDeps struct {
	Log       *logger.Logger
	Media     localmedia.Tools
	Separator separation.Client
}

type SeparateInput struct {
	SourcePath     string
	ProcessingType domain.ProcessingType
	// GuideLevel is the vocal gain (0..1) for guide_vocal mixes.
	GuideLevel float64
	WorkDir    string
}

type SeparateOutput struct {
	Vocals       string
	Instrumental string
	// Guide is set for guide_vocal only.
	Guide string
	// VideoAudio is the track the video is muxed with.
	VideoAudio string
}

const DefaultGuideLevel = 0.3

func Separate(ctx context.Context, deps SeparateDeps, in SeparateInput) (SeparateOutput, error) {
	out := SeparateOutput{}
	if deps.Media == nil || deps.Separator == nil {
		return out, fmt.Errorf("separate: missing deps")
	}
	start := time.Now()
	stems, err := deps.Separator.Separate(ctx, in.SourcePath, filepath.Join(in.WorkDir, "stems"))
	if err != nil {
		return out, fmt.Errorf("separate: %w", err)
	}
	out.Vocals = stems.Vocals
	out.Instrumental = stems.Instrumental
	out.VideoAudio = stems.Instrumental

	if in.ProcessingType == domain.ProcessingGuideVocal {
		level := in.GuideLevel
		if level <= 0 || level > 1 {
			level = DefaultGuideLevel
		}
		out.Guide = filepath.Join(in.WorkDir, "guide.wav")
		if err := deps.Media.MixGuideVocal(ctx, stems.Instrumental, stems.Vocals, out.Guide, level); err != nil {
			return out, fmt.Errorf("separate: guide mix: %w", err)
		}
		out.VideoAudio = out.Guide
	}
	if deps.Log != nil {
		deps.Log.Info("separation finished",
			"processing_type", in.ProcessingType,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
	return out, nil
}
