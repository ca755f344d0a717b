package lyrics_transcribe

import (
	"github.com/yungbote/karatrack-backend/internal/domain"
	karaokemod "github.com/yungbote/karatrack-backend/internal/modules/karaoke"
	"github.com/yungbote/karatrack-backend/internal/platform/logger"
)

type Pipeline struct {
	log *logger.Logger
	uc  karaokemod.Usecases
}

func New(baseLog *logger.Logger, uc karaokemod.Usecases) *Pipeline {
	log := baseLog.With("job", "lyrics_transcribe")
	return &Pipeline{log: log, uc: uc.WithLog(log)}
}

func (p *Pipeline) Type() domain.JobType { return domain.JobTypeLyricsTranscribe }
