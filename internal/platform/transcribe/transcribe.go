package transcribe

import (
	"context"

	"github.com/yungbote/karatrack-backend/internal/lyrics"
)

// Audio names one audio asset in every form a provider may want.
type Audio struct {
	Path   string // local file
	URL    string // publicly fetchable URL
	GCSURI string // gs://bucket/key
}

// Transcriber returns word-level timings for an audio asset, ideally the
// isolated vocal stem. Words come back sorted by start time.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio) (lyrics.Timeline, error)
}
