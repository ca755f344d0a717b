package steps

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/yungbote/karatrack-backend/internal/lyrics"
	"github.com/yungbote/karatrack-backend/internal/platform/gcp"
	"github.com/yungbote/karatrack-backend/internal/platform/localmedia"
	"github.com/yungbote/karatrack-backend/internal/platform/logger"
	"github.com/yungbote/karatrack-backend/internal/platform/transcribe"
)

type TranscribeDeps struct {
	Log         *logger.Logger
	Media       localmedia.Tools
	Transcriber transcribe.Transcriber
	Bucket      gcp.BucketService
	Publisher   *Publisher
	Profanity   *lyrics.ProfanityFilter
}

type TranscribeInput struct {
	// AudioPath is ideally the isolated vocal stem.
	AudioPath       string
	ReferenceLyrics string
	Tolerance       float64
	CleanVersion    bool
	WorkDir         string
}

type TranscribeOutput struct {
	Words lyrics.Timeline `json:"lyrics"`
	// ReferenceApplied reports whether reference text replaced the
	// transcribed words.
	ReferenceApplied bool `json:"reference_applied"`
	ReferenceWords   int  `json:"reference_words,omitempty"`
	TranscribedWords int  `json:"transcribed_words"`
}

// TranscribeLyrics produces the final word timeline: speech-to-text on a
// speech-friendly copy of the audio, optional reference alignment, then the
// optional profanity filter.
func TranscribeLyrics(ctx context.Context, deps TranscribeDeps, in TranscribeInput) (TranscribeOutput, error) {
	out := TranscribeOutput{Words: lyrics.Timeline{}}
	if deps.Media == nil || deps.Transcriber == nil || deps.Bucket == nil || deps.Publisher == nil {
		return out, fmt.Errorf("transcribe: missing deps")
	}
	speechPath := filepath.Join(in.WorkDir, "speech.flac")
	if err := deps.Media.TranscodeForSpeech(ctx, in.AudioPath, speechPath); err != nil {
		return out, fmt.Errorf("transcribe: %w", err)
	}
	key, err := deps.Publisher.Stage(ctx, "speech.flac", speechPath)
	if err != nil {
		return out, fmt.Errorf("transcribe: %w", err)
	}
	defer deps.Publisher.Discard(ctx, key)

	start := time.Now()
	words, err := deps.Transcriber.Transcribe(ctx, transcribe.Audio{
		Path:   speechPath,
		URL:    deps.Bucket.GetPublicURL(key),
		GCSURI: deps.Bucket.GCSURI(key),
	})
	if err != nil {
		return out, fmt.Errorf("transcribe: %w", err)
	}
	words = words.Sorted()

	tol := in.Tolerance
	if tol <= 0 {
		tol = lyrics.DefaultReferenceTolerance
	}
	res, err := lyrics.AlignReference(words, in.ReferenceLyrics, tol)
	if err != nil {
		return out, fmt.Errorf("transcribe: align: %w", err)
	}
	out.Words = res.Words
	out.ReferenceApplied = res.Applied
	out.ReferenceWords = res.ReferenceCount
	out.TranscribedWords = res.TranscribedCount

	if in.CleanVersion {
		f := deps.Profanity
		if f == nil {
			f = lyrics.NewProfanityFilter()
		}
		out.Words = f.Apply(out.Words)
	}
	if deps.Log != nil {
		deps.Log.Info("transcription finished",
			"words", len(out.Words),
			"reference_applied", out.ReferenceApplied,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
	return out, nil
}
