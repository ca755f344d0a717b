package gcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/yungbote/karatrack-backend/internal/lyrics"
	"github.com/yungbote/karatrack-backend/internal/platform/ctxutil"
	"github.com/yungbote/karatrack-backend/internal/platform/logger"
	"github.com/yungbote/karatrack-backend/internal/platform/transcribe"
)

// inline audio above this size must go through a gs:// URI instead
const maxInlineSpeechBytes = 10 << 20

type SpeechConfig struct {
	LanguageCode string
	Model        string
	UseEnhanced  bool
	Timeout      time.Duration
}

// Speech is a transcribe.Transcriber backed by Cloud Speech-to-Text
// long-running recognition with word time offsets.
type Speech struct {
	log    *logger.Logger
	client *speech.Client
	cfg    SpeechConfig
}

var _ transcribe.Transcriber = (*Speech)(nil)

func NewSpeech(log *logger.Logger, cfg SpeechConfig) (*Speech, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	if cfg.Model == "" {
		cfg.Model = "latest_long"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	c, err := speech.NewClient(context.Background(), ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	return &Speech{log: log.With("service", "gcp.Speech"), client: c, cfg: cfg}, nil
}

func (s *Speech) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *Speech) Transcribe(ctx context.Context, audio transcribe.Audio) (lyrics.Timeline, error) {
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), s.cfg.Timeout)
	defer cancel()

	req := &speechpb.LongRunningRecognizeRequest{}
	switch {
	case strings.HasPrefix(audio.GCSURI, "gs://"):
		req.Config = s.recognitionConfig(audio.GCSURI)
		req.Audio = &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Uri{Uri: audio.GCSURI}}
	case audio.Path != "":
		raw, err := os.ReadFile(audio.Path)
		if err != nil {
			return nil, fmt.Errorf("speech: read audio: %w", err)
		}
		if len(raw) > maxInlineSpeechBytes {
			return nil, fmt.Errorf("speech: inline audio is %d bytes; upload it and pass a gs:// uri", len(raw))
		}
		req.Config = s.recognitionConfig(audio.Path)
		req.Audio = &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: raw}}
	default:
		return nil, fmt.Errorf("speech: audio path or gs:// uri required")
	}

	start := time.Now()
	op, err := s.client.LongRunningRecognize(ctx, req)
	if err != nil {
		return nil, classifySpeechError("submit", err)
	}
	resp, err := op.Wait(ctx)
	if err != nil {
		return nil, classifySpeechError("wait", err)
	}
	words := wordsFromResponse(resp)
	s.log.Info("speech transcription finished", "words", len(words), "elapsed_ms", time.Since(start).Milliseconds())
	return words, nil
}

func (s *Speech) recognitionConfig(name string) *speechpb.RecognitionConfig {
	return &speechpb.RecognitionConfig{
		LanguageCode:               s.cfg.LanguageCode,
		Model:                      s.cfg.Model,
		UseEnhanced:                s.cfg.UseEnhanced,
		EnableAutomaticPunctuation: true,
		EnableWordTimeOffsets:      true,
		Encoding:                   encodingForName(name),
	}
}

func encodingForName(name string) speechpb.RecognitionConfig_AudioEncoding {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav":
		return speechpb.RecognitionConfig_LINEAR16
	case ".flac":
		return speechpb.RecognitionConfig_FLAC
	case ".mp3":
		return speechpb.RecognitionConfig_MP3
	case ".ogg", ".opus":
		return speechpb.RecognitionConfig_OGG_OPUS
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}

// wordsFromResponse flattens the first alternative of every result.
func wordsFromResponse(resp *speechpb.LongRunningRecognizeResponse) lyrics.Timeline {
	out := lyrics.Timeline{}
	if resp == nil {
		return out
	}
	for _, r := range resp.Results {
		if r == nil || len(r.Alternatives) == 0 || r.Alternatives[0] == nil {
			continue
		}
		for _, w := range r.Alternatives[0].Words {
			if w == nil || strings.TrimSpace(w.Word) == "" {
				continue
			}
			out = append(out, lyrics.Word{Text: w.Word, Start: durToSec(w.StartTime), End: durToSec(w.EndTime)})
		}
	}
	return out.Sorted()
}

func durToSec(d *durationpb.Duration) float64 {
	if d == nil {
		return 0
	}
	return float64(d.Seconds) + float64(d.Nanos)/1e9
}

func classifySpeechError(stage string, err error) error {
	switch status.Code(err) {
	case codes.InvalidArgument:
		return fmt.Errorf("speech %s: audio rejected: %w", stage, err)
	case codes.DeadlineExceeded, codes.Canceled:
		return fmt.Errorf("speech %s: interrupted: %w", stage, err)
	default:
		return fmt.Errorf("speech %s: %w", stage, err)
	}
}
