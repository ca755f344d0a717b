package karaoke

import "github.com/yungbote/karatrack-backend/internal/lyrics"

// BuildResults is the result payload of karaoke_build and karaoke_render
// jobs, also sent as callback "results".
type BuildResults struct {
	ProcessedAudioURL string          `json:"processed_audio_url,omitempty"`
	VocalsAudioURL    string          `json:"vocals_audio_url,omitempty"`
	GuideAudioURL     string          `json:"guide_audio_url,omitempty"`
	Lyrics            lyrics.Timeline `json:"lyrics"`
	ReferenceApplied  bool            `json:"reference_applied,omitempty"`
	VideoURL          string          `json:"video_url"`
	Video             *RenderOutput   `json:"video,omitempty"`
}

// TranscribeResults is the result payload of lyrics_transcribe jobs.
type TranscribeResults struct {
	Lyrics           lyrics.Timeline    `json:"lyrics"`
	ReferenceApplied bool               `json:"reference_applied"`
	ReferenceWords   int                `json:"reference_words,omitempty"`
	TranscribedWords int                `json:"transcribed_words"`
	Gaps             []lyrics.Gap       `json:"gaps"`
	SuggestedMode    lyrics.DisplayMode `json:"suggested_mode"`
}
