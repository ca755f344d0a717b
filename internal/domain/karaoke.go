package domain

import (
	"errors"
	"math"
	"net/url"
	"strings"

	"github.com/yungbote/karatrack-backend/internal/lyrics"
	"github.com/yungbote/karatrack-backend/internal/render"
)

type ProcessingType string

const (
	ProcessingRemoveVocals   ProcessingType = "remove_vocals"
	ProcessingIsolateBacking ProcessingType = "isolate_backing"
	ProcessingBoth           ProcessingType = "both"
	ProcessingGuideVocal     ProcessingType = "guide_vocal"
)

func ParseProcessingType(s string) (ProcessingType, error) {
	p := ProcessingType(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case "":
		return ProcessingRemoveVocals, nil
	case ProcessingRemoveVocals, ProcessingIsolateBacking, ProcessingBoth, ProcessingGuideVocal:
		return p, nil
	}
	return "", inputErr("processing_type", "unknown value %q", s)
}

// UploadsInstrumental reports whether the instrumental stem is a deliverable.
func (p ProcessingType) UploadsInstrumental() bool {
	return p == ProcessingRemoveVocals || p == ProcessingBoth
}

func (p ProcessingType) UploadsVocals() bool {
	return p == ProcessingIsolateBacking || p == ProcessingBoth
}

const (
	DefaultVideoQuality = "1080p"
	MaxTimelineWords    = 20000
)

// Presentation is how the video looks. Shared by full builds and
// render-only jobs.
type Presentation struct {
	DisplayMode  string            `json:"display_mode,omitempty"`
	CleanVersion bool              `json:"clean_version,omitempty"`
	Style        render.StyleInput `json:"style"`
	VideoQuality string            `json:"video_quality,omitempty"`
	Tier         string            `json:"tier,omitempty"`
	LogoURL      string            `json:"watermark_logo_url,omitempty"`
	render.Track
}

func (p *Presentation) normalize(presets render.StylePresets) error {
	mode, err := lyrics.ParseDisplayMode(p.DisplayMode)
	if err != nil {
		return inputErr("display_mode", "unknown value %q", p.DisplayMode)
	}
	p.DisplayMode = string(mode)
	if _, err := render.ParseStyle(p.Style, presets); err != nil {
		var se *render.StyleError
		if errors.As(err, &se) {
			return inputErr("style."+se.Field, "bad value %q", se.Value)
		}
		return inputErr("style", "%v", err)
	}
	if strings.TrimSpace(p.VideoQuality) == "" {
		p.VideoQuality = DefaultVideoQuality
	}
	p.Tier = strings.ToLower(strings.TrimSpace(p.Tier))
	if p.LogoURL != "" {
		if err := checkURL("watermark_logo_url", p.LogoURL); err != nil {
			return err
		}
	}
	p.Track = p.Track.WithDefaults()
	return nil
}

// BuildRequest is the full pipeline: separate, transcribe, render, publish.
type BuildRequest struct {
	ProjectID       string         `json:"project_id"`
	AudioURL        string         `json:"audio_url"`
	ProcessingType  ProcessingType `json:"processing_type,omitempty"`
	IncludeLyrics   *bool          `json:"include_lyrics,omitempty"`
	ReferenceLyrics string         `json:"reference_lyrics,omitempty"`
	CallbackURL     string         `json:"callback_url,omitempty"`
	Presentation
}

func (r BuildRequest) WantsLyrics() bool { return r.IncludeLyrics == nil || *r.IncludeLyrics }

// Normalize validates r and fills defaults.
func (r *BuildRequest) Normalize(presets render.StylePresets) error {
	if err := checkCommon(&r.ProjectID, r.AudioURL, r.CallbackURL); err != nil {
		return err
	}
	pt, err := ParseProcessingType(string(r.ProcessingType))
	if err != nil {
		return err
	}
	r.ProcessingType = pt
	if err := checkReference(r.ReferenceLyrics); err != nil {
		return err
	}
	return r.Presentation.normalize(presets)
}

// RenderRequest renders a supplied timeline over audio that already carries
// the intro offset.
type RenderRequest struct {
	ProjectID   string          `json:"project_id"`
	AudioURL    string          `json:"audio_url"`
	Lyrics      lyrics.Timeline `json:"lyrics"`
	CallbackURL string          `json:"callback_url,omitempty"`
	Presentation
}

func (r *RenderRequest) Normalize(presets render.StylePresets) error {
	if err := checkCommon(&r.ProjectID, r.AudioURL, r.CallbackURL); err != nil {
		return err
	}
	if len(r.Lyrics) > MaxTimelineWords {
		return inputErr("lyrics", "more than %d words", MaxTimelineWords)
	}
	for i, w := range r.Lyrics {
		if strings.TrimSpace(w.Text) == "" {
			return inputErr("lyrics", "word %d is blank", i)
		}
		if !finite(w.Start) || !finite(w.End) {
			return inputErr("lyrics", "word %d has a non-finite timestamp", i)
		}
	}
	r.Lyrics = r.Lyrics.Sorted()
	return r.Presentation.normalize(presets)
}

// TranscribeRequest stops after alignment and returns the timeline.
type TranscribeRequest struct {
	ProjectID       string `json:"project_id"`
	AudioURL        string `json:"audio_url"`
	ReferenceLyrics string `json:"reference_lyrics,omitempty"`
	CleanVersion    bool   `json:"clean_version,omitempty"`
	// SeparateVocals transcribes the vocal stem instead of the full mix.
	SeparateVocals *bool  `json:"separate_vocals,omitempty"`
	CallbackURL    string `json:"callback_url,omitempty"`
}

func (r TranscribeRequest) WantsSeparation() bool {
	return r.SeparateVocals == nil || *r.SeparateVocals
}

func (r *TranscribeRequest) Normalize() error {
	if err := checkCommon(&r.ProjectID, r.AudioURL, r.CallbackURL); err != nil {
		return err
	}
	return checkReference(r.ReferenceLyrics)
}

func checkCommon(projectID *string, audioURL, callbackURL string) error {
	*projectID = strings.TrimSpace(*projectID)
	if *projectID == "" {
		return inputErr("project_id", "required")
	}
	if strings.ContainsAny(*projectID, "/\\") || *projectID == "." || *projectID == ".." {
		return inputErr("project_id", "must not contain path separators")
	}
	if strings.TrimSpace(audioURL) == "" {
		return inputErr("audio_url", "required")
	}
	if err := checkURL("audio_url", audioURL); err != nil {
		return err
	}
	if callbackURL != "" {
		return checkURL("callback_url", callbackURL)
	}
	return nil
}

func checkURL(field, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return inputErr(field, "must be an absolute http(s) URL")
	}
	return nil
}

func checkReference(ref string) error {
	if strings.TrimSpace(ref) == "" {
		return nil
	}
	if _, err := lyrics.ReferenceTokens(ref); err != nil {
		return &InputError{Field: "reference_lyrics", Reason: err.Error()}
	}
	return nil
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
