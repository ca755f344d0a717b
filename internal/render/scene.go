package render

import (
	"strings"

	"github.com/yungbote/karatrack-backend/internal/lyrics"
)

const (
	DefaultTrackNumber = "KT-01"
	DefaultArtist      = "Unknown Artist"
	DefaultTitle       = "Unknown Title"
)

// Track is the title-card metadata.
type Track struct {
	Number string `json:"track_number"`
	Artist string `json:"artist_name"`
	Title  string `json:"song_title"`
}

func (t Track) WithDefaults() Track {
	if strings.TrimSpace(t.Number) == "" {
		t.Number = DefaultTrackNumber
	}
	if strings.TrimSpace(t.Artist) == "" {
		t.Artist = DefaultArtist
	}
	if strings.TrimSpace(t.Title) == "" {
		t.Title = DefaultTitle
	}
	return t
}

// Scene is everything about a job that does not change between frames. It is
// built once and only read afterwards, so any number of workers may share it.
type Scene struct {
	Timeline  lyrics.Timeline
	Lines     []lyrics.Line
	Pages     []lyrics.Page
	Gaps      []lyrics.Gap
	Mode      lyrics.DisplayMode
	Track     Track
	Watermark Watermark
}

// NewScene groups the timeline into lines and pages. A nil gaps slice is
// detected with the layout thresholds; ModeAuto is resolved against the
// song's audio duration.
func NewScene(tl lyrics.Timeline, gaps []lyrics.Gap, mode lyrics.DisplayMode, audioDuration float64, track Track, wm Watermark, layout Layout) *Scene {
	if gaps == nil {
		gaps = lyrics.DetectGaps(tl, layout.IntroGapSeconds, layout.MidGapSeconds)
	}
	if mode == "" || mode == lyrics.ModeAuto {
		mode = lyrics.SelectMode(tl, audioDuration, lyrics.ModeAuto)
	}
	lines := lyrics.GroupIntoLines(tl, layout.Group)
	return &Scene{
		Timeline:  tl,
		Lines:     lines,
		Pages:     lyrics.Paginate(lines, layout.LinesPerPage),
		Gaps:      gaps,
		Mode:      mode,
		Track:     track.WithDefaults(),
		Watermark: wm,
	}
}
