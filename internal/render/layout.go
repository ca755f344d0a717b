package render

import "github.com/yungbote/karatrack-backend/internal/lyrics"

// Layout holds the timing and geometry knobs shared by every frame of a job.
// Font sizes are in pixels at 1080 lines and scale with frame height.
type Layout struct {
	IntroDuration float64

	CountdownMaxDots  int
	PreviewLines      int
	PreviewLeadIn     float64
	ScrollVisible     int
	LinesPerPage      int
	OverwriteSlots    int
	PaddingFraction   float64
	LineSpacing       float64
	OutlineWidth      float64
	LyricsFontSize    float64
	SecondaryFontSize float64
	TitleFontSize     float64
	ArtistFontSize    float64
	TrackFontSize     float64
	WatermarkFontSize float64

	Group           lyrics.GroupOptions
	IntroGapSeconds float64
	MidGapSeconds   float64
}

func DefaultLayout() Layout {
	return Layout{
		IntroDuration:     5,
		CountdownMaxDots:  3,
		PreviewLines:      4,
		PreviewLeadIn:     0.5,
		ScrollVisible:     7,
		LinesPerPage:      lyrics.DefaultLinesPerPage,
		OverwriteSlots:    3,
		PaddingFraction:   0.05,
		LineSpacing:       1.5,
		OutlineWidth:      3,
		LyricsFontSize:    72,
		SecondaryFontSize: 56,
		TitleFontSize:     96,
		ArtistFontSize:    64,
		TrackFontSize:     48,
		WatermarkFontSize: 30,
		Group:             lyrics.DefaultGroupOptions(),
		IntroGapSeconds:   lyrics.DefaultIntroGapThreshold,
		MidGapSeconds:     lyrics.DefaultMidGapThreshold,
	}
}

func (l Layout) scale(px float64, height int) float64 {
	return px * float64(height) / 1080
}
