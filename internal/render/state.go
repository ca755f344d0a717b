package render

import "github.com/yungbote/karatrack-backend/internal/lyrics"

type StateKind int

const (
	StateIntro StateKind = iota
	StateCountdown
	StateLyrics
)

func (k StateKind) String() string {
	switch k {
	case StateIntro:
		return "intro"
	case StateCountdown:
		return "countdown"
	case StateLyrics:
		return "lyrics"
	default:
		return "unknown"
	}
}

// FrameState is what a single frame shows. Only the fields for Kind are set.
type FrameState struct {
	Kind StateKind

	// Intro
	IntroAlpha float64

	// Countdown and Lyrics
	LyricTime float64
	Gap       lyrics.Gap
	Mode      lyrics.DisplayMode
}

// StateFor classifies a video instant. Lyric time is the instant minus the
// intro, which is the offset the padded audio carries.
func StateFor(instant float64, layout Layout, scene *Scene) FrameState {
	if instant < layout.IntroDuration {
		return FrameState{Kind: StateIntro, IntroAlpha: IntroAlpha(instant, layout.IntroDuration)}
	}
	t := instant - layout.IntroDuration
	if g, ok := lyrics.GapAt(scene.Gaps, t); ok {
		return FrameState{Kind: StateCountdown, LyricTime: t, Gap: g}
	}
	return FrameState{Kind: StateLyrics, LyricTime: t, Mode: scene.Mode}
}

// IntroAlpha ramps in over the first 20% of the intro, holds, and ramps out
// over the last 20%.
func IntroAlpha(instant, intro float64) float64 {
	if intro <= 0 {
		return 0
	}
	p := instant / intro
	switch {
	case p < 0:
		return 0
	case p < 0.2:
		return p / 0.2
	case p <= 0.8:
		return 1
	case p < 1:
		return (1 - p) / 0.2
	default:
		return 0
	}
}

// CountdownDots is the number of filled dots with remaining seconds left in
// a gap.
func CountdownDots(remaining float64, maxDots int) int {
	if remaining <= 0 {
		return 0
	}
	n := int(remaining) + 1
	if n > maxDots {
		n = maxDots
	}
	return n
}
