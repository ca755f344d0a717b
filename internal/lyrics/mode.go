package lyrics

import (
	"fmt"
	"strings"
)

type DisplayMode string

const (
	ModeAuto      DisplayMode = "auto"
	ModeScroll    DisplayMode = "scroll"
	ModePage      DisplayMode = "page"
	ModeOverwrite DisplayMode = "overwrite"
)

const (
	naturalLineGap       = 1.0
	sectionGapThreshold  = 3.0
	fastWordsPerMinute   = 150.0
	slowWordsPerMinute   = 100.0
	longLineWords        = 10.0
	minSectionsForPaging = 2
)

// ParseDisplayMode accepts auto/scroll/page/overwrite, case-insensitively.
// Empty input means auto.
func ParseDisplayMode(s string) (DisplayMode, error) {
	m := DisplayMode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeScroll, ModePage, ModeOverwrite:
		return m, nil
	default:
		return "", fmt.Errorf("unknown display mode %q", s)
	}
}

// TimelineStats are the inputs to automatic mode selection.
type TimelineStats struct {
	WordsPerMinute   float64
	AvgLineLength    float64
	HasClearSections bool
}

func ComputeStats(tl Timeline, audioDuration float64) TimelineStats {
	st := TimelineStats{}
	if len(tl) == 0 {
		return st
	}
	if audioDuration > 0 {
		st.WordsPerMinute = float64(len(tl)) / (audioDuration / 60)
	}
	sizes := naturalLineSizes(tl, naturalLineGap)
	if len(sizes) > 0 {
		total := 0
		for _, n := range sizes {
			total += n
		}
		st.AvgLineLength = float64(total) / float64(len(sizes))
	}
	sections := 0
	for _, g := range DetectGaps(tl, sectionGapThreshold, sectionGapThreshold) {
		if g.Duration > sectionGapThreshold {
			sections++
		}
	}
	st.HasClearSections = sections >= minSectionsForPaging
	return st
}

// SelectMode returns requested unchanged unless it is auto, in which case the
// mode is chosen from timeline statistics. An empty timeline resolves to
// overwrite.
func SelectMode(tl Timeline, audioDuration float64, requested DisplayMode) DisplayMode {
	if requested != "" && requested != ModeAuto {
		return requested
	}
	return ModeForStats(ComputeStats(tl, audioDuration))
}

func ModeForStats(st TimelineStats) DisplayMode {
	switch {
	case st.WordsPerMinute > fastWordsPerMinute:
		return ModeScroll
	case st.AvgLineLength > longLineWords:
		return ModeScroll
	case st.HasClearSections && st.WordsPerMinute < slowWordsPerMinute:
		return ModePage
	default:
		return ModeOverwrite
	}
}
