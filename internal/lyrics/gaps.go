package lyrics

const (
	DefaultIntroGapThreshold = 10.0
	DefaultMidGapThreshold   = 5.0
)

// Gap is a silence window long enough to show a countdown.
type Gap struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
	Intro    bool    `json:"is_intro"`
}

// Contains reports whether lyric time t falls inside [Start, End).
func (g Gap) Contains(t float64) bool {
	return t >= g.Start && t < g.End
}

// DetectGaps scans the timeline for a leading silence of at least
// introThreshold seconds and interior silences of at least midThreshold
// seconds. Gaps come back in scan order and are never merged.
func DetectGaps(tl Timeline, introThreshold, midThreshold float64) []Gap {
	gaps := []Gap{}
	if len(tl) == 0 {
		return gaps
	}
	if first := tl[0].Start; first >= introThreshold {
		gaps = append(gaps, Gap{Start: 0, End: first, Duration: first, Intro: true})
	}
	for i := 0; i+1 < len(tl); i++ {
		start := tl[i].End
		end := tl[i+1].Start
		if d := end - start; d >= midThreshold {
			gaps = append(gaps, Gap{Start: start, End: end, Duration: d})
		}
	}
	return gaps
}

// GapAt returns the gap containing lyric time t.
func GapAt(gaps []Gap, t float64) (Gap, bool) {
	for _, g := range gaps {
		if g.Contains(t) {
			return g, true
		}
		if g.Start > t {
			break
		}
	}
	return Gap{}, false
}
