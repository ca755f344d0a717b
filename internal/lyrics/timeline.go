package lyrics

import (
	"fmt"
	"sort"
	"strings"
)

// Word is one timed lyric token. Start and End are seconds from the start of
// the song (not of the rendered video).
type Word struct {
	Text  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// SungAt reports whether the word is highlighted at lyric time t.
// Every display mode colours words through this predicate.
func (w Word) SungAt(t float64) bool {
	return t >= w.Start
}

func (w Word) Duration() float64 {
	if w.End < w.Start {
		return 0
	}
	return w.End - w.Start
}

// Timeline is the ordered word sequence for one song.
type Timeline []Word

type TimelineError struct {
	Index  int
	Reason string
}

func (e *TimelineError) Error() string {
	return fmt.Sprintf("timeline word %d: %s", e.Index, e.Reason)
}

// Validate checks non-decreasing start order and end >= start.
// Overlap between consecutive words is allowed.
func (tl Timeline) Validate() error {
	for i, w := range tl {
		if w.End < w.Start {
			return &TimelineError{Index: i, Reason: fmt.Sprintf("end %.3f before start %.3f", w.End, w.Start)}
		}
		if w.Start < 0 {
			return &TimelineError{Index: i, Reason: "negative start"}
		}
		if i > 0 && w.Start < tl[i-1].Start {
			return &TimelineError{Index: i, Reason: fmt.Sprintf("start %.3f before previous start %.3f", w.Start, tl[i-1].Start)}
		}
	}
	return nil
}

// Sorted returns a copy ordered by start, keeping the relative order of
// words with equal start. End is raised to Start when it is earlier.
func (tl Timeline) Sorted() Timeline {
	out := make(Timeline, len(tl))
	copy(out, tl)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	for i := range out {
		if out[i].Start < 0 {
			out[i].Start = 0
		}
		if out[i].End < out[i].Start {
			out[i].End = out[i].Start
		}
	}
	return out
}

// Duration is the end of the last word, or 0 for an empty timeline.
func (tl Timeline) Duration() float64 {
	var end float64
	for _, w := range tl {
		if w.End > end {
			end = w.End
		}
	}
	return end
}

// Line is a contiguous run of words shown as one display row.
type Line struct {
	Words []Word
}

func (l Line) Start() float64 {
	if len(l.Words) == 0 {
		return 0
	}
	return l.Words[0].Start
}

func (l Line) End() float64 {
	if len(l.Words) == 0 {
		return 0
	}
	return l.Words[len(l.Words)-1].End
}

func (l Line) Text() string {
	parts := make([]string, 0, len(l.Words))
	for _, w := range l.Words {
		parts = append(parts, w.Text)
	}
	return strings.Join(parts, " ")
}

// Progress is how far lyric time t is through the line's singing window,
// clamped to [0,1]. Zero-duration lines report 0.
func (l Line) Progress(t float64) float64 {
	span := l.End() - l.Start()
	if span <= 0 {
		return 0
	}
	p := (t - l.Start()) / span
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Page is a fixed-size chunk of consecutive lines (page display mode).
type Page struct {
	Index int
	First int // index of the first line of the page in the full line list
	Lines []Line
}
