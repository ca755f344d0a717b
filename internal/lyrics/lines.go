package lyrics

const (
	DefaultMaxWordsPerLine     = 7
	DefaultPauseGapSeconds     = 0.8
	DefaultMinWordsBeforeBreak = 3
	DefaultLinesPerPage        = 4
)

type GroupOptions struct {
	MaxWordsPerLine     int
	PauseGap            float64
	MinWordsBeforeBreak int
}

func DefaultGroupOptions() GroupOptions {
	return GroupOptions{
		MaxWordsPerLine:     DefaultMaxWordsPerLine,
		PauseGap:            DefaultPauseGapSeconds,
		MinWordsBeforeBreak: DefaultMinWordsBeforeBreak,
	}
}

// GroupIntoLines splits the timeline into display lines in one greedy pass.
// A line closes when it reaches MaxWordsPerLine, or when the pause after the
// current word is at least PauseGap and the line already holds
// MinWordsBeforeBreak words. Word order is preserved.
func GroupIntoLines(tl Timeline, opts GroupOptions) []Line {
	maxWords := opts.MaxWordsPerLine
	if maxWords < 1 {
		maxWords = 1
	}
	lines := []Line{}
	cur := []Word{}
	for i, w := range tl {
		cur = append(cur, w)
		closeLine := len(cur) >= maxWords
		if !closeLine && i+1 < len(tl) && opts.PauseGap > 0 {
			pause := tl[i+1].Start - w.End
			closeLine = pause >= opts.PauseGap && len(cur) >= opts.MinWordsBeforeBreak
		}
		if closeLine {
			lines = append(lines, Line{Words: cur})
			cur = []Word{}
		}
	}
	if len(cur) > 0 {
		lines = append(lines, Line{Words: cur})
	}
	return lines
}

// Paginate chunks lines into pages of perPage lines; the last page may be short.
func Paginate(lines []Line, perPage int) []Page {
	if perPage < 1 {
		perPage = 1
	}
	pages := []Page{}
	for first := 0; first < len(lines); first += perPage {
		end := first + perPage
		if end > len(lines) {
			end = len(lines)
		}
		pages = append(pages, Page{Index: len(pages), First: first, Lines: lines[first:end]})
	}
	return pages
}

// ActiveLine is the index of the last line that has started by lyric time t,
// or 0 when no line has started yet. Returns -1 for no lines.
func ActiveLine(lines []Line, t float64) int {
	if len(lines) == 0 {
		return -1
	}
	idx := 0
	for i, l := range lines {
		if l.Start() <= t {
			idx = i
			continue
		}
		break
	}
	return idx
}

// UnfinishedLine is the index of the first line whose singing window has
// not ended at lyric time t, clamped to the last line. Returns -1 for no lines.
func UnfinishedLine(lines []Line, t float64) int {
	if len(lines) == 0 {
		return -1
	}
	for i, l := range lines {
		if t < l.End() {
			return i
		}
	}
	return len(lines) - 1
}

// naturalLineSizes groups words by a plain gap threshold, ignoring any word
// cap. Used only for timeline statistics.
func naturalLineSizes(tl Timeline, gap float64) []int {
	if len(tl) == 0 {
		return nil
	}
	sizes := []int{}
	n := 1
	for i := 1; i < len(tl); i++ {
		if tl[i].Start-tl[i-1].End > gap {
			sizes = append(sizes, n)
			n = 0
		}
		n++
	}
	return append(sizes, n)
}
