package lyrics

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func evenTimeline(n int, step, dur float64) Timeline {
	tl := make(Timeline, n)
	for i := 0; i < n; i++ {
		s := float64(i) * step
		tl[i] = Word{Text: fmt.Sprintf("w%d", i), Start: s, End: s + dur}
	}
	return tl
}

func TestDetectGapsNoGaps(t *testing.T) {
	tl := Timeline{{"sun", 0.0, 0.4}, {"shines", 0.5, 1.0}}
	gaps := DetectGaps(tl, 10, 5)
	if len(gaps) != 0 {
		t.Fatalf("gaps: want=0 got=%d (%+v)", len(gaps), gaps)
	}
}

func TestDetectGapsLeadingGap(t *testing.T) {
	tl := Timeline{{"late", 12.0, 12.5}, {"start", 12.6, 13.0}}
	gaps := DetectGaps(tl, 10, 5)
	want := []Gap{{Start: 0, End: 12.0, Duration: 12.0, Intro: true}}
	if !reflect.DeepEqual(gaps, want) {
		t.Fatalf("gaps: want=%+v got=%+v", want, gaps)
	}
}

func TestDetectGapsLeadingThresholdIsInclusive(t *testing.T) {
	gaps := DetectGaps(Timeline{{"a", 10.0, 10.2}}, 10, 5)
	if len(gaps) != 1 || !gaps[0].Intro {
		t.Fatalf("gaps: want one intro gap got=%+v", gaps)
	}
}

func TestDetectGapsInteriorOrderAndNoMerge(t *testing.T) {
	tl := Timeline{
		{"a", 0.0, 1.0},
		{"b", 7.0, 7.5},  // 6s gap
		{"c", 13.0, 13.5}, // 5.5s gap
		{"d", 13.6, 14.0},
	}
	gaps := DetectGaps(tl, 10, 5)
	if len(gaps) != 2 {
		t.Fatalf("gaps: want=2 got=%d (%+v)", len(gaps), gaps)
	}
	if gaps[0].Start != 1.0 || gaps[0].End != 7.0 || gaps[0].Intro {
		t.Fatalf("gap[0]: got=%+v", gaps[0])
	}
	if gaps[1].Start != 7.5 || gaps[1].End != 13.0 {
		t.Fatalf("gap[1]: got=%+v", gaps[1])
	}
	for i := 0; i+1 < len(gaps); i++ {
		if gaps[i].End > gaps[i+1].Start {
			t.Fatalf("gaps overlap: %+v %+v", gaps[i], gaps[i+1])
		}
	}
}

func TestDetectGapsEmpty(t *testing.T) {
	if gaps := DetectGaps(nil, 10, 5); len(gaps) != 0 {
		t.Fatalf("gaps: want empty got=%+v", gaps)
	}
}

func TestGroupIntoLinesWordCap(t *testing.T) {
	tl := evenTimeline(20, 0.3, 0.25)
	lines := GroupIntoLines(tl, GroupOptions{MaxWordsPerLine: 7, PauseGap: 2.0, MinWordsBeforeBreak: 3})
	sizes := []int{}
	for _, l := range lines {
		sizes = append(sizes, len(l.Words))
	}
	if !reflect.DeepEqual(sizes, []int{7, 7, 6}) {
		t.Fatalf("sizes: want=[7 7 6] got=%v", sizes)
	}
}

func TestGroupIntoLinesPauseBreak(t *testing.T) {
	tl := Timeline{
		{"one", 0.0, 0.2}, {"two", 0.3, 0.5}, {"three", 0.6, 0.8},
		{"four", 2.0, 2.2}, // 1.2s pause before, line has 3 words -> break
		{"five", 2.3, 2.5},
		{"six", 4.0, 4.2}, // 1.5s pause but only 2 words -> no break
	}
	lines := GroupIntoLines(tl, GroupOptions{MaxWordsPerLine: 7, PauseGap: 0.8, MinWordsBeforeBreak: 3})
	if len(lines) != 2 {
		t.Fatalf("lines: want=2 got=%d", len(lines))
	}
	if got := lines[0].Text(); got != "one two three" {
		t.Fatalf("line 0: got=%q", got)
	}
	if got := lines[1].Text(); got != "four five six" {
		t.Fatalf("line 1: got=%q", got)
	}
}

func TestGroupIntoLinesPartitionsTimeline(t *testing.T) {
	tl := Timeline{}
	for i := 0; i < 53; i++ {
		s := float64(i)*0.5 + float64(i/9)*2
		tl = append(tl, Word{Text: fmt.Sprintf("x%d", i), Start: s, End: s + 0.3})
	}
	for _, opts := range []GroupOptions{
		{MaxWordsPerLine: 1},
		{MaxWordsPerLine: 4, PauseGap: 0.5, MinWordsBeforeBreak: 1},
		DefaultGroupOptions(),
		{MaxWordsPerLine: 100, PauseGap: 1, MinWordsBeforeBreak: 0},
	} {
		lines := GroupIntoLines(tl, opts)
		var joined Timeline
		for _, l := range lines {
			if len(l.Words) == 0 {
				t.Fatalf("opts %+v: empty line", opts)
			}
			joined = append(joined, l.Words...)
		}
		if !reflect.DeepEqual(joined, tl) {
			t.Fatalf("opts %+v: lines do not reproduce timeline", opts)
		}
		again := GroupIntoLines(tl, opts)
		if !reflect.DeepEqual(lines, again) {
			t.Fatalf("opts %+v: grouping not deterministic", opts)
		}
	}
}

func TestPaginate(t *testing.T) {
	lines := GroupIntoLines(evenTimeline(18, 0.3, 0.2), GroupOptions{MaxWordsPerLine: 2})
	pages := Paginate(lines, 4)
	if len(pages) != 3 {
		t.Fatalf("pages: want=3 got=%d", len(pages))
	}
	if pages[2].First != 8 || len(pages[2].Lines) != 1 {
		t.Fatalf("last page: got first=%d lines=%d", pages[2].First, len(pages[2].Lines))
	}
}

func TestLineProgressZeroDuration(t *testing.T) {
	l := Line{Words: []Word{{"a", 3, 3}, {"b", 3, 3}}}
	if p := l.Progress(5); p != 0 {
		t.Fatalf("progress: want=0 got=%v", p)
	}
	l2 := Line{Words: []Word{{"a", 2, 2.5}, {"b", 3, 4}}}
	if p := l2.Progress(3); p != 0.5 {
		t.Fatalf("progress: want=0.5 got=%v", p)
	}
	if p := l2.Progress(10); p != 1 {
		t.Fatalf("progress: want=1 got=%v", p)
	}
}

func TestActiveAndUnfinishedLine(t *testing.T) {
	lines := []Line{
		{Words: []Word{{"a", 1, 2}}},
		{Words: []Word{{"b", 3, 4}}},
		{Words: []Word{{"c", 5, 6}}},
	}
	cases := []struct {
		t          float64
		active     int
		unfinished int
	}{
		{0, 0, 0},
		{1.5, 0, 0},
		{2.5, 0, 1},
		{3, 1, 1},
		{7, 2, 2},
	}
	for _, tc := range cases {
		if got := ActiveLine(lines, tc.t); got != tc.active {
			t.Fatalf("ActiveLine(%v): want=%d got=%d", tc.t, tc.active, got)
		}
		if got := UnfinishedLine(lines, tc.t); got != tc.unfinished {
			t.Fatalf("UnfinishedLine(%v): want=%d got=%d", tc.t, tc.unfinished, got)
		}
	}
	if ActiveLine(nil, 1) != -1 || UnfinishedLine(nil, 1) != -1 {
		t.Fatalf("empty lines: want -1")
	}
}

func TestSungAt(t *testing.T) {
	w := Word{Text: "love", Start: 2.0, End: 2.3}
	if w.SungAt(1.9) {
		t.Fatalf("SungAt(1.9): want=false")
	}
	prev := false
	for ti := 0; ti <= 100; ti++ {
		at := 1.5 + float64(ti)*0.01
		got := w.SungAt(at)
		if prev && !got {
			t.Fatalf("highlight not monotonic at %v", at)
		}
		prev = got
	}
	if !w.SungAt(2.0) || !w.SungAt(2.3) || !w.SungAt(60) {
		t.Fatalf("SungAt: want=true at and after start")
	}
}

func TestValidateAndSorted(t *testing.T) {
	tl := Timeline{{"b", 2, 2.5}, {"a", 1, 1.5}}
	var te *TimelineError
	if err := tl.Validate(); !errors.As(err, &te) || te.Index != 1 {
		t.Fatalf("Validate: want TimelineError at 1 got=%v", err)
	}
	sorted := tl.Sorted()
	if err := sorted.Validate(); err != nil {
		t.Fatalf("Sorted().Validate: %v", err)
	}
	if sorted[0].Text != "a" || tl[0].Text != "b" {
		t.Fatalf("Sorted must copy: got=%+v orig=%+v", sorted, tl)
	}
	if err := (Timeline{{"x", 2, 1}}).Validate(); err == nil {
		t.Fatalf("Validate: want error for end < start")
	}
}

func TestSelectModeExplicit(t *testing.T) {
	tl := evenTimeline(500, 0.1, 0.05)
	if got := SelectMode(tl, 60, ModePage); got != ModePage {
		t.Fatalf("explicit: want=page got=%s", got)
	}
}

func TestSelectModeFastIsScroll(t *testing.T) {
	// 180 words in 60s
	tl := evenTimeline(180, 60.0/180.0, 0.2)
	if got := SelectMode(tl, 60, ModeAuto); got != ModeScroll {
		t.Fatalf("wpm 180: want=scroll got=%s", got)
	}
	if got := ModeForStats(TimelineStats{WordsPerMinute: 180, AvgLineLength: 2}); got != ModeScroll {
		t.Fatalf("stats wpm 180: want=scroll got=%s", got)
	}
}

func TestSelectModeEmptyIsOverwrite(t *testing.T) {
	if got := SelectMode(nil, 200, ModeAuto); got != ModeOverwrite {
		t.Fatalf("empty: want=overwrite got=%s", got)
	}
	if got := SelectMode(Timeline{}, 0, ""); got != ModeOverwrite {
		t.Fatalf("empty/blank request: want=overwrite got=%s", got)
	}
}

func TestSelectModeLongLinesIsScroll(t *testing.T) {
	// 12 words back to back, then silence: one natural line of 12 words, slow wpm
	tl := evenTimeline(12, 0.3, 0.25)
	if got := SelectMode(tl, 600, ModeAuto); got != ModeScroll {
		t.Fatalf("long lines: want=scroll got=%s", got)
	}
}

func TestSelectModeSectionsIsPage(t *testing.T) {
	tl := Timeline{}
	for _, base := range []float64{0, 20, 40} {
		for i := 0; i < 4; i++ {
			s := base + float64(i)*0.5
			tl = append(tl, Word{Text: "la", Start: s, End: s + 0.4})
		}
	}
	st := ComputeStats(tl, 60)
	if !st.HasClearSections {
		t.Fatalf("stats: want sections got=%+v", st)
	}
	got := SelectMode(tl, 60, ModeAuto)
	if got != ModePage {
		t.Fatalf("sections: want=page got=%s", got)
	}
	if again := SelectMode(tl, 60, ModeAuto); again != got {
		t.Fatalf("determinism: %s vs %s", got, again)
	}
}

func TestParseDisplayMode(t *testing.T) {
	for in, want := range map[string]DisplayMode{"": ModeAuto, "AUTO": ModeAuto, " scroll ": ModeScroll, "page": ModePage, "Overwrite": ModeOverwrite} {
		got, err := ParseDisplayMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseDisplayMode(%q): want=%s got=%s err=%v", in, want, got, err)
		}
	}
	if _, err := ParseDisplayMode("karaoke"); err == nil {
		t.Fatalf("ParseDisplayMode: want error")
	}
}
