package render

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/karatrack-backend/internal/lyrics"
)

func testRenderer(t *testing.T) *Renderer {
	t.Helper()
	fonts, err := LoadFonts("")
	if err != nil {
		t.Fatalf("LoadFonts: %v", err)
	}
	return NewRenderer(DefaultLayout(), fonts, NewWatermarkCache(nil))
}

func sampleTimeline() lyrics.Timeline {
	return lyrics.Timeline{
		{Text: "sun", Start: 0.5, End: 0.9},
		{Text: "shines", Start: 1.0, End: 1.6},
		{Text: "love", Start: 2.0, End: 2.3},
		{Text: "grows", Start: 2.4, End: 3.0},
	}
}

func TestWordColorHighlightRule(t *testing.T) {
	st := DefaultStyle()
	w := lyrics.Word{Text: "love", Start: 2.0, End: 2.3}
	if got := wordColor(&st, lineCurrent, w, 1.9, true); got != st.Text {
		t.Fatalf("t=1.9: want=text got=%v", got)
	}
	if got := wordColor(&st, lineCurrent, w, 2.0, true); got != st.Highlight {
		t.Fatalf("t=2.0: want=highlight got=%v", got)
	}
	if got := wordColor(&st, linePast, w, 0, true); got != st.Sung {
		t.Fatalf("past: want=sung got=%v", got)
	}
	if got := wordColor(&st, lineFuture, w, 5, true); got != st.Upcoming {
		t.Fatalf("future scroll: want=upcoming got=%v", got)
	}
	if got := wordColor(&st, lineFuture, w, 5, false); got != st.Text {
		t.Fatalf("future page: want=text got=%v", got)
	}
}

func TestStateFor(t *testing.T) {
	layout := DefaultLayout()
	tl := lyrics.Timeline{{Text: "late", Start: 12, End: 12.5}, {Text: "start", Start: 12.6, End: 13}}
	scene := NewScene(tl, nil, lyrics.ModePage, 0, Track{}, Watermark{}, layout)

	cases := []struct {
		instant float64
		kind    StateKind
	}{
		{0, StateIntro},
		{4.99, StateIntro},
		{5, StateCountdown},
		{16.9, StateCountdown},
		{17, StateLyrics},
		{40, StateLyrics},
	}
	for _, tc := range cases {
		st := StateFor(tc.instant, layout, scene)
		if st.Kind != tc.kind {
			t.Fatalf("StateFor(%v): want=%s got=%s", tc.instant, tc.kind, st.Kind)
		}
	}
	if st := StateFor(17, layout, scene); st.Mode != lyrics.ModePage || st.LyricTime != 12 {
		t.Fatalf("lyrics state: got=%+v", st)
	}
	if st := StateFor(6, layout, scene); !st.Gap.Intro || st.Gap.End != 12 {
		t.Fatalf("countdown gap: got=%+v", st.Gap)
	}
}

func TestIntroAlpha(t *testing.T) {
	cases := map[float64]float64{0: 0, 0.5: 0.5, 1: 1, 2.5: 1, 4: 1, 4.5: 0.5, 5: 0}
	for at, want := range cases {
		if got := IntroAlpha(at, 5); math.Abs(got-want) > 1e-9 {
			t.Fatalf("IntroAlpha(%v): want=%v got=%v", at, want, got)
		}
	}
}

func TestCountdownDots(t *testing.T) {
	cases := map[float64]int{10: 3, 2.5: 3, 1.2: 2, 0.3: 1, 0: 0}
	for remaining, want := range cases {
		if got := CountdownDots(remaining, 3); got != want {
			t.Fatalf("CountdownDots(%v): want=%d got=%d", remaining, want, got)
		}
	}
}

func TestPreviewLines(t *testing.T) {
	opts := lyrics.GroupOptions{MaxWordsPerLine: 1}
	got := PreviewLines(sampleTimeline(), lyrics.Gap{Start: 0, End: 1.2}, 0.5, 4, opts)
	if len(got) != 3 || got[0].Text() != "shines" {
		t.Fatalf("preview: got=%d lines", len(got))
	}
	if got := PreviewLines(sampleTimeline(), lyrics.Gap{Start: 0, End: 1.2}, 0.5, 2, opts); len(got) != 2 {
		t.Fatalf("limit: want=2 got=%d", len(got))
	}
	if got := PreviewLines(sampleTimeline(), lyrics.Gap{Start: 3, End: 9}, 0.5, 4, opts); got != nil {
		t.Fatalf("past the last word: want=nil got=%v", got)
	}
	if PreviewBrightness(0, 4) <= PreviewBrightness(1, 4) {
		t.Fatalf("preview brightness must fall with index")
	}
}

func TestPreviewAfterShortPhrase(t *testing.T) {
	layout := DefaultLayout()
	tl := lyrics.Timeline{
		{Text: "hey", Start: 0, End: 0.4},
		{Text: "you", Start: 0.5, End: 0.9},
		{Text: "sun", Start: 8.0, End: 8.4},
		{Text: "shines", Start: 8.5, End: 9.0},
		{Text: "bright", Start: 9.1, End: 9.6},
	}
	scene := NewScene(tl, nil, lyrics.ModeScroll, 10, Track{}, Watermark{}, layout)
	if len(scene.Lines) != 1 {
		t.Fatalf("lines: want=1 got=%d", len(scene.Lines))
	}
	st := StateFor(layout.IntroDuration+3, layout, scene)
	if st.Kind != StateCountdown || st.Gap.End != 8 {
		t.Fatalf("state: want countdown to 8 got=%s gap=%+v", st.Kind, st.Gap)
	}
	got := PreviewLines(scene.Timeline, st.Gap, layout.PreviewLeadIn, layout.PreviewLines, layout.Group)
	if len(got) != 1 || got[0].Text() != "sun shines bright" {
		t.Fatalf("preview: want=[sun shines bright] got=%v", got)
	}
}

func TestScrollWindow(t *testing.T) {
	cases := []struct {
		cur, n, visible int
		first, last     int
	}{
		{5, 20, 7, 2, 8},
		{0, 20, 7, 0, 3},
		{19, 20, 7, 16, 19},
		{1, 2, 7, 0, 1},
		{4, 10, 4, 2, 5},
	}
	for _, tc := range cases {
		first, last := ScrollWindow(tc.cur, tc.n, tc.visible)
		if first != tc.first || last != tc.last {
			t.Fatalf("ScrollWindow(%d,%d,%d): want=%d..%d got=%d..%d", tc.cur, tc.n, tc.visible, tc.first, tc.last, first, last)
		}
		if last-first+1 > tc.visible {
			t.Fatalf("ScrollWindow(%d,%d,%d): %d lines exceed %d", tc.cur, tc.n, tc.visible, last-first+1, tc.visible)
		}
	}
}

func TestNewSceneAutoUsesAudioDuration(t *testing.T) {
	tl := lyrics.Timeline{}
	for i := 0; i < 10; i++ {
		start := float64(i) * 0.3
		tl = append(tl, lyrics.Word{Text: "la", Start: start, End: start + 0.25})
	}
	layout := DefaultLayout()
	if got := NewScene(tl, nil, lyrics.ModeAuto, 300, Track{}, Watermark{}, layout).Mode; got != lyrics.ModeOverwrite {
		t.Fatalf("long song: want=%s got=%s", lyrics.ModeOverwrite, got)
	}
	if got := NewScene(tl, nil, lyrics.ModeAuto, 3, Track{}, Watermark{}, layout).Mode; got != lyrics.ModeScroll {
		t.Fatalf("short song: want=%s got=%s", lyrics.ModeScroll, got)
	}
	if got := NewScene(tl, nil, lyrics.ModePage, 300, Track{}, Watermark{}, layout).Mode; got != lyrics.ModePage {
		t.Fatalf("explicit mode: want=%s got=%s", lyrics.ModePage, got)
	}
}

func TestOverwriteSlots(t *testing.T) {
	cases := []struct {
		cur  int
		want []int
	}{
		{0, []int{0, 1, 2}},
		{1, []int{3, 1, 2}},
		{2, []int{3, 4, 2}},
		{4, []int{-1, 4, -1}},
	}
	for _, tc := range cases {
		if got := OverwriteSlots(5, tc.cur, 3); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("OverwriteSlots(cur=%d): want=%v got=%v", tc.cur, tc.want, got)
		}
	}
}

func TestPageFor(t *testing.T) {
	lines := lyrics.GroupIntoLines(sampleTimeline(), lyrics.GroupOptions{MaxWordsPerLine: 1})
	pages := lyrics.Paginate(lines, 3)
	p, ok := PageFor(pages, 3)
	if !ok || p.Index != 1 {
		t.Fatalf("PageFor(3): want page 1 got=%+v ok=%v", p, ok)
	}
	if _, ok := PageFor(pages, 9); ok {
		t.Fatalf("PageFor(9): want miss")
	}
}

func TestScrollOffset(t *testing.T) {
	if got := ScrollOffset(3, 3, 0.5, 100); got != -50 {
		t.Fatalf("current line: want=-50 got=%v", got)
	}
	if got := ScrollOffset(4, 3, 0, 100); got != 100 {
		t.Fatalf("next line: want=100 got=%v", got)
	}
}

func TestRenderEmptyTimelineIsBackgroundOnly(t *testing.T) {
	r := testRenderer(t)
	st := DefaultStyle()
	scene := NewScene(nil, nil, lyrics.ModeAuto, 0, Track{}, Watermark{}, r.Layout())
	img := r.NewWorker().Render(RenderContext{Instant: 30, Width: 320, Height: 180, Style: &st, Scene: scene})
	if img.Bounds() != image.Rect(0, 0, 320, 180) {
		t.Fatalf("bounds: got=%v", img.Bounds())
	}
	bg := color.RGBA{R: 10, G: 10, B: 20, A: 255}
	for y := 0; y < 180; y++ {
		for x := 0; x < 320; x++ {
			if got := img.RGBAAt(x, y); got != bg {
				t.Fatalf("pixel (%d,%d): want=%v got=%v", x, y, bg, got)
			}
		}
	}
}

func TestRenderLyricsDrawsHighlight(t *testing.T) {
	r := testRenderer(t)
	st := DefaultStyle()
	for _, mode := range []lyrics.DisplayMode{lyrics.ModeScroll, lyrics.ModePage, lyrics.ModeOverwrite} {
		scene := NewScene(sampleTimeline(), nil, mode, 0, Track{}, Watermark{}, r.Layout())
		// lyric time 2.5: "sun shines love" sung, "grows" sung too
		img := r.NewWorker().Render(RenderContext{Instant: 7.5, Width: 1280, Height: 720, Style: &st, Scene: scene})
		if !hasPixel(img, func(c color.RGBA) bool { return c.R < 40 && c.G > 220 && c.B > 220 }) {
			t.Fatalf("%s: no highlight pixels drawn", mode)
		}
	}
}

func TestRenderDeterministicAcrossWorkers(t *testing.T) {
	r := testRenderer(t)
	st := DefaultStyle()
	scene := NewScene(sampleTimeline(), nil, lyrics.ModeScroll, 0, Track{Artist: "A", Title: "B"}, Watermark{}, r.Layout())
	for _, instant := range []float64{1, 5.7, 7.2} {
		rc := RenderContext{Instant: instant, Width: 640, Height: 360, Style: &st, Scene: scene}
		a := r.NewWorker().Render(rc)
		b := r.NewWorker().Render(rc)
		if !bytes.Equal(a.Pix, b.Pix) {
			t.Fatalf("instant %v: workers disagree", instant)
		}
	}
}

func writeLogo(t *testing.T) []byte {
	t.Helper()
	logo := image.NewRGBA(image.Rect(0, 0, 20, 20))
	for i := range logo.Pix {
		logo.Pix[i] = 255
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, logo); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func logoFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logo.png")
	if err := os.WriteFile(path, writeLogo(t), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func bright(c color.RGBA) bool { return c.R > 100 }

func TestRenderFreeWatermark(t *testing.T) {
	r := testRenderer(t)
	path := logoFile(t)
	wm := Watermark{Tier: TierFree, LogoURL: path}
	if err := r.marks.Prefetch(t.Context(), wm); err != nil {
		t.Fatalf("Prefetch: %v", err)
	}
	st := DefaultStyle()
	scene := NewScene(nil, nil, lyrics.ModeAuto, 0, Track{}, wm, r.Layout())
	img := r.NewWorker().Render(RenderContext{Instant: 30, Width: 640, Height: 360, Style: &st, Scene: scene})
	corner := img.SubImage(image.Rect(0, 260, 320, 360)).(*image.RGBA)
	if !hasPixel(corner, bright) {
		t.Fatalf("free tier: no watermark in bottom-left")
	}

	other := NewScene(nil, nil, lyrics.ModeAuto, 0, Track{}, Watermark{Tier: "enterprise", LogoURL: path}, r.Layout())
	plain := r.NewWorker().Render(RenderContext{Instant: 30, Width: 640, Height: 360, Style: &st, Scene: other})
	if hasPixel(plain, bright) {
		t.Fatalf("unknown tier: want no overlay")
	}
}

func TestRenderStudioWatermark(t *testing.T) {
	r := testRenderer(t)
	wm := Watermark{Tier: TierStudio, LogoURL: logoFile(t)}
	if err := r.marks.Prefetch(t.Context(), wm); err != nil {
		t.Fatalf("Prefetch: %v", err)
	}
	st := DefaultStyle()
	scene := NewScene(nil, nil, lyrics.ModeAuto, 0, Track{}, wm, r.Layout())
	img := r.NewWorker().Render(RenderContext{Instant: 30, Width: 640, Height: 360, Style: &st, Scene: scene})
	if !hasPixel(img.SubImage(image.Rect(320, 260, 640, 360)).(*image.RGBA), bright) {
		t.Fatalf("studio tier: no logo in bottom-right")
	}
	if hasPixel(img.SubImage(image.Rect(0, 260, 320, 360)).(*image.RGBA), bright) {
		t.Fatalf("studio tier: want bottom-left empty")
	}
	if hasPixel(img.SubImage(image.Rect(0, 0, 640, 260)).(*image.RGBA), bright) {
		t.Fatalf("studio tier: want no text overlay")
	}
}

func TestWatermarkFetchOncePerURL(t *testing.T) {
	body := writeLogo(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(20 * time.Millisecond)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	cache := NewWatermarkCache(srv.Client())
	url := srv.URL + "/logo.png"
	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			img, err := cache.Fetch(t.Context(), url)
			if err == nil && img.Bounds().Dx() != 20 {
				err = errors.New("unexpected logo size")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
	}
	if _, err := cache.Fetch(t.Context(), url); err != nil {
		t.Fatalf("cached Fetch: %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("server hits: want=1 got=%d", got)
	}
	if _, ok := cache.Get(url); !ok {
		t.Fatalf("Get after Fetch: want hit")
	}
}

func TestParseStyle(t *testing.T) {
	presets := StylePresets{"neon": {BackgroundColor: "#000", HighlightColor: "#ff00ff"}}
	st, err := ParseStyle(StyleInput{Preset: "Neon", TextColor: "eeeeee", GradientColor: "#102030"}, presets)
	if err != nil {
		t.Fatalf("ParseStyle: %v", err)
	}
	if st.Highlight != (color.NRGBA{R: 255, G: 0, B: 255, A: 255}) {
		t.Fatalf("preset highlight: got=%v", st.Highlight)
	}
	if st.Text != (color.NRGBA{R: 0xee, G: 0xee, B: 0xee, A: 255}) {
		t.Fatalf("override text: got=%v", st.Text)
	}
	if st.BackgroundEnd == nil || HexColor(*st.BackgroundEnd) != "#102030" {
		t.Fatalf("gradient: got=%v", st.BackgroundEnd)
	}
	if st.Upcoming != DefaultStyle().Upcoming {
		t.Fatalf("unset field must keep default")
	}

	var se *StyleError
	if _, err := ParseStyle(StyleInput{TextColor: "#12"}, nil); err == nil {
		t.Fatalf("bad hex: want error")
	} else if !errors.As(err, &se) || se.Field != "text_color" {
		t.Fatalf("bad hex: want StyleError on text_color got=%v", err)
	}
	if _, err := ParseStyle(StyleInput{Preset: "missing"}, presets); err == nil {
		t.Fatalf("unknown preset: want error")
	}
}

func TestLoadStylePresets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	body := "presets:\n  sunset:\n    background_color: \"#201010\"\n    gradient_color: \"#ff8000\"\n    font: regular\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	presets, err := LoadStylePresets(path)
	if err != nil {
		t.Fatalf("LoadStylePresets: %v", err)
	}
	st, err := ParseStyle(StyleInput{Preset: "sunset"}, presets)
	if err != nil {
		t.Fatalf("ParseStyle: %v", err)
	}
	if st.Font != FontRegular || HexColor(st.Background) != "#201010" {
		t.Fatalf("preset: got font=%s bg=%s", st.Font, HexColor(st.Background))
	}
}

func hasPixel(img *image.RGBA, match func(color.RGBA) bool) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if match(img.RGBAAt(x, y)) {
				return true
			}
		}
	}
	return false
}
