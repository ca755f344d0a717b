package render

import (
	"image"
	"image/color"
	"sort"

	"github.com/fogleman/gg"
	"github.com/yungbote/karatrack-backend/internal/lyrics"
)

// RenderContext is the complete input of one frame.
type RenderContext struct {
	Instant float64
	Width   int
	Height  int
	Style   *Style
	Scene   *Scene
}

// Renderer is shared by all workers of a job and never mutated after
// construction.
type Renderer struct {
	layout Layout
	fonts  *Fonts
	marks  *WatermarkCache
}

func NewRenderer(layout Layout, fonts *Fonts, marks *WatermarkCache) *Renderer {
	return &Renderer{layout: layout, fonts: fonts, marks: marks}
}

func (r *Renderer) Layout() Layout { return r.layout }

// FrameWorker renders frames one at a time. Use one per goroutine.
type FrameWorker struct {
	r     *Renderer
	faces *faceCache
	logos map[logoKey]image.Image
}

func (r *Renderer) NewWorker() *FrameWorker {
	return &FrameWorker{
		r:     r,
		faces: newFaceCache(r.fonts),
		logos: map[logoKey]image.Image{},
	}
}

// Render draws the frame for rc.Instant. The result depends only on rc.
func (w *FrameWorker) Render(rc RenderContext) *image.RGBA {
	dc := gg.NewContext(rc.Width, rc.Height)
	w.drawBackground(dc, rc)

	st := StateFor(rc.Instant, w.r.layout, rc.Scene)
	switch st.Kind {
	case StateIntro:
		w.drawIntro(dc, rc, st)
	case StateCountdown:
		w.drawCountdown(dc, rc, st)
	case StateLyrics:
		switch st.Mode {
		case lyrics.ModePage:
			w.drawPage(dc, rc, st.LyricTime)
		case lyrics.ModeOverwrite:
			w.drawOverwrite(dc, rc, st.LyricTime)
		default:
			w.drawScroll(dc, rc, st.LyricTime)
		}
	}

	w.drawWatermark(dc, rc)

	if img, ok := dc.Image().(*image.RGBA); ok {
		return img
	}
	out := image.NewRGBA(image.Rect(0, 0, rc.Width, rc.Height))
	gg.NewContextForRGBA(out).DrawImage(dc.Image(), 0, 0)
	return out
}

func (w *FrameWorker) drawBackground(dc *gg.Context, rc RenderContext) {
	st := rc.Style
	if st.BackgroundEnd == nil {
		dc.SetColor(st.Background)
		dc.Clear()
		return
	}
	grad := gg.NewLinearGradient(0, 0, 0, float64(rc.Height))
	grad.AddColorStop(0, st.Background)
	grad.AddColorStop(1, *st.BackgroundEnd)
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, float64(rc.Width), float64(rc.Height))
	dc.Fill()
}

func (w *FrameWorker) drawIntro(dc *gg.Context, rc RenderContext, st FrameState) {
	if st.IntroAlpha <= 0 {
		return
	}
	l := w.r.layout
	h := rc.Height
	cx, cy := float64(rc.Width)/2, float64(h)/2
	outline := withAlpha(rc.Style.Outline, st.IntroAlpha)
	ow := l.scale(l.OutlineWidth, h)
	track := rc.Scene.Track

	dc.SetFontFace(w.faces.face(FontMono, l.scale(l.TrackFontSize, h)))
	drawOutlined(dc, track.Number, cx, cy-l.scale(150, h), 0.5, 0.5, withAlpha(rc.Style.Accent, st.IntroAlpha), outline, ow)

	dc.SetFontFace(w.faces.face(rc.Style.Font, l.scale(l.TitleFontSize, h)))
	drawOutlined(dc, track.Title, cx, cy, 0.5, 0.5, withAlpha(rc.Style.Text, st.IntroAlpha), outline, ow)

	dc.SetFontFace(w.faces.face(FontRegular, l.scale(l.ArtistFontSize, h)))
	drawOutlined(dc, track.Artist, cx, cy+l.scale(120, h), 0.5, 0.5, withAlpha(rc.Style.Highlight, st.IntroAlpha), outline, ow)
}

func (w *FrameWorker) drawCountdown(dc *gg.Context, rc RenderContext, st FrameState) {
	l := w.r.layout
	h := float64(rc.Height)
	maxDots := l.CountdownMaxDots
	if maxDots < 1 {
		maxDots = 1
	}
	filled := CountdownDots(st.Gap.End-st.LyricTime, maxDots)

	radius := l.scale(l.LyricsFontSize, rc.Height) * 0.3
	spacing := radius * 3
	x0 := float64(rc.Width)/2 - spacing*float64(maxDots-1)/2
	y := h * 0.35
	dc.SetLineWidth(radius * 0.25)
	for i := 0; i < maxDots; i++ {
		dc.DrawCircle(x0+spacing*float64(i), y, radius)
		if i < filled {
			dc.SetColor(rc.Style.Accent)
			dc.Fill()
		} else {
			dc.SetColor(rc.Style.Upcoming)
			dc.Stroke()
		}
	}

	preview := PreviewLines(rc.Scene.Timeline, st.Gap, l.PreviewLeadIn, l.PreviewLines, l.Group)
	dc.SetFontFace(w.faces.face(rc.Style.Font, l.scale(l.SecondaryFontSize, rc.Height)))
	lh := l.scale(l.SecondaryFontSize, rc.Height) * l.LineSpacing
	for i, line := range preview {
		a := PreviewBrightness(i, l.PreviewLines)
		w.drawLine(dc, rc, line, h*0.5+float64(i)*lh, func(lyrics.Word) color.NRGBA {
			return withAlpha(rc.Style.Text, a)
		}, a)
	}
}

// PreviewLines regroups the words that start at or after the gap end minus
// the lead-in and returns up to limit of the resulting lines. Words sung
// before the gap never share a line with the preview.
func PreviewLines(tl lyrics.Timeline, g lyrics.Gap, leadIn float64, limit int, opts lyrics.GroupOptions) []lyrics.Line {
	if limit < 1 {
		return nil
	}
	from := g.End - leadIn
	first := sort.Search(len(tl), func(i int) bool { return tl[i].Start >= from })
	if first == len(tl) {
		return nil
	}
	lines := lyrics.GroupIntoLines(tl[first:], opts)
	if len(lines) > limit {
		lines = lines[:limit]
	}
	return lines
}

// PreviewBrightness fades preview lines linearly from 1 for the first line.
func PreviewBrightness(i, count int) float64 {
	if count < 1 {
		count = 1
	}
	return 1 - 0.6*float64(i)/float64(count)
}
