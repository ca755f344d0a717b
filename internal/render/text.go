package render

import (
	"image/color"

	"github.com/fogleman/gg"
	"github.com/yungbote/karatrack-backend/internal/lyrics"
)

var outlineOffsets = [8][2]float64{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// drawOutlined draws s anchored at (x, y) with an outline of width px.
func drawOutlined(dc *gg.Context, s string, x, y, ax, ay float64, fill, outline color.NRGBA, width float64) {
	if width > 0 && outline.A > 0 {
		dc.SetColor(outline)
		for _, o := range outlineOffsets {
			dc.DrawStringAnchored(s, x+o[0]*width, y+o[1]*width, ax, ay)
		}
	}
	dc.SetColor(fill)
	dc.DrawStringAnchored(s, x, y, ax, ay)
}

type lineRelation int

const (
	linePast lineRelation = iota
	lineCurrent
	lineFuture
)

func relationOf(idx, cur int) lineRelation {
	switch {
	case idx < cur:
		return linePast
	case idx == cur:
		return lineCurrent
	default:
		return lineFuture
	}
}

// wordColor is the colouring rule shared by every display mode. Inside the
// current line a word is highlighted exactly when lyric time has reached its
// start.
func wordColor(st *Style, rel lineRelation, w lyrics.Word, t float64, dimFuture bool) color.NRGBA {
	switch rel {
	case linePast:
		return st.Sung
	case lineCurrent:
		if w.SungAt(t) {
			return st.Highlight
		}
		return st.Text
	default:
		if dimFuture {
			return st.Upcoming
		}
		return st.Text
	}
}

// drawLine lays a line out centred on y using the current font face. Words
// whose right edge would pass the right padding are not drawn.
func (w *FrameWorker) drawLine(dc *gg.Context, rc RenderContext, line lyrics.Line, y float64, colorOf func(lyrics.Word) color.NRGBA, alpha float64) {
	if len(line.Words) == 0 {
		return
	}
	width := float64(rc.Width)
	pad := width * w.r.layout.PaddingFraction
	space, _ := dc.MeasureString(" ")
	widths := make([]float64, len(line.Words))
	total := 0.0
	for i, word := range line.Words {
		widths[i], _ = dc.MeasureString(word.Text)
		total += widths[i]
	}
	total += space * float64(len(line.Words)-1)

	x := (width - total) / 2
	if x < pad {
		x = pad
	}
	outline := withAlpha(rc.Style.Outline, alpha)
	ow := w.r.layout.scale(w.r.layout.OutlineWidth, rc.Height)
	for i, word := range line.Words {
		if x+widths[i] > width-pad {
			break
		}
		drawOutlined(dc, word.Text, x, y, 0, 0.5, colorOf(word), outline, ow)
		x += widths[i] + space
	}
}
