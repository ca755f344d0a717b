package render

import (
	"image/color"

	"github.com/fogleman/gg"
	"github.com/yungbote/karatrack-backend/internal/lyrics"
)

// Scroll: the current line sits at the centre and the stack drifts up by one
// line height over the current line's singing window.
func (w *FrameWorker) drawScroll(dc *gg.Context, rc RenderContext, t float64) {
	lines := rc.Scene.Lines
	cur := lyrics.ActiveLine(lines, t)
	if cur < 0 {
		return
	}
	l := w.r.layout
	h := float64(rc.Height)
	lh := l.scale(l.LyricsFontSize, rc.Height) * l.LineSpacing
	progress := lines[cur].Progress(t)
	first, last := ScrollWindow(cur, len(lines), l.ScrollVisible)

	for i := first; i <= last; i++ {
		y := ScrollOffset(i, cur, progress, lh) + h/2
		if y < -lh || y > h+lh {
			continue
		}
		rel := relationOf(i, cur)
		size := l.SecondaryFontSize
		if rel == lineCurrent {
			size = l.LyricsFontSize
		}
		dc.SetFontFace(w.faces.face(rc.Style.Font, l.scale(size, rc.Height)))
		w.drawLine(dc, rc, lines[i], y, func(word lyrics.Word) color.NRGBA {
			return wordColor(rc.Style, rel, word, t, true)
		}, 1)
	}
}

// ScrollWindow is the inclusive range of line indexes drawn around cur:
// at most visible lines, centred on cur and clipped to [0, n).
func ScrollWindow(cur, n, visible int) (first, last int) {
	if visible < 1 {
		visible = 1
	}
	first = cur - visible/2
	last = first + visible - 1
	if first < 0 {
		first = 0
	}
	if last > n-1 {
		last = n - 1
	}
	return first, last
}

// ScrollOffset is the vertical offset of line i from the frame centre.
func ScrollOffset(i, cur int, progress, lineHeight float64) float64 {
	return float64(i-cur)*lineHeight - progress*lineHeight
}

// Page: only the page holding the current line is shown, as a centred block.
func (w *FrameWorker) drawPage(dc *gg.Context, rc RenderContext, t float64) {
	lines := rc.Scene.Lines
	cur := lyrics.ActiveLine(lines, t)
	if cur < 0 {
		return
	}
	page, ok := PageFor(rc.Scene.Pages, cur)
	if !ok {
		return
	}
	l := w.r.layout
	lh := l.scale(l.LyricsFontSize, rc.Height) * l.LineSpacing
	top := float64(rc.Height)/2 - lh*float64(len(page.Lines)-1)/2
	dc.SetFontFace(w.faces.face(rc.Style.Font, l.scale(l.LyricsFontSize, rc.Height)))
	for i, line := range page.Lines {
		rel := relationOf(page.First+i, cur)
		w.drawLine(dc, rc, line, top+float64(i)*lh, func(word lyrics.Word) color.NRGBA {
			return wordColor(rc.Style, rel, word, t, false)
		}, 1)
	}
}

// PageFor returns the page containing line index cur.
func PageFor(pages []lyrics.Page, cur int) (lyrics.Page, bool) {
	for _, p := range pages {
		if cur >= p.First && cur < p.First+len(p.Lines) {
			return p, true
		}
	}
	return lyrics.Page{}, false
}

// Overwrite: fixed slots; line i always lands in slot i mod slots, and a slot
// is rewritten once the line in it has finished.
func (w *FrameWorker) drawOverwrite(dc *gg.Context, rc RenderContext, t float64) {
	lines := rc.Scene.Lines
	cur := lyrics.UnfinishedLine(lines, t)
	if cur < 0 {
		return
	}
	l := w.r.layout
	slots := l.OverwriteSlots
	if slots < 1 {
		slots = 1
	}
	lh := l.scale(l.LyricsFontSize, rc.Height) * l.LineSpacing * 1.2
	top := float64(rc.Height)/2 - lh*float64(slots-1)/2
	dc.SetFontFace(w.faces.face(rc.Style.Font, l.scale(l.LyricsFontSize, rc.Height)))
	for _, idx := range OverwriteSlots(len(lines), cur, slots) {
		if idx < 0 {
			continue
		}
		rel := relationOf(idx, cur)
		w.drawLine(dc, rc, lines[idx], top+float64(idx%slots)*lh, func(word lyrics.Word) color.NRGBA {
			return wordColor(rc.Style, rel, word, t, false)
		}, 1)
	}
}

// OverwriteSlots maps each slot to the line index it shows (or -1) given the
// current line: lines cur..cur+slots-1 each sit in slot index mod slots.
func OverwriteSlots(n, cur, slots int) []int {
	out := make([]int, slots)
	for i := range out {
		out[i] = -1
	}
	if cur < 0 {
		return out
	}
	for k := 0; k < slots; k++ {
		idx := cur + k
		if idx >= n {
			break
		}
		out[idx%slots] = idx
	}
	return out
}
