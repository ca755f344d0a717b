package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
	"golang.org/x/sync/singleflight"
)

type Tier string

const (
	TierFree   Tier = "free"
	TierStudio Tier = "studio"
)

const DefaultWatermarkText = "Made with Karatrack"

// Watermark describes the overlay for a job. For the free tier LogoURL is the
// house logo; for studio it is the caller's own logo.
type Watermark struct {
	Tier    Tier
	LogoURL string
	Text    string
}

func (w Watermark) enabled() bool {
	return w.Tier == TierFree || w.Tier == TierStudio
}

// WatermarkCache holds decoded logo images by source URL. It is filled before
// frame rendering starts and is only read while frames render.
type WatermarkCache struct {
	client   *http.Client
	maxBytes int64

	group  singleflight.Group
	mu     sync.RWMutex
	images map[string]image.Image
}

func NewWatermarkCache(client *http.Client) *WatermarkCache {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &WatermarkCache{
		client:   client,
		maxBytes: 10 << 20,
		images:   map[string]image.Image{},
	}
}

func (c *WatermarkCache) Get(src string) (image.Image, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	img, ok := c.images[src]
	return img, ok
}

// Prefetch loads the logo a watermark needs. A watermark without a logo is a
// no-op.
func (c *WatermarkCache) Prefetch(ctx context.Context, wm Watermark) error {
	if !wm.enabled() || strings.TrimSpace(wm.LogoURL) == "" {
		return nil
	}
	_, err := c.Fetch(ctx, wm.LogoURL)
	return err
}

// Fetch returns the decoded image for src, loading it at most once even
// under concurrent callers. Sources without an http(s) scheme are read from
// the local filesystem.
func (c *WatermarkCache) Fetch(ctx context.Context, src string) (image.Image, error) {
	if img, ok := c.Get(src); ok {
		return img, nil
	}
	v, err, _ := c.group.Do(src, func() (interface{}, error) {
		if img, ok := c.Get(src); ok {
			return img, nil
		}
		img, err := c.load(ctx, src)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.images[src] = img
		c.mu.Unlock()
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(image.Image), nil
}

func (c *WatermarkCache) load(ctx context.Context, src string) (image.Image, error) {
	var body io.ReadCloser
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, fmt.Errorf("watermark request: %w", err)
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("watermark fetch: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, fmt.Errorf("watermark fetch: status %d", resp.StatusCode)
		}
		body = resp.Body
	} else {
		f, err := os.Open(strings.TrimPrefix(src, "file://"))
		if err != nil {
			return nil, fmt.Errorf("watermark open: %w", err)
		}
		body = f
	}
	defer body.Close()
	img, _, err := image.Decode(io.LimitReader(body, c.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("watermark decode: %w", err)
	}
	return img, nil
}

type logoKey struct {
	src    string
	height int
}

// scaledLogo is cached per worker; the shared cache keeps only originals.
func (w *FrameWorker) scaledLogo(src string, height int) image.Image {
	k := logoKey{src: src, height: height}
	if img, ok := w.logos[k]; ok {
		return img
	}
	orig, ok := w.r.marks.Get(src)
	if !ok {
		w.logos[k] = nil
		return nil
	}
	b := orig.Bounds()
	if b.Dy() == 0 {
		w.logos[k] = nil
		return nil
	}
	width := b.Dx() * height / b.Dy()
	if width < 1 {
		width = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), orig, b, draw.Over, nil)
	w.logos[k] = dst
	return dst
}

func (w *FrameWorker) drawWatermark(dc *gg.Context, rc RenderContext) {
	wm := rc.Scene.Watermark
	if !wm.enabled() {
		return
	}
	width, height := rc.Width, rc.Height
	margin := float64(height) * 0.03
	logoH := int(float64(height) * 0.06)
	canvas, _ := dc.Image().(*image.RGBA)

	switch wm.Tier {
	case TierFree:
		x := margin
		if logo := w.scaledLogo(wm.LogoURL, logoH); logo != nil && canvas != nil {
			pt := image.Pt(int(margin), height-int(margin)-logo.Bounds().Dy())
			drawFaded(canvas, logo, pt, 0.6)
			x += float64(logo.Bounds().Dx()) + margin/2
		}
		text := wm.Text
		if strings.TrimSpace(text) == "" {
			text = DefaultWatermarkText
		}
		dc.SetFontFace(w.faces.face(FontBold, w.r.layout.scale(w.r.layout.WatermarkFontSize, height)))
		y := float64(height) - margin - float64(logoH)/2
		drawOutlined(dc, text, x, y, 0, 0.5,
			withAlpha(color.NRGBA{R: 255, G: 255, B: 255, A: 255}, 0.6),
			withAlpha(rc.Style.Outline, 0.6),
			w.r.layout.scale(w.r.layout.OutlineWidth, height))
	case TierStudio:
		logo := w.scaledLogo(wm.LogoURL, int(float64(height)*0.08))
		if logo == nil || canvas == nil {
			return
		}
		lb := logo.Bounds()
		pt := image.Pt(width-int(margin)-lb.Dx(), height-int(margin)-lb.Dy())
		drawFaded(canvas, logo, pt, 0.85)
	}
}

func drawFaded(dst *image.RGBA, src image.Image, at image.Point, alpha float64) {
	mask := image.NewUniform(color.Alpha{A: uint8(alpha*255 + 0.5)})
	r := image.Rectangle{Min: at, Max: at.Add(src.Bounds().Size())}
	draw.DrawMask(dst, r, src, src.Bounds().Min, mask, image.Point{}, draw.Over)
}
