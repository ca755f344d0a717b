package render

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
)

type FontFamily string

const (
	FontBold    FontFamily = "bold"
	FontRegular FontFamily = "regular"
	FontItalic  FontFamily = "italic"
	FontMono    FontFamily = "mono"
	FontCustom  FontFamily = "custom"
)

func ParseFontFamily(s string) (FontFamily, error) {
	f := FontFamily(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case "":
		return FontBold, nil
	case FontBold, FontRegular, FontItalic, FontMono, FontCustom:
		return f, nil
	default:
		return "", fmt.Errorf("unknown font family %q", s)
	}
}

// Fonts holds parsed TrueType fonts. Parsed fonts are safe to share between
// goroutines; faces are not, so each FrameWorker builds its own.
type Fonts struct {
	families map[FontFamily]*truetype.Font
}

// LoadFonts parses the embedded Go fonts and, when customPath is set, a TTF
// from disk registered as the "custom" family.
func LoadFonts(customPath string) (*Fonts, error) {
	f := &Fonts{families: map[FontFamily]*truetype.Font{}}
	for fam, data := range map[FontFamily][]byte{
		FontBold:    gobold.TTF,
		FontRegular: goregular.TTF,
		FontItalic:  goitalic.TTF,
		FontMono:    gomonobold.TTF,
	} {
		parsed, err := truetype.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s font: %w", fam, err)
		}
		f.families[fam] = parsed
	}
	if p := strings.TrimSpace(customPath); p != "" {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read font file: %w", err)
		}
		parsed, err := truetype.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse TTF: %w", err)
		}
		f.families[FontCustom] = parsed
	}
	return f, nil
}

func (f *Fonts) font(fam FontFamily) *truetype.Font {
	if ft, ok := f.families[fam]; ok {
		return ft
	}
	return f.families[FontBold]
}

type faceKey struct {
	family FontFamily
	size   int
}

// faceCache is owned by a single FrameWorker.
type faceCache struct {
	fonts *Fonts
	faces map[faceKey]font.Face
}

func newFaceCache(fonts *Fonts) *faceCache {
	return &faceCache{fonts: fonts, faces: map[faceKey]font.Face{}}
}

func (c *faceCache) face(fam FontFamily, size float64) font.Face {
	k := faceKey{family: fam, size: int(math.Max(6, math.Round(size)))}
	if f, ok := c.faces[k]; ok {
		return f
	}
	f := truetype.NewFace(c.fonts.font(fam), &truetype.Options{
		Size:    float64(k.size),
		DPI:     72,
		Hinting: font.HintingNone,
	})
	c.faces[k] = f
	return f
}
