package render

import (
	"encoding/hex"
	"fmt"
	"image/color"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Style is the validated colour/font bundle for one render job.
type Style struct {
	Background    color.NRGBA
	BackgroundEnd *color.NRGBA // bottom stop of a vertical gradient; nil for solid
	Text          color.NRGBA
	Highlight     color.NRGBA
	Sung          color.NRGBA
	Upcoming      color.NRGBA
	Outline       color.NRGBA
	Accent        color.NRGBA
	Font          FontFamily
}

// StyleInput is the loosely typed caller form of a Style. Empty fields fall
// back to the preset (when named) and then to DefaultStyle.
type StyleInput struct {
	Preset          string `json:"preset,omitempty" yaml:"preset,omitempty"`
	BackgroundColor string `json:"background_color,omitempty" yaml:"background_color,omitempty"`
	GradientColor   string `json:"gradient_color,omitempty" yaml:"gradient_color,omitempty"`
	TextColor       string `json:"text_color,omitempty" yaml:"text_color,omitempty"`
	HighlightColor  string `json:"highlight_color,omitempty" yaml:"highlight_color,omitempty"`
	SungColor       string `json:"sung_color,omitempty" yaml:"sung_color,omitempty"`
	UpcomingColor   string `json:"upcoming_color,omitempty" yaml:"upcoming_color,omitempty"`
	OutlineColor    string `json:"outline_color,omitempty" yaml:"outline_color,omitempty"`
	AccentColor     string `json:"accent_color,omitempty" yaml:"accent_color,omitempty"`
	Font            string `json:"font,omitempty" yaml:"font,omitempty"`
}

func DefaultStyle() Style {
	return Style{
		Background: color.NRGBA{R: 10, G: 10, B: 20, A: 255},
		Text:       color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		Highlight:  color.NRGBA{R: 0, G: 255, B: 255, A: 255},
		Sung:       color.NRGBA{R: 0, G: 170, B: 190, A: 255},
		Upcoming:   color.NRGBA{R: 150, G: 150, B: 150, A: 255},
		Outline:    color.NRGBA{R: 0, G: 0, B: 0, A: 255},
		Accent:     color.NRGBA{R: 255, G: 200, B: 0, A: 255},
		Font:       FontBold,
	}
}

// StylePresets are named StyleInputs, usually loaded from YAML.
type StylePresets map[string]StyleInput

type presetsFile struct {
	Presets StylePresets `yaml:"presets"`
}

func LoadStylePresets(path string) (StylePresets, error) {
	if strings.TrimSpace(path) == "" {
		return StylePresets{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read style presets: %w", err)
	}
	var f presetsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse style presets: %w", err)
	}
	if f.Presets == nil {
		f.Presets = StylePresets{}
	}
	return f.Presets, nil
}

type StyleError struct {
	Field string
	Value string
}

func (e *StyleError) Error() string {
	return fmt.Sprintf("invalid style %s %q", e.Field, e.Value)
}

// ParseStyle validates caller input once at the pipeline boundary.
func ParseStyle(in StyleInput, presets StylePresets) (Style, error) {
	st := DefaultStyle()
	if name := strings.TrimSpace(in.Preset); name != "" {
		p, ok := presets[strings.ToLower(name)]
		if !ok {
			return st, &StyleError{Field: "preset", Value: name}
		}
		var err error
		if st, err = applyStyleInput(st, p); err != nil {
			return st, err
		}
	}
	return applyStyleInput(st, in)
}

func applyStyleInput(st Style, in StyleInput) (Style, error) {
	fields := []struct {
		name string
		raw  string
		dst  *color.NRGBA
	}{
		{"background_color", in.BackgroundColor, &st.Background},
		{"text_color", in.TextColor, &st.Text},
		{"highlight_color", in.HighlightColor, &st.Highlight},
		{"sung_color", in.SungColor, &st.Sung},
		{"upcoming_color", in.UpcomingColor, &st.Upcoming},
		{"outline_color", in.OutlineColor, &st.Outline},
		{"accent_color", in.AccentColor, &st.Accent},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.raw) == "" {
			continue
		}
		c, err := ParseHexColor(f.raw)
		if err != nil {
			return st, &StyleError{Field: f.name, Value: f.raw}
		}
		*f.dst = c
	}
	if raw := strings.TrimSpace(in.GradientColor); raw != "" {
		c, err := ParseHexColor(raw)
		if err != nil {
			return st, &StyleError{Field: "gradient_color", Value: raw}
		}
		st.BackgroundEnd = &c
	}
	if raw := strings.TrimSpace(in.Font); raw != "" {
		fam, err := ParseFontFamily(raw)
		if err != nil {
			return st, &StyleError{Field: "font", Value: raw}
		}
		st.Font = fam
	}
	return st, nil
}

// ParseHexColor accepts #RGB, #RRGGBB and #RRGGBBAA, with or without '#'.
func ParseHexColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 && len(s) != 8 {
		return color.NRGBA{}, fmt.Errorf("expected 3, 6 or 8 hex chars")
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex: %w", err)
	}
	c := color.NRGBA{R: raw[0], G: raw[1], B: raw[2], A: 255}
	if len(raw) == 4 {
		c.A = raw[3]
	}
	return c, nil
}

func HexColor(c color.NRGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

func withAlpha(c color.NRGBA, a float64) color.NRGBA {
	if a < 0 {
		a = 0
	}
	if a > 1 {
		a = 1
	}
	c.A = uint8(float64(c.A)*a + 0.5)
	return c
}
