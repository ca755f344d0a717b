package video

import "strings"

type Quality string

const (
	Quality720p  Quality = "720p"
	Quality1080p Quality = "1080p"
	Quality4K    Quality = "4k"

	DefaultQuality = Quality720p
	DefaultFPS     = 30
)

type Resolution struct {
	Width  int
	Height int
}

var resolutions = map[Quality]Resolution{
	Quality720p:  {Width: 1280, Height: 720},
	Quality1080p: {Width: 1920, Height: 1080},
	Quality4K:    {Width: 3840, Height: 2160},
}

// ParseQuality never fails: anything unrecognised renders at 720p.
func ParseQuality(s string) Quality {
	q := Quality(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := resolutions[q]; ok {
		return q
	}
	return DefaultQuality
}

func (q Quality) Resolution() Resolution {
	if r, ok := resolutions[q]; ok {
		return r
	}
	return resolutions[DefaultQuality]
}
