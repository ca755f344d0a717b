package steps

import (
	"path"
	"strings"
)

// ProgressFunc receives stage updates; pct is job-wide (0..100).
type ProgressFunc func(stage string, pct int, msg string)

func (f ProgressFunc) report(stage string, pct int, msg string) {
	if f != nil {
		f(stage, pct, msg)
	}
}

// ArtifactKey is the bucket key of a published job artifact.
func ArtifactKey(projectID, name string) string {
	return path.Join("processed", strings.TrimSpace(projectID), name)
}
