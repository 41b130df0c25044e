package lifecycle

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/teranos/dawn/errors"
)

// Artifact is an output file produced by the payload
type Artifact struct {
	Name    string    `json:"name" yaml:"name"`
	Path    string    `json:"path" yaml:"path"`
	Size    int64     `json:"size" yaml:"size"`
	ModTime time.Time `json:"mod_time" yaml:"mod_time"`
}

// ListArtifacts returns up to limit files in dir matching pattern, newest first.
// A missing directory yields no artifacts.
func ListArtifacts(dir, pattern string, limit int) ([]Artifact, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid artifact pattern %q", pattern)
	}

	artifacts := make([]Artifact, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		artifacts = append(artifacts, Artifact{
			Name:    info.Name(),
			Path:    path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.SliceStable(artifacts, func(i, j int) bool {
		if artifacts[i].ModTime.Equal(artifacts[j].ModTime) {
			return artifacts[i].Name > artifacts[j].Name
		}
		return artifacts[i].ModTime.After(artifacts[j].ModTime)
	})

	if limit > 0 && len(artifacts) > limit {
		artifacts = artifacts[:limit]
	}
	return artifacts, nil
}
