package sensors

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DirectoryCamera captures the newest image file from a spool directory
// that an external camera daemon writes into. The file's modification
// time is the capture timestamp, which lets the synchronizer judge
// staleness.
type DirectoryCamera struct {
	dir      string
	patterns []string
}

// NewDirectoryCamera creates a camera reading from dir. Only files
// matching the default still-image extensions are considered.
func NewDirectoryCamera(dir string) *DirectoryCamera {
	return &DirectoryCamera{
		dir:      dir,
		patterns: []string{"*.jpg", "*.jpeg", "*.png"},
	}
}

// Capture returns the newest matching file in the spool directory.
func (c *DirectoryCamera) Capture(ctx context.Context) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, ErrTimeout
	}

	var newest string
	var newestInfo os.FileInfo
	for _, pattern := range c.patterns {
		matches, err := filepath.Glob(filepath.Join(c.dir, pattern))
		if err != nil {
			return Image{}, fmt.Errorf("bad camera spool pattern: %w", err)
		}
		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil {
				continue // file may have been rotated away
			}
			if newestInfo == nil || info.ModTime().After(newestInfo.ModTime()) {
				newest = match
				newestInfo = info
			}
		}
	}

	if newest == "" {
		return Image{}, fmt.Errorf("no image in spool directory %s", c.dir)
	}

	data, err := os.ReadFile(newest)
	if err != nil {
		return Image{}, fmt.Errorf("failed to read %s: %w", newest, err)
	}

	return Image{Data: data, Timestamp: newestInfo.ModTime()}, nil
}
