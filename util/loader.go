// Package util lists captured frame sequences on disk.
package util

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ImageExtensions are the file extensions treated as frames.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".webp"}

// ImageFile is one frame of a captured sequence.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Name is the file name without its extension.
	Name string
	// Frame is the number parsed from names like frame-12.png, or -1.
	Frame int
}

func isImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range ImageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// LoadDirectoryImageFiles lists the image files of dir. Numbered frames come
// first in frame order, the rest follow by name.
//
// Arguments:
//   - dir: Directory path containing image files.
//
// Returns:
//   - []ImageFile: The image files, numbered frames first and then by name.
//   - error: Error if the directory cannot be read.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", dir)
	}

	var files []ImageFile
	for _, entry := range entries {
		if entry.IsDir() || !isImage(entry.Name()) {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		frame, err := strconv.Atoi(strings.TrimPrefix(name, "frame-"))
		if err != nil || frame < 0 {
			frame = -1
		}
		files = append(files, ImageFile{
			Path:  filepath.Join(dir, entry.Name()),
			Name:  name,
			Frame: frame,
		})
	}

	sort.Slice(files, func(i, j int) bool {
		a, b := files[i], files[j]
		if (a.Frame < 0) != (b.Frame < 0) {
			return a.Frame >= 0
		}
		if a.Frame != b.Frame {
			return a.Frame < b.Frame
		}
		return a.Name < b.Name
	})

	return files, nil
}

// FindCompanion returns the image in dir with the same name as f, such as the
// motion mask of a frame.
//
// Arguments:
//   - dir: Directory to search.
//   - f: The image file whose companion is wanted.
//
// Returns:
//   - string: The path of the companion file.
//   - bool: Whether a companion was found.
func FindCompanion(dir string, f ImageFile) (string, bool) {
	for _, ext := range ImageExtensions {
		path := filepath.Join(dir, f.Name+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}
