package util

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-yolov5/images"
)

// ImageFile is an image found on disk.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Format is implied by the file extension.
	Format images.ImageFormat
	// Frame is the number parsed from names like "frame-12.jpg", or -1.
	Frame int
}

// ListImageFiles returns the supported image files of source.
//
// A file source is returned on its own. A directory source is listed non-recursively; files
// named "frame-N" sort by N, the rest by name after them.
//
// Arguments:
//   - source: A directory or a single image file.
//
// Returns:
//   - []ImageFile: The image files.
//   - error: An error if source cannot be read or a file source is not a supported image.
func ListImageFiles(source string) ([]ImageFile, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", source)
	}
	if !info.IsDir() {
		f, ok := imageFile(source)
		if !ok {
			return nil, errors.Errorf("%s is not a supported image file", source)
		}
		return []ImageFile{f}, nil
	}

	entries, err := os.ReadDir(source)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read directory %s", source)
	}

	var files []ImageFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if f, ok := imageFile(filepath.Join(source, entry.Name())); ok {
			files = append(files, f)
		}
	}

	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		switch {
		case a.Frame >= 0 && b.Frame >= 0:
			return a.Frame < b.Frame
		case a.Frame >= 0 || b.Frame >= 0:
			return a.Frame >= 0
		default:
			return a.Path < b.Path
		}
	})
	return files, nil
}

func imageFile(path string) (ImageFile, bool) {
	format, ok := images.FormatFromPath(path)
	if !ok {
		return ImageFile{}, false
	}
	return ImageFile{Path: path, Format: format, Frame: frameNumber(path)}, true
}

func frameNumber(path string) int {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if !strings.HasPrefix(name, "frame-") {
		return -1
	}
	n, err := strconv.Atoi(strings.TrimPrefix(name, "frame-"))
	if err != nil || n < 0 {
		return -1
	}
	return n
}
