package util

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// FramePrefix is the file name prefix of extracted video frames, as in
// frame-000123.jpg.
const FramePrefix = "frame-"

// ImageExtensions lists the file extensions recognised as frames.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".webp"}

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Frame is the frame number of the image file.
	Frame int
}

// Read returns the raw bytes of the image file.
func (f ImageFile) Read() ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "read frame %d", f.Frame)
	}
	return data, nil
}

// ListDirectoryImageFiles returns the frame files of a directory in frame order.
//
// Only files named FramePrefix + number + one of ImageExtensions are returned;
// directories and other files are skipped. Bytes are not loaded, so long
// clips can be streamed one frame at a time.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []ImageFile: Frame files sorted by frame number.
// - error: Error if the directory cannot be read.
func ListDirectoryImageFiles(dir string) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "list frames in %s", dir)
	}

	var files []ImageFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if !isImageExtension(ext) || !strings.HasPrefix(name, FramePrefix) {
			continue
		}

		frame, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, FramePrefix), filepath.Ext(name)))
		if err != nil {
			continue
		}
		files = append(files, ImageFile{
			Path:  filepath.Join(dir, name),
			Frame: frame,
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Frame < files[j].Frame
	})

	return files, nil
}

func isImageExtension(ext string) bool {
	for _, supported := range ImageExtensions {
		if ext == supported {
			return true
		}
	}
	return false
}
