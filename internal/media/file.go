package media

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// Kind distinguishes video containers from audio-only files.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// VideoExtensions lists the supported video containers.
var VideoExtensions = []string{".mkv", ".mp4", ".avi", ".mov", ".m4v", ".wmv", ".flv"}

// AudioExtensions lists the supported audio formats.
var AudioExtensions = []string{".mp3", ".m4a", ".wav", ".flac", ".aac", ".ogg"}

// KindOf returns the media kind for path's extension.
func KindOf(path string) (Kind, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case slices.Contains(VideoExtensions, ext):
		return KindVideo, true
	case slices.Contains(AudioExtensions, ext):
		return KindAudio, true
	default:
		return "", false
	}
}

// Supported reports whether path has a supported media extension.
func Supported(path string) bool {
	_, ok := KindOf(path)
	return ok
}

// File is an immutable description of one discovered media file.
type File struct {
	Path           string
	Ext            string
	Kind           Kind
	Classification Classification
}

// NewFile resolves path to an absolute path and classifies it. It does not
// check that the file exists.
func NewFile(path string) (File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return File{}, fmt.Errorf("resolve %q: %w", path, err)
	}
	kind, ok := KindOf(abs)
	if !ok {
		return File{}, fmt.Errorf("unsupported media extension %q", filepath.Ext(abs))
	}
	return File{
		Path:           abs,
		Ext:            strings.ToLower(filepath.Ext(abs)),
		Kind:           kind,
		Classification: Classify(abs),
	}, nil
}
