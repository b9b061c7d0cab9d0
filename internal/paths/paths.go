// Package paths derives every output location from a media file path.
//
// All functions except the Ensure helpers are pure: the same media path
// always yields the same output set, which is what lets a rerun decide to
// skip a file by looking at the filesystem alone.
//
// Layout for /tv/Show/Season 01/Show - S01E01.mkv:
//
//	/tv/Show/Season 01/Show - S01E01.eng.srt
//	/tv/Show/Season 01/Show - S01E01.eng.synced   (external sync marker)
//	/tv/Show/Transcripts/Show - S01E01.transcript.speakers.txt
//	/tv/Show/Transcripts/JSON/Show - S01E01.deepgram.json
//	/tv/Show/Transcripts/Keyterms/Show_keyterms.csv
//	/tv/Show/Transcripts/Speakermap/speakers.csv
//
// Movies use the file's own directory in place of the show root.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	SubtitleSuffix     = ".eng.srt"
	SyncedMarkerSuffix = ".eng.synced"
	TranscriptSuffix   = ".transcript.speakers.txt"
	RawJSONSuffix      = ".deepgram.json"
	KeytermsSuffix     = "_keyterms.csv"
	SpeakerMapFile     = "speakers.csv"

	TranscriptsDir = "Transcripts"
	JSONDir        = "JSON"
	KeytermsDir    = "Keyterms"
	SpeakermapDir  = "Speakermap"

	folderMode os.FileMode = 0o775
)

// Stem returns the file name without its final extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SubtitlePath returns the sibling <stem>.eng.srt.
func SubtitlePath(path string) string {
	return filepath.Join(filepath.Dir(path), Stem(path)+SubtitleSuffix)
}

// SyncedMarkerPath returns the sibling <stem>.eng.synced.
func SyncedMarkerPath(path string) string {
	return filepath.Join(filepath.Dir(path), Stem(path)+SyncedMarkerSuffix)
}

// IsSeasonSegment reports whether a directory name marks a season folder.
// Any name containing "season" matches, so a show titled "Season Pass" is
// treated as a season folder too.
func IsSeasonSegment(segment string) bool {
	lower := strings.ToLower(segment)
	return strings.Contains(lower, "season") || lower == "specials"
}

// directorySegments splits the directory part of path into its components,
// keeping the volume or root as the first element.
func directorySegments(path string) []string {
	dir := filepath.Dir(filepath.Clean(path))
	var segments []string
	for {
		parent, name := filepath.Split(dir)
		parent = filepath.Clean(parent)
		if name == "" || parent == dir {
			segments = append(segments, dir)
			break
		}
		segments = append(segments, name)
		dir = parent
	}
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return segments
}

// seasonIndex returns the index of the first season segment, or -1.
func seasonIndex(segments []string) int {
	for i, segment := range segments {
		if i == 0 {
			continue
		}
		if IsSeasonSegment(segment) {
			return i
		}
	}
	return -1
}

// InSeasonLayout reports whether any directory above path is a season folder.
func InSeasonLayout(path string) bool {
	return seasonIndex(directorySegments(path)) >= 0
}

// ShowRoot returns the directory holding the season folder, or the file's
// parent when no season segment exists.
func ShowRoot(path string) string {
	segments := directorySegments(path)
	idx := seasonIndex(segments)
	if idx < 0 {
		return filepath.Dir(filepath.Clean(path))
	}
	return filepath.Join(segments[:idx]...)
}

// ShowOrMovieName names per-show artifacts: the segment above the season
// folder, else the immediate parent directory name.
func ShowOrMovieName(path string) string {
	name := filepath.Base(ShowRoot(path))
	if name == "." || name == string(filepath.Separator) {
		return filepath.Base(filepath.Dir(filepath.Clean(path)))
	}
	return name
}

// TranscriptsFolderPath returns the Transcripts folder without touching disk.
func TranscriptsFolderPath(path string) string {
	return filepath.Join(ShowRoot(path), TranscriptsDir)
}

// JSONFolderPath returns Transcripts/JSON.
func JSONFolderPath(path string) string {
	return filepath.Join(TranscriptsFolderPath(path), JSONDir)
}

// KeytermsFolderPath returns Transcripts/Keyterms.
func KeytermsFolderPath(path string) string {
	return filepath.Join(TranscriptsFolderPath(path), KeytermsDir)
}

// SpeakermapFolderPath returns Transcripts/Speakermap.
func SpeakermapFolderPath(path string) string {
	return filepath.Join(TranscriptsFolderPath(path), SpeakermapDir)
}

// TranscriptPath returns Transcripts/<stem>.transcript.speakers.txt.
func TranscriptPath(path string) string {
	return filepath.Join(TranscriptsFolderPath(path), Stem(path)+TranscriptSuffix)
}

// RawJSONPath returns Transcripts/JSON/<stem>.deepgram.json.
func RawJSONPath(path string) string {
	return filepath.Join(JSONFolderPath(path), Stem(path)+RawJSONSuffix)
}

// KeytermsCSVPath returns Transcripts/Keyterms/<Name>_keyterms.csv.
func KeytermsCSVPath(path string) string {
	return filepath.Join(KeytermsFolderPath(path), ShowOrMovieName(path)+KeytermsSuffix)
}

// SpeakerMapPath returns Transcripts/Speakermap/speakers.csv.
func SpeakerMapPath(path string) string {
	return filepath.Join(SpeakermapFolderPath(path), SpeakerMapFile)
}

// EnsureDir creates dir (and parents) if absent and best-effort normalizes
// its permissions. Chmod failures are ignored: the runner usually does not
// own shared media folders.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, folderMode); err != nil {
		return err
	}
	_ = os.Chmod(dir, folderMode)
	return nil
}

// TranscriptsFolder returns the Transcripts folder, creating it if needed.
func TranscriptsFolder(path string) (string, error) {
	dir := TranscriptsFolderPath(path)
	return dir, EnsureDir(dir)
}

// JSONFolder returns Transcripts/JSON, creating it if needed.
func JSONFolder(path string) (string, error) {
	dir := JSONFolderPath(path)
	return dir, EnsureDir(dir)
}

// KeytermsFolder returns Transcripts/Keyterms, creating it if needed.
func KeytermsFolder(path string) (string, error) {
	dir := KeytermsFolderPath(path)
	return dir, EnsureDir(dir)
}

// SpeakermapFolder returns Transcripts/Speakermap, creating it if needed.
func SpeakermapFolder(path string) (string, error) {
	dir := SpeakermapFolderPath(path)
	return dir, EnsureDir(dir)
}
