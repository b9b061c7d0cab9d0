package deps

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ResolveFFmpegPath returns the absolute path of the ffmpeg binary when it can
// be found on PATH, or the configured name unchanged.
func ResolveFFmpegPath(binary string) string {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if resolved, err := exec.LookPath(binary); err == nil {
		return resolved
	}
	return binary
}

// ResolveFFprobePath prefers an ffprobe that sits next to the resolved ffmpeg
// so both tools come from the same build. It falls back to the configured
// ffprobe name.
func ResolveFFprobePath(ffmpegBinary, ffprobeBinary string) string {
	ffprobeBinary = strings.TrimSpace(ffprobeBinary)
	if ffprobeBinary == "" {
		ffprobeBinary = "ffprobe"
	}
	if strings.ContainsRune(ffprobeBinary, filepath.Separator) {
		return ffprobeBinary
	}
	ffmpegPath := ResolveFFmpegPath(ffmpegBinary)
	if filepath.IsAbs(ffmpegPath) {
		candidate := filepath.Join(filepath.Dir(ffmpegPath), executableName("ffprobe"))
		if info, err := os.Stat(candidate); err == nil && isExecutable(info) {
			return candidate
		}
	}
	return ffprobeBinary
}

func executableName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
