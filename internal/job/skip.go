package job

import (
	"captioner/internal/fileutil"
	"captioner/internal/paths"
)

// Decision is the skip policy outcome.
type Decision int

const (
	Process Decision = iota
	Skip
)

func (d Decision) String() string {
	if d == Skip {
		return "skip"
	}
	return "process"
}

// Artifacts records which outputs already exist for a media file.
type Artifacts struct {
	SubtitleExists   bool
	TranscriptExists bool
}

// Flags are the feature switches that influence the skip policy.
type Flags struct {
	TranscriptEnabled bool
	ForceRegenerate   bool
}

// Decide applies the skip policy: force always processes; otherwise a file is
// skipped only when every requested artifact already exists.
func Decide(a Artifacts, f Flags) Decision {
	switch {
	case f.ForceRegenerate:
		return Process
	case !f.TranscriptEnabled:
		if a.SubtitleExists {
			return Skip
		}
		return Process
	default:
		if a.SubtitleExists && a.TranscriptExists {
			return Skip
		}
		return Process
	}
}

// Inspect reads the artifact state for mediaPath from disk.
func Inspect(mediaPath string) Artifacts {
	return Artifacts{
		SubtitleExists:   fileutil.Exists(paths.SubtitlePath(mediaPath)),
		TranscriptExists: fileutil.Exists(paths.TranscriptPath(mediaPath)),
	}
}

// DecideOnDisk inspects mediaPath and applies the skip policy.
func DecideOnDisk(mediaPath string, f Flags) Decision {
	return Decide(Inspect(mediaPath), f)
}
