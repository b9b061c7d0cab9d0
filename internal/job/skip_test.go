package job

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDecideTable(t *testing.T) {
	tests := []struct {
		name  string
		art   Artifacts
		flags Flags
		want  Decision
	}{
		{"force overrides both present", Artifacts{true, true}, Flags{TranscriptEnabled: true, ForceRegenerate: true}, Process},
		{"force overrides subtitle only", Artifacts{true, false}, Flags{ForceRegenerate: true}, Process},
		{"transcript off, subtitle present", Artifacts{true, false}, Flags{}, Skip},
		{"transcript off, subtitle absent", Artifacts{false, true}, Flags{}, Process},
		{"transcript on, subtitle only", Artifacts{true, false}, Flags{TranscriptEnabled: true}, Process},
		{"transcript on, transcript only", Artifacts{false, true}, Flags{TranscriptEnabled: true}, Process},
		{"transcript on, both present", Artifacts{true, true}, Flags{TranscriptEnabled: true}, Skip},
		{"transcript on, neither", Artifacts{}, Flags{TranscriptEnabled: true}, Process},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.art, tt.flags); got != tt.want {
				t.Fatalf("Decide(%+v, %+v) = %s, want %s", tt.art, tt.flags, got, tt.want)
			}
		})
	}
}

func TestDecideOnDisk(t *testing.T) {
	root := t.TempDir()
	media := filepath.Join(root, "Show", "Season 01", "ep.mkv")
	if err := os.MkdirAll(filepath.Dir(media), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(filepath.Dir(media), "ep.eng.srt"), []byte("1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if got := DecideOnDisk(media, Flags{}); got != Skip {
		t.Fatalf("subtitle-only with transcripts off should skip, got %s", got)
	}
	if got := DecideOnDisk(media, Flags{TranscriptEnabled: true}); got != Process {
		t.Fatalf("subtitle-only with transcripts on should process, got %s", got)
	}

	transcripts := filepath.Join(root, "Show", "Transcripts")
	if err := os.MkdirAll(transcripts, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(transcripts, "ep.transcript.speakers.txt"), []byte("A: hi\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := DecideOnDisk(media, Flags{TranscriptEnabled: true}); got != Skip {
		t.Fatalf("both artifacts present should skip, got %s", got)
	}
}
