package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSiblingPaths(t *testing.T) {
	media := filepath.Join("/tv", "Show", "Season 01", "Show - S01E01.mkv")
	if got, want := SubtitlePath(media), filepath.Join("/tv", "Show", "Season 01", "Show - S01E01.eng.srt"); got != want {
		t.Fatalf("SubtitlePath = %q, want %q", got, want)
	}
	if got, want := SyncedMarkerPath(media), filepath.Join("/tv", "Show", "Season 01", "Show - S01E01.eng.synced"); got != want {
		t.Fatalf("SyncedMarkerPath = %q, want %q", got, want)
	}
}

func TestTranscriptsFolderPlacement(t *testing.T) {
	tests := []struct {
		name       string
		media      string
		wantFolder string
		wantName   string
	}{
		{
			name:       "season folder uses show root",
			media:      filepath.Join("/tv", "Show", "Season 01", "ep.mkv"),
			wantFolder: filepath.Join("/tv", "Show", "Transcripts"),
			wantName:   "Show",
		},
		{
			name:       "specials folder uses show root",
			media:      filepath.Join("/tv", "Show", "Specials", "ep.mkv"),
			wantFolder: filepath.Join("/tv", "Show", "Transcripts"),
			wantName:   "Show",
		},
		{
			name:       "lower-case season",
			media:      filepath.Join("/tv", "Show", "season 2", "ep.mkv"),
			wantFolder: filepath.Join("/tv", "Show", "Transcripts"),
			wantName:   "Show",
		},
		{
			name:       "movie uses parent",
			media:      filepath.Join("/movies", "Inception (2010)", "Inception.mkv"),
			wantFolder: filepath.Join("/movies", "Inception (2010)", "Transcripts"),
			wantName:   "Inception (2010)",
		},
		{
			name:       "show titled with season misclassifies",
			media:      filepath.Join("/movies", "Open Season (2006)", "movie.mkv"),
			wantFolder: filepath.Join("/movies", "Transcripts"),
			wantName:   "movies",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := TranscriptsFolderPath(tt.media)
			second := TranscriptsFolderPath(tt.media)
			if first != second {
				t.Fatalf("non-deterministic folder: %q vs %q", first, second)
			}
			if first != tt.wantFolder {
				t.Fatalf("TranscriptsFolderPath = %q, want %q", first, tt.wantFolder)
			}
			if got := ShowOrMovieName(tt.media); got != tt.wantName {
				t.Fatalf("ShowOrMovieName = %q, want %q", got, tt.wantName)
			}
		})
	}
}

func TestDerivedArtifactPaths(t *testing.T) {
	media := filepath.Join("/tv", "Show", "Season 01", "Show - S01E02.mkv")
	root := filepath.Join("/tv", "Show", "Transcripts")
	tests := map[string]struct{ got, want string }{
		"transcript": {TranscriptPath(media), filepath.Join(root, "Show - S01E02.transcript.speakers.txt")},
		"raw json":   {RawJSONPath(media), filepath.Join(root, "JSON", "Show - S01E02.deepgram.json")},
		"keyterms":   {KeytermsCSVPath(media), filepath.Join(root, "Keyterms", "Show_keyterms.csv")},
		"speakermap": {SpeakerMapPath(media), filepath.Join(root, "Speakermap", "speakers.csv")},
	}
	for name, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", name, tt.got, tt.want)
		}
	}
}

func TestTranscriptsFolderCreatesIdempotently(t *testing.T) {
	root := t.TempDir()
	media := filepath.Join(root, "Show", "Season 01", "ep.mkv")
	if err := os.MkdirAll(filepath.Dir(media), 0o755); err != nil {
		t.Fatal(err)
	}

	dir, err := TranscriptsFolder(media)
	if err != nil {
		t.Fatalf("TranscriptsFolder: %v", err)
	}
	if dir != filepath.Join(root, "Show", "Transcripts") {
		t.Fatalf("unexpected folder %q", dir)
	}
	again, err := TranscriptsFolder(media)
	if err != nil || again != dir {
		t.Fatalf("second call = %q, %v", again, err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected folder on disk: %v", err)
	}
	if TranscriptsFolderPath(media) != dir {
		t.Fatal("pure and creating variants disagree")
	}

	for _, fn := range []func(string) (string, error){JSONFolder, KeytermsFolder, SpeakermapFolder} {
		sub, err := fn(media)
		if err != nil {
			t.Fatalf("create subfolder: %v", err)
		}
		if filepath.Dir(sub) != dir {
			t.Fatalf("subfolder %q not under %q", sub, dir)
		}
	}
}

func TestIsSeasonSegment(t *testing.T) {
	cases := map[string]bool{
		"Season 01":   true,
		"SEASON 3":    true,
		"Specials":    true,
		"specials":    true,
		"Special":     false,
		"Extras":      false,
		"Open Season": true,
	}
	for segment, want := range cases {
		if got := IsSeasonSegment(segment); got != want {
			t.Errorf("IsSeasonSegment(%q) = %v, want %v", segment, got, want)
		}
	}
}
