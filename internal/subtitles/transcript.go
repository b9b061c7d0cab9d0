package subtitles

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"captioner/internal/services/deepgram"
)

// Turn is a run of consecutive words from one speaker.
type Turn struct {
	Speaker int
	Start   float64
	Text    string
}

// SpeakerMap maps diarized speaker ids to display names.
type SpeakerMap map[int]string

// Label returns the mapped name or "Speaker N".
func (m SpeakerMap) Label(id int) string {
	if name, ok := m[id]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("Speaker %d", id)
}

// BuildTurns groups words into speaker turns. A new turn starts whenever the
// speaker changes; words without a speaker count as speaker 0.
func BuildTurns(words []deepgram.Word) []Turn {
	var turns []Turn
	var text []string
	current := -1
	var start float64
	flush := func() {
		if len(text) > 0 {
			turns = append(turns, Turn{Speaker: current, Start: start, Text: strings.Join(text, " ")})
		}
		text = text[:0]
	}
	for _, w := range words {
		speaker := w.SpeakerID()
		if speaker != current || len(text) == 0 {
			flush()
			current = speaker
			start = w.Start
		}
		text = append(text, w.Text())
	}
	flush()
	return turns
}

// TranscriptTurns returns speaker turns for resp, falling back to a single
// speaker-0 turn holding the plain transcript when the response has no words.
func TranscriptTurns(resp deepgram.Response) []Turn {
	if turns := BuildTurns(resp.Words()); len(turns) > 0 {
		return turns
	}
	if text := strings.TrimSpace(resp.Transcript()); text != "" {
		return []Turn{{Speaker: 0, Text: text}}
	}
	return nil
}

// RenderTranscript formats turns as "Name: text" blocks separated by blank
// lines.
func RenderTranscript(turns []Turn, speakers SpeakerMap) string {
	blocks := make([]string, 0, len(turns))
	for _, turn := range turns {
		blocks = append(blocks, speakers.Label(turn.Speaker)+": "+turn.Text)
	}
	if len(blocks) == 0 {
		return ""
	}
	return strings.Join(blocks, "\n\n") + "\n"
}

// LoadSpeakerMap reads a speaker_id,name CSV. A missing file yields an
// empty map and no error. Rows with a non-numeric id are skipped.
func LoadSpeakerMap(path string) (SpeakerMap, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return SpeakerMap{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read speaker map: %w", err)
	}
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	speakers := SpeakerMap{}
	idCol, nameCol := 0, 1
	first := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return speakers, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse speaker map: %w", err)
		}
		if first {
			first = false
			if idx, ok := headerIndex(record); ok {
				idCol, nameCol = idx[0], idx[1]
				continue
			}
		}
		if len(record) <= max(idCol, nameCol) {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(record[idCol]))
		if err != nil {
			continue
		}
		speakers[id] = strings.TrimSpace(record[nameCol])
	}
}

func headerIndex(record []string) ([2]int, bool) {
	idx := [2]int{-1, -1}
	for i, field := range record {
		switch strings.ToLower(strings.TrimSpace(field)) {
		case "speaker_id":
			idx[0] = i
		case "name":
			idx[1] = i
		}
	}
	return idx, idx[0] >= 0 && idx[1] >= 0
}
