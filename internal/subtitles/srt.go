package subtitles

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"captioner/internal/services/deepgram"
)

// DefaultLineLength is the maximum number of words per cue.
const DefaultLineLength = 8

// Cue is one subtitle entry. Times are in seconds.
type Cue struct {
	Start float64
	End   float64
	Text  string
}

// CueOptions tunes cue construction.
type CueOptions struct {
	LineLength int
	// DropMasked removes words the profanity filter replaced with asterisks.
	DropMasked bool
}

// BuildCues converts a response into ordered cues.
func BuildCues(resp deepgram.Response, opts CueOptions) []Cue {
	if opts.LineLength <= 0 {
		opts.LineLength = DefaultLineLength
	}
	var cues []Cue
	utterances := resp.Utterances()
	if len(utterances) == 0 {
		return chunkWords(resp.Words(), opts)
	}
	for _, utt := range utterances {
		if len(utt.Words) > 0 {
			cues = append(cues, chunkWords(utt.Words, opts)...)
			continue
		}
		if text := strings.TrimSpace(utt.Transcript); text != "" {
			cues = append(cues, Cue{Start: utt.Start, End: utt.End, Text: text})
		}
	}
	return cues
}

func chunkWords(words []deepgram.Word, opts CueOptions) []Cue {
	if opts.DropMasked {
		words = dropMasked(words)
	}
	var cues []Cue
	for start := 0; start < len(words); start += opts.LineLength {
		end := min(start+opts.LineLength, len(words))
		chunk := words[start:end]
		texts := make([]string, 0, len(chunk))
		for _, w := range chunk {
			texts = append(texts, w.Text())
		}
		cues = append(cues, Cue{
			Start: chunk[0].Start,
			End:   chunk[len(chunk)-1].End,
			Text:  strings.Join(texts, " "),
		})
	}
	return cues
}

func dropMasked(words []deepgram.Word) []deepgram.Word {
	kept := make([]deepgram.Word, 0, len(words))
	for _, w := range words {
		if strings.Trim(w.Text(), "*.,!?;:") == "" && strings.Contains(w.Text(), "*") {
			continue
		}
		kept = append(kept, w)
	}
	return kept
}

// FormatSRT renders cues as an SRT document.
func FormatSRT(cues []Cue) string {
	var b strings.Builder
	for i, cue := range cues {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n", i+1, FormatTimestamp(cue.Start), FormatTimestamp(cue.End), cue.Text)
	}
	return b.String()
}

// FormatTimestamp renders seconds as HH:MM:SS,mmm.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int64(math.Round(seconds * 1000))
	ms := total % 1000
	total /= 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", total/3600, (total%3600)/60, total%60, ms)
}

// ParseTimestamp converts HH:MM:SS,mmm (or with a period) to seconds.
func ParseTimestamp(value string) (float64, error) {
	value = strings.ReplaceAll(strings.TrimSpace(value), ".", ",")
	clock, millisText, ok := strings.Cut(value, ",")
	if !ok {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(clock, ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	secs, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(millisText)
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return float64(hours*3600+minutes*60+secs) + float64(millis)/1000, nil
}

// ValidateSRT checks rendered SRT content and returns the issues found.
// An empty slice means the document is usable.
func ValidateSRT(content string) []string {
	content = strings.TrimSpace(strings.ReplaceAll(content, "\r\n", "\n"))
	if content == "" {
		return []string{"empty_subtitle_file"}
	}
	var issues []string
	for i, block := range strings.Split(content, "\n\n") {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 3 {
			issues = append(issues, fmt.Sprintf("cue %d: incomplete block", i+1))
			continue
		}
		startText, endText, ok := strings.Cut(lines[1], "-->")
		if !ok {
			issues = append(issues, fmt.Sprintf("cue %d: missing timing line", i+1))
			continue
		}
		start, errStart := ParseTimestamp(startText)
		end, errEnd := ParseTimestamp(endText)
		if errStart != nil || errEnd != nil {
			issues = append(issues, fmt.Sprintf("cue %d: invalid timestamp", i+1))
			continue
		}
		if end < start {
			issues = append(issues, fmt.Sprintf("cue %d: ends before it starts", i+1))
		}
	}
	return issues
}
