package deepgram

import (
	"encoding/json"
	"fmt"

	"captioner/internal/services"
)

// Word is one recognized token.
type Word struct {
	Word           string  `json:"word"`
	PunctuatedWord string  `json:"punctuated_word,omitempty"`
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	Confidence     float64 `json:"confidence"`
	Speaker        *int    `json:"speaker,omitempty"`
}

// Text returns the punctuated form when available.
func (w Word) Text() string {
	if w.PunctuatedWord != "" {
		return w.PunctuatedWord
	}
	return w.Word
}

// SpeakerID returns the diarized speaker, defaulting to 0.
func (w Word) SpeakerID() int {
	if w.Speaker == nil {
		return 0
	}
	return *w.Speaker
}

// Alternative is one transcription hypothesis for a channel.
type Alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
	Words      []Word  `json:"words"`
}

// Channel holds the alternatives for one audio channel.
type Channel struct {
	Alternatives     []Alternative `json:"alternatives"`
	DetectedLanguage string        `json:"detected_language,omitempty"`
}

// Utterance is a speaker-continuous span of speech.
type Utterance struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Transcript string  `json:"transcript"`
	Speaker    *int    `json:"speaker,omitempty"`
	Words      []Word  `json:"words"`
}

// Metadata describes the request as processed by the API.
type Metadata struct {
	RequestID string  `json:"request_id"`
	Duration  float64 `json:"duration"`
	Channels  int     `json:"channels"`
}

// Results carries channel and utterance data.
type Results struct {
	Channels   []Channel   `json:"channels"`
	Utterances []Utterance `json:"utterances,omitempty"`
}

// Response is a parsed transcription result. Raw keeps the original body
// for optional persistence.
type Response struct {
	Metadata Metadata `json:"metadata"`
	Results  *Results `json:"results"`
	Raw      []byte   `json:"-"`
}

// Parse decodes and structurally validates a response body.
func Parse(raw []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, services.Wrap(services.ErrMalformedResponse, "transcribing", "parse", "decode body", err)
	}
	switch {
	case resp.Results == nil:
		return Response{}, services.Wrap(services.ErrMalformedResponse, "transcribing", "parse", "no results in response", nil)
	case len(resp.Results.Channels) == 0:
		return Response{}, services.Wrap(services.ErrMalformedResponse, "transcribing", "parse", "no channels in response", nil)
	case len(resp.Results.Channels[0].Alternatives) == 0:
		return Response{}, services.Wrap(services.ErrMalformedResponse, "transcribing", "parse", "no alternatives in channel", nil)
	}
	resp.Raw = raw
	return resp, nil
}

func (r Response) primary() Alternative {
	if r.Results == nil || len(r.Results.Channels) == 0 || len(r.Results.Channels[0].Alternatives) == 0 {
		return Alternative{}
	}
	return r.Results.Channels[0].Alternatives[0]
}

// Words returns the words of the primary alternative.
func (r Response) Words() []Word {
	return r.primary().Words
}

// Transcript returns the plain transcript of the primary alternative.
func (r Response) Transcript() string {
	return r.primary().Transcript
}

// Utterances returns utterance spans when the request asked for them.
func (r Response) Utterances() []Utterance {
	if r.Results == nil {
		return nil
	}
	return r.Results.Utterances
}

// DetectedLanguage returns the language reported for the first channel.
func (r Response) DetectedLanguage() string {
	if r.Results == nil || len(r.Results.Channels) == 0 {
		return ""
	}
	return r.Results.Channels[0].DetectedLanguage
}

// RequireSpeech reports services.ErrNoSpeech when no words were recognized.
func RequireSpeech(r Response) error {
	if len(r.Words()) == 0 {
		return services.Wrap(services.ErrNoSpeech, "transcribing", "deepgram",
			fmt.Sprintf("no words detected in %.0fs of audio", r.Metadata.Duration), nil)
	}
	return nil
}
