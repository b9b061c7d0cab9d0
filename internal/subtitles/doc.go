// Package subtitles renders transcription results into SRT subtitles and
// speaker-labelled plain-text transcripts.
//
// Cues follow Deepgram utterances, split into chunks of at most eight words;
// responses without utterances fall back to chunking the word list. Speaker
// transcripts group consecutive words by diarized speaker and label each turn
// from an optional speakers.csv map.
package subtitles
