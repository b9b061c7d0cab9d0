// Package language normalizes the transcription language setting.
//
// Codes are parsed as BCP 47 tags through golang.org/x/text so config
// validation, request building, and prompt rendering agree on one canonical
// form. The Deepgram "multi" code-switching mode is accepted verbatim.
package language
