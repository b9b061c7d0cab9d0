// Package keyterms manages per-show keyterm lists that bias transcription
// toward names and invented words.
//
// Lists live in Transcripts/Keyterms/<Name>_keyterms.csv beside the show or
// movie. Files hold one keyterm per line; blank lines and lines starting with
// # are ignored. Writes take an advisory lock and replace the file atomically,
// so concurrent episodes of one show never leave a torn file, though the last
// writer still wins.
//
// Generator produces new lists through an OpenRouter-compatible LLM and
// reports token usage and estimated cost.
package keyterms
