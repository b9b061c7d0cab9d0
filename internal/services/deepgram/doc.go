// Package deepgram talks to the Deepgram pre-recorded transcription API.
//
// Client.Transcribe uploads an audio file with the request options encoded
// as query parameters and returns the typed Response. Parse is the single
// decoder for response bodies: a body without results, channels, or
// alternatives is reported as services.ErrMalformedResponse, and callers use
// RequireSpeech to turn an empty word list into services.ErrNoSpeech.
//
// Requests are retried on HTTP 408/429/5xx and network timeouts with
// exponential backoff. Other client errors fail immediately.
package deepgram
