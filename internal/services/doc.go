// Package services defines shared utilities consumed by the transcription
// pipeline and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp batch IDs, media paths, pipeline stages, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper, and FailureKind which maps
//     a wrapped error back to the failure taxonomy persisted per file.
//
// Adapters for Deepgram, ffmpeg, Bazarr, and the LLM endpoint live in
// subpackages and report failures through these markers.
package services
