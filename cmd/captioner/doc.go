// Package main hosts the captioner CLI.
//
// The Cobra command tree covers the batch runner ("run"), the web runner
// ("serve"), readiness checks, progress-store queries, keyterm generation,
// and configuration scaffolding. Commands resolve configuration once through
// commandContext and build their components from internal packages; the
// transcription work itself lives in internal/pipeline and internal/batch.
package main
