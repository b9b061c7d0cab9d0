// Package preflight provides readiness checks for the binaries, directories,
// and external services captioner depends on.
//
// The CLI "captioner check" command prints every result, and "captioner run"
// refuses to start a batch while a required check fails. Optional services
// (Bazarr, the keyterm LLM) are only checked when configured.
package preflight
