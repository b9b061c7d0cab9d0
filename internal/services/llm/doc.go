// Package llm provides an OpenRouter-compatible chat completion client used to
// generate transcription keyterms for a show or movie.
//
// The client sends a system and user prompt to the configured model and
// returns the completion text together with token usage so callers can
// report cost. Complete returns free text; HealthCheck issues a tiny JSON
// request used by the preflight command.
//
// # Retry Behaviour
//
// Requests are retried on HTTP 408/429/5xx, empty completions, and network
// timeouts with exponential backoff (base 1s, max 10s, up to 5 attempts by
// default). A Retry-After header overrides the computed delay. Context
// cancellation aborts retries immediately.
//
// Keyterms are optional: when the client is unconfigured or fails, callers
// continue transcription without them.
package llm
