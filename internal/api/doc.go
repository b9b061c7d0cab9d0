// Package api defines wire-format types and converters shared by the web
// runner and the CLI status commands. It translates progress-store rows into
// transport-friendly DTOs without coupling consumers to internal types.
//
// # Key Types
//
// BatchView: a batch with aggregate counts and, when requested, per-file
// progress rows.
//
// JobResponse: the /api/job/{id} payload (state plus batch data).
//
// SubmitRequest/SubmitResponse, ScanResponse, ConfigResponse: request and
// response bodies for the web runner endpoints.
//
// # Design Notes
//
// JSON tags are snake_case to keep the payloads the web front-end already
// consumes. Timestamps use RFC3339 with milliseconds. Stored summaries and
// output lists are passed through as json.RawMessage to avoid double-encoding.
package api
