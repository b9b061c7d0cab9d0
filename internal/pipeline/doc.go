// Package pipeline runs the single-file unit of work: re-check the skip
// policy, extract audio to a scoped temp file, resolve keyterms, transcribe,
// write the subtitle, clear the sync marker, and optionally write the speaker
// transcript, raw response JSON, and per-show keyterm CSV.
//
// RunOne never returns an error. Failures are classified into a *Error whose
// Kind follows the services failure taxonomy and are reported through the
// returned job.Result so sibling files in a batch are unaffected. Outputs
// written before a failure are left in place.
package pipeline
