// Package batch fans a list of job specs out to a bounded pool of pipeline
// workers, mirrors per-file progress into the queue store, and finalizes each
// batch exactly once after every file reaches a terminal state.
//
// Finalization saves the stats summary to the log directory, records the batch
// outcome, triggers one Bazarr rescan, and publishes the ntfy summary. None of
// those steps can fail the batch; problems are logged with an impact hint.
package batch
