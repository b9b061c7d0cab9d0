// Package queue persists batch progress in SQLite.
//
// The Store records one row per submitted batch and one row per file in the
// batch. The batch coordinator is the only writer: it moves each file through
// queued → extracting → transcribing → writing → done|skipped|error and
// stamps the batch pending → running → done|cancelled. The web runner and the
// CLI status commands only read.
//
// The database is transient storage for in-flight and recently finished
// batches rather than an archive; the durable audit trail is the per-job log
// written by package joblog. Finished batches are purged once they are older
// than workers.result_retention_hours. The schema version lives in
// SQLite's user_version; a database from another version is refused and has
// to be deleted.
package queue
