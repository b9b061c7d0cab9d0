package logging

// Structured field keys shared by every captioner component.
const (
	FieldComponent     = "component"
	FieldBatchID       = "batch_id"
	FieldJobPath       = "job_path"
	FieldStage         = "stage"
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the operator's next step.
	FieldErrorHint = "error_hint"
	// FieldErrorKind carries the failure taxonomy entry for errored files.
	FieldErrorKind = "error_kind"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)
