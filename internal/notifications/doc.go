// Package notifications delivers batch events to ntfy.
//
// NewService returns a no-op implementation when no topic is configured.
// Batch start/finish events and error events can be switched off
// independently in the [notifications] config section.
package notifications
