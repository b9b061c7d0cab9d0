package logging

import (
	"log/slog"
	"slices"
)

const defaultErrorHint = "check logs for details"

// withDefaults appends key=value unless attrs already carry key.
func withDefaults(attrs []Attr, defaults ...Attr) []Attr {
	for _, d := range defaults {
		if !slices.ContainsFunc(attrs, func(a Attr) bool { return a.Key == d.Key }) {
			attrs = append(attrs, d)
		}
	}
	return attrs
}

// WarnWithContext logs a warning that always states its event type, a hint
// for the operator, and the impact on the batch. Caller-supplied fields win
// over the defaults.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	attrs = withDefaults(attrs,
		String(FieldEventType, eventType),
		String(FieldErrorHint, defaultErrorHint),
		String(FieldImpact, "operation completed with warnings"),
	)
	logger.Warn(msg, Args(attrs...)...)
}

// ErrorWithContext is WarnWithContext at error level, without a default impact.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	attrs = withDefaults(attrs,
		String(FieldEventType, eventType),
		String(FieldErrorHint, defaultErrorHint),
	)
	logger.Error(msg, Args(attrs...)...)
}
