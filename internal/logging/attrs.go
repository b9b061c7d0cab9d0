package logging

import (
	"log/slog"
	"time"
)

type Attr = slog.Attr

func String(key, value string) Attr                 { return slog.String(key, value) }
func Int(key string, value int) Attr                { return slog.Int(key, value) }
func Int64(key string, value int64) Attr            { return slog.Int64(key, value) }
func Float64(key string, value float64) Attr        { return slog.Float64(key, value) }
func Bool(key string, value bool) Attr              { return slog.Bool(key, value) }
func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

// Error records err under "error". A nil error is logged as "<nil>" so the
// key is always present.
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Args converts attributes to the variadic form accepted by slog.Logger methods.
func Args(attrs ...Attr) []any {
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	return args
}
