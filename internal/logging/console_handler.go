package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	consoleTimestampLayout = "2006-01-02 15:04:05"
	// Info and above list at most this many fields; debug lists all.
	infoAttrLimit = 8
)

// Field keys listed first, in this order, when present.
var infoHighlightKeys = []string{
	FieldEventType,
	"status",
	"state",
	FieldErrorKind,
	"error",
	FieldErrorHint,
	FieldImpact,
	"subtitle",
	"transcript",
	"duration_minutes",
	"cost",
	"processed",
	"skipped",
	"failed",
}

// consoleHandler renders one header line per record followed by indented
// "- key: value" lines. Component, batch, job and stage attributes are
// folded into the header.
type consoleHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	attrs     []slog.Attr
	groups    []string
	addSource bool
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{mu: &sync.Mutex{}, writer: w, level: lvl, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	if !h.Enabled(context.Background(), record.Level) {
		return nil
	}

	var fields fieldList
	for _, a := range h.attrs {
		fields.add(h.groups, a)
	}
	record.Attrs(func(a slog.Attr) bool {
		fields.add(h.groups, a)
		return true
	})
	header := fields.extractHeader()

	var sb strings.Builder
	h.writeHeader(&sb, record, header)
	limit := infoAttrLimit
	if record.Level < slog.LevelInfo {
		limit = len(fields)
	}
	writeFields(&sb, fields.ordered(), limit)

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, sb.String())
	return err
}

type recordHeader struct {
	component, batchID, jobPath, stage string
}

func (h *consoleHandler) writeHeader(sb *strings.Builder, record slog.Record, hdr recordHeader) {
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	sb.WriteString(ts.In(time.Local).Format(consoleTimestampLayout))
	sb.WriteString(" " + levelLabel(record.Level))
	if hdr.component != "" {
		sb.WriteString(" [" + hdr.component + "]")
	}
	if subject := hdr.subject(); subject != "" {
		sb.WriteString(" " + subject)
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	sb.WriteString(" - " + msg)
	if h.addSource {
		if src := record.Source(); src != nil {
			fmt.Fprintf(sb, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	sb.WriteByte('\n')
}

// subject renders "Batch <id8> · <file> · (<stage>)" from whatever is set.
func (hdr recordHeader) subject() string {
	var parts []string
	if id := strings.TrimSpace(hdr.batchID); id != "" {
		parts = append(parts, "Batch "+id[:min(len(id), 8)])
	}
	if p := strings.TrimSpace(hdr.jobPath); p != "" {
		parts = append(parts, filepath.Base(p))
	}
	if s := strings.TrimSpace(hdr.stage); s != "" {
		parts = append(parts, "("+s+")")
	}
	return strings.Join(parts, " · ")
}

func writeFields(sb *strings.Builder, fields fieldList, limit int) {
	for i, f := range fields {
		if i == limit {
			hidden := len(fields) - limit
			noun := "fields"
			if hidden == 1 {
				noun = "field"
			}
			fmt.Fprintf(sb, "    + %d more %s hidden\n", hidden, noun)
			return
		}
		fmt.Fprintf(sb, "    - %s: %s\n", f.key, formatValue(f.value))
	}
}

type field struct {
	key   string
	value slog.Value
}

// fieldList holds flattened attributes. A repeated key keeps its first
// position and takes the latest value.
type fieldList []field

func (l *fieldList) add(prefix []string, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix = append(slices.Clone(prefix), a.Key)
		}
		for _, child := range a.Value.Group() {
			l.add(prefix, child)
		}
		return
	}
	key := a.Key
	if len(prefix) > 0 {
		key = strings.Join(prefix, ".") + "." + a.Key
	}
	if key == "" {
		return
	}
	if i := slices.IndexFunc(*l, func(f field) bool { return f.key == key }); i >= 0 {
		(*l)[i].value = a.Value
		return
	}
	*l = append(*l, field{key: key, value: a.Value})
}

// extractHeader removes the header attributes from the list and returns them.
func (l *fieldList) extractHeader() recordHeader {
	var hdr recordHeader
	targets := map[string]*string{
		FieldComponent: &hdr.component,
		FieldBatchID:   &hdr.batchID,
		FieldJobPath:   &hdr.jobPath,
		FieldStage:     &hdr.stage,
	}
	*l = slices.DeleteFunc(*l, func(f field) bool {
		dst, ok := targets[f.key]
		if ok {
			*dst = plainString(f.value)
		}
		return ok
	})
	return hdr
}

// ordered returns highlighted keys first, then the rest in insertion order.
func (l fieldList) ordered() fieldList {
	out := make(fieldList, 0, len(l))
	for _, key := range infoHighlightKeys {
		if i := slices.IndexFunc(l, func(f field) bool { return f.key == key }); i >= 0 {
			out = append(out, l[i])
		}
	}
	for _, f := range l {
		if !slices.Contains(infoHighlightKeys, f.key) {
			out = append(out, f)
		}
	}
	return out
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	clone.attrs = append(clone.attrs, attrs...)
	return clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *consoleHandler) clone() *consoleHandler {
	c := *h
	c.attrs = slices.Clone(h.attrs)
	c.groups = slices.Clone(h.groups)
	return &c
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

// plainString is the unquoted string form of v.
func plainString(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

func formatValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case slog.KindTime:
		return v.Time().In(time.Local).Format(consoleTimestampLayout)
	}
	s := plainString(v)
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r < ' ' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}
