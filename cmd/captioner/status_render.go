package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"captioner/internal/queue"
)

// statusKind selects the bracketed label and ANSI colour of a status cell.
type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset        = "\x1b[0m"
	statusLabelWidth = 20
)

var statusStyles = map[statusKind]struct{ label, color string }{
	statusInfo:  {"INFO", "\x1b[34m"},
	statusOK:    {"OK", "\x1b[32m"},
	statusWarn:  {"WARN", "\x1b[33m"},
	statusError: {"ERROR", "\x1b[31m"},
}

func (k statusKind) label() string {
	if s, ok := statusStyles[k]; ok {
		return s.label
	}
	return statusStyles[statusInfo].label
}

// paint wraps s in the kind's colour when colorize is set.
func (k statusKind) paint(s string, colorize bool) string {
	style, ok := statusStyles[k]
	if !colorize || !ok {
		return s
	}
	return style.color + s + ansiReset
}

// renderStatusLine formats "  Label:   [KIND] message" with a fixed label column.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	text := "[" + kind.label() + "]"
	if message != "" {
		text += " " + message
	}
	return kind.paint(fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", text), colorize)
}

func colorCell(value string, kind statusKind, colorize bool) string {
	return kind.paint(value, colorize)
}

func fileStateKind(state string) statusKind {
	switch queue.FileState(state) {
	case queue.FileDone:
		return statusOK
	case queue.FileSkipped:
		return statusInfo
	case queue.FileError:
		return statusError
	}
	return statusWarn
}

func batchStatusKind(status string) statusKind {
	switch queue.BatchStatus(status) {
	case queue.BatchDone:
		return statusOK
	case queue.BatchCancelled:
		return statusError
	}
	return statusWarn
}

// shouldColorize reports whether w is an interactive terminal.
func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
