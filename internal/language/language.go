package language

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Multi selects multilingual code-switching transcription.
const Multi = "multi"

// Normalize returns the canonical form of a language code ("EN-us" → "en-US").
func Normalize(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", errors.New("empty language code")
	}
	if strings.EqualFold(code, Multi) {
		return Multi, nil
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", fmt.Errorf("parse language %q: %w", code, err)
	}
	return tag.String(), nil
}

// Valid reports whether code normalizes cleanly.
func Valid(code string) bool {
	_, err := Normalize(code)
	return err == nil
}

// ToISO3 converts a language code to its ISO 639-2 form.
// Returns "und" for empty, multilingual, or unrecognized input.
func ToISO3(code string) string {
	normalized, err := Normalize(code)
	if err != nil || normalized == Multi {
		return "und"
	}
	base, confidence := language.Make(normalized).Base()
	if confidence == language.No {
		return "und"
	}
	return base.ISO3()
}

// DisplayName returns an English name for the code.
// Returns "Unknown" for empty input, or the uppercased code when unparseable.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	normalized, err := Normalize(trimmed)
	if err != nil {
		return strings.ToUpper(trimmed)
	}
	if normalized == Multi {
		return "Multilingual"
	}
	base, _ := language.Make(normalized).Base()
	name := display.English.Languages().Name(base)
	if name == "" {
		return strings.ToUpper(trimmed)
	}
	return name
}
