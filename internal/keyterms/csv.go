package keyterms

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"captioner/internal/fileutil"
	"captioner/internal/paths"
)

// Load reads a keyterm CSV in file order. Duplicates are kept as written.
func Load(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(data)
}

// LoadForMedia loads the per-show list for a media file. A missing list is
// not an error and yields nil.
func LoadForMedia(mediaPath string) ([]string, string, error) {
	path := paths.KeytermsCSVPath(mediaPath)
	terms, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, path, nil
	}
	if err != nil {
		return nil, path, fmt.Errorf("load keyterms %s: %w", path, err)
	}
	return terms, path, nil
}

// Save writes terms to path under an advisory lock, replacing any previous
// content.
func Save(ctx context.Context, path, name string, terms []string) error {
	data, err := encode(name, terms)
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileLocked(ctx, path, data, 0o664); err != nil {
		return fmt.Errorf("save keyterms %s: %w", path, err)
	}
	return nil
}

// SaveForMedia writes the per-show list for a media file, creating the
// Keyterms folder when needed. It returns the CSV path.
func SaveForMedia(ctx context.Context, mediaPath string, terms []string) (string, error) {
	if _, err := paths.KeytermsFolder(mediaPath); err != nil {
		return "", fmt.Errorf("create keyterms folder: %w", err)
	}
	path := paths.KeytermsCSVPath(mediaPath)
	return path, Save(ctx, path, paths.ShowOrMovieName(mediaPath), terms)
}

func parse(data []byte) ([]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var terms []string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return terms, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse keyterms: %w", err)
		}
		// One term per line. Unquoted commas belong to the term.
		if term := strings.TrimSpace(strings.Join(record, ",")); term != "" {
			terms = append(terms, term)
		}
	}
}

func encode(name string, terms []string) ([]byte, error) {
	var buf bytes.Buffer
	if name != "" {
		fmt.Fprintf(&buf, "# Keyterms for %s\n", name)
	}
	writer := csv.NewWriter(&buf)
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		if err := writer.Write([]string{term}); err != nil {
			return nil, fmt.Errorf("encode keyterms: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("encode keyterms: %w", err)
	}
	return buf.Bytes(), nil
}

// Dedupe trims terms and drops empty entries and case-insensitive
// duplicates, keeping the first spelling.
func Dedupe(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		key := strings.ToLower(term)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, term)
	}
	return out
}
