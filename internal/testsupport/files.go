package testsupport

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path with size bytes of filler, creating parent
// directories. Sizes below one are rounded up to a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	mkdirParent(t, path)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	filler := io.LimitReader(repeatReader('B'), max(size, 1))
	if _, err := io.Copy(f, filler); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

type repeatReader byte

func (r repeatReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(r)
	}
	return len(p), nil
}

func mkdirParent(t testing.TB, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
}

// WriteText writes content to path, creating parent directories.
func WriteText(t testing.TB, path, content string) {
	t.Helper()
	mkdirParent(t, path)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ReadText returns the content of path or fails the test.
func ReadText(t testing.TB, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// MediaFile creates a small placeholder media file under root at rel.
func MediaFile(t testing.TB, root, rel string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	WriteFile(t, path, 1024)
	return path
}
