package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteMediaFixture creates a placeholder media file of the given size.
// The pipeline never decodes fixture media, so the content is a repeating
// byte pattern; only size and presence matter. A size <= 0 writes one byte.
func WriteMediaFixture(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = byte('a' + i%16)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
