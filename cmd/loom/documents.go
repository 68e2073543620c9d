package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"loom/internal/dialect"
	"loom/internal/fileutil"
	"loom/internal/timeline"
)

// detectDialect resolves a dialect name from an explicit flag or the
// document's file extension.
func detectDialect(flag, path string) (string, error) {
	if name := strings.TrimSpace(flag); name != "" {
		return strings.ToLower(name), nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mlt":
		return "mlt", nil
	case ".fcpxml":
		return "fcpxml", nil
	}
	return "", fmt.Errorf("cannot infer dialect from %q; pass one of: %s",
		path, strings.Join(dialect.Names(), ", "))
}

func loadTimeline(path, dialectName string, opts dialect.Options) (*timeline.Timeline, error) {
	adapter, err := dialect.For(dialectName, opts)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	tl, err := adapter.Parse(data)
	if err != nil {
		return nil, err
	}
	return tl, nil
}

func saveTimeline(tl *timeline.Timeline, path, dialectName string, opts dialect.Options) error {
	adapter, err := dialect.For(dialectName, opts)
	if err != nil {
		return err
	}
	data, err := adapter.Serialize(tl)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return fileutil.WriteFileAtomic(path, data, 0o644)
}
