// Package testutil provides shared test helpers for setting up data directories and tree
// services.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/datatree/internal/storage"
	"github.com/starford/datatree/internal/treeservice"
)

// PNG encodes a small opaque PNG of the given size.
func PNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// TestDataDir creates a temporary data directory with a storage.Provider.
func TestDataDir(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// WriteFile writes content to name inside dir.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OpenService opens a service for name persisted at file inside a fresh data directory.
func OpenService(t *testing.T, name, file string, opts ...treeservice.Option) (*treeservice.Service, string) {
	t.Helper()
	dir, store := TestDataDir(t)
	opts = append([]treeservice.Option{treeservice.WithLogger(DiscardLogger())}, opts...)
	svc := treeservice.New(name, file, store, opts...)
	if err := svc.Open(t.Context()); err != nil {
		t.Fatal(err)
	}
	return svc, dir
}
