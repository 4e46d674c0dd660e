package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/datatree/internal/apperr"
)

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestInspectPNG(t *testing.T) {
	info, err := Inspect(tinyPNG(t))
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if info.Format != "png" || info.Width != 3 || info.Height != 2 || info.MIME != "image/png" {
		t.Errorf("info = %+v", info)
	}
}

func TestInspectCorrupt(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("not an image")} {
		if _, err := Inspect(data); !errors.Is(err, apperr.ErrImageDecode) {
			t.Errorf("Inspect(%q) err = %v, want ErrImageDecode", data, err)
		}
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "pic.png")
	_ = os.WriteFile(good, tinyPNG(t), 0o644)
	data, err := ReadFile(good)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) == 0 {
		t.Error("empty data")
	}

	wrongExt := filepath.Join(dir, "pic.gif")
	_ = os.WriteFile(wrongExt, tinyPNG(t), 0o644)
	if _, err := ReadFile(wrongExt); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("gif err = %v, want ErrValidation", err)
	}

	mismatch := filepath.Join(dir, "pic.jpg")
	_ = os.WriteFile(mismatch, tinyPNG(t), 0o644)
	if _, err := ReadFile(mismatch); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("mismatch err = %v, want ErrValidation", err)
	}

	if _, err := ReadFile(filepath.Join(dir, "missing.png")); !errors.Is(err, apperr.ErrIO) {
		t.Errorf("missing err = %v, want ErrIO", err)
	}
}

func TestDecodeDataURI(t *testing.T) {
	raw := tinyPNG(t)
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)
	data, err := DecodeDataURI(uri)
	if err != nil {
		t.Fatalf("DecodeDataURI: %v", err)
	}
	if !bytes.Equal(data, raw) {
		t.Error("decoded bytes differ")
	}

	bad := []string{
		"image/png;base64,xxx",
		"data:image/png;base64",
		"data:image/png,plain",
		"data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("hi")),
		"data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(raw),
	}
	for _, u := range bad {
		if _, err := DecodeDataURI(u); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("DecodeDataURI(%.30q) err = %v, want ErrValidation", u, err)
		}
	}
}

func TestCheckUpload(t *testing.T) {
	if err := CheckUpload("a.png", tinyPNG(t)); err != nil {
		t.Fatalf("valid upload: %v", err)
	}
	if err := CheckUpload("a.gif", tinyPNG(t)); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("gif extension: %v", err)
	}
	if err := CheckUpload("a.jpg", tinyPNG(t)); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("mismatched content: %v", err)
	}
}
