// Package imaging reads images chosen by the user and checks embedded images before they
// are handed to a display.
package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/datatree/internal/apperr"
)

// MaxSize caps the size of an image accepted from any source.
const MaxSize = 10 << 20 // 10 MB

var mimeToExt = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
}

// allowedExtensions mirrors the picker filter: jpg, jpeg and png files.
var allowedExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true,
}

// Info describes a decodable image.
type Info struct {
	Format string `json:"format"`
	MIME   string `json:"mime"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int    `json:"size"`
}

// ReadFile loads an image chosen from disk.
func ReadFile(path string) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !allowedExtensions[ext] {
		return nil, fmt.Errorf("%w: unsupported image extension %q (allowed: jpg, jpeg, png)", apperr.ErrValidation, ext)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrIO, err)
	}
	if info.Size() > MaxSize {
		return nil, fmt.Errorf("%w: image too large: %d bytes (max %d)", apperr.ErrValidation, info.Size(), MaxSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrIO, err)
	}
	if err := validateMagicBytes(data, ext); err != nil {
		return nil, err
	}
	return data, nil
}

// CheckUpload validates an uploaded image the way ReadFile validates a picked file.
func CheckUpload(filename string, data []byte) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return fmt.Errorf("%w: unsupported image extension %q (allowed: jpg, jpeg, png)", apperr.ErrValidation, ext)
	}
	if len(data) > MaxSize {
		return fmt.Errorf("%w: image too large: %d bytes (max %d)", apperr.ErrValidation, len(data), MaxSize)
	}
	return validateMagicBytes(data, ext)
}

// DecodeDataURI parses a data:<mediatype>;base64,<data> URI.
func DecodeDataURI(uri string) ([]byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, fmt.Errorf("%w: not a data URI", apperr.ErrValidation)
	}
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("%w: invalid data URI: missing comma separator", apperr.ErrValidation)
	}
	if !strings.Contains(meta, ";base64") {
		return nil, fmt.Errorf("%w: only base64 data URIs are supported", apperr.ErrValidation)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid base64 data: %v", apperr.ErrValidation, err)
		}
	}
	if len(data) > MaxSize {
		return nil, fmt.Errorf("%w: image too large: %d bytes (max %d)", apperr.ErrValidation, len(data), MaxSize)
	}

	mime := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	ext := mimeToExt[mime]
	if ext == "" {
		return nil, fmt.Errorf("%w: unsupported MIME type in data URI: %s", apperr.ErrValidation, mime)
	}
	if err := validateMagicBytes(data, ext); err != nil {
		return nil, err
	}
	return data, nil
}

// validateMagicBytes verifies file content matches the declared extension.
func validateMagicBytes(data []byte, ext string) error {
	detected := http.DetectContentType(data)
	got := mimeToExt[strings.Split(detected, ";")[0]]
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	if got != ext {
		return fmt.Errorf("%w: content does not match extension %s (detected: %s)", apperr.ErrValidation, ext, detected)
	}
	return nil
}

// Inspect decodes the image header. Anything the display could not render fails with
// apperr.ErrImageDecode.
func Inspect(data []byte) (Info, error) {
	if len(data) == 0 {
		return Info{}, fmt.Errorf("%w: empty image", apperr.ErrImageDecode)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", apperr.ErrImageDecode, err)
	}
	return Info{
		Format: format,
		MIME:   "image/" + format,
		Width:  cfg.Width,
		Height: cfg.Height,
		Size:   len(data),
	}, nil
}
