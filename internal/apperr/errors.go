// Package apperr defines the error taxonomy shared by every layer of datatree.
// Callers wrap these sentinels with context and test them with errors.Is.
package apperr

import "errors"

var (
	ErrValidation  = errors.New("validation failed")
	ErrConflict    = errors.New("conflict")
	ErrNotFound    = errors.New("not found")
	ErrNotAFolder  = errors.New("not a folder")
	ErrImageDecode = errors.New("image decode failed")
	ErrIO          = errors.New("i/o error")
)
