// Package storage defines where tree documents live on disk and how they are read and
// written.
package storage

// Provider is the interface for tree file operations. Relative paths resolve against the
// provider's data directory; absolute paths name a file chosen by the user.
type Provider interface {
	// Resolve returns the absolute file path for path.
	Resolve(path string) (string, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path with content.
	Write(path string, content []byte) error
}
