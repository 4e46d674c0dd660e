package storage

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/starford/datatree/internal/apperr"
	"github.com/starford/datatree/internal/tree"
)

// Document is a decoded tree file.
type Document struct {
	Tree *tree.Tree
	// Raw is the file content as read; nil when the file did not exist.
	Raw []byte
	// Upgraded counts legacy string leaves normalized during decoding.
	Upgraded int
}

// LoadTree reads and decodes the tree stored at path. A missing file yields an empty tree;
// an unreadable or malformed file fails with apperr.ErrIO.
func LoadTree(p Provider, path string) (*Document, error) {
	data, err := p.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Document{Tree: tree.New()}, nil
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrIO, err)
	}
	t, upgraded, err := tree.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return &Document{Tree: t, Raw: data, Upgraded: upgraded}, nil
}

// SaveTree encodes t and writes it to path, returning the bytes written.
func SaveTree(p Provider, path string, t *tree.Tree) ([]byte, error) {
	data, err := tree.Encode(t)
	if err != nil {
		return nil, err
	}
	if err := p.Write(path, data); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrIO, err)
	}
	return data, nil
}
