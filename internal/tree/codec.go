package tree

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/starford/datatree/internal/apperr"
)

const (
	contentKey = "content"
	imageKey   = "image"
	indent     = "    "
)

// Decode parses a persisted document, normalizes legacy string leaves and builds the typed
// tree. It returns the number of upgraded legacy leaves.
func Decode(data []byte) (*Tree, int, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return New(), 0, nil
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("%w: parse tree: %v", apperr.ErrIO, err)
	}
	if raw == nil {
		return New(), 0, nil
	}
	upgraded := Normalize(raw)
	root, err := fromRaw(raw, Path{})
	if err != nil {
		return nil, 0, err
	}
	return &Tree{root: root}, upgraded, nil
}

func fromRaw(raw map[string]any, prefix Path) (*Folder, error) {
	f := NewFolder()
	for name, v := range raw {
		if clean, err := cleanName(name); err != nil || clean != name {
			return nil, fmt.Errorf("%w: invalid name %q under %q", apperr.ErrIO, name, prefix.String())
		}
		p := prefix.Join(name)
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %q: unsupported value of type %T", apperr.ErrIO, p.String(), v)
		}
		if _, isEntry := obj[contentKey]; isEntry {
			e, err := entryFromRaw(obj, p)
			if err != nil {
				return nil, err
			}
			f.set(name, e)
			continue
		}
		sub, err := fromRaw(obj, p)
		if err != nil {
			return nil, err
		}
		f.set(name, sub)
	}
	return f, nil
}

func entryFromRaw(obj map[string]any, p Path) (*Entry, error) {
	content, ok := obj[contentKey].(string)
	if !ok {
		return nil, fmt.Errorf("%w: %q: content must be a string", apperr.ErrIO, p.String())
	}
	e := &Entry{Content: content}
	switch img := obj[imageKey].(type) {
	case nil:
	case string:
		e.Image = img
	default:
		return nil, fmt.Errorf("%w: %q: image must be base64 text", apperr.ErrIO, p.String())
	}
	return e, nil
}

// Encode renders the tree as indented JSON with sorted keys. Entries without an image omit
// the image key.
func Encode(t *Tree) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(toRaw(t.root)); err != nil {
		return nil, fmt.Errorf("%w: encode tree: %v", apperr.ErrIO, err)
	}
	return buf.Bytes(), nil
}

func toRaw(f *Folder) map[string]any {
	out := make(map[string]any, f.Len())
	for name, c := range f.children {
		switch v := c.(type) {
		case *Folder:
			out[name] = toRaw(v)
		case *Entry:
			obj := map[string]any{contentKey: v.Content}
			if v.Image != "" {
				obj[imageKey] = v.Image
			}
			out[name] = obj
		}
	}
	return out
}
