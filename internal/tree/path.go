package tree

import (
	"fmt"
	"strings"

	"github.com/starford/datatree/internal/apperr"
)

// Separator joins path segments in the string form of a Path.
const Separator = "/"

// Path addresses a node as the sequence of names from the root. The empty Path is the root.
type Path []string

// ParsePath decodes a slash-joined path. Leading and trailing slashes are tolerated; an
// empty segment in the middle is rejected. Segments are trimmed of surrounding space.
func ParsePath(s string) (Path, error) {
	s = strings.Trim(strings.TrimSpace(s), Separator)
	if s == "" {
		return Path{}, nil
	}
	parts := strings.Split(s, Separator)
	p := make(Path, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("%w: empty segment in path %q", apperr.ErrValidation, s)
		}
		p = append(p, part)
	}
	return p, nil
}

// MustParsePath is ParsePath for literals known to be valid.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String encodes the path with Separator; the root encodes to "".
func (p Path) String() string {
	return strings.Join(p, Separator)
}

// IsRoot reports whether p addresses the tree root.
func (p Path) IsRoot() bool { return len(p) == 0 }

// Join returns a new path with name appended.
func (p Path) Join(names ...string) Path {
	out := make(Path, 0, len(p)+len(names))
	out = append(out, p...)
	return append(out, names...)
}

// Parent returns the path of the containing folder. The root is its own parent.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return Path{}
	}
	return p[: len(p)-1 : len(p)-1]
}

// Base returns the last segment, or "" for the root.
func (p Path) Base() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Equal reports whether both paths name the same node.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// FolderLabel renders a folder name the way outline rows and search hits show it.
func FolderLabel(name string) string {
	return name + Separator
}

// LabelName reverses FolderLabel for callers that only hold a rendered label.
func LabelName(label string) (name string, folder bool) {
	if strings.HasSuffix(label, Separator) {
		return strings.TrimSuffix(label, Separator), true
	}
	return label, false
}
