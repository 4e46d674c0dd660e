package tree

import (
	"fmt"
	"strings"
)

// NoMatches is the single line shown for an empty result set.
const NoMatches = "No matches found."

// Hit is one search result.
type Hit struct {
	Kind    Kind
	Path    Path
	Content string
}

func (h Hit) String() string {
	if h.Kind == KindEntry {
		return fmt.Sprintf("Entry: %s (content: %s)", h.Path, h.Content)
	}
	return "Folder: " + FolderLabel(h.Path.String())
}

// Search returns every node whose own name contains term, ignoring case.
// Entry content is not searched. Results follow depth-first, name-sorted traversal.
func Search(t *Tree, term string) ([]Hit, error) {
	term, err := cleanTerm(term)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(term)

	var hits []Hit
	_ = t.Walk(func(p Path, c Child) error {
		if !strings.Contains(strings.ToLower(p.Base()), needle) {
			return nil
		}
		h := Hit{Kind: c.Kind(), Path: p}
		if e, ok := c.(*Entry); ok {
			h.Content = e.Content
		}
		hits = append(hits, h)
		return nil
	})
	return hits, nil
}

// FormatHits renders hits one per line, or the NoMatches placeholder.
func FormatHits(hits []Hit) []string {
	if len(hits) == 0 {
		return []string{NoMatches}
	}
	lines := make([]string, len(hits))
	for i, h := range hits {
		lines[i] = h.String()
	}
	return lines
}
