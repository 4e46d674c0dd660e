package tree

// Normalize upgrades a freshly decoded document in place: a string value becomes an entry
// object {"content": s, "image": nil}, an object without "content" is treated as a folder
// and recursed into, and an object with "content" is left untouched.
// It returns the number of upgraded leaves.
func Normalize(raw map[string]any) int {
	upgraded := 0
	for name, v := range raw {
		switch val := v.(type) {
		case string:
			raw[name] = map[string]any{"content": val, "image": nil}
			upgraded++
		case map[string]any:
			if _, ok := val["content"]; !ok {
				upgraded += Normalize(val)
			}
		}
	}
	return upgraded
}
