package cache

import "strings"

const (
	keyPrefix    = "lsd"
	keySeparator = "::"
)

// BuildKey joins the fixed prefix and the given discriminators (page name,
// active programme, ...) with the separator, skipping empty parts.
func BuildKey(parts ...string) string {
	joined := []string{keyPrefix}
	for _, p := range parts {
		if p != "" {
			joined = append(joined, p)
		}
	}
	return strings.Join(joined, keySeparator)
}
