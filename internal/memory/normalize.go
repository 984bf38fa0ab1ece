package memory

import "strings"

// Normalize produces the canonical form of record content used as the dedup
// merge key: whitespace is trimmed and collapsed, case is folded.
func Normalize(content string) string {
	return strings.ToLower(strings.Join(strings.Fields(content), " "))
}
