// Package relevance holds the cheap keyword gate run before any LLM call.
package relevance

import "strings"

// ContainsTarget reports whether any non-blank target appears in text,
// ignoring case.
func ContainsTarget(text string, targets []string) bool {
	haystack := strings.ToLower(text)
	for _, target := range targets {
		needle := strings.ToLower(strings.TrimSpace(target))
		if needle == "" {
			continue
		}
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}
