package common

import "strings"

// MaskSecret keeps the first few characters of a credential for log lines
// and replaces the rest.
func MaskSecret(s string) string {
	const visible = 4
	if s == "" {
		return ""
	}
	if len(s) <= visible {
		return strings.Repeat("*", len(s))
	}
	return s[:visible] + strings.Repeat("*", 8)
}
