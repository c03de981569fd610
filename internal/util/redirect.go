package util

import "strings"

// IsLocalRedirect reports whether target is a same-origin path that is safe to
// redirect to after login. Absolute and protocol-relative URLs are rejected.
func IsLocalRedirect(target string) bool {
	if target == "" || !strings.HasPrefix(target, "/") {
		return false
	}
	// Header injection
	if strings.ContainsAny(target, "\r\n") {
		return false
	}
	// "//evil.com" and "/\evil.com"
	if strings.HasPrefix(target, "//") || strings.Contains(target, "\\") {
		return false
	}
	return true
}
