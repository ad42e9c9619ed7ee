package models

import "strings"

// SanitizeKeySegment escapes delimiter characters in rate limit key segments
// so a client-supplied value containing ':' cannot address another bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// NewIPRateLimitKey keys the ingress bucket for one client IP.
func NewIPRateLimitKey(ip string) string {
	return "ip:" + SanitizeKeySegment(ip)
}
