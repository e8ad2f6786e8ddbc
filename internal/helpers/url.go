package helpers

import (
	"net/url"
	"strings"
)

// Domain extracts a lowercased host from a raw URL, with any "www." prefix
// stripped. Schemeless inputs like "example.com/a" are tolerated. Returns ""
// when no host can be determined.
func Domain(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}
