package config

import (
	"fmt"
	"strings"
)

const (
	FormatIDs   = "ids"
	FormatJSON  = "json"
	FormatTable = "table"
)

// NormalizeFormat canonicalizes a CLI output format name. Empty selects fallback.
func NormalizeFormat(raw, fallback string, allowed ...string) (string, error) {
	format := strings.ToLower(strings.TrimSpace(raw))
	if format == "" {
		format = fallback
	}
	for _, a := range allowed {
		if format == a {
			return format, nil
		}
	}
	return "", fmt.Errorf("invalid format %q (expected %s)", raw, strings.Join(allowed, "|"))
}
