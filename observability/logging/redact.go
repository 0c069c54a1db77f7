package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue replaces sensitive field values in log output.
const RedactedValue = "[REDACTED]"

// Keys that may appear in logs verbatim. Everything else passed through
// MaskField is replaced wholesale, so a new field is private until someone
// deliberately allows it.
var redactionAllowlist = map[string]struct{}{
	"component": {},
	"env":       {},
	"error":     {},
	"message":   {},
	"pool":      {},
	"reason":    {},
	"route":     {},
	"service":   {},
	"severity":  {},
	"timestamp": {},
}

// IsAllowlisted reports whether a key is exempt from redaction. Lookup is
// case- and whitespace-insensitive.
func IsAllowlisted(key string) bool {
	_, ok := redactionAllowlist[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// RedactionAllowlist returns the exempt keys in sorted order.
func RedactionAllowlist() []string {
	keys := make([]string, 0, len(redactionAllowlist))
	for key := range redactionAllowlist {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MaskField builds a slog attribute whose value is redacted unless the key
// is allowlisted. Empty values pass through so absent fields stay readable.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}
