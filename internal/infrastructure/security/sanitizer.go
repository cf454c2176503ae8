// Package security redacts credentials from values that end up in logs.
// Outbound calls carry API keys and certificate passphrases; none of
// those may reach the log stream.
package security

import (
	"net/http"
	"net/url"
	"strings"
)

const redactedValue = "[REDACTED]"

var sensitiveHeaders = map[string]bool{
	"authorization":       true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"proxy-authorization": true,
}

// Query parameters whose values are credentials. Matched as substrings
// of the lowercased parameter name, so "api_key" also covers "apikey"
// via the "key" entry.
var sensitiveParams = []string{
	"passphrase",
	"password",
	"secret",
	"token",
	"key",
	"credential",
	"auth",
}

// SanitizeHeaders returns a flat copy of the headers with credential
// headers redacted, suitable for structured logging.
func SanitizeHeaders(headers http.Header) map[string]string {
	sanitized := make(map[string]string, len(headers))
	for key, values := range headers {
		if sensitiveHeaders[strings.ToLower(key)] {
			sanitized[key] = redactedValue
			continue
		}
		sanitized[key] = strings.Join(values, ", ")
	}
	return sanitized
}

// SanitizeURL redacts the values of credential-bearing query parameters
// and any userinfo component. Unparsable URLs are returned whole-redacted
// rather than leaked as-is. The query is edited in place so parameter
// order and encoding of the untouched parts survive.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return redactedValue
	}

	if u.User != nil {
		u.User = url.User(redactedValue)
	}

	if u.RawQuery != "" {
		pairs := strings.Split(u.RawQuery, "&")
		for i, pair := range pairs {
			name, _, ok := strings.Cut(pair, "=")
			if ok && isSensitiveParam(name) {
				pairs[i] = name + "=" + redactedValue
			}
		}
		u.RawQuery = strings.Join(pairs, "&")
	}

	return u.String()
}

func isSensitiveParam(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range sensitiveParams {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
