package middleware

import (
	"net/http"
	"strings"

	"github.com/safecli/safecli/internal/util"
)

var sensitiveHeaders = map[string]struct{}{
	"authorization":       {},
	"cookie":              {},
	"set-cookie":          {},
	"proxy-authorization": {},
	"x-endpoint-token":    {},
	"x-api-key":           {},
	"x-forwarded-for":     {},
}

// SanitizeHeaders returns a copy of h fit for logging: credentials are redacted and
// every other value is sanitized and truncated.
func SanitizeHeaders(h http.Header) map[string][]string {
	if h == nil {
		return nil
	}
	out := make(map[string][]string, len(h))
	for k, vals := range h {
		if _, ok := sensitiveHeaders[strings.ToLower(k)]; ok {
			out[k] = []string{"<redacted>"}
			continue
		}
		clean := make([]string, 0, len(vals))
		for _, v := range vals {
			clean = append(clean, util.TruncateForLog(v))
		}
		out[k] = clean
	}
	return out
}

// SanitizePath strips the query string, control characters and excess length.
func SanitizePath(p string) string {
	if i := strings.Index(p, "?"); i != -1 {
		p = p[:i]
	}
	return util.TruncateForLog(p)
}
