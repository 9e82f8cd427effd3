package http

import (
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	pkglogger "github.com/BradenHooton/amgate/pkg/logger"
)

// Query parameters describing the outcome of a previous attempt. They are dropped
// before a redirect so stale markers never survive a retry.
var outcomeParams = []string{
	"error",
	"error_code",
	"error_description",
	"error_hash",
	"success",
	"warning",
}

// CleanQueryParams returns a copy of params without outcome markers or credentials
func CleanQueryParams(params url.Values) url.Values {
	cleaned := make(url.Values, len(params))
	for key, values := range params {
		if pkglogger.IsSensitiveParam(key) {
			continue
		}
		cleaned[key] = append([]string(nil), values...)
	}
	for _, key := range outcomeParams {
		cleaned.Del(key)
	}
	return cleaned
}

// ResolveProxyURL builds the absolute URL a browser should use to reach path on this
// server. X-Forwarded-Proto, X-Forwarded-Host, X-Forwarded-Port and X-Forwarded-Prefix
// are honoured only when the request comes from a trusted proxy.
func ResolveProxyURL(r *http.Request, path string, params url.Values, config *IPConfig) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host
	prefix := ""

	if config.FromTrustedProxy(r) {
		if proto := strings.ToLower(firstHeaderValue(r, "X-Forwarded-Proto")); proto == "http" || proto == "https" {
			scheme = proto
		}
		if fwdHost := firstHeaderValue(r, "X-Forwarded-Host"); fwdHost != "" {
			host = fwdHost
		}
		if port := firstHeaderValue(r, "X-Forwarded-Port"); port != "" {
			host = withPort(host, port, scheme)
		}
		prefix = strings.TrimSuffix(firstHeaderValue(r, "X-Forwarded-Prefix"), "/")
		if prefix != "" && !strings.HasPrefix(prefix, "/") {
			prefix = "/" + prefix
		}
	}

	u := url.URL{
		Scheme: scheme,
		Host:   host,
		Path:   prefix + path,
	}
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	return u.String()
}

// firstHeaderValue returns the first entry of a possibly comma separated header
func firstHeaderValue(r *http.Request, name string) string {
	value := r.Header.Get(name)
	if i := strings.IndexByte(value, ','); i >= 0 {
		value = value[:i]
	}
	return strings.TrimSpace(value)
}

// withPort replaces any port on host. Default ports for scheme are omitted.
func withPort(host, port, scheme string) string {
	if n, err := strconv.Atoi(port); err != nil || n <= 0 || n > 65535 {
		return host
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")

	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	return net.JoinHostPort(host, port)
}
