package http

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// IPConfig lists the proxies whose forwarding headers are believed
type IPConfig struct {
	TrustedProxies []string // CIDR ranges, invalid entries are ignored
}

// FromTrustedProxy reports whether the immediate peer of r is a trusted proxy
func (c *IPConfig) FromTrustedProxy(r *http.Request) bool {
	if c == nil || len(c.TrustedProxies) == 0 {
		return false
	}
	peer, err := netip.ParseAddr(remoteHost(r))
	if err != nil {
		return false
	}
	peer = peer.Unmap()

	for _, cidr := range c.TrustedProxies {
		prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr))
		if err != nil {
			continue
		}
		if prefix.Contains(peer) {
			return true
		}
	}
	return false
}

// ExtractClientIP returns the address login attempts and rate limits are keyed on.
// X-Forwarded-For (first valid entry) and X-Real-IP are read only from trusted
// proxies; everyone else is identified by the connection peer.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	peer := remoteHost(r)
	if !config.FromTrustedProxy(r) {
		return peer
	}

	for _, candidate := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if addr, err := netip.ParseAddr(strings.TrimSpace(candidate)); err == nil {
			return addr.String()
		}
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.String()
	}
	return peer
}

// remoteHost strips the port from RemoteAddr
func remoteHost(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
