package netutil

import (
	"net"
	"net/netip"
	"strings"
)

// MaxUserAgentLength bounds the user agent stored on sessions and audit rows.
const MaxUserAgentLength = 512

// NormalizeIP reduces a remote address to its canonical IP form. It accepts a
// bare IP, "host:port", or "[v6]:port" and drops any IPv6 zone. The bool
// reports whether the input parsed as an IP; on failure the raw input is
// returned unchanged so callers can still record it.
func NormalizeIP(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	candidates := []string{raw}
	if host, _, err := net.SplitHostPort(raw); err == nil {
		candidates = append(candidates, host)
	}
	for _, c := range candidates {
		if addr, err := netip.ParseAddr(c); err == nil {
			return addr.WithZone("").String(), true
		}
	}
	// SplitHostPort rejects non-numeric ports, so peel brackets by hand.
	if strings.HasPrefix(raw, "[") {
		if end := strings.LastIndex(raw, "]"); end > 1 {
			if addr, err := netip.ParseAddr(raw[1:end]); err == nil {
				return addr.WithZone("").String(), true
			}
		}
	}
	return raw, false
}

// TruncateUserAgent caps ua at MaxUserAgentLength runes without splitting a
// multi-byte character.
func TruncateUserAgent(ua string) string {
	n := 0
	for i := range ua {
		if n == MaxUserAgentLength {
			return ua[:i]
		}
		n++
	}
	return ua
}
