package common

import (
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP returns the caller address. chi's RealIP middleware has normally
// already rewritten RemoteAddr from X-Forwarded-For / X-Real-IP; the headers
// are consulted here only when RemoteAddr is not a usable address.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if addr, ok := parseAddr(r.RemoteAddr); ok {
		return addr
	}
	for _, raw := range []string{r.Header.Get("X-Real-IP"), firstHop(r.Header.Get("X-Forwarded-For"))} {
		if addr, ok := parseAddr(raw); ok {
			return addr
		}
	}
	return strings.TrimSpace(r.RemoteAddr)
}

func parseAddr(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if ap, err := netip.ParseAddrPort(raw); err == nil {
		return ap.Addr().Unmap().String(), true
	}
	if a, err := netip.ParseAddr(raw); err == nil {
		return a.Unmap().String(), true
	}
	return "", false
}

func firstHop(xff string) string {
	first, _, _ := strings.Cut(xff, ",")
	return first
}
