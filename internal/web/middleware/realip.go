package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// TrustedRealIP rewrites r.RemoteAddr from X-Real-IP or the first
// X-Forwarded-For hop, but only when the connection comes from one of the
// trusted proxy CIDRs. Bare addresses are accepted as single-host prefixes.
// Headers from any other peer are ignored.
func TrustedRealIP(trustedCIDRs []string) func(http.Handler) http.Handler {
	trusted := parsePrefixes(trustedCIDRs)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if peer, ok := remoteAddr(r.RemoteAddr); ok && isTrusted(peer, trusted) {
				if ip, ok := forwardedFor(r.Header); ok {
					r.RemoteAddr = ip.String()
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func parsePrefixes(cidrs []string) []netip.Prefix {
	var out []netip.Prefix
	for _, c := range cidrs {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if p, err := netip.ParsePrefix(c); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(c)
		if err != nil {
			slog.Warn("realip: invalid trusted proxy CIDR, skipping", "cidr", c, "error", err)
			continue
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out
}

// forwardedFor returns the client address named by the proxy headers.
// X-Real-IP wins over X-Forwarded-For.
func forwardedFor(h http.Header) (netip.Addr, bool) {
	if rip := strings.TrimSpace(h.Get("X-Real-IP")); rip != "" {
		addr, err := netip.ParseAddr(rip)
		return addr, err == nil
	}
	xff := h.Get("X-Forwarded-For")
	if xff == "" {
		return netip.Addr{}, false
	}
	first, _, _ := strings.Cut(xff, ",")
	addr, err := netip.ParseAddr(strings.TrimSpace(first))
	return addr, err == nil
}

func remoteAddr(addr string) (netip.Addr, bool) {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	a, err := netip.ParseAddr(addr)
	if err != nil {
		return netip.Addr{}, false
	}
	return a.Unmap(), true
}

func isTrusted(ip netip.Addr, trusted []netip.Prefix) bool {
	for _, p := range trusted {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}
