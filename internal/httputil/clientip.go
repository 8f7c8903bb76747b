// Package httputil holds request helpers shared by the HTTP middleware.
package httputil

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP returns the address of the client that sent r.
//
// With trustProxy the leftmost X-Forwarded-For entry, then X-Real-IP, is
// used when it parses as an IP address. Unparseable header values fall back to
// RemoteAddr so a client cannot invent arbitrary identities. Enable trustProxy
// only behind a reverse proxy that overwrites these headers.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if addr, ok := parseAddr(first); ok {
				return addr.String()
			}
		}
		if addr, ok := parseAddr(r.Header.Get("X-Real-IP")); ok {
			return addr.String()
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if addr, ok := parseAddr(host); ok {
		return addr.String()
	}
	return host
}

// ClientKey is ClientIP reduced to the unit a rate limiter should track:
// the address itself for IPv4 and the /64 network for IPv6, since a single
// IPv6 host usually controls a whole /64.
func ClientKey(r *http.Request, trustProxy bool) string {
	ip := ClientIP(r, trustProxy)
	addr, err := netip.ParseAddr(ip)
	if err != nil || addr.Is4() {
		return ip
	}
	prefix, err := addr.Prefix(64)
	if err != nil {
		return ip
	}
	return prefix.String()
}

func parseAddr(s string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap().WithZone(""), true
}
