// Package requestutil resolves the client address of requests that may have
// crossed reverse proxies.
package requestutil

import (
	"net"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
)

// forwardedIP returns the client address reported by the proxy headers.
// X-Forwarded-For wins over X-Real-Ip; malformed values are ignored.
func forwardedIP(r *http.Request) (string, bool) {
	if prior := r.Header.Get("X-Forwarded-For"); prior != "" {
		first, _, _ := strings.Cut(prior, ",")
		if ip := strings.TrimSpace(first); validIP(ip) {
			return ip, true
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-Ip")); realIP != "" && validIP(realIP) {
		return realIP, true
	}

	return "", false
}

func validIP(s string) bool {
	if net.ParseIP(s) == nil {
		log.Warnf("invalid remote IP address: %q", s)
		return false
	}
	return true
}

// RemoteAddr extracts the remote address of the request, taking into
// account proxy headers. Without them the connection address, port
// included, is returned.
func RemoteAddr(r *http.Request) string {
	if ip, ok := forwardedIP(r); ok {
		return ip
	}
	return r.RemoteAddr
}

// RemoteIP is RemoteAddr without the port.
func RemoteIP(r *http.Request) string {
	addr := RemoteAddr(r)
	if ip, _, err := net.SplitHostPort(addr); err == nil {
		return ip
	}
	return addr
}
