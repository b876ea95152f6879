package handlers

import (
	"net"
	"net/http"
	"strings"
)

// clientIP returns the caller's address, preferring what a fronting proxy reports.
func clientIP(header http.Header, remoteAddr string) string {
	if header != nil {
		if ip := strings.TrimSpace(header.Get("CF-Connecting-IP")); ip != "" {
			return ip
		}
		if fwd := header.Get("X-Forwarded-For"); fwd != "" {
			if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
				return first
			}
		}
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
