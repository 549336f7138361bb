package api

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the originating address. With trustProxy the first
// X-Forwarded-For hop wins, otherwise the socket peer.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first := strings.TrimSpace(strings.Split(xff, ",")[0])
			if ip := net.ParseIP(first); ip != nil {
				return ip.String()
			}
		}
		if xr := strings.TrimSpace(r.Header.Get("X-Real-IP")); xr != "" {
			if ip := net.ParseIP(xr); ip != nil {
				return ip.String()
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// burstClientKey is "{ip}|{host}" so that one address hitting several
// virtual hosts is counted per host.
func burstClientKey(r *http.Request, trustProxy bool) string {
	host := r.Host
	if trustProxy {
		if fh := strings.TrimSpace(r.Header.Get("X-Forwarded-Host")); fh != "" {
			host = fh
		}
	}
	return ClientIP(r, trustProxy) + "|" + strings.ToLower(host)
}
