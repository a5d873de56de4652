package middleware

import (
	"fmt"
	"net"
	"net/http"
)

// HeaderRealIP carries the producer address set by the proxy in front of the recorder.
const HeaderRealIP = "X-Real-IP"

// ParseSubnet parses a trusted subnet in CIDR notation. An empty string means no restriction.
func ParseSubnet(cidr string) (*net.IPNet, error) {
	if cidr == "" {
		return nil, nil
	}
	_, n, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("invalid trusted subnet %q: %w", cidr, err)
	}
	return n, nil
}

// TrustedSubnetMiddleware admits only requests whose X-Real-IP lies in cidr.
// An empty cidr admits everything; an invalid one admits nothing.
func TrustedSubnetMiddleware(cidr string) func(http.Handler) http.Handler {
	subnet, parseErr := ParseSubnet(cidr)

	return func(next http.Handler) http.Handler {
		if subnet == nil && parseErr == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if parseErr != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			ip := net.ParseIP(r.Header.Get(HeaderRealIP))
			if ip == nil || !subnet.Contains(ip) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
