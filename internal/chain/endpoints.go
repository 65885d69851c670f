package chain

import (
	"net"
	"net/url"
	"strings"
)

// IsAllowedEndpoint accepts wss:// and https:// endpoints anywhere and plain
// ws:// or http:// only on loopback hosts.
func IsAllowedEndpoint(endpoint string) bool {
	parsed, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return false
	}
	if strings.TrimSpace(parsed.Hostname()) == "" {
		return false
	}
	scheme := strings.ToLower(parsed.Scheme)
	switch scheme {
	case "wss", "https":
		return true
	case "ws", "http":
		return isLoopbackHost(parsed.Hostname())
	default:
		return false
	}
}

func isLoopbackHost(host string) bool {
	h := strings.TrimSpace(strings.ToLower(host))
	if h == "localhost" {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}

// ResolveEndpoints returns override alone when set, otherwise the chain's
// configured endpoints.
func ResolveEndpoints(override string, info Info) []string {
	if v := strings.TrimSpace(override); v != "" {
		return []string{v}
	}
	return info.Endpoints
}
