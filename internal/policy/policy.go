package policy

import (
	"net/url"
	"strings"

	clierr "github.com/ggonzalez94/dotsign/internal/errors"
)

func CheckCommandAllowed(allowlist []string, commandPath string) error {
	if len(allowlist) == 0 {
		return nil
	}
	normPath := normalize(commandPath)
	for _, allowed := range allowlist {
		if normalize(allowed) == normPath {
			return nil
		}
	}
	return clierr.New(clierr.CodeBlocked, "command blocked by --enable-commands policy")
}

// CheckOrigin rejects requests from denied origins. An entry matches the
// origin verbatim, its host, or any subdomain of its host.
func CheckOrigin(denylist []string, origin string) error {
	if strings.TrimSpace(origin) == "" {
		return clierr.New(clierr.CodeUsage, "origin is required")
	}
	host := originHost(origin)
	for _, denied := range denylist {
		d := strings.ToLower(strings.TrimSpace(denied))
		if d == "" {
			continue
		}
		if d == strings.ToLower(strings.TrimSpace(origin)) {
			return blocked(origin)
		}
		dh := originHost(d)
		if host != "" && (host == dh || strings.HasSuffix(host, "."+dh)) {
			return blocked(origin)
		}
	}
	return nil
}

func blocked(origin string) error {
	return clierr.New(clierr.CodeBlocked, "origin "+origin+" is blocked by policy")
}

func originHost(origin string) string {
	o := strings.ToLower(strings.TrimSpace(origin))
	if !strings.Contains(o, "://") {
		o = "//" + o
	}
	u, err := url.Parse(o)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func normalize(v string) string {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(v)))
	return strings.Join(parts, " ")
}
