package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"coinview/internal/config"
)

const authRealm = `Basic realm="CoinView"`

// IPAllowlistMiddleware restricts access to requests from allowed CIDR ranges
func IPAllowlistMiddleware(cfg *config.IPAllowlistConfig) func(http.Handler) http.Handler {
	prefixes := parsePrefixes(cfg.CIDRs)
	slog.Info("ip_allowlist_configured", "cidr_count", len(prefixes), "enabled", cfg.Enabled)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			clientIP := getClientIP(r)
			addr, err := netip.ParseAddr(clientIP)
			if err != nil {
				slog.Warn("invalid_client_ip", "ip", clientIP, "request_id", GetRequestID(r.Context()))
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			if !allowed(prefixes, addr.Unmap()) {
				slog.Warn("ip_blocked", "ip", clientIP, "path", r.URL.Path, "request_id", GetRequestID(r.Context()))
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func parsePrefixes(cidrs []string) []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, cidr := range cidrs {
		p, err := netip.ParsePrefix(strings.TrimSpace(cidr))
		if err != nil {
			slog.Warn("invalid_cidr", "cidr", cidr, "error", err)
			continue
		}
		prefixes = append(prefixes, p.Masked())
	}
	return prefixes
}

func allowed(prefixes []netip.Prefix, addr netip.Addr) bool {
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// BasicAuthMiddleware requires HTTP Basic Authentication.
// The username comes from BASIC_AUTH_USERNAME and the bcrypt hash of the
// password from BASIC_AUTH_PASSWORD_HASH.
func BasicAuthMiddleware(cfg *config.BasicAuthConfig) func(http.Handler) http.Handler {
	username := os.Getenv("BASIC_AUTH_USERNAME")
	hash := []byte(os.Getenv("BASIC_AUTH_PASSWORD_HASH"))

	configured := username != "" && len(hash) > 0
	if configured {
		if _, err := bcrypt.Cost(hash); err != nil {
			slog.Warn("basic_auth_invalid_hash", "error", err)
			configured = false
		}
	}
	if cfg.Enabled && !configured {
		slog.Warn("basic_auth_enabled_but_no_credentials",
			"msg", "set BASIC_AUTH_USERNAME and a bcrypt BASIC_AUTH_PASSWORD_HASH")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			// Unusable credentials lock everything out
			if !configured {
				http.Error(w, "Authentication not configured", http.StatusInternalServerError)
				return
			}

			reqUser, reqPass, ok := r.BasicAuth()
			if !ok {
				w.Header().Set("WWW-Authenticate", authRealm)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			// bcrypt runs even on a username mismatch so both paths cost the same
			userMatch := subtle.ConstantTimeCompare([]byte(reqUser), []byte(username)) == 1
			passMatch := bcrypt.CompareHashAndPassword(hash, []byte(reqPass)) == nil

			if !userMatch || !passMatch {
				slog.Warn("auth_failed", "username", reqUser, "request_id", GetRequestID(r.Context()))
				w.Header().Set("WWW-Authenticate", authRealm)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP extracts the client IP from the request.
// X-Forwarded-For wins over X-Real-IP, which wins over RemoteAddr.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}
	return host
}
