package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// CacheMode selects the Cache-Control posture of SecurityHeaders.
type CacheMode int

const (
	// CacheUnset leaves Cache-Control to the handler.
	CacheUnset CacheMode = iota
	// CacheRevalidate sends "private, no-cache": clients may keep a copy but
	// must revalidate it with If-None-Match before use.
	CacheRevalidate
	// CacheNoStore forbids storing the response at all.
	CacheNoStore
)

// APIContentSecurityPolicy locks a JSON-only surface down completely.
const APIContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"

// SecurityOptions configures SecurityHeaders.
//
// HSTS is only emitted for HTTPS requests (directly or behind a proxy that
// sets X-Forwarded-Proto) and only when EnableHSTS is set; HSTSMaxAge <= 0
// means 180 days.
//
// ContentSecurityPolicy is skipped for paths under CSPExemptPrefixes, e.g.
// the Swagger UI which needs its own scripts and styles.
type SecurityOptions struct {
	EnableHSTS   bool
	HSTSMaxAge   time.Duration
	Cache        CacheMode
	EnablePolicy bool // Permissions-Policy and X-Permitted-Cross-Domain-Policies

	ContentSecurityPolicy string
	CSPExemptPrefixes     []string
}

// SecurityHeaders attaches conservative security headers to every response:
// nosniff, DENY framing and no-referrer always; the optional ones per opt.
// A response X-Request-ID is exposed to browser clients.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	hsts := "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		if opt.ContentSecurityPolicy != "" && !hasAnyPrefix(c.Request.URL.Path, opt.CSPExemptPrefixes) {
			h.Set("Content-Security-Policy", opt.ContentSecurityPolicy)
		}

		switch opt.Cache {
		case CacheRevalidate:
			h.Set("Cache-Control", "private, no-cache")
		case CacheNoStore:
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		if h.Get("X-Request-ID") != "" {
			exposeHeader(h, "X-Request-ID")
		}

		c.Next()
	}
}

// exposeHeader appends name to Access-Control-Expose-Headers once.
func exposeHeader(h http.Header, name string) {
	const hdr = "Access-Control-Expose-Headers"
	cur := h.Get(hdr)
	switch {
	case cur == "":
		h.Set(hdr, name)
	case !strings.Contains(cur, name):
		h.Set(hdr, cur+", "+name)
	}
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// isHTTPS reports whether the incoming request used HTTPS either directly
// (r.TLS != nil) or via a reverse proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
