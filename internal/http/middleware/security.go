// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides SecurityHeaders, a hardening middleware for the JSON API.
// The backend runs behind a reverse proxy, so HTTPS detection honors
// X-Forwarded-Proto and HSTS stays opt-in.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// hstsDefaultMaxAge is used when no explicit HSTS lifetime is configured.
const hstsDefaultMaxAge = 180 * 24 * time.Hour

// SecurityOptions configures the headers emitted by SecurityHeaders.
//
// EnableHSTS must only be turned on when traffic is HTTPS end-to-end,
// including the proxy-to-app hop; the header is never sent for plain HTTP
// requests regardless of this flag. NoStore adds Cache-Control: no-store for
// responses that should never be cached. EnablePolicy adds browser feature
// policies, which non-browser clients ignore.
type SecurityOptions struct {
	EnableHSTS   bool
	HSTSMaxAge   time.Duration
	NoStore      bool
	EnablePolicy bool
}

// SecurityHeaders returns a Gin middleware that adds conservative security
// headers to every response.
//
// Always set: X-Content-Type-Options, X-Frame-Options, Referrer-Policy.
// Conditionally set per SecurityOptions: Permissions-Policy and
// X-Permitted-Cross-Domain-Policies, cache suppression headers, and
// Strict-Transport-Security. When a request ID header is present it is added
// to Access-Control-Expose-Headers so browser clients can read it.
//
// No Content-Security-Policy is emitted: the backend serves JSON only.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int(hstsDefaultMaxAge.Seconds())
	}
	hstsValue := "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}

		if opt.EnableHSTS && requestIsHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hstsValue)
		}

		if rid := h.Get(requestIDHeader); rid != "" {
			// Append without clobbering exposed headers set by CORS.
			const hdr = "Access-Control-Expose-Headers"
			switch cur := h.Get(hdr); {
			case cur == "":
				h.Set(hdr, requestIDHeader)
			case !strings.Contains(cur, requestIDHeader):
				h.Set(hdr, cur+", "+requestIDHeader)
			}
		}

		c.Next()
	}
}

// requestIsHTTPS reports whether the request arrived over TLS, either
// directly or through a proxy that set X-Forwarded-Proto.
func requestIsHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
