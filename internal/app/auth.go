package app

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyellow/region-matcher/internal/config"
	"github.com/garyellow/region-matcher/internal/metrics"
)

// metricsAuthMiddleware guards the scrape endpoint with Basic Auth when a
// password is configured. Rejected scrapes are counted as HTTP errors.
func metricsAuthMiddleware(auth config.MetricsAuth, m *metrics.Metrics) gin.HandlerFunc {
	if !auth.Enabled() {
		return func(c *gin.Context) { c.Next() }
	}

	// Digests have equal length, so the comparison time does not depend on
	// how long the configured credentials are.
	wantUser := sha256.Sum256([]byte(auth.Username))
	wantPass := sha256.Sum256([]byte(auth.Password))

	return func(c *gin.Context) {
		user, pass, ok := c.Request.BasicAuth()
		if ok {
			gotUser := sha256.Sum256([]byte(user))
			gotPass := sha256.Sum256([]byte(pass))
			userMatch := subtle.ConstantTimeCompare(gotUser[:], wantUser[:])
			passMatch := subtle.ConstantTimeCompare(gotPass[:], wantPass[:])
			if userMatch&passMatch == 1 {
				c.Next()
				return
			}
		}

		if m != nil {
			m.RecordHTTPError("unauthorized", c.FullPath())
		}
		c.Header("WWW-Authenticate", `Basic realm="region-matcher metrics"`)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
}
