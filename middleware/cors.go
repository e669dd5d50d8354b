package middleware

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/jwolfsohn/Atlas-Sentinel/config"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// AllowedOrigins parses the comma separated origin list. Nil means any origin.
func AllowedOrigins(cfg config.CORSConfig) []string {
	var origins []string
	for _, o := range strings.Split(cfg.AllowedOrigins, ",") {
		o = strings.TrimSpace(o)
		if o == "*" {
			return nil
		}
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// SetupCORS lets dashboards read the API. Credentials are only allowed for explicit origins.
func SetupCORS(cfg config.CORSConfig) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if origins := AllowedOrigins(cfg); origins != nil {
		c.AllowOrigins = origins
		c.AllowCredentials = true
	} else {
		c.AllowAllOrigins = true
	}
	return cors.New(c)
}

// OriginChecker applies the same origin list to websocket upgrades. Requests without an
// Origin header are not from a browser and pass.
func OriginChecker(cfg config.CORSConfig) func(r *http.Request) bool {
	origins := AllowedOrigins(cfg)
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origins == nil || origin == "" || slices.Contains(origins, origin)
	}
}
