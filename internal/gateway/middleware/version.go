package middleware

import (
	"net/http"
	"time"
)

// VersionConfig configures API versioning middleware.
type VersionConfig struct {
	// CurrentVersion is the current API version.
	CurrentVersion string
	// DeprecatedVersions lists deprecated versions with their sunset dates.
	DeprecatedVersions map[string]time.Time
	// DefaultVersion is used when no version is specified.
	DefaultVersion string
}

// DefaultVersionConfig returns the default version configuration.
func DefaultVersionConfig() VersionConfig {
	return VersionConfig{
		CurrentVersion:     "1",
		DeprecatedVersions: make(map[string]time.Time),
		DefaultVersion:     "1",
	}
}

// Version returns middleware that handles API versioning. It reads the
// Accept-Version header and sets API-Version, Deprecation, and Sunset
// headers.
func Version(config VersionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			version := r.Header.Get("Accept-Version")
			if version == "" {
				version = config.DefaultVersion
			}

			w.Header().Set("API-Version", version)

			if sunsetDate, deprecated := config.DeprecatedVersions[version]; deprecated {
				// RFC 8594 deprecation headers.
				w.Header().Set("Deprecation", "true")
				w.Header().Set("Sunset", sunsetDate.Format(http.TimeFormat))
			}

			next.ServeHTTP(w, r)
		})
	}
}
