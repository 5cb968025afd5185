package auth

import "strings"

// PublicRoutes is the single source of truth for paths that bypass
// authentication. The router registers these handlers and the middleware
// consults the same list to skip credential resolution, so the two can never
// drift apart. A trailing "/*" matches any suffix.
var PublicRoutes = []string{
	"/health",
	"/metrics",
	"/.well-known/caseline.json",
	"/api/v1/auth/register",
	"/api/v1/auth/login",
	"/api/v1/auth/verify-email",
	"/api/v1/auth/password-reset",
	"/api/v1/auth/password-reset/confirm",
	"/api/v1/invitations/accept",
}

// IsPublic reports whether a request path is exempt from authentication.
func IsPublic(path string) bool {
	for _, p := range PublicRoutes {
		if suffix, ok := strings.CutSuffix(p, "/*"); ok {
			if strings.HasPrefix(path, suffix+"/") || path == suffix {
				return true
			}
			continue
		}
		if path == p {
			return true
		}
	}
	return false
}
