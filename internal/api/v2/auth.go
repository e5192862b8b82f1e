// auth.go: bearer token authentication for mutating routes.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// TokenAuthMiddleware returns middleware enforcing the static bearer token
// from settings. An empty configured token disables authentication, which is
// the expected mode for local pipeline runs.
func (c *Controller) TokenAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			token := c.Settings.WebServer.AuthToken
			if token == "" {
				return next(ctx)
			}

			supplied := bearerToken(ctx.Request())
			ok := supplied != "" &&
				subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) == 1

			if c.metrics != nil && c.metrics.HTTP != nil {
				c.metrics.HTTP.RecordAuthAttempt(ok)
			}

			if !ok {
				return c.HandleError(ctx, nil, "authentication required", http.StatusUnauthorized)
			}
			return next(ctx)
		}
	}
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(req *http.Request) string {
	const prefix = "Bearer "
	header := req.Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(header, prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
