package auth

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

const msgSiteForbidden = "Non hai accesso a questo ambulatorio"

// CanAccessSite reports whether the authenticated user may operate on site.
func CanAccessSite(ctx context.Context, site string) bool {
	for _, s := range SitesFromContext(ctx) {
		if s == site {
			return true
		}
	}
	return false
}

// RequireSite returns a 403 HTTP error unless the user may operate on site.
func RequireSite(ctx context.Context, site string) error {
	if !CanAccessSite(ctx, site) {
		return echo.NewHTTPError(http.StatusForbidden, msgSiteForbidden)
	}
	return nil
}
