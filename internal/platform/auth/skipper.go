package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths bypass authentication: health checks and public content.
var publicPaths = map[string]bool{
	"/":          true,
	"/education": true,
	"/health":    true,
	"/health/db": true,
}

// AuthSkipper reports whether the matched route is public.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}
