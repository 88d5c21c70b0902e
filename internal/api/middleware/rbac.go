package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fishsupply/supply-system/internal/core/domain"
)

// RBAC rejects requests whose role claim does not grant perm.
func RBAC(perm domain.Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("role").(string)
			if !domain.RoleAllows(role, perm) {
				return echo.NewHTTPError(http.StatusForbidden, "forbidden")
			}
			return next(c)
		}
	}
}
