package handler

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/fishsupply/supply-system/internal/core/domain"
)

// requestContext returns the request context carrying the actor set by the
// Auth middleware, if any.
func requestContext(c echo.Context) context.Context {
	username, _ := c.Get("username").(string)
	role, _ := c.Get("role").(string)
	return domain.WithActor(c.Request().Context(), domain.Actor{Username: username, Role: role})
}
