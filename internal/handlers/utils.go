// Package handlers contains the HTTP layer: request parsing, principal
// checks and JSON responses. All storage and search work happens in the
// services behind them.
package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anuwat/filehub/internal/errs"
	"github.com/anuwat/filehub/internal/identity"
	"github.com/anuwat/filehub/internal/utils"
)

// PrincipalFrom retrieves the authenticated principal from the context.
func PrincipalFrom(c echo.Context) (*identity.Principal, error) {
	val := c.Get(utils.ContextKeyPrincipal)
	if val == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	principal, ok := val.(*identity.Principal)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	return principal, nil
}

// RequireAdmin retrieves the principal and rejects non-admin callers with
// 403. Authenticated-but-insufficient is forbidden, never unauthorized.
func RequireAdmin(c echo.Context) (*identity.Principal, error) {
	principal, err := PrincipalFrom(c)
	if err != nil {
		return nil, err
	}
	if !principal.IsAdmin() {
		return nil, echo.NewHTTPError(http.StatusForbidden, "admin role required")
	}
	return principal, nil
}

// respondError maps a kind-tagged service error onto an HTTP status with a
// JSON body.
func respondError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errs.IsInvalidInput(err):
		status = http.StatusBadRequest
	case errs.IsNotFound(err):
		status = http.StatusNotFound
	case errs.IsUnauthorized(err):
		status = http.StatusUnauthorized
	case errs.IsForbidden(err):
		status = http.StatusForbidden
	case errs.IsUnavailable(err):
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}
