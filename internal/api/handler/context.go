package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carbidx/auction-engine/internal/api/middleware"
	"github.com/carbidx/auction-engine/internal/core/domain"
)

// callerIdentity extracts the identity injected by the LoadIdentity middleware.
// Its absence means the route was wired without authentication.
func callerIdentity(c echo.Context) (domain.Identity, error) {
	id, ok := c.Get(middleware.KeyIdentity).(domain.Identity)
	if !ok || id.UserID == "" {
		return domain.Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return id, nil
}

// bindAndValidate decodes the request body into req and runs the echo validator.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
