package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carbidx/auction-engine/internal/core/ports"
)

// AdminHandler serves the /admin routes. The router restricts them to admins;
// the services check again.
type AdminHandler struct {
	auctions ports.AuctionService
	users    ports.UserService
	stats    ports.StatsService
}

func NewAdminHandler(auctions ports.AuctionService, users ports.UserService, stats ports.StatsService) *AdminHandler {
	return &AdminHandler{auctions: auctions, users: users, stats: stats}
}

// Auctions handles GET /admin/auctions.
//
// @Summary      All auctions with ranking summaries
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "active, closed or cancelled"
// @Success      200     {array}   auctionResponse
// @Failure      403     {object}  errorResponse
// @Router       /admin/auctions [get]
func (h *AdminHandler) Auctions(c echo.Context) error {
	id, err := callerIdentity(c)
	if err != nil {
		return err
	}
	views, err := h.auctions.ListAuctions(c.Request().Context(), id, ports.ListAuctionsInput{
		Status:  c.QueryParam("status"),
		BuyerID: c.QueryParam("buyer_id"),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAuctionResponses(views))
}

// SetStatus handles PUT /admin/auctions/:id/status.
//
// @Summary      Force an auction status
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string         true  "Auction ID"
// @Param        body  body      statusRequest  true  "Target status"
// @Success      200   {object}  domain.AuctionRequest
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /admin/auctions/{id}/status [put]
func (h *AdminHandler) SetStatus(c echo.Context) error {
	id, err := callerIdentity(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	a, err := h.auctions.ForceStatus(c.Request().Context(), id, c.Param("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

// Stats handles GET /admin/stats.
//
// @Summary      Platform statistics
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  ports.StatsSnapshot
// @Failure      403  {object}  errorResponse
// @Router       /admin/stats [get]
func (h *AdminHandler) Stats(c echo.Context) error {
	id, err := callerIdentity(c)
	if err != nil {
		return err
	}
	snap, err := h.stats.Snapshot(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snap)
}

// Users handles GET /admin/users.
//
// @Summary      List accounts
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.User
// @Failure      403  {object}  errorResponse
// @Router       /admin/users [get]
func (h *AdminHandler) Users(c echo.Context) error {
	id, err := callerIdentity(c)
	if err != nil {
		return err
	}
	users, err := h.users.List(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

// UpdateUser handles PUT /admin/users/:id.
//
// @Summary      Update an account
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "User ID"
// @Param        body  body      userUpdateRequest  true  "Fields to change"
// @Success      200   {object}  domain.User
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /admin/users/{id} [put]
func (h *AdminHandler) UpdateUser(c echo.Context) error {
	id, err := callerIdentity(c)
	if err != nil {
		return err
	}
	var req userUpdateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.users.Update(c.Request().Context(), id, c.Param("id"), ports.UserUpdateInput{
		Name:       req.Name,
		Phone:      req.Phone,
		Location:   req.Location,
		DealerTier: req.DealerTier,
		Verified:   req.Verified,
		Active:     req.Active,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// VerifyDealer handles PUT /admin/dealers/:id/verify.
//
// @Summary      Verify a dealer's license
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Dealer ID"
// @Success      200  {object}  domain.User
// @Failure      404  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Router       /admin/dealers/{id}/verify [put]
func (h *AdminHandler) VerifyDealer(c echo.Context) error {
	id, err := callerIdentity(c)
	if err != nil {
		return err
	}
	user, err := h.users.VerifyDealer(c.Request().Context(), id, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}
