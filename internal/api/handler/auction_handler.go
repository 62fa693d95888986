package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carbidx/auction-engine/internal/core/domain"
	"github.com/carbidx/auction-engine/internal/core/ports"
)

// AuctionHandler exposes the auction engine over HTTP.
type AuctionHandler struct {
	auctions ports.AuctionService
}

func NewAuctionHandler(auctions ports.AuctionService) *AuctionHandler {
	return &AuctionHandler{auctions: auctions}
}

// Create handles POST /auctions.
//
// @Summary      Open a reverse auction for a vehicle
// @Tags         auctions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createAuctionRequest  true  "Vehicle request"
// @Success      201   {object}  domain.AuctionRequest
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Router       /auctions [post]
func (h *AuctionHandler) Create(c echo.Context) error {
	id, err := callerIdentity(c)
	if err != nil {
		return err
	}
	var req createAuctionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	in := ports.CreateAuctionInput{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Vehicle: domain.VehicleSpec{
			Make:              req.Vehicle.Make,
			Model:             req.Vehicle.Model,
			Year:              req.Vehicle.Year,
			PreferredColor:    req.Vehicle.PreferredColor,
			Transmission:      req.Vehicle.Transmission,
			FuelType:          req.Vehicle.FuelType,
			MileagePreference: req.Vehicle.MileagePreference,
		},
		MaxBudget:     req.MaxBudget,
		DurationHours: req.DurationHours,
	}
	if req.StartsAt != nil {
		in.StartsAt = req.StartsAt.UTC()
	}
	if req.EndsAt != nil {
		in.EndsAt = req.EndsAt.UTC()
	}

	a, err := h.auctions.CreateAuction(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

// List handles GET /auctions. Buyers see their own requests, dealers see
// active ones, admins see everything.
//
// @Summary      List auctions
// @Tags         auctions
// @Produce      json
// @Security     BearerAuth
// @Param        status    query     string  false  "active, closed or cancelled (dealers: active only)"
// @Param        buyer_id  query     string  false  "Filter by buyer (admin only)"
// @Success      200       {array}   auctionResponse
// @Failure      400       {object}  errorResponse
// @Failure      403       {object}  errorResponse
// @Router       /auctions [get]
func (h *AuctionHandler) List(c echo.Context) error {
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

// Get handles GET /auctions/:id.
//
// @Summary      Get an auction with its ranking summary
// @Tags         auctions
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Auction ID"
// @Success      200  {object}  auctionResponse
// @Failure      404  {object}  errorResponse
// @Router       /auctions/{id} [get]
func (h *AuctionHandler) Get(c echo.Context) error {
	v, err := h.auctions.GetAuction(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAuctionResponse(*v))
}

// SubmitBid handles POST /auctions/:id/bids. The response carries the bid's
// resulting status so the caller knows whether it leads.
//
// @Summary      Submit a price offer
// @Tags         bids
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string            true  "Auction ID"
// @Param        body  body      submitBidRequest  true  "Offer"
// @Success      201   {object}  domain.Bid
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /auctions/{id}/bids [post]
func (h *AuctionHandler) SubmitBid(c echo.Context) error {
	id, err := callerIdentity(c)
	if err != nil {
		return err
	}
	var req submitBidRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	bid, err := h.auctions.SubmitBid(c.Request().Context(), id, ports.SubmitBidInput{
		AuctionID: c.Param("id"),
		Price:     req.Price,
		Message:   req.Message,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, bid)
}

// ListBids handles GET /auctions/:id/bids: full history for the owner and
// admins, the live ranking for everyone else.
//
// @Summary      List bids on an auction
// @Tags         bids
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Auction ID"
// @Success      200  {array}   domain.Bid
// @Failure      404  {object}  errorResponse
// @Router       /auctions/{id}/bids [get]
func (h *AuctionHandler) ListBids(c echo.Context) error {
	id, err := callerIdentity(c)
	if err != nil {
		return err
	}
	bids, err := h.auctions.ListBids(c.Request().Context(), id, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bids)
}

// Cancel handles POST /auctions/:id/cancel.
//
// @Summary      Cancel an auction without bids
// @Tags         auctions
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Auction ID"
// @Success      200  {object}  domain.AuctionRequest
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Router       /auctions/{id}/cancel [post]
func (h *AuctionHandler) Cancel(c echo.Context) error {
	id, err := callerIdentity(c)
	if err != nil {
		return err
	}
	a, err := h.auctions.Cancel(c.Request().Context(), id, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

// DealerBids handles GET /dealers/:id/bids.
//
// @Summary      A dealer's bids across auctions
// @Tags         bids
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Dealer ID"
// @Success      200  {array}   domain.Bid
// @Failure      403  {object}  errorResponse
// @Router       /dealers/{id}/bids [get]
func (h *AuctionHandler) DealerBids(c echo.Context) error {
	id, err := callerIdentity(c)
	if err != nil {
		return err
	}
	bids, err := h.auctions.ListDealerBids(c.Request().Context(), id, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bids)
}
