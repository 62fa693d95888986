package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carbidx/auction-engine/internal/core/ports"
)

// Subscriber streams an auction's events over an upgraded connection.
type Subscriber interface {
	Serve(ctx context.Context, w http.ResponseWriter, r *http.Request, auctionID, userID string) error
}

// PushHandler attaches websocket subscribers to auctions.
type PushHandler struct {
	auctions ports.AuctionService
	hub      Subscriber
	log      zerolog.Logger
}

func NewPushHandler(auctions ports.AuctionService, hub Subscriber, log zerolog.Logger) *PushHandler {
	return &PushHandler{auctions: auctions, hub: hub, log: log}
}

// Subscribe handles GET /ws/auctions/:id. The token may be passed as a query
// parameter. Events are best-effort; clients reconcile through the REST reads.
//
// @Summary      Subscribe to an auction's live events
// @Tags         push
// @Security     BearerAuth
// @Param        id     path   string  true   "Auction ID"
// @Param        token  query  string  false  "Bearer token"
// @Success      101
// @Failure      404  {object}  errorResponse
// @Router       /ws/auctions/{id} [get]
func (h *PushHandler) Subscribe(c echo.Context) error {
	id, err := callerIdentity(c)
	if err != nil {
		return err
	}
	auctionID := c.Param("id")
	if _, err := h.auctions.GetAuction(c.Request().Context(), auctionID); err != nil {
		return err
	}

	// The upgrader writes its own error response on failure.
	if err := h.hub.Serve(c.Request().Context(), c.Response(), c.Request(), auctionID, id.UserID); err != nil {
		h.log.Warn().Err(err).Str("auction_id", auctionID).Msg("websocket upgrade failed")
	}
	return nil
}
