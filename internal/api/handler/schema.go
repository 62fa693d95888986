package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/carbidx/auction-engine/internal/core/domain"
	"github.com/carbidx/auction-engine/internal/core/ports"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// --- Auth ---

type registerRequest struct {
	Email         string `json:"email"          validate:"required,email"`
	Password      string `json:"password"       validate:"required,min=6"`
	Name          string `json:"name"           validate:"required"`
	Role          string `json:"role"           validate:"required,oneof=buyer dealer admin"`
	DealerTier    string `json:"dealer_tier"    validate:"omitempty,oneof=standard premium gold"`
	Phone         string `json:"phone"`
	Location      string `json:"location"`
	DealerLicense string `json:"dealer_license"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Token string       `json:"token,omitempty"`
	User  *domain.User `json:"user,omitempty"`
}

type profileRequest struct {
	Name     *string `json:"name"     validate:"omitempty,min=1"`
	Phone    *string `json:"phone"`
	Location *string `json:"location"`
}

// --- Auctions ---

type vehicleRequest struct {
	Make              string `json:"make"               validate:"required"`
	Model             string `json:"model"              validate:"required"`
	Year              int    `json:"year"               validate:"required,gte=1900,max=2100"`
	PreferredColor    string `json:"preferred_color"`
	Transmission      string `json:"transmission"       validate:"omitempty,oneof=automatic manual"`
	FuelType          string `json:"fuel_type"`
	MileagePreference string `json:"mileage_preference"`
}

type createAuctionRequest struct {
	Title         string          `json:"title"          validate:"required,max=200"`
	Description   string          `json:"description"`
	Location      string          `json:"location"`
	Vehicle       vehicleRequest  `json:"vehicle"`
	MaxBudget     decimal.Decimal `json:"max_budget"     swaggertype:"string" example:"50000.00"`
	StartsAt      *time.Time      `json:"starts_at"`
	EndsAt        *time.Time      `json:"ends_at"`
	DurationHours int             `json:"duration_hours" validate:"gte=0,max=720"`
}

type submitBidRequest struct {
	Price   decimal.Decimal `json:"price"   swaggertype:"string" example:"47000.00"`
	Message string          `json:"message" validate:"max=1000"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=active closed cancelled"`
}

// auctionResponse is an auction plus its derived ranking summary.
type auctionResponse struct {
	domain.AuctionRequest
	BidCount             int              `json:"bid_count"`
	LiveBidCount         int              `json:"live_bid_count"`
	LowestPrice          *decimal.Decimal `json:"lowest_price,omitempty" swaggertype:"string"`
	WinningBidID         string           `json:"winning_bid_id,omitempty"`
	TimeRemainingSeconds int64            `json:"time_remaining_seconds"`
}

func toAuctionResponse(v ports.AuctionView) auctionResponse {
	return auctionResponse{
		AuctionRequest:       v.Auction,
		BidCount:             v.BidCount,
		LiveBidCount:         v.LiveBidCount,
		LowestPrice:          v.LowestPrice,
		WinningBidID:         v.WinningBidID,
		TimeRemainingSeconds: int64(v.TimeRemaining / time.Second),
	}
}

func toAuctionResponses(views []ports.AuctionView) []auctionResponse {
	out := make([]auctionResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toAuctionResponse(v))
	}
	return out
}

// --- Admin ---

type userUpdateRequest struct {
	Name       *string `json:"name"        validate:"omitempty,min=1"`
	Phone      *string `json:"phone"`
	Location   *string `json:"location"`
	DealerTier *string `json:"dealer_tier" validate:"omitempty,oneof=standard premium gold"`
	Verified   *bool   `json:"verified"`
	Active     *bool   `json:"active"`
}
