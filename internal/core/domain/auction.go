package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AuctionStatus represents the lifecycle state of an auction request.
type AuctionStatus string

const (
	AuctionActive    AuctionStatus = "active"
	AuctionClosed    AuctionStatus = "closed"
	AuctionCancelled AuctionStatus = "cancelled"
)

// validTransitions defines the allowed state machine transitions.
// Closed and cancelled are absorbing.
var validTransitions = map[AuctionStatus][]AuctionStatus{
	AuctionActive: {AuctionClosed, AuctionCancelled},
}

// CanTransitionTo reports whether a transition from current status to next is valid.
func (s AuctionStatus) CanTransitionTo(next AuctionStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsValid reports whether s is one of the known statuses.
func (s AuctionStatus) IsValid() bool {
	switch s {
	case AuctionActive, AuctionClosed, AuctionCancelled:
		return true
	}
	return false
}

// ParseAuctionStatus converts a raw string, rejecting unknown values.
func ParseAuctionStatus(raw string) (AuctionStatus, error) {
	s := AuctionStatus(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("%w: unknown auction status %q", ErrValidation, raw)
	}
	return s, nil
}

// MonetaryPrecision is the number of decimal places kept for prices and budgets.
const MonetaryPrecision int32 = 2

// RoundMoney rounds d to MonetaryPrecision.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MonetaryPrecision)
}

// VehicleSpec describes the car the buyer is asking dealers to quote on.
type VehicleSpec struct {
	Make              string `json:"make" bson:"make"`
	Model             string `json:"model" bson:"model"`
	Year              int    `json:"year" bson:"year"`
	PreferredColor    string `json:"preferred_color,omitempty" bson:"preferred_color,omitempty"`
	Transmission      string `json:"transmission,omitempty" bson:"transmission,omitempty"`
	FuelType          string `json:"fuel_type,omitempty" bson:"fuel_type,omitempty"`
	MileagePreference string `json:"mileage_preference,omitempty" bson:"mileage_preference,omitempty"`
}

// AuctionRequest is a buyer's purchase request that dealers bid down.
type AuctionRequest struct {
	ID          string          `json:"id"`
	BuyerID     string          `json:"buyer_id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Location    string          `json:"location,omitempty"`
	Vehicle     VehicleSpec     `json:"vehicle"`
	MaxBudget   decimal.Decimal `json:"max_budget"`
	StartsAt    time.Time       `json:"starts_at"`
	EndsAt      time.Time       `json:"ends_at"`
	Status      AuctionStatus   `json:"status"`
	Version     int64           `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// AuctionDraft carries the buyer-supplied fields for a new auction.
type AuctionDraft struct {
	BuyerID     string
	Title       string
	Description string
	Location    string
	Vehicle     VehicleSpec
	MaxBudget   decimal.Decimal
	StartsAt    time.Time
	EndsAt      time.Time
}

// Validate checks the draft's structural rules. Authorization is not checked here.
func (d AuctionDraft) Validate() error {
	if d.BuyerID == "" {
		return fmt.Errorf("%w: buyer id is required", ErrValidation)
	}
	if !d.MaxBudget.IsPositive() {
		return fmt.Errorf("%w: max_budget must be positive", ErrValidation)
	}
	if d.StartsAt.IsZero() || d.EndsAt.IsZero() {
		return fmt.Errorf("%w: starts_at and ends_at are required", ErrValidation)
	}
	if !d.EndsAt.After(d.StartsAt) {
		return fmt.Errorf("%w: ends_at must be after starts_at", ErrValidation)
	}
	return nil
}

// AcceptsBidsAt reports why, if at all, the auction cannot take a bid at now.
// A nil result means bids are accepted.
func (a *AuctionRequest) AcceptsBidsAt(now time.Time) error {
	if a.Status != AuctionActive {
		return fmt.Errorf("%w: auction is %s", ErrAuctionClosed, a.Status)
	}
	if now.Before(a.StartsAt) {
		return fmt.Errorf("%w: auction has not started", ErrAuctionClosed)
	}
	if !now.Before(a.EndsAt) {
		return fmt.Errorf("%w: auction ended at %s", ErrAuctionClosed, a.EndsAt.UTC().Format(time.RFC3339))
	}
	return nil
}

// Expired reports whether the deadline has passed at now.
func (a *AuctionRequest) Expired(now time.Time) bool {
	return !now.Before(a.EndsAt)
}

// TimeRemaining is the duration until the deadline, floored at zero.
func (a *AuctionRequest) TimeRemaining(now time.Time) time.Duration {
	if a.Status != AuctionActive || a.Expired(now) {
		return 0
	}
	return a.EndsAt.Sub(now)
}
