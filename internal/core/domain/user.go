package domain

import (
	"errors"
	"fmt"
	"time"
)

// Role is the closed set of account kinds.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleDealer Role = "dealer"
	RoleAdmin  Role = "admin"
)

// ParseRole converts a raw string, rejecting unknown roles.
func ParseRole(raw string) (Role, error) {
	switch r := Role(raw); r {
	case RoleBuyer, RoleDealer, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrValidation, raw)
}

// DealerTier is subscription metadata; it carries no ranking advantage.
type DealerTier string

const (
	TierStandard DealerTier = "standard"
	TierPremium  DealerTier = "premium"
	TierGold     DealerTier = "gold"
)

// ParseDealerTier converts a raw string. Empty input yields TierStandard.
func ParseDealerTier(raw string) (DealerTier, error) {
	switch t := DealerTier(raw); t {
	case "":
		return TierStandard, nil
	case TierStandard, TierPremium, TierGold:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown dealer tier %q", ErrValidation, raw)
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
)

// User models an authenticated actor in the system.
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	PasswordHash  string     `json:"-"`
	Role          Role       `json:"role"`
	DealerTier    DealerTier `json:"dealer_tier,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	Location      string     `json:"location,omitempty"`
	DealerLicense string     `json:"dealer_license,omitempty"`
	Verified      bool       `json:"verified"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Identity returns the per-request identity derived from the stored account.
func (u *User) Identity() Identity {
	return Identity{
		UserID:     u.ID,
		Role:       u.Role,
		DealerTier: u.DealerTier,
		Verified:   u.Verified,
	}
}

// Identity is the caller passed explicitly to every engine operation.
type Identity struct {
	UserID     string
	Role       Role
	DealerTier DealerTier
	Verified   bool
}
