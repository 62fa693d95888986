package ports

import (
	"context"

	"github.com/carbidx/auction-engine/internal/core/domain"
)

// RegisterInput carries the fields of a new account.
type RegisterInput struct {
	Email         string
	Password      string
	Name          string
	Role          string
	DealerTier    string
	Phone         string
	Location      string
	DealerLicense string
}

// AuthService issues bearer tokens. Public registration is limited to buyers
// and dealers; admins are provisioned with EnsureAdmin.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (string, *domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	EnsureAdmin(ctx context.Context, email, password, name string) (*domain.User, error)
}

// ProfileInput is a self-service patch; nil fields are left untouched.
type ProfileInput struct {
	Name     *string
	Phone    *string
	Location *string
}

// UserUpdateInput is an admin patch; nil fields are left untouched.
type UserUpdateInput struct {
	Name       *string
	Phone      *string
	Location   *string
	DealerTier *string
	Verified   *bool
	Active     *bool
}

// UserService covers identity lookup and admin account management.
type UserService interface {
	Get(ctx context.Context, id string) (*domain.User, error)
	UpdateProfile(ctx context.Context, caller domain.Identity, in ProfileInput) (*domain.User, error)
	List(ctx context.Context, caller domain.Identity) ([]domain.User, error)
	Update(ctx context.Context, caller domain.Identity, id string, in UserUpdateInput) (*domain.User, error)
	VerifyDealer(ctx context.Context, caller domain.Identity, id string) (*domain.User, error)
}
