package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/carbidx/auction-engine/internal/core/domain"
	"github.com/carbidx/auction-engine/internal/core/ports"
)

// UserService covers identity lookup, self-service profile edits and admin
// account management.
type UserService struct {
	repo  ports.UserRepository
	clock ports.Clock
	log   zerolog.Logger
}

func NewUserService(repo ports.UserRepository, clock ports.Clock, log zerolog.Logger) *UserService {
	return &UserService{repo: repo, clock: clock, log: log}
}

var _ ports.UserService = (*UserService)(nil)

func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *UserService) UpdateProfile(ctx context.Context, caller domain.Identity, in ports.ProfileInput) (*domain.User, error) {
	u, err := s.repo.FindByID(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.Phone != nil {
		u.Phone = *in.Phone
	}
	if in.Location != nil {
		u.Location = *in.Location
	}
	u.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context, caller domain.Identity) ([]domain.User, error) {
	if err := domain.Authorize(caller, domain.ActionManageUsers, ""); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

func (s *UserService) Update(ctx context.Context, caller domain.Identity, id string, in ports.UserUpdateInput) (*domain.User, error) {
	if err := domain.Authorize(caller, domain.ActionManageUsers, ""); err != nil {
		return nil, err
	}
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.Phone != nil {
		u.Phone = *in.Phone
	}
	if in.Location != nil {
		u.Location = *in.Location
	}
	if in.DealerTier != nil {
		if u.Role != domain.RoleDealer {
			return nil, fmt.Errorf("%w: dealer_tier only applies to dealers", domain.ErrValidation)
		}
		tier, err := domain.ParseDealerTier(*in.DealerTier)
		if err != nil {
			return nil, err
		}
		u.DealerTier = tier
	}
	if in.Verified != nil {
		u.Verified = *in.Verified
	}
	if in.Active != nil {
		if !*in.Active && u.ID == caller.UserID {
			return nil, fmt.Errorf("%w: admins cannot deactivate themselves", domain.ErrState)
		}
		u.Active = *in.Active
	}
	u.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	s.log.Info().Str("user_id", u.ID).Str("by", caller.UserID).Msg("user updated")
	return u, nil
}

// VerifyDealer marks a dealer account as verified so it may bid.
func (s *UserService) VerifyDealer(ctx context.Context, caller domain.Identity, id string) (*domain.User, error) {
	if err := domain.Authorize(caller, domain.ActionManageUsers, ""); err != nil {
		return nil, err
	}
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role != domain.RoleDealer {
		return nil, fmt.Errorf("dealer %s: %w", id, domain.ErrNotFound)
	}
	if u.Verified {
		return u, nil
	}
	u.Verified = true
	u.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("verify dealer: %w", err)
	}
	s.log.Info().Str("dealer_id", u.ID).Str("by", caller.UserID).Msg("dealer verified")
	return u, nil
}
