package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/carbidx/auction-engine/internal/core/domain"
	"github.com/carbidx/auction-engine/internal/core/ports"
)

const minPasswordLen = 6

// AuthService implements registration, login and admin provisioning.
type AuthService struct {
	repo      ports.UserRepository
	clock     ports.Clock
	jwtSecret string
	tokenTTL  time.Duration
	log       zerolog.Logger
}

func NewAuthService(repo ports.UserRepository, clock ports.Clock, jwtSecret string, tokenTTL time.Duration, log zerolog.Logger) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{repo: repo, clock: clock, jwtSecret: jwtSecret, tokenTTL: tokenTTL, log: log}
}

func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (string, *domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return "", nil, fmt.Errorf("%w: invalid email", domain.ErrValidation)
	}
	if len(in.Password) < minPasswordLen {
		return "", nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLen)
	}
	role, err := domain.ParseRole(in.Role)
	if err != nil {
		return "", nil, err
	}
	if role == domain.RoleAdmin {
		return "", nil, fmt.Errorf("%w: admin accounts cannot self-register", domain.ErrAuthorization)
	}

	user := &domain.User{
		Email:    email,
		Name:     strings.TrimSpace(in.Name),
		Role:     role,
		Phone:    in.Phone,
		Location: in.Location,
		Active:   true,
		Verified: role != domain.RoleDealer,
	}
	if role == domain.RoleDealer {
		tier, err := domain.ParseDealerTier(in.DealerTier)
		if err != nil {
			return "", nil, err
		}
		user.DealerTier = tier
		user.DealerLicense = in.DealerLicense
	}

	created, err := s.create(ctx, user, in.Password)
	if err != nil {
		return "", nil, err
	}
	token, err := s.generateToken(created)
	if err != nil {
		return "", nil, err
	}
	s.log.Info().Str("user_id", created.ID).Str("role", string(created.Role)).Msg("user registered")
	return token, created, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	if email == "" || password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil, domain.ErrInvalidCredentials
		}
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, domain.ErrInvalidCredentials
	}
	if !user.Active {
		return "", nil, fmt.Errorf("%w: account is deactivated", domain.ErrAuthorization)
	}

	token, err := s.generateToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// EnsureAdmin creates the admin account if no user holds email yet.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password, name string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	existing, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		if existing.Role != domain.RoleAdmin {
			return nil, fmt.Errorf("%w: %s is registered as %s", domain.ErrUserExists, email, existing.Role)
		}
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: admin password too short", domain.ErrValidation)
	}

	created, err := s.create(ctx, &domain.User{
		Email:    email,
		Name:     name,
		Role:     domain.RoleAdmin,
		Verified: true,
		Active:   true,
	}, password)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", created.ID).Msg("admin account provisioned")
	return created, nil
}

func (s *AuthService) create(ctx context.Context, user *domain.User, password string) (*domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	user.PasswordHash = string(hash)
	user.CreatedAt = now
	user.UpdatedAt = now
	return s.repo.Create(ctx, user)
}

func (s *AuthService) generateToken(user *domain.User) (string, error) {
	now := s.clock.Now()
	claims := jwt.MapClaims{
		"sub":  user.ID,
		"role": string(user.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(s.tokenTTL).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}
