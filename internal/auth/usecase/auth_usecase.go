package usecase

import (
	"context"
	"errors"
	"strings"

	authdomain "investor-portal/internal/auth/domain"
	"investor-portal/internal/auth/identity"
	"investor-portal/internal/auth/repository"
	"investor-portal/pkg/apperror"
)

// IdentityProvider verifies bearer credentials and answers whether an
// account exists for an email.
type IdentityProvider interface {
	VerifyToken(ctx context.Context, token string) (*authdomain.Principal, error)
	UserExists(ctx context.Context, email string) (bool, error)
}

type AuthUsecase interface {
	Authenticate(ctx context.Context, token string) (*authdomain.Principal, error)
	IsAdmin(ctx context.Context, email string) (bool, error)
	UserExists(ctx context.Context, email string) (bool, error)
	GrantAdmin(ctx context.Context, email string) (created bool, err error)
}

type authUsecase struct {
	identity IdentityProvider
	admins   repository.AdminRepository
}

func NewAuthUsecase(identity IdentityProvider, admins repository.AdminRepository) AuthUsecase {
	return &authUsecase{identity: identity, admins: admins}
}

func (u *authUsecase) Authenticate(ctx context.Context, token string) (*authdomain.Principal, error) {
	if token == "" {
		return nil, apperror.Unauthorized("Unauthorized")
	}
	principal, err := u.identity.VerifyToken(ctx, token)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidToken) {
			return nil, apperror.Unauthorized("invalid or expired token")
		}
		return nil, apperror.Upstream("Unable to verify credentials.", err)
	}
	principal.Email = strings.ToLower(strings.TrimSpace(principal.Email))
	if principal.Email == "" {
		return nil, apperror.Validation("Missing email.")
	}
	return principal, nil
}

func (u *authUsecase) IsAdmin(ctx context.Context, email string) (bool, error) {
	ok, err := u.admins.IsAdmin(ctx, strings.ToLower(email))
	if err != nil {
		return false, apperror.Upstream("Failed to check admin privileges.", err)
	}
	return ok, nil
}

func (u *authUsecase) UserExists(ctx context.Context, email string) (bool, error) {
	return u.identity.UserExists(ctx, strings.ToLower(email))
}

func (u *authUsecase) GrantAdmin(ctx context.Context, email string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return false, apperror.Validation("Valid admin email required.")
	}
	created, err := u.admins.Create(ctx, email)
	if err != nil {
		return false, apperror.Upstream("Failed to create admin record.", err)
	}
	return created, nil
}
