package usecase

import (
	"context"
	"strings"

	"investor-portal/pkg/apperror"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

type AdminGranter interface {
	GrantAdmin(ctx context.Context, email string) (created bool, err error)
}

type EmailEnsurer interface {
	EnsureEmail(ctx context.Context, email string) (added bool, err error)
}

type Result struct {
	AdminEmail       string `json:"adminEmail"`
	AdminExisted     bool   `json:"adminExisted"`
	AllowlistExisted bool   `json:"approvedEmailExisted"`
}

// SeedUsecase bootstraps the first administrator. Running it again is a no-op.
type SeedUsecase struct {
	admins     AdminGranter
	allowlist  EmailEnsurer
	adminEmail string
	logger     kitlog.Logger
}

func NewSeedUsecase(admins AdminGranter, allowlist EmailEnsurer, adminEmail string, logger kitlog.Logger) *SeedUsecase {
	return &SeedUsecase{
		admins:     admins,
		allowlist:  allowlist,
		adminEmail: strings.ToLower(strings.TrimSpace(adminEmail)),
		logger:     kitlog.With(logger, "component", "seed"),
	}
}

func (s *SeedUsecase) Seed(ctx context.Context) (*Result, error) {
	if s.adminEmail == "" {
		return nil, apperror.Validation("Missing SEED_ADMIN_EMAIL env var.")
	}

	added, err := s.allowlist.EnsureEmail(ctx, s.adminEmail)
	if err != nil {
		return nil, err
	}
	created, err := s.admins.GrantAdmin(ctx, s.adminEmail)
	if err != nil {
		return nil, apperror.Upstream("Failed to seed database", err)
	}

	level.Info(s.logger).Log("msg", "seeded", "admin", s.adminEmail, "admin_created", created, "allowlisted", added)
	return &Result{
		AdminEmail:       s.adminEmail,
		AdminExisted:     !created,
		AllowlistExisted: !added,
	}, nil
}
