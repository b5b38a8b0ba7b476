package bootstrap

import (
	"context"
	"fmt"

	allowlistRepo "investor-portal/internal/allowlist/repository"
	authdomain "investor-portal/internal/auth/domain"
	"investor-portal/internal/auth/identity"
	authRepo "investor-portal/internal/auth/repository"
	authUsecase "investor-portal/internal/auth/usecase"
	ratelimitRepo "investor-portal/internal/ratelimit/repository"
	updateRepo "investor-portal/internal/update/repository"
	userRepo "investor-portal/internal/user/repository"
	"investor-portal/pkg/config"
	"investor-portal/pkg/database"
	"investor-portal/pkg/firebase"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gorm.io/gorm"
)

// Stores holds one repository per aggregate, all backed by the store
// selected with STORE_BACKEND.
type Stores struct {
	Users      userRepo.UserRepository
	Domains    allowlistRepo.DomainRepository
	Admins     authRepo.AdminRepository
	Updates    updateRepo.UpdateRepository
	RateLimits ratelimitRepo.RateLimitRepository

	// Firebase is set whenever credentials are present, regardless of the
	// store, so Firebase Auth can be used with any backend.
	Firebase *firebase.App

	closers []func() error
}

func OpenStores(ctx context.Context, cfg *config.Config, logger kitlog.Logger) (*Stores, error) {
	s := &Stores{}

	if cfg.HasFirebaseCredentials() {
		app, err := firebase.NewApp(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.Firebase = app
	}

	switch cfg.StoreBackend {
	case config.StoreFirestore:
		if s.Firebase == nil {
			return nil, firebase.ErrMissingCredentials
		}
		client, err := s.Firebase.Firestore(ctx)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, client.Close)
		s.Users = userRepo.NewFirestoreUserRepository(client)
		s.Domains = allowlistRepo.NewFirestoreDomainRepository(client)
		s.Admins = authRepo.NewFirestoreAdminRepository(client)
		s.Updates = updateRepo.NewFirestoreUpdateRepository(client)
		s.RateLimits = ratelimitRepo.NewFirestoreRateLimitRepository(client)

	case config.StorePostgres:
		db, err := database.NewPostgresConnection(cfg, logger)
		if err != nil {
			return nil, err
		}
		if err := migrate(db); err != nil {
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			s.closers = append(s.closers, sqlDB.Close)
		}
		s.Users = userRepo.NewUserRepository(db)
		s.Domains = allowlistRepo.NewDomainRepository(db)
		s.Admins = authRepo.NewAdminRepository(db)
		s.Updates = updateRepo.NewUpdateRepository(db)
		s.RateLimits = ratelimitRepo.NewRateLimitRepository(db)

	case config.StoreMemory:
		level.Warn(logger).Log("msg", "using in-memory store, data is lost on restart")
		s.Users = userRepo.NewMemoryUserRepository()
		s.Domains = allowlistRepo.NewMemoryDomainRepository()
		s.Admins = authRepo.NewMemoryAdminRepository()
		s.Updates = updateRepo.NewMemoryUpdateRepository()
		s.RateLimits = ratelimitRepo.NewMemoryRateLimitRepository()

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	return s, nil
}

func migrate(db *gorm.DB) error {
	steps := []func(*gorm.DB) error{
		userRepo.Migrate,
		allowlistRepo.Migrate,
		updateRepo.Migrate,
		ratelimitRepo.Migrate,
		func(db *gorm.DB) error { return db.AutoMigrate(&authdomain.Admin{}) },
	}
	for _, step := range steps {
		if err := step(db); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	return nil
}

func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

// IdentityProvider returns the verifier selected by AUTH_PROVIDER. The JWT
// provider answers UserExists from the profile store.
func IdentityProvider(ctx context.Context, cfg *config.Config, s *Stores) (authUsecase.IdentityProvider, error) {
	switch cfg.AuthProvider {
	case config.AuthFirebase:
		if s.Firebase == nil {
			return nil, firebase.ErrMissingCredentials
		}
		client, err := s.Firebase.Auth(ctx)
		if err != nil {
			return nil, err
		}
		return identity.NewFirebaseProvider(client), nil
	case config.AuthJWT:
		users := s.Users
		return identity.NewJWTProvider(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTExpiry, func(ctx context.Context, email string) (bool, error) {
			profile, err := users.FindByEmail(ctx, email)
			if err != nil {
				return false, err
			}
			return profile != nil, nil
		}), nil
	default:
		return nil, fmt.Errorf("unknown auth provider %q", cfg.AuthProvider)
	}
}
