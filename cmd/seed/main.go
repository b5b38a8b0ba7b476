// Command seed bootstraps the first administrator and, for JWT deployments,
// issues development bearer tokens.
//
//	seed bootstrap
//	seed token -uid abc123 -email admin@example.com
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	allowlistUsecase "investor-portal/internal/allowlist/usecase"
	"investor-portal/internal/auth/identity"
	authUsecase "investor-portal/internal/auth/usecase"
	"investor-portal/internal/bootstrap"
	seedUsecase "investor-portal/internal/seed/usecase"
	"investor-portal/pkg/config"
	"investor-portal/pkg/logger"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := config.Load()
	log := logger.New(cfg.LogLevel)
	ctx := context.Background()

	var err error
	switch os.Args[1] {
	case "bootstrap":
		err = runBootstrap(ctx, cfg, log)
	case "token":
		err = runToken(cfg, log, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		level.Error(log).Log("msg", "command failed", "cmd", os.Args[1], "err", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: seed bootstrap | seed token -uid <uid> -email <email>")
}

func runBootstrap(ctx context.Context, cfg *config.Config, log kitlog.Logger) error {
	stores, err := bootstrap.OpenStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.Close()

	identityProvider, err := bootstrap.IdentityProvider(ctx, cfg, stores)
	if err != nil {
		return err
	}
	auth := authUsecase.NewAuthUsecase(identityProvider, stores.Admins)
	allowlist := allowlistUsecase.NewAllowlistUsecase(stores.Domains, stores.Users, auth, log)

	res, err := seedUsecase.NewSeedUsecase(auth, allowlist, cfg.SeedAdminEmail, log).Seed(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func runToken(cfg *config.Config, log kitlog.Logger, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	uid := fs.String("uid", "", "subject of the token")
	email := fs.String("email", "", "email claim")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if cfg.AuthProvider != config.AuthJWT {
		return fmt.Errorf("tokens can only be issued with AUTH_PROVIDER=%s", config.AuthJWT)
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	issuer := identity.NewJWTProvider(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTExpiry, nil)
	token, err := issuer.Issue(*uid, *email)
	if err != nil {
		return err
	}
	level.Debug(log).Log("msg", "token issued", "uid", *uid)
	fmt.Println(token)
	return nil
}
