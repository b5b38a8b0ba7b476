package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	api "investor-portal/cmd/api"
	allowlistDelivery "investor-portal/internal/allowlist/delivery"
	allowlistUsecase "investor-portal/internal/allowlist/usecase"
	authUsecase "investor-portal/internal/auth/usecase"
	"investor-portal/internal/bootstrap"
	"investor-portal/internal/notification"
	ratelimitRepo "investor-portal/internal/ratelimit/repository"
	"investor-portal/internal/ratelimit/scheduler"
	ratelimitUsecase "investor-portal/internal/ratelimit/usecase"
	seedDelivery "investor-portal/internal/seed/delivery"
	seedUsecase "investor-portal/internal/seed/usecase"
	updateDelivery "investor-portal/internal/update/delivery"
	updateUsecase "investor-portal/internal/update/usecase"
	userDelivery "investor-portal/internal/user/delivery"
	userUsecase "investor-portal/internal/user/usecase"
	"investor-portal/pkg/config"
	"investor-portal/pkg/events"
	"investor-portal/pkg/logger"
	"investor-portal/pkg/mailer"
	"investor-portal/pkg/metrics"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/go-redis/redis_rate/v10"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		level.Error(log).Log("msg", "invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		level.Error(log).Log("msg", "server stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log kitlog.Logger) error {
	stores, err := bootstrap.OpenStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.Close()

	identityProvider, err := bootstrap.IdentityProvider(ctx, cfg, stores)
	if err != nil {
		return err
	}

	m := metrics.New()

	publisher := events.Publisher(events.NoopPublisher{})
	if cfg.PubSubProjectID != "" && cfg.PubSubTopic != "" {
		pub, err := events.NewPubSubPublisher(ctx, cfg.PubSubProjectID, cfg.PubSubTopic, log)
		if err != nil {
			level.Warn(log).Log("msg", "event publishing disabled", "err", err)
		} else {
			publisher = pub
		}
	}
	defer publisher.Close()

	sender, err := mailer.New(cfg)
	if errors.Is(err, mailer.ErrNotConfigured) {
		level.Warn(log).Log("msg", "email not configured, welcome emails and broadcasts are disabled")
		sender = nil
	} else if err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.RedisConfigured() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		defer rdb.Close()
	}

	// Use cases
	auth := authUsecase.NewAuthUsecase(identityProvider, stores.Admins)
	users := userUsecase.NewUserUsecase(stores.Users, cfg.UnsubscribeSecret, cfg.SiteURL, publisher, log)
	allowlist := allowlistUsecase.NewAllowlistUsecase(stores.Domains, stores.Users, auth, log)

	welcome := notification.NewService(sender, cfg.Brand, cfg.SiteURL, cfg.MailReplyTo, m, log)
	var notifier allowlistUsecase.WelcomeNotifier
	if rdb != nil {
		redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Username: cfg.RedisUsername, Password: cfg.RedisPassword}
		client := asynq.NewClient(redisOpt)
		defer client.Close()
		notifier = notification.NewAsynqDispatcher(client, log)

		server, mux := notification.NewAsynqServer(redisOpt, welcome, cfg.NotificationWorkers, !cfg.IsProduction())
		if err := server.Start(mux); err != nil {
			return err
		}
		defer server.Shutdown()
	} else {
		pool := notification.NewWorkerPool(welcome, cfg.NotificationWorkers, cfg.MailSendTimeout, log)
		pool.Start()
		defer pool.Stop()
		go func() {
			for f := range pool.Failures() {
				level.Error(log).Log("msg", "welcome email failed", "email", f.Email, "err", f.Err)
			}
		}()
		notifier = pool
	}
	allowlistUsecase.Configure(allowlist,
		allowlistUsecase.WithNotifier(notifier),
		allowlistUsecase.WithPublisher(publisher),
		allowlistUsecase.WithMetrics(m),
	)

	updates := updateUsecase.NewUpdateUsecase(
		stores.Updates,
		allowlist,
		stores.Users,
		sender,
		users,
		updateUsecase.Config{
			SiteURL:       cfg.SiteURL,
			SubjectPrefix: cfg.EmailSubjectPrefix,
			ReplyTo:       cfg.MailReplyTo,
			BatchSize:     cfg.BroadcastBatchSize,
			SendTimeout:   cfg.MailSendTimeout,
		},
		publisher, m, log,
	)

	seed := seedUsecase.NewSeedUsecase(auth, allowlist, cfg.SeedAdminEmail, log)

	// Rate limiting
	rateLimits := stores.RateLimits
	var throttle *redis_rate.Limiter
	if rdb != nil {
		rateLimits = ratelimitRepo.NewRedisRateLimitRepository(rdb, cfg.RateLimitRetention)
		throttle = redis_rate.NewLimiter(rdb)
	}
	limiter := ratelimitUsecase.NewLimiter(rateLimits, log,
		ratelimitUsecase.WithMetrics(m),
		ratelimitUsecase.WithRetention(cfg.RateLimitRetention, cfg.RateLimitCleanupBatch),
	)
	janitor := scheduler.NewJanitor(limiter, cfg.RateLimitCleanupSchedule, log)
	if err := janitor.Start(); err != nil {
		return err
	}
	defer janitor.Stop()

	handler := api.NewHandler(api.Deps{
		Auth:      auth,
		Allowlist: allowlistDelivery.NewAllowlistHandler(allowlist),
		Users:     userDelivery.NewUserHandler(users),
		Updates:   updateDelivery.NewUpdateHandler(updates, cfg.IsProduction()),
		Seed:      seedDelivery.NewSeedHandler(seed, cfg.SeedSecret),
		Limiter:   limiter,
		Throttle:  throttle,
		Metrics:   m,
	}, cfg, log)

	return handler.Start(ctx, ":"+cfg.Port)
}
