package usecase

import (
	"context"
	"net/url"

	userdomain "investor-portal/internal/user/domain"
	"investor-portal/internal/user/repository"
	"investor-portal/pkg/apperror"
	"investor-portal/pkg/events"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

type UserUsecase interface {
	// Unsubscribe opts the token's email out of broadcasts.
	Unsubscribe(ctx context.Context, token string) error
	// UnsubscribeURL returns "" when no signing secret is configured.
	UnsubscribeURL(email string) string
	// IsSubscribed reports the delivery preference; no profile means subscribed.
	IsSubscribed(ctx context.Context, email string) (bool, error)
}

type userUsecase struct {
	users     repository.UserRepository
	signer    *TokenSigner
	siteURL   string
	publisher events.Publisher
	logger    kitlog.Logger
}

func NewUserUsecase(users repository.UserRepository, unsubscribeSecret, siteURL string, publisher events.Publisher, logger kitlog.Logger) UserUsecase {
	var signer *TokenSigner
	if unsubscribeSecret != "" {
		signer = NewTokenSigner(unsubscribeSecret)
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &userUsecase{
		users:     users,
		signer:    signer,
		siteURL:   siteURL,
		publisher: publisher,
		logger:    kitlog.With(logger, "component", "user"),
	}
}

func (u *userUsecase) Unsubscribe(ctx context.Context, token string) error {
	if token == "" || u.signer == nil {
		return apperror.Validation("Invalid unsubscribe request.")
	}
	email, err := u.signer.Verify(token)
	if err != nil {
		return apperror.Validation("Invalid or expired unsubscribe token.")
	}

	n, err := u.users.UpdateFlagsByEmail(ctx, email, userdomain.FlagPatch{Subscribed: userdomain.Bool(false)})
	if err != nil {
		return apperror.Upstream("Failed to update subscription.", err)
	}
	if n == 0 {
		level.Info(u.logger).Log("msg", "unsubscribe for email without profile", "email", email)
		return nil
	}

	u.publisher.Publish(ctx, events.New(events.UserUnsubscribe, email, nil))
	level.Info(u.logger).Log("msg", "unsubscribed", "email", email)
	return nil
}

func (u *userUsecase) UnsubscribeURL(email string) string {
	if u.signer == nil {
		return ""
	}
	return u.siteURL + "/api/unsubscribe?token=" + url.QueryEscape(u.signer.Sign(email))
}

func (u *userUsecase) IsSubscribed(ctx context.Context, email string) (bool, error) {
	p, err := u.users.FindByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	return p.IsSubscribed(), nil
}
