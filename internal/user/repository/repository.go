package repository

import (
	"context"
	"time"

	userdomain "investor-portal/internal/user/domain"
)

// LoginSync is the result of evaluating a principal at sign-in.
type LoginSync struct {
	UID      string
	Email    string
	Approved bool
	At       time.Time
}

type UserRepository interface {
	FindByID(ctx context.Context, uid string) (*userdomain.UserProfile, error)
	FindByEmail(ctx context.Context, email string) (*userdomain.UserProfile, error)
	List(ctx context.Context) ([]*userdomain.UserProfile, error)
	// UpsertLogin atomically creates or refreshes a profile. An existing
	// subscribed flag is preserved; a missing one is written as the default.
	UpsertLogin(ctx context.Context, sync LoginSync) (*userdomain.UserProfile, error)
	// UpdateFlagsByEmail applies patch to every profile with the email and
	// reports how many matched.
	UpdateFlagsByEmail(ctx context.Context, email string, patch userdomain.FlagPatch) (int, error)
}
