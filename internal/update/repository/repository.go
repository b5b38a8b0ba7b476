package repository

import (
	"context"

	updatedomain "investor-portal/internal/update/domain"
)

type UpdateRepository interface {
	// Create assigns ID and CreatedAt when they are unset.
	Create(ctx context.Context, update *updatedomain.Update) error
	Get(ctx context.Context, id string) (*updatedomain.Update, error)
	RecordDelivery(ctx context.Context, id string, delivery updatedomain.Delivery) error
	Delete(ctx context.Context, id string) error
	// ListRecent returns the newest updates first.
	ListRecent(ctx context.Context, limit int) ([]*updatedomain.Update, error)
}
