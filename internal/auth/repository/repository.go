package repository

import "context"

// AdminRepository stores administrator grants keyed by lowercase email.
type AdminRepository interface {
	IsAdmin(ctx context.Context, email string) (bool, error)
	// Create grants admin capability. created is false when the grant already existed.
	Create(ctx context.Context, email string) (created bool, err error)
}
