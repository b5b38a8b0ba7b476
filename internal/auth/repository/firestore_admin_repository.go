package repository

import (
	"context"
	"time"

	authdomain "investor-portal/internal/auth/domain"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const adminsCollection = "admins"

type firestoreAdminRepository struct {
	client *firestore.Client
}

func NewFirestoreAdminRepository(client *firestore.Client) AdminRepository {
	return &firestoreAdminRepository{client: client}
}

func (r *firestoreAdminRepository) IsAdmin(ctx context.Context, email string) (bool, error) {
	_, err := r.client.Collection(adminsCollection).Doc(email).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *firestoreAdminRepository) Create(ctx context.Context, email string) (bool, error) {
	_, err := r.client.Collection(adminsCollection).Doc(email).Create(ctx, authdomain.Admin{
		Email:     email,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
