package repository

import (
	"context"
	"errors"
	"time"

	authdomain "investor-portal/internal/auth/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// adminRepository implements AdminRepository on postgres
type adminRepository struct {
	db *gorm.DB
}

func NewAdminRepository(db *gorm.DB) AdminRepository {
	return &adminRepository{db: db}
}

func (r *adminRepository) IsAdmin(ctx context.Context, email string) (bool, error) {
	var admin authdomain.Admin
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&admin).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *adminRepository) Create(ctx context.Context, email string) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&authdomain.Admin{Email: email, CreatedAt: time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
