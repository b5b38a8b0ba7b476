package repository

import (
	"context"
	"errors"
	"time"

	userdomain "investor-portal/internal/user/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type userRow struct {
	UID        string `gorm:"primaryKey;column:uid"`
	Email      string `gorm:"index;not null"`
	Approved   bool   `gorm:"not null;default:false"`
	Subscribed *bool
	CreatedAt  time.Time
	LastLogin  time.Time
}

func (userRow) TableName() string { return "users" }

func (r userRow) toDomain() *userdomain.UserProfile {
	return &userdomain.UserProfile{
		UID:        r.UID,
		Email:      r.Email,
		Approved:   r.Approved,
		Subscribed: r.Subscribed,
		CreatedAt:  r.CreatedAt,
		LastLogin:  r.LastLogin,
	}
}

// userRepository implements UserRepository on postgres
type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Migrate creates the users table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&userRow{})
}

func (r *userRepository) FindByID(ctx context.Context, uid string) (*userdomain.UserProfile, error) {
	var row userRow
	err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*userdomain.UserProfile, error) {
	var row userRow
	err := r.db.WithContext(ctx).Where("email = ?", email).Order("uid").First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *userRepository) List(ctx context.Context) ([]*userdomain.UserProfile, error) {
	var rows []userRow
	if err := r.db.WithContext(ctx).Order("uid").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*userdomain.UserProfile, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *userRepository) UpsertLogin(ctx context.Context, s LoginSync) (*userdomain.UserProfile, error) {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		var profile *userdomain.UserProfile
		profile, err = r.upsertLogin(ctx, s)
		// A concurrent first login created the row; the retry takes the update path.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		return profile, err
	}
	return nil, err
}

func (r *userRepository) upsertLogin(ctx context.Context, s LoginSync) (*userdomain.UserProfile, error) {
	var result userRow
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row userRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("uid = ?", s.UID).First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = userRow{
				UID:        s.UID,
				Email:      s.Email,
				Approved:   s.Approved,
				Subscribed: userdomain.Bool(userdomain.DefaultSubscribed),
				CreatedAt:  s.At,
				LastLogin:  s.At,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			row.Email = s.Email
			row.Approved = s.Approved
			row.Subscribed = userdomain.Bool(row.toDomain().IsSubscribed())
			row.LastLogin = s.At
			if err := tx.Model(&userRow{}).Where("uid = ?", s.UID).Updates(map[string]interface{}{
				"email":      row.Email,
				"approved":   row.Approved,
				"subscribed": *row.Subscribed,
				"last_login": row.LastLogin,
			}).Error; err != nil {
				return err
			}
		}
		result = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result.toDomain(), nil
}

func (r *userRepository) UpdateFlagsByEmail(ctx context.Context, email string, patch userdomain.FlagPatch) (int, error) {
	updates := map[string]interface{}{}
	if patch.Approved != nil {
		updates["approved"] = *patch.Approved
	}
	if patch.Subscribed != nil {
		updates["subscribed"] = *patch.Subscribed
	}
	if len(updates) == 0 {
		var count int64
		err := r.db.WithContext(ctx).Model(&userRow{}).Where("email = ?", email).Count(&count).Error
		return int(count), err
	}
	res := r.db.WithContext(ctx).Model(&userRow{}).Where("email = ?", email).Updates(updates)
	return int(res.RowsAffected), res.Error
}
