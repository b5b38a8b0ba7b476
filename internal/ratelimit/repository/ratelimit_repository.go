package repository

import (
	"context"
	"errors"
	"time"

	"investor-portal/internal/ratelimit/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type rateLimitRow struct {
	PrincipalID string    `gorm:"primaryKey;column:principal_id"`
	Count       int       `gorm:"not null"`
	WindowStart time.Time `gorm:"not null"`
	LastRequest time.Time `gorm:"not null;index"`
}

func (rateLimitRow) TableName() string { return "rate_limits" }

type rateLimitRepository struct {
	db *gorm.DB
}

func NewRateLimitRepository(db *gorm.DB) RateLimitRepository {
	return &rateLimitRepository{db: db}
}

// Migrate creates the rate_limits table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&rateLimitRow{})
}

func (r *rateLimitRepository) Mutate(ctx context.Context, key string, fn Mutation) error {
	var err error
	// Two first requests can race to insert; the loser retries against the
	// winner's row.
	for attempt := 0; attempt < 3; attempt++ {
		err = r.mutate(ctx, key, fn)
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
	}
	return err
}

func (r *rateLimitRepository) mutate(ctx context.Context, key string, fn Mutation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row rateLimitRow
		var cur *domain.Record
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("principal_id = ?", key).First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return err
		default:
			cur = &domain.Record{Key: key, Count: row.Count, WindowStart: row.WindowStart, LastRequest: row.LastRequest}
		}

		next, err := fn(cur)
		if err != nil || next == nil {
			return err
		}
		out := rateLimitRow{PrincipalID: key, Count: next.Count, WindowStart: next.WindowStart, LastRequest: next.LastRequest}
		if cur == nil {
			return tx.Create(&out).Error
		}
		return tx.Save(&out).Error
	})
}

func (r *rateLimitRepository) DeleteStale(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	stale := r.db.Model(&rateLimitRow{}).Select("principal_id").Where("last_request < ?", cutoff).Limit(limit)
	res := r.db.WithContext(ctx).Where("principal_id IN (?)", stale).Delete(&rateLimitRow{})
	return int(res.RowsAffected), res.Error
}
