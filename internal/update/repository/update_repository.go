package repository

import (
	"context"
	"errors"
	"time"

	updatedomain "investor-portal/internal/update/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type updateRow struct {
	ID          string    `gorm:"primaryKey;type:uuid"`
	Title       string    `gorm:"not null"`
	ContentMD   string    `gorm:"column:content_md;type:text;not null"`
	CreatedAt   time.Time `gorm:"index"`
	EmailSent   bool      `gorm:"not null;default:false"`
	SentCount   int       `gorm:"not null;default:0"`
	FailedCount int       `gorm:"not null;default:0"`
}

func (updateRow) TableName() string { return "timeline_updates" }

func (r updateRow) toDomain() *updatedomain.Update {
	return &updatedomain.Update{
		ID:          r.ID,
		Title:       r.Title,
		ContentMD:   r.ContentMD,
		CreatedAt:   r.CreatedAt,
		EmailSent:   r.EmailSent,
		SentCount:   r.SentCount,
		FailedCount: r.FailedCount,
	}
}

type updateRepository struct {
	db *gorm.DB
}

func NewUpdateRepository(db *gorm.DB) UpdateRepository {
	return &updateRepository{db: db}
}

// Migrate creates the timeline_updates table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&updateRow{})
}

func (r *updateRepository) Create(ctx context.Context, u *updatedomain.Update) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	row := updateRow{
		ID:          u.ID,
		Title:       u.Title,
		ContentMD:   u.ContentMD,
		CreatedAt:   u.CreatedAt,
		EmailSent:   u.EmailSent,
		SentCount:   u.SentCount,
		FailedCount: u.FailedCount,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *updateRepository) Get(ctx context.Context, id string) (*updatedomain.Update, error) {
	var row updateRow
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *updateRepository) RecordDelivery(ctx context.Context, id string, d updatedomain.Delivery) error {
	return r.db.WithContext(ctx).Model(&updateRow{}).Where("id = ?", id).Updates(map[string]interface{}{
		"email_sent":   d.EmailSent,
		"sent_count":   d.Sent,
		"failed_count": d.Failed,
	}).Error
}

func (r *updateRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&updateRow{}).Error
}

func (r *updateRepository) ListRecent(ctx context.Context, limit int) ([]*updatedomain.Update, error) {
	var rows []updateRow
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*updatedomain.Update, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}
