package repository

import (
	"context"
	"errors"

	allowdomain "investor-portal/internal/allowlist/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type domainRow struct {
	Domain string   `gorm:"primaryKey"`
	Emails []string `gorm:"type:jsonb;serializer:json;not null"`
}

func (domainRow) TableName() string { return "approved_domains" }

func (r domainRow) toDomain() *allowdomain.DomainRecord {
	return &allowdomain.DomainRecord{Domain: r.Domain, Emails: r.Emails}
}

// domainRepository implements DomainRepository on postgres
type domainRepository struct {
	db *gorm.DB
}

func NewDomainRepository(db *gorm.DB) DomainRepository {
	return &domainRepository{db: db}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&domainRow{})
}

func (r *domainRepository) Get(ctx context.Context, domain string) (*allowdomain.DomainRecord, error) {
	var row domainRow
	err := r.db.WithContext(ctx).Where("domain = ?", domain).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *domainRepository) List(ctx context.Context) ([]*allowdomain.DomainRecord, error) {
	var rows []domainRow
	if err := r.db.WithContext(ctx).Order("domain").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*allowdomain.DomainRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// Mutate locks the row with SELECT ... FOR UPDATE. Two writers creating the
// same missing domain race on the primary key; the loser retries and then
// sees the winner's row.
func (r *domainRepository) Mutate(ctx context.Context, domain string, fn Mutation) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var current *allowdomain.DomainRecord
			var row domainRow
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("domain = ?", domain).First(&row).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
			case err != nil:
				return err
			default:
				current = row.toDomain()
			}

			next, write, err := fn(current.Clone())
			if err != nil || !write {
				return err
			}
			if next == nil {
				if current == nil {
					return nil
				}
				return tx.Where("domain = ?", domain).Delete(&domainRow{}).Error
			}

			emails := next.Emails
			if emails == nil {
				emails = []string{}
			}
			out := domainRow{Domain: domain, Emails: emails}
			if current == nil {
				return tx.Create(&out).Error
			}
			return tx.Save(&out).Error
		})
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
	}
	return err
}
