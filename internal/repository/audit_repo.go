package repository

import (
	"context"

	"gorm.io/gorm"

	"procurement/internal/model"
)

type AuditRepository interface {
	Log(ctx context.Context, entry *model.AuditLog) error
	List(ctx context.Context, entityID string, page, limit int) ([]model.AuditLog, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Log(ctx context.Context, entry *model.AuditLog) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

// List returns audit entries newest first, optionally for a single entity.
func (r *auditRepository) List(ctx context.Context, entityID string, page, limit int) ([]model.AuditLog, int64, error) {
	var logs []model.AuditLog
	var total int64

	db := GetDB(ctx, r.db)
	scope := func(q *gorm.DB) *gorm.DB {
		if entityID != "" {
			return q.Where("entity_id = ?", entityID)
		}
		return q
	}

	if err := scope(db.Model(&model.AuditLog{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := scope(db).Order("created_at desc").Offset(offset).Limit(limit).Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}
