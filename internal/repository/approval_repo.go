package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"procurement/internal/model"
)

// Decision is what gets written when a request leaves pending.
type Decision struct {
	Comment string
	Actor   string
	At      time.Time
}

type ApprovalRepository interface {
	Create(ctx context.Context, req *model.ApprovalRequest) error
	FindByID(ctx context.Context, id string) (*model.ApprovalRequest, error)
	List(ctx context.Context, filter model.ApprovalFilter, page, limit int) ([]model.ApprovalRequest, int64, error)
	CountPendingByType(ctx context.Context) (model.ApprovalStats, error)
	// Decide moves a pending request to a terminal status. It returns the
	// number of rows changed; zero means the request was absent or no longer pending.
	Decide(ctx context.Context, id string, to model.ApprovalStatus, d Decision) (int64, error)
}

type approvalRepository struct {
	db *gorm.DB
}

func NewApprovalRepository(db *gorm.DB) ApprovalRepository {
	return &approvalRepository{db: db}
}

func (r *approvalRepository) Create(ctx context.Context, req *model.ApprovalRequest) error {
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *approvalRepository) FindByID(ctx context.Context, id string) (*model.ApprovalRequest, error) {
	var req model.ApprovalRequest
	if err := GetDB(ctx, r.db).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *approvalRepository) List(ctx context.Context, filter model.ApprovalFilter, page, limit int) ([]model.ApprovalRequest, int64, error) {
	var requests []model.ApprovalRequest
	var total int64

	db := GetDB(ctx, r.db)
	if err := applyFilter(db.Model(&model.ApprovalRequest{}), filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := applyFilter(db, filter).
		Order("date_submitted DESC").
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

func (r *approvalRepository) CountPendingByType(ctx context.Context) (model.ApprovalStats, error) {
	var rows []struct {
		Type  model.RequestType
		Count int64
	}
	var stats model.ApprovalStats

	if err := GetDB(ctx, r.db).Model(&model.ApprovalRequest{}).
		Select("type, COUNT(*) AS count").
		Where("status = ?", model.StatusPending).
		Group("type").
		Scan(&rows).Error; err != nil {
		return stats, err
	}

	for _, row := range rows {
		stats.Add(row.Type, row.Count)
	}
	return stats, nil
}

func (r *approvalRepository) Decide(ctx context.Context, id string, to model.ApprovalStatus, d Decision) (int64, error) {
	at := d.At.UTC()
	res := GetDB(ctx, r.db).Model(&model.ApprovalRequest{}).
		Where("id = ? AND status = ?", id, model.StatusPending).
		Updates(map[string]interface{}{
			"status":           to,
			"decision_comment": d.Comment,
			"decision_actor":   d.Actor,
			"decision_at":      &at,
			"updated_at":       at,
		})
	return res.RowsAffected, res.Error
}

// applyFilter adds one predicate per active filter field.
func applyFilter(q *gorm.DB, f model.ApprovalFilter) *gorm.DB {
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.RiskLevel != "" {
		q = q.Where("risk_level = ?", f.RiskLevel)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if dept := strings.TrimSpace(f.Department); dept != "" {
		q = q.Where(`LOWER(department) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(dept))+"%")
	}
	if f.DateFrom != nil {
		q = q.Where("date_submitted >= ?", f.DateFrom.UTC())
	}
	if f.DateTo != nil {
		q = q.Where("date_submitted <= ?", f.DateTo.UTC())
	}
	if f.AmountMin != nil {
		q = q.Where("amount >= ?", *f.AmountMin)
	}
	if f.AmountMax != nil {
		q = q.Where("amount <= ?", *f.AmountMax)
	}
	return q
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
