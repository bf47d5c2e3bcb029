package service

import (
	"context"
	"time"

	"procurement/internal/apperr"
	"procurement/internal/repository"
)

type AuditLogResponse struct {
	ID         string `json:"id"`
	ActorID    string `json:"actor_id"`
	ActorName  string `json:"actor_name"`
	Action     string `json:"action"`
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
	Details    string `json:"details"`
	CreatedAt  string `json:"created_at"`
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, entityID string, page, limit int) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	repo repository.AuditRepository
}

// NewAuditService creates a new AuditService instance
func NewAuditService(repo repository.AuditRepository) AuditService {
	return &auditService{repo: repo}
}

// GetAuditLogs returns entries newest first, optionally for one approval request.
func (s *auditService) GetAuditLogs(ctx context.Context, entityID string, page, limit int) ([]AuditLogResponse, int64, error) {
	logs, total, err := s.repo.List(ctx, entityID, page, limit)
	if err != nil {
		return nil, 0, apperr.Service("failed to list audit logs", err)
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		actorName := l.ActorName
		if actorName == "" {
			actorName = "System"
		}
		res = append(res, AuditLogResponse{
			ID:         l.ID.String(),
			ActorID:    l.ActorID,
			ActorName:  actorName,
			Action:     l.Action,
			EntityID:   l.EntityID,
			EntityName: l.EntityName,
			Details:    l.Details,
			CreatedAt:  l.CreatedAt.Format(time.RFC3339),
		})
	}

	return res, total, nil
}
