package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"procurement/internal/apperr"
	"procurement/internal/cache"
	"procurement/internal/model"
	"procurement/internal/notify"
	"procurement/internal/repository"
	"procurement/pkg/pagination"
)

// --- DTOs ---

type ApproveRequestDTO struct {
	Comment string `json:"comment"`
}

type RejectRequestDTO struct {
	Reason string `json:"reason"`
}

type BulkApproveRequestDTO struct {
	IDs     []string `json:"ids"`
	Comment string   `json:"comment"`
}

// --- Interface ---

type ApprovalService interface {
	ListApprovals(ctx context.Context, page, pageSize int, filter model.ApprovalFilter) (*model.ApprovalPage, error)
	GetApprovalStats(ctx context.Context) (model.ApprovalStats, error)
	GetApproval(ctx context.Context, id string) (*model.ApprovalRequest, error)
	Approve(ctx context.Context, actor model.Actor, id, comment string) (*model.ApprovalRequest, error)
	Reject(ctx context.Context, actor model.Actor, id, reason string) (*model.ApprovalRequest, error)
	BulkApprove(ctx context.Context, actor model.Actor, ids []string, comment string) (*model.BulkApproveResult, error)
}

const (
	defaultMaxBulk   = 100
	notifyTimeout    = 2 * time.Second
	maxCommentLength = 2000
)

type approvalService struct {
	repo     repository.ApprovalRepository
	audit    repository.AuditRepository
	tm       repository.TransactionManager
	stats    cache.StatsCache
	notifier notify.Notifier
	log      *zap.Logger
	now      func() time.Time
	pageSize int
	maxBulk  int
}

// Option customizes an ApprovalService.
type Option func(*approvalService)

// WithClock replaces time.Now for decision timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *approvalService) { s.now = now }
}

func WithStatsCache(c cache.StatsCache) Option {
	return func(s *approvalService) { s.stats = c }
}

func WithNotifier(n notify.Notifier) Option {
	return func(s *approvalService) { s.notifier = n }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *approvalService) { s.log = log }
}

// WithPageSize sets the page size used when the caller sends none.
func WithPageSize(n int) Option {
	return func(s *approvalService) { s.pageSize = n }
}

// WithMaxBulk caps the number of distinct ids in one bulk approval.
func WithMaxBulk(n int) Option {
	return func(s *approvalService) { s.maxBulk = n }
}

func NewApprovalService(repo repository.ApprovalRepository, audit repository.AuditRepository, tm repository.TransactionManager, opts ...Option) ApprovalService {
	s := &approvalService{
		repo:     repo,
		audit:    audit,
		tm:       tm,
		stats:    cache.NewMemory(0),
		notifier: notify.Nop(),
		log:      zap.NewNop(),
		now:      time.Now,
		pageSize: pagination.DefaultLimit,
		maxBulk:  defaultMaxBulk,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// --- Query layer ---

func (s *approvalService) ListApprovals(ctx context.Context, page, pageSize int, filter model.ApprovalFilter) (*model.ApprovalPage, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	if pageSize <= 0 {
		pageSize = s.pageSize
	}
	p := pagination.Normalize(page, pageSize)

	records, total, err := s.repo.List(ctx, filter, p.Page, p.Limit)
	if err != nil {
		return nil, apperr.Service("failed to list approval requests", err)
	}
	if records == nil {
		records = []model.ApprovalRequest{}
	}

	return &model.ApprovalPage{
		Records:    records,
		Total:      total,
		TotalPages: pagination.TotalPages(total, p.Limit),
		Page:       p.Page,
		PageSize:   p.Limit,
	}, nil
}

func validateFilter(f model.ApprovalFilter) error {
	if f.Type != "" && !f.Type.IsValid() {
		return apperr.Validation("type", "unknown request type "+string(f.Type))
	}
	if f.RiskLevel != "" && !f.RiskLevel.IsValid() {
		return apperr.Validation("risk_level", "unknown risk level "+string(f.RiskLevel))
	}
	if f.Status != "" && !f.Status.IsValid() {
		return apperr.Validation("status", "unknown status "+string(f.Status))
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		return apperr.Validation("date_from", "date_from must not be after date_to")
	}
	if f.AmountMin != nil && f.AmountMin.IsNegative() {
		return apperr.Validation("amount_min", "amount_min must not be negative")
	}
	if f.AmountMax != nil && f.AmountMax.IsNegative() {
		return apperr.Validation("amount_max", "amount_max must not be negative")
	}
	if f.AmountMin != nil && f.AmountMax != nil && f.AmountMin.GreaterThan(*f.AmountMax) {
		return apperr.Validation("amount_min", "amount_min must not exceed amount_max")
	}
	return nil
}

// GetApprovalStats returns pending counts per type, served from the cache
// when it holds a fresh value. A count that races a decision is not cached.
func (s *approvalService) GetApprovalStats(ctx context.Context) (model.ApprovalStats, error) {
	if stats, ok, err := s.stats.Get(ctx); err != nil {
		s.log.Warn("Stats cache read failed", zap.Error(err))
	} else if ok {
		return stats, nil
	}

	gen, genErr := s.stats.Generation(ctx)
	if genErr != nil {
		s.log.Warn("Stats cache generation read failed", zap.Error(genErr))
	}

	stats, err := s.repo.CountPendingByType(ctx)
	if err != nil {
		return model.ApprovalStats{}, apperr.Service("failed to count pending requests", err)
	}
	if genErr == nil {
		if err := s.stats.Set(ctx, gen, stats); err != nil {
			s.log.Warn("Stats cache write failed", zap.Error(err))
		}
	}
	return stats, nil
}

func (s *approvalService) GetApproval(ctx context.Context, id string) (*model.ApprovalRequest, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperr.Validation("id", "id is required")
	}
	req, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound(id)
	}
	if err != nil {
		return nil, apperr.Service("failed to load approval request", err)
	}
	return req, nil
}

// --- Action engine ---

func (s *approvalService) Approve(ctx context.Context, actor model.Actor, id, comment string) (*model.ApprovalRequest, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperr.Validation("id", "id is required")
	}
	comment = strings.TrimSpace(comment)
	if len(comment) > maxCommentLength {
		return nil, apperr.Validation("comment", "comment is too long")
	}
	return s.decide(ctx, actor, id, model.StatusApproved, comment)
}

func (s *approvalService) Reject(ctx context.Context, actor model.Actor, id, reason string) (*model.ApprovalRequest, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperr.Validation("id", "id is required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("reason", "rejection reason is required")
	}
	if len(reason) > maxCommentLength {
		return nil, apperr.Validation("reason", "rejection reason is too long")
	}
	return s.decide(ctx, actor, id, model.StatusRejected, reason)
}

// BulkApprove approves each distinct id in its own transaction and collects
// per-id failures.
func (s *approvalService) BulkApprove(ctx context.Context, actor model.Actor, ids []string, comment string) (*model.BulkApproveResult, error) {
	unique := dedupeIDs(ids)
	if len(unique) == 0 {
		return nil, apperr.Validation("ids", "at least one id is required")
	}
	if len(unique) > s.maxBulk {
		return nil, apperr.Validation("ids", "too many ids in one bulk approval")
	}
	comment = strings.TrimSpace(comment)
	if len(comment) > maxCommentLength {
		return nil, apperr.Validation("comment", "comment is too long")
	}

	result := &model.BulkApproveResult{
		Succeeded: make([]model.ApprovalRequest, 0, len(unique)),
		Failed:    []model.BulkFailure{},
	}
	for _, id := range unique {
		req, err := s.decide(ctx, actor, id, model.StatusApproved, comment)
		if err != nil {
			result.Failed = append(result.Failed, model.BulkFailure{ID: id, Code: string(apperr.KindOf(err)), Error: apperr.MessageOf(err)})
			continue
		}
		result.Succeeded = append(result.Succeeded, *req)
	}

	s.log.Info("Bulk approval finished",
		zap.String("actor", actor.ID),
		zap.Int("requested", len(unique)),
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)))

	return result, nil
}

// dedupeIDs trims ids, drops blanks and keeps the first occurrence of each.
func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *approvalService) decide(ctx context.Context, actor model.Actor, id string, to model.ApprovalStatus, comment string) (*model.ApprovalRequest, error) {
	if !model.StatusPending.CanTransitionTo(to) {
		return nil, apperr.Validation("status", "cannot move a request to "+string(to))
	}
	decision := repository.Decision{Comment: comment, Actor: actor.ID, At: s.now().UTC()}

	var decided *model.ApprovalRequest
	err := s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		n, err := s.repo.Decide(txCtx, id, to, decision)
		if err != nil {
			return apperr.Service("failed to record decision", err)
		}
		if n == 0 {
			current, err := s.repo.FindByID(txCtx, id)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound(id)
			}
			if err != nil {
				return apperr.Service("failed to load approval request", err)
			}
			if !current.Status.CanTransitionTo(to) {
				return apperr.InvalidState(id, string(current.Status))
			}
			return apperr.Service("decision was not applied", nil)
		}

		decided, err = s.repo.FindByID(txCtx, id)
		if err != nil {
			return apperr.Service("failed to reload approval request", err)
		}

		details, _ := json.Marshal(map[string]interface{}{
			"type":     decided.Type,
			"amount":   decided.Amount,
			"currency": decided.Currency,
			"comment":  comment,
		})
		entry := &model.AuditLog{
			ActorID:    actor.ID,
			ActorName:  actor.Name,
			Action:     auditAction(to),
			EntityID:   id,
			EntityName: string(decided.Type),
			Details:    string(details),
		}
		if err := s.audit.Log(txCtx, entry); err != nil {
			return apperr.Service("failed to write audit log", err)
		}
		return nil
	})
	if err != nil {
		if apperr.Is(err, apperr.KindService) {
			s.log.Error("Decision failed", zap.String("id", id), zap.String("to", string(to)), zap.Error(err))
		}
		return nil, err
	}

	s.log.Info("Approval request decided",
		zap.String("id", id),
		zap.String("status", string(to)),
		zap.String("actor", actor.ID))

	s.afterDecision(ctx, *decided)
	return decided, nil
}

// afterDecision runs once the transaction has committed. Failures here are
// logged and never surface to the caller.
func (s *approvalService) afterDecision(ctx context.Context, req model.ApprovalRequest) {
	ctx = context.WithoutCancel(ctx)

	if err := s.stats.Invalidate(ctx); err != nil {
		s.log.Warn("Stats cache invalidation failed", zap.Error(err))
	}

	nctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := s.notifier.Notify(nctx, notify.DecisionEvent(req)); err != nil {
		s.log.Warn("Decision notification failed", zap.String("id", req.ID), zap.Error(err))
	}
}

func auditAction(to model.ApprovalStatus) string {
	if to == model.StatusRejected {
		return model.ActionRejectRequest
	}
	return model.ActionApproveRequest
}
