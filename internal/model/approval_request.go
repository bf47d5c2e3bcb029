package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RequestType identifies what kind of procurement document awaits a decision.
type RequestType string

const (
	RequestTypeRequisition   RequestType = "requisition"
	RequestTypePurchaseOrder RequestType = "purchase_order"
	RequestTypePayment       RequestType = "payment"
)

// RequestTypes lists every request type in display order.
var RequestTypes = []RequestType{RequestTypeRequisition, RequestTypePurchaseOrder, RequestTypePayment}

func (t RequestType) IsValid() bool {
	switch t {
	case RequestTypeRequisition, RequestTypePurchaseOrder, RequestTypePayment:
		return true
	}
	return false
}

// RiskLevel is assigned at intake and never recomputed here.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

var RiskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh}

func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// ApprovalStatus is the decision state of a request. Pending is the only
// initial state; approved and rejected are terminal.
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
)

var ApprovalStatuses = []ApprovalStatus{StatusPending, StatusApproved, StatusRejected}

func (s ApprovalStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

func (s ApprovalStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransitionTo reports whether moving from s to next is a legal edge.
func (s ApprovalStatus) CanTransitionTo(next ApprovalStatus) bool {
	return s == StatusPending && next.IsTerminal()
}

// ApprovalRequest is a requisition, purchase order or payment awaiting a decision.
// Type, amount, currency and date_submitted are fixed at intake.
type ApprovalRequest struct {
	ID              string          `gorm:"type:varchar(64);primaryKey" json:"id"`
	Type            RequestType     `gorm:"type:varchar(20);not null;index" json:"type"`
	RequestorName   string          `gorm:"type:varchar(255);not null" json:"requestor_name"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	Currency        string          `gorm:"type:varchar(3);not null" json:"currency"`
	Description     string          `gorm:"type:text" json:"description"`
	RiskLevel       RiskLevel       `gorm:"type:varchar(10);not null;index" json:"risk_level"`
	DateSubmitted   time.Time       `gorm:"not null;index" json:"date_submitted"`
	Status          ApprovalStatus  `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Department      string          `gorm:"type:varchar(255);index" json:"department,omitempty"`
	DecisionComment string          `gorm:"type:text" json:"decision_comment,omitempty"`
	DecisionActor   string          `gorm:"type:varchar(64)" json:"decision_actor,omitempty"`
	DecisionAt      *time.Time      `json:"decision_at,omitempty"`
	CreatedAt       time.Time       `json:"-"`
	UpdatedAt       time.Time       `json:"-"`
}

// BeforeCreate fills intake defaults so seeded and imported rows are consistent.
func (a *ApprovalRequest) BeforeCreate(_ *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = StatusPending
	}
	if a.DateSubmitted.IsZero() {
		a.DateSubmitted = time.Now()
	}
	a.DateSubmitted = a.DateSubmitted.UTC()
	a.Currency = strings.ToUpper(a.Currency)
	return nil
}

// ApprovalStats counts pending requests per type.
type ApprovalStats struct {
	Requisitions   int64 `json:"requisitions"`
	PurchaseOrders int64 `json:"purchase_orders"`
	Payments       int64 `json:"payments"`
}

// Add adjusts the counter for t by delta.
func (s *ApprovalStats) Add(t RequestType, delta int64) {
	switch t {
	case RequestTypeRequisition:
		s.Requisitions += delta
	case RequestTypePurchaseOrder:
		s.PurchaseOrders += delta
	case RequestTypePayment:
		s.Payments += delta
	}
}

// Count returns the pending count for t.
func (s ApprovalStats) Count(t RequestType) int64 {
	switch t {
	case RequestTypeRequisition:
		return s.Requisitions
	case RequestTypePurchaseOrder:
		return s.PurchaseOrders
	case RequestTypePayment:
		return s.Payments
	}
	return 0
}

// ApprovalPage is one page of a filtered listing.
type ApprovalPage struct {
	Records    []ApprovalRequest `json:"records"`
	Total      int64             `json:"total"`
	TotalPages int               `json:"total_pages"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
}

// BulkFailure records why one id of a bulk approval was not approved.
// Code is an error kind such as INVALID_STATE or NOT_FOUND.
type BulkFailure struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

// BulkApproveResult reports per-id outcomes. A failure never aborts the batch.
type BulkApproveResult struct {
	Succeeded []ApprovalRequest `json:"succeeded"`
	Failed    []BulkFailure     `json:"failed"`
}
