package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ApprovalFilter narrows a listing. Every field is optional and active fields
// are combined with AND. Bounds are inclusive.
type ApprovalFilter struct {
	Type       RequestType      `json:"type,omitempty"`
	RiskLevel  RiskLevel        `json:"risk_level,omitempty"`
	Status     ApprovalStatus   `json:"status,omitempty"`
	Department string           `json:"department,omitempty"`
	DateFrom   *time.Time       `json:"date_from,omitempty"`
	DateTo     *time.Time       `json:"date_to,omitempty"`
	AmountMin  *decimal.Decimal `json:"amount_min,omitempty"`
	AmountMax  *decimal.Decimal `json:"amount_max,omitempty"`
}

// IsZero reports whether no field constrains the listing.
func (f ApprovalFilter) IsZero() bool {
	return f.Type == "" && f.RiskLevel == "" && f.Status == "" &&
		strings.TrimSpace(f.Department) == "" &&
		f.DateFrom == nil && f.DateTo == nil &&
		f.AmountMin == nil && f.AmountMax == nil
}

// Matches evaluates the filter against a single record in memory.
func (f ApprovalFilter) Matches(a ApprovalRequest) bool {
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	if f.RiskLevel != "" && a.RiskLevel != f.RiskLevel {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if dept := strings.TrimSpace(f.Department); dept != "" {
		if !strings.Contains(strings.ToLower(a.Department), strings.ToLower(dept)) {
			return false
		}
	}
	if f.DateFrom != nil && a.DateSubmitted.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && a.DateSubmitted.After(*f.DateTo) {
		return false
	}
	if f.AmountMin != nil && a.Amount.LessThan(*f.AmountMin) {
		return false
	}
	if f.AmountMax != nil && a.Amount.GreaterThan(*f.AmountMax) {
		return false
	}
	return true
}
