package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestApprovalStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to ApprovalStatus
		want     bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusPending, false},
		{StatusApproved, StatusRejected, false},
		{StatusApproved, StatusApproved, false},
		{StatusRejected, StatusApproved, false},
		{StatusRejected, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestEnumValidity(t *testing.T) {
	for _, rt := range RequestTypes {
		assert.True(t, rt.IsValid(), rt)
	}
	for _, r := range RiskLevels {
		assert.True(t, r.IsValid(), r)
	}
	for _, s := range ApprovalStatuses {
		assert.True(t, s.IsValid(), s)
	}
	assert.False(t, RequestType("invoice").IsValid())
	assert.False(t, RiskLevel("critical").IsValid())
	assert.False(t, ApprovalStatus("cancelled").IsValid())
	assert.False(t, StatusPending.IsTerminal())
}

func TestApprovalFilter_Matches(t *testing.T) {
	submitted := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	record := ApprovalRequest{
		ID:            "req-1",
		Type:          RequestTypePayment,
		RiskLevel:     RiskHigh,
		Status:        StatusPending,
		Department:    "Field Operations",
		DateSubmitted: submitted,
		Amount:        decimal.RequireFromString("1500.00"),
	}

	at := func(tm time.Time) *time.Time { return &tm }
	dec := func(s string) *decimal.Decimal { d := decimal.RequireFromString(s); return &d }

	tests := []struct {
		name   string
		filter ApprovalFilter
		want   bool
	}{
		{"empty filter", ApprovalFilter{}, true},
		{"type match", ApprovalFilter{Type: RequestTypePayment}, true},
		{"type mismatch", ApprovalFilter{Type: RequestTypeRequisition}, false},
		{"risk mismatch", ApprovalFilter{RiskLevel: RiskLow}, false},
		{"department substring any case", ApprovalFilter{Department: "operations"}, true},
		{"department mismatch", ApprovalFilter{Department: "finance"}, false},
		{"date bounds inclusive", ApprovalFilter{DateFrom: at(submitted), DateTo: at(submitted)}, true},
		{"date before range", ApprovalFilter{DateFrom: at(submitted.Add(time.Second))}, false},
		{"amount bounds inclusive", ApprovalFilter{AmountMin: dec("1500"), AmountMax: dec("1500")}, true},
		{"amount above max", ApprovalFilter{AmountMax: dec("1499.99")}, false},
		{"all combined", ApprovalFilter{Type: RequestTypePayment, RiskLevel: RiskHigh, Department: "FIELD", AmountMin: dec("100")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(record))
		})
	}
}

func TestApprovalStats_AddAndCount(t *testing.T) {
	var s ApprovalStats
	s.Add(RequestTypeRequisition, 3)
	s.Add(RequestTypePayment, 2)
	s.Add(RequestTypeRequisition, -1)

	assert.Equal(t, int64(2), s.Count(RequestTypeRequisition))
	assert.Equal(t, int64(0), s.Count(RequestTypePurchaseOrder))
	assert.Equal(t, int64(2), s.Count(RequestTypePayment))
}
