// Package ui holds the approval list view as plain data. State is changed
// only by Reduce; Controller performs the I/O and feeds results back as actions.
package ui

import (
	"strings"

	"procurement/internal/model"
)

type DialogKind string

const (
	DialogNone        DialogKind = ""
	DialogApprove     DialogKind = "approve"
	DialogReject      DialogKind = "reject"
	DialogBulkApprove DialogKind = "bulk_approve"
)

// Dialog is the open action dialog, if any.
type Dialog struct {
	Kind       DialogKind `json:"kind,omitempty"`
	TargetIDs  []string   `json:"target_ids,omitempty"`
	Comment    string     `json:"comment,omitempty"`
	Field      string     `json:"field,omitempty"`
	FieldError string     `json:"field_error,omitempty"`
}

func (d Dialog) IsOpen() bool { return d.Kind != DialogNone }

type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is the toast shown after an action.
type Notice struct {
	Kind NoticeKind `json:"kind"`
	Text string     `json:"text"`
}

// State is the whole view. It is serializable and safe to copy; Reduce never
// mutates the slices of the state it receives.
type State struct {
	Search     string                  `json:"search"`
	Filter     model.ApprovalFilter    `json:"filter"`
	Page       int                     `json:"page"`
	PageSize   int                     `json:"page_size"`
	Selected   []string                `json:"selected"`
	Dialog     Dialog                  `json:"dialog"`
	Records    []model.ApprovalRequest `json:"records"`
	Total      int64                   `json:"total"`
	TotalPages int                     `json:"total_pages"`
	Stats      model.ApprovalStats     `json:"stats"`
	Loading    bool                    `json:"loading"`
	LoadError  string                  `json:"load_error,omitempty"`
	Busy       bool                    `json:"busy"`
	Notice     *Notice                 `json:"notice,omitempty"`
	FetchSeq   int64                   `json:"fetch_seq"`
}

func NewState(pageSize int) State {
	if pageSize < 1 {
		pageSize = 10
	}
	return State{Page: 1, PageSize: pageSize, TotalPages: 1}
}

func (s State) IsSelected(id string) bool {
	for _, sel := range s.Selected {
		if sel == id {
			return true
		}
	}
	return false
}

// Selectable reports whether id is a row on the current page that can
// still be approved.
func (s State) Selectable(id string) bool {
	for _, r := range s.Records {
		if r.ID == id {
			return decidable(r)
		}
	}
	return false
}

func decidable(r model.ApprovalRequest) bool {
	return r.Status.CanTransitionTo(model.StatusApproved)
}

// VisibleRecords applies the free-text search to the fetched page only.
// Matches on other pages are not found.
func VisibleRecords(s State) []model.ApprovalRequest {
	q := strings.ToLower(strings.TrimSpace(s.Search))
	if q == "" {
		return s.Records
	}
	out := make([]model.ApprovalRequest, 0, len(s.Records))
	for _, r := range s.Records {
		if strings.Contains(strings.ToLower(r.ID), q) ||
			strings.Contains(strings.ToLower(r.RequestorName), q) ||
			strings.Contains(strings.ToLower(r.Description), q) {
			out = append(out, r)
		}
	}
	return out
}

// selectableVisible lists the ids select-all acts on.
func selectableVisible(s State) []string {
	var ids []string
	for _, r := range VisibleRecords(s) {
		if decidable(r) {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// AllVisibleSelected drives the select-all checkbox.
func AllVisibleSelected(s State) bool {
	ids := selectableVisible(s)
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		if !s.IsSelected(id) {
			return false
		}
	}
	return true
}
