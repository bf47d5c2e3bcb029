package ui

import (
	"procurement/internal/apperr"
	"procurement/internal/model"
)

// Action is a tagged state transition. Only types in this package implement it.
type Action interface {
	isAction()
}

type (
	SearchChanged struct{ Text string }
	FilterChanged struct{ Filter model.ApprovalFilter }
	PageChanged   struct{ Page int }

	RowToggled       struct{ ID string }
	SelectAllToggled struct{}
	SelectionCleared struct{}

	FetchStarted   struct{ Seq int64 }
	FetchSucceeded struct {
		Seq   int64
		Page  model.ApprovalPage
		Stats model.ApprovalStats
	}
	FetchFailed struct {
		Seq int64
		Err string
	}

	DialogOpened struct {
		Kind DialogKind
		ID   string // ignored for bulk approval, which targets the selection
	}
	DialogCommentChanged struct{ Comment string }
	DialogClosed         struct{}

	ActionStarted    struct{}
	ValidationFailed struct{ Field, Message string }
	ActionSucceeded  struct {
		IDs     []string
		Message string
	}
	ActionFailed struct {
		Kind    apperr.Kind
		Message string
	}
	BulkFinished struct {
		Requested int
		Result    model.BulkApproveResult
	}
	RowRefreshed    struct{ Record model.ApprovalRequest }
	NoticeDismissed struct{}
)

func (SearchChanged) isAction()        {}
func (FilterChanged) isAction()        {}
func (PageChanged) isAction()          {}
func (RowToggled) isAction()           {}
func (SelectAllToggled) isAction()     {}
func (SelectionCleared) isAction()     {}
func (FetchStarted) isAction()         {}
func (FetchSucceeded) isAction()       {}
func (FetchFailed) isAction()          {}
func (DialogOpened) isAction()         {}
func (DialogCommentChanged) isAction() {}
func (DialogClosed) isAction()         {}
func (ActionStarted) isAction()        {}
func (ValidationFailed) isAction()     {}
func (ActionSucceeded) isAction()      {}
func (ActionFailed) isAction()         {}
func (BulkFinished) isAction()         {}
func (RowRefreshed) isAction()         {}
func (NoticeDismissed) isAction()      {}
