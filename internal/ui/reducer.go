package ui

import (
	"fmt"

	"procurement/internal/apperr"
	"procurement/internal/model"
)

// Reduce returns the state that results from applying a to s.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case SearchChanged:
		if a.Text == s.Search {
			return s
		}
		s.Search = a.Text
		s.Page = 1
		s.Selected = nil

	case FilterChanged:
		s.Filter = a.Filter
		s.Page = 1
		s.Selected = nil

	case PageChanged:
		page := a.Page
		if page < 1 {
			page = 1
		}
		if s.TotalPages > 0 && page > s.TotalPages {
			page = s.TotalPages
		}
		if page == s.Page {
			return s
		}
		s.Page = page
		s.Selected = nil

	case RowToggled:
		if s.IsSelected(a.ID) {
			s.Selected = without(s.Selected, a.ID)
		} else if s.Selectable(a.ID) {
			s.Selected = append(clone(s.Selected), a.ID)
		}

	case SelectAllToggled:
		ids := selectableVisible(s)
		if AllVisibleSelected(s) {
			s.Selected = without(s.Selected, ids...)
		} else {
			sel := clone(s.Selected)
			for _, id := range ids {
				if !s.IsSelected(id) {
					sel = append(sel, id)
				}
			}
			s.Selected = sel
		}

	case SelectionCleared:
		s.Selected = nil

	case FetchStarted:
		if a.Seq <= s.FetchSeq {
			return s
		}
		s.FetchSeq = a.Seq
		s.Loading = true
		s.LoadError = ""

	case FetchSucceeded:
		if a.Seq != s.FetchSeq {
			return s
		}
		s.Loading = false
		s.LoadError = ""
		s.Records = a.Page.Records
		s.Total = a.Page.Total
		s.TotalPages = a.Page.TotalPages
		if a.Page.Page > 0 {
			s.Page = a.Page.Page
		}
		s.Stats = a.Stats
		s.Selected = keepOnPage(s)

	case FetchFailed:
		if a.Seq != s.FetchSeq {
			return s
		}
		s.Loading = false
		s.LoadError = a.Err
		s.Records = nil
		s.Total = 0
		s.TotalPages = 1
		s.Selected = nil

	case DialogOpened:
		if s.Busy {
			return s
		}
		d := Dialog{Kind: a.Kind}
		switch a.Kind {
		case DialogApprove, DialogReject:
			if !s.Selectable(a.ID) {
				return s
			}
			d.TargetIDs = []string{a.ID}
		case DialogBulkApprove:
			if len(s.Selected) == 0 {
				return s
			}
			d.TargetIDs = clone(s.Selected)
		default:
			return s
		}
		s.Dialog = d

	case DialogCommentChanged:
		if !s.Dialog.IsOpen() {
			return s
		}
		s.Dialog.Comment = a.Comment
		s.Dialog.Field = ""
		s.Dialog.FieldError = ""

	case DialogClosed:
		if s.Busy {
			return s
		}
		s.Dialog = Dialog{}

	case ActionStarted:
		s.Busy = true
		s.Notice = nil

	case ValidationFailed:
		s.Busy = false
		s.Dialog.Field = a.Field
		s.Dialog.FieldError = a.Message

	case ActionSucceeded:
		s.Busy = false
		s.Dialog = Dialog{}
		s.Selected = without(s.Selected, a.IDs...)
		s.Notice = &Notice{Kind: NoticeSuccess, Text: a.Message}

	case ActionFailed:
		s.Busy = false
		s.Notice = &Notice{Kind: NoticeError, Text: a.Message}
		// the row is refreshed separately; retrying would fail the same way
		if a.Kind == apperr.KindInvalidState || a.Kind == apperr.KindNotFound {
			s.Dialog = Dialog{}
		}

	case BulkFinished:
		s.Busy = false
		s.Dialog = Dialog{}
		ok := make([]string, 0, len(a.Result.Succeeded))
		for _, r := range a.Result.Succeeded {
			ok = append(ok, r.ID)
		}
		s.Selected = without(s.Selected, ok...)
		text, failed := BulkSummary(a.Requested, a.Result)
		kind := NoticeSuccess
		if failed {
			kind = NoticeError
		}
		s.Notice = &Notice{Kind: kind, Text: text}

	case RowRefreshed:
		records := make([]model.ApprovalRequest, len(s.Records))
		copy(records, s.Records)
		for i := range records {
			if records[i].ID == a.Record.ID {
				records[i] = a.Record
			}
		}
		s.Records = records

	case NoticeDismissed:
		s.Notice = nil
	}
	return s
}

// BulkSummary formats the outcome of a bulk approval and reports whether
// any id failed.
func BulkSummary(requested int, res model.BulkApproveResult) (string, bool) {
	if len(res.Failed) == 0 {
		return fmt.Sprintf("%d of %d approved", len(res.Succeeded), requested), false
	}
	return fmt.Sprintf("%d of %d approved; %d failed - %s",
		len(res.Succeeded), requested, len(res.Failed), res.Failed[0].Error), true
}

// keepOnPage drops selected ids that are not rows of the current page.
// Rows that failed a bulk approval stay selected even when no longer pending.
func keepOnPage(s State) []string {
	onPage := make(map[string]struct{}, len(s.Records))
	for _, r := range s.Records {
		onPage[r.ID] = struct{}{}
	}
	var out []string
	for _, id := range s.Selected {
		if _, ok := onPage[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func clone(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

func without(ids []string, drop ...string) []string {
	if len(ids) == 0 {
		return nil
	}
	skip := make(map[string]struct{}, len(drop))
	for _, id := range drop {
		skip[id] = struct{}{}
	}
	var out []string
	for _, id := range ids {
		if _, ok := skip[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
