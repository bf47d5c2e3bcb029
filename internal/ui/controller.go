package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"procurement/internal/apperr"
	"procurement/internal/model"
)

// API is the remote approval service as the view sees it.
type API interface {
	ListApprovals(ctx context.Context, page, pageSize int, filter model.ApprovalFilter) (*model.ApprovalPage, error)
	GetApprovalStats(ctx context.Context) (model.ApprovalStats, error)
	GetApproval(ctx context.Context, id string) (*model.ApprovalRequest, error)
	Approve(ctx context.Context, id, comment string) (*model.ApprovalRequest, error)
	Reject(ctx context.Context, id, reason string) (*model.ApprovalRequest, error)
	BulkApprove(ctx context.Context, ids []string, comment string) (*model.BulkApproveResult, error)
}

// Controller owns a State and performs the calls its actions imply.
// Methods are safe for concurrent use.
type Controller struct {
	api      API
	log      *zap.Logger
	onChange func(State)

	mu    sync.Mutex
	state State
	seq   int64

	filterMu      sync.Mutex
	pendingFilter model.ApprovalFilter
	filterDelay   time.Duration
	debouncer     *Debouncer
}

type ControllerOption func(*Controller)

func WithLogger(log *zap.Logger) ControllerOption {
	return func(c *Controller) { c.log = log }
}

// OnChange registers a callback invoked after every state change.
func OnChange(fn func(State)) ControllerOption {
	return func(c *Controller) { c.onChange = fn }
}

// WithFilterDelay sets the quiet period for QueueFilter.
func WithFilterDelay(d time.Duration) ControllerOption {
	return func(c *Controller) { c.filterDelay = d }
}

func NewController(api API, pageSize int, opts ...ControllerOption) *Controller {
	c := &Controller{
		api:         api,
		log:         zap.NewNop(),
		state:       NewState(pageSize),
		filterDelay: 300 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.debouncer = NewDebouncer(c.filterDelay, c.applyQueuedFilter)
	return c
}

// State returns a snapshot of the current view.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Dispatch applies a to the state and returns the result.
func (c *Controller) Dispatch(a Action) State {
	c.mu.Lock()
	c.state = Reduce(c.state, a)
	s := c.state
	c.mu.Unlock()

	if c.onChange != nil {
		c.onChange(s)
	}
	return s
}

// Refresh fetches the current page and the stats concurrently. A response
// that arrives after a newer Refresh has started is discarded.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	s := c.Dispatch(FetchStarted{Seq: seq})

	var (
		page  *model.ApprovalPage
		stats model.ApprovalStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		page, err = c.api.ListApprovals(gctx, s.Page, s.PageSize, s.Filter)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = c.api.GetApprovalStats(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		c.log.Warn("Failed to load approvals", zap.Int64("seq", seq), zap.Error(err))
		c.Dispatch(FetchFailed{Seq: seq, Err: err.Error()})
		return err
	}
	c.Dispatch(FetchSucceeded{Seq: seq, Page: *page, Stats: stats})
	return nil
}

// SetSearch narrows the visible rows of the current page. A page other
// than the first is refetched because the page resets.
func (c *Controller) SetSearch(ctx context.Context, text string) error {
	before := c.State().Page
	after := c.Dispatch(SearchChanged{Text: text})
	if after.Page != before {
		return c.Refresh(ctx)
	}
	return nil
}

func (c *Controller) SetFilter(ctx context.Context, f model.ApprovalFilter) error {
	c.debouncer.Cancel()
	c.Dispatch(FilterChanged{Filter: f})
	return c.Refresh(ctx)
}

// QueueFilter applies f once edits stop for the configured delay.
func (c *Controller) QueueFilter(f model.ApprovalFilter) {
	c.filterMu.Lock()
	c.pendingFilter = f
	c.filterMu.Unlock()
	c.debouncer.Trigger()
}

func (c *Controller) applyQueuedFilter() {
	c.filterMu.Lock()
	f := c.pendingFilter
	c.filterMu.Unlock()

	c.Dispatch(FilterChanged{Filter: f})
	if err := c.Refresh(context.Background()); err != nil {
		c.log.Debug("Queued filter refresh failed", zap.Error(err))
	}
}

// Close applies any queued filter and stops the debouncer.
func (c *Controller) Close() {
	c.debouncer.Close()
}

func (c *Controller) GoToPage(ctx context.Context, page int) error {
	before := c.State().Page
	after := c.Dispatch(PageChanged{Page: page})
	if after.Page == before {
		return nil
	}
	return c.Refresh(ctx)
}

func (c *Controller) ToggleRow(id string) State { return c.Dispatch(RowToggled{ID: id}) }

func (c *Controller) ToggleSelectAll() State { return c.Dispatch(SelectAllToggled{}) }

func (c *Controller) OpenDialog(kind DialogKind, id string) State {
	return c.Dispatch(DialogOpened{Kind: kind, ID: id})
}

func (c *Controller) SetComment(comment string) State {
	return c.Dispatch(DialogCommentChanged{Comment: comment})
}

func (c *Controller) CloseDialog() State { return c.Dispatch(DialogClosed{}) }

// ErrNoDialog is returned by Submit when no dialog is open.
var ErrNoDialog = errors.New("no action dialog is open")

// Submit performs the action of the open dialog. Successful actions refetch
// the page and the stats.
func (c *Controller) Submit(ctx context.Context) error {
	s := c.State()
	d := s.Dialog
	if !d.IsOpen() {
		return ErrNoDialog
	}
	if s.Busy {
		return nil
	}

	if d.Kind == DialogReject && strings.TrimSpace(d.Comment) == "" {
		err := apperr.Validation("reason", "A rejection reason is required")
		c.Dispatch(ValidationFailed{Field: "reason", Message: err.Message})
		return err
	}

	c.Dispatch(ActionStarted{})

	switch d.Kind {
	case DialogApprove:
		id := d.TargetIDs[0]
		if _, err := c.api.Approve(ctx, id, d.Comment); err != nil {
			return c.mutationFailed(ctx, id, err)
		}
		c.Dispatch(ActionSucceeded{IDs: d.TargetIDs, Message: fmt.Sprintf("Approved %s", id)})

	case DialogReject:
		id := d.TargetIDs[0]
		if _, err := c.api.Reject(ctx, id, d.Comment); err != nil {
			return c.mutationFailed(ctx, id, err)
		}
		c.Dispatch(ActionSucceeded{IDs: d.TargetIDs, Message: fmt.Sprintf("Rejected %s", id)})

	case DialogBulkApprove:
		res, err := c.api.BulkApprove(ctx, d.TargetIDs, d.Comment)
		if err != nil {
			return c.mutationFailed(ctx, "", err)
		}
		c.Dispatch(BulkFinished{Requested: len(d.TargetIDs), Result: *res})
	}

	return c.Refresh(ctx)
}

// mutationFailed leaves records untouched, except that a request found in
// a terminal state is reloaded to show its real status.
func (c *Controller) mutationFailed(ctx context.Context, id string, err error) error {
	kind := apperr.KindOf(err)
	if kind == apperr.KindValidation {
		c.Dispatch(ValidationFailed{Field: apperr.FieldOf(err), Message: err.Error()})
		return err
	}

	c.Dispatch(ActionFailed{Kind: kind, Message: err.Error()})

	if kind == apperr.KindInvalidState && id != "" {
		fresh, ferr := c.api.GetApproval(ctx, id)
		if ferr != nil {
			c.log.Warn("Failed to refresh row", zap.String("id", id), zap.Error(ferr))
			return err
		}
		c.Dispatch(RowRefreshed{Record: *fresh})
	}
	return err
}
