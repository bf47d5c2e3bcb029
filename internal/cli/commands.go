package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"procurement/internal/apperr"
	"procurement/internal/config"
	"procurement/internal/database"
	"procurement/internal/model"
	"procurement/internal/ui"
)

func (a *app) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save the access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv(envPrefix + "_PASSWORD")
			}
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password (or %s_PASSWORD) are required", envPrefix)
			}
			token, err := a.client().Login(cmd.Context(), email, password)
			if err != nil {
				return fail(err)
			}
			if err := a.saveToken(token); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Logged in as %s\n", email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

type listFlags struct {
	page, pageSize          int
	search                  string
	typ, risk, status, dept string
	from, to                string
	amountMin, amountMax    string
}

func (f listFlags) filter() (model.ApprovalFilter, error) {
	out := model.ApprovalFilter{
		Type:       model.RequestType(f.typ),
		RiskLevel:  model.RiskLevel(f.risk),
		Status:     model.ApprovalStatus(f.status),
		Department: f.dept,
	}
	var err error
	if out.DateFrom, err = parseDate(f.from, "from", false); err != nil {
		return out, err
	}
	if out.DateTo, err = parseDate(f.to, "to", true); err != nil {
		return out, err
	}
	if out.AmountMin, err = parseDecimal(f.amountMin, "min-amount"); err != nil {
		return out, err
	}
	if out.AmountMax, err = parseDecimal(f.amountMax, "max-amount"); err != nil {
		return out, err
	}
	return out, nil
}

// parseDate accepts RFC 3339 or a bare date. A bare upper bound covers the
// whole day.
func parseDate(raw, flag string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, apperr.Validation(flag, "expected YYYY-MM-DD or RFC 3339, got "+raw)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func parseDecimal(raw, flag string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, apperr.Validation(flag, "not a number: "+raw)
	}
	return &d, nil
}

func (a *app) listCmd() *cobra.Command {
	var lf listFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List approval requests",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := lf.filter()
			if err != nil {
				return fail(err)
			}
			ctrl := ui.NewController(a.client(), lf.pageSize, ui.WithLogger(a.log))
			defer ctrl.Close()

			ctx := cmd.Context()
			if err := ctrl.SetFilter(ctx, filter); err != nil {
				return fail(err)
			}
			// search resets the page, so it goes first
			if err := ctrl.SetSearch(ctx, lf.search); err != nil {
				return fail(err)
			}
			if lf.page > 1 {
				if err := ctrl.GoToPage(ctx, lf.page); err != nil {
					return fail(err)
				}
			}
			return renderPage(a.out, ctrl.State(), a.color())
		},
	}
	fs := cmd.Flags()
	fs.IntVar(&lf.page, "page", 1, "page number")
	fs.IntVar(&lf.pageSize, "page-size", 10, "rows per page")
	fs.StringVar(&lf.search, "search", "", "text search within the fetched page")
	fs.StringVar(&lf.typ, "type", "", "requisition, purchase_order or payment")
	fs.StringVar(&lf.risk, "risk", "", "low, medium or high")
	fs.StringVar(&lf.status, "status", "", "pending, approved or rejected")
	fs.StringVar(&lf.dept, "department", "", "department substring")
	fs.StringVar(&lf.from, "from", "", "submitted on or after")
	fs.StringVar(&lf.to, "to", "", "submitted on or before")
	fs.StringVar(&lf.amountMin, "min-amount", "", "minimum amount")
	fs.StringVar(&lf.amountMax, "max-amount", "", "maximum amount")
	return cmd
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show pending counts per request type",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := a.client().GetApprovalStats(cmd.Context())
			if err != nil {
				return fail(err)
			}
			return renderStats(a.out, stats, a.color())
		},
	}
}

func (a *app) approveCmd() *cobra.Command {
	var comment string
	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a pending request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := a.client().Approve(cmd.Context(), args[0], comment)
			if err != nil {
				return fail(err)
			}
			renderDecision(a.out, req, a.color())
			return nil
		},
	}
	cmd.Flags().StringVar(&comment, "comment", "", "optional comment")
	return cmd
}

func (a *app) rejectCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a pending request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(reason) == "" {
				return fail(apperr.Validation("reason", "a rejection reason is required"))
			}
			req, err := a.client().Reject(cmd.Context(), args[0], reason)
			if err != nil {
				return fail(err)
			}
			renderDecision(a.out, req, a.color())
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the request is rejected (required)")
	return cmd
}

func (a *app) bulkApproveCmd() *cobra.Command {
	var comment string
	cmd := &cobra.Command{
		Use:   "bulk-approve <id>...",
		Short: "Approve several pending requests",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.client().BulkApprove(cmd.Context(), args, comment)
			if err != nil {
				return fail(err)
			}
			// the server drops duplicate and blank ids
			summary, failed := ui.BulkSummary(len(res.Succeeded)+len(res.Failed), *res)
			color := ui.ColorGreen
			if failed {
				color = ui.ColorRed
			}
			fmt.Fprintln(a.out, paint(color, summary, a.color()))
			for _, f := range res.Failed {
				fmt.Fprintf(a.out, "  %s: %s\n", f.ID, f.Error)
			}
			if len(res.Succeeded) == 0 {
				return fmt.Errorf("no requests were approved")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&comment, "comment", "", "optional comment applied to every request")
	return cmd
}

func (a *app) seedCmd() *cobra.Command {
	var (
		configPath string
		count      int
		seed       int64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create development users and demo requests in the configured database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			db, err := database.NewConnection(cfg.Database.DSN, a.log)
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			if err := database.Seed(ctx, db, count, seed); err != nil {
				return err
			}
			a.log.Info("Seed complete", zap.Int("count", count), zap.Int64("seed", seed))
			fmt.Fprintf(a.out, "Seeded %d approval requests\n", count)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "optional YAML config file")
	cmd.Flags().IntVar(&count, "count", 25, "number of pending requests to create")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed for reproducible data")
	return cmd
}
