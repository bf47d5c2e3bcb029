package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"procurement/internal/model"
	"procurement/internal/ui"
)

var ansi = map[ui.Color]string{
	ui.ColorGray:   "90",
	ui.ColorRed:    "31",
	ui.ColorYellow: "33",
	ui.ColorBlue:   "34",
	ui.ColorPurple: "35",
	ui.ColorGreen:  "32",
}

// paint wraps text in the ANSI escape for c when enabled.
func paint(c ui.Color, text string, enabled bool) string {
	if !enabled {
		return text
	}
	return "\x1b[" + ansi[c] + "m" + text + "\x1b[0m"
}

func renderRecords(w io.Writer, records []model.ApprovalRequest, color bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tREQUESTOR\tAMOUNT\tRISK\tSUBMITTED\tSTATUS\tDESCRIPTION")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\t%s\t%s\t%s\t%s\n",
			r.ID,
			paint(ui.TypeColor(r.Type), ui.TypeLabel(r.Type), color),
			r.RequestorName,
			r.Amount.StringFixed(2), r.Currency,
			paint(ui.RiskColor(r.RiskLevel), string(r.RiskLevel), color),
			r.DateSubmitted.Format("2006-01-02"),
			paint(ui.StatusColor(r.Status), string(r.Status), color),
			truncate(r.Description, 40),
		)
	}
	return tw.Flush()
}

// renderPage prints the visible rows of s and the pager line.
func renderPage(w io.Writer, s ui.State, color bool) error {
	rows := ui.VisibleRecords(s)
	if len(rows) == 0 {
		if s.Filter.IsZero() && strings.TrimSpace(s.Search) == "" {
			fmt.Fprintln(w, "No approval requests.")
		} else {
			fmt.Fprintln(w, "No approval requests match the active filters.")
		}
	} else if err := renderRecords(w, rows, color); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nPage %d of %d, %d total", s.Page, s.TotalPages, s.Total)
	if strings.TrimSpace(s.Search) != "" {
		fmt.Fprintf(w, ", %d shown on this page", len(rows))
	}
	fmt.Fprintln(w)
	return nil
}

func renderStats(w io.Writer, stats model.ApprovalStats, color bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tPENDING")
	for _, t := range model.RequestTypes {
		fmt.Fprintf(tw, "%s\t%d\n", paint(ui.TypeColor(t), ui.TypeLabel(t), color), stats.Count(t))
	}
	return tw.Flush()
}

func renderDecision(w io.Writer, r *model.ApprovalRequest, color bool) {
	fmt.Fprintf(w, "%s %s is now %s\n",
		ui.TypeLabel(r.Type), r.ID, paint(ui.StatusColor(r.Status), string(r.Status), color))
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
