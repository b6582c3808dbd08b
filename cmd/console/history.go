package main

import (
	"fmt"

	"github.com/nimasrn/kamoa-supervision/internal/model"
	"github.com/nimasrn/kamoa-supervision/internal/report"
	"github.com/nimasrn/kamoa-supervision/internal/session"
	"github.com/nimasrn/kamoa-supervision/pkg/logger"
	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the latest stored reports, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.loadHistory(cmd, limit)
			if err != nil {
				return err
			}
			return h.Render(cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&limit, "limit", model.DefaultReportLimit, "number of reports")
	return cmd
}

func (a *app) loadHistory(cmd *cobra.Command, limit int) (*session.History, error) {
	ctx, cancel := readCtx(cmd.Context())
	defer cancel()

	items, err := a.api.Reports(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("load reports: %w", err)
	}
	h := session.NewHistory()
	h.Load(items)
	return h, nil
}

func newShiftReportCmd(a *app) *cobra.Command {
	var (
		info    report.ShiftInfo
		copyOut bool
	)

	cmd := &cobra.Command{
		Use:   "shift-report",
		Short: "Print the shift report built from the latest reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.loadHistory(cmd, model.DefaultReportLimit)
			if err != nil {
				return err
			}
			info.Site = a.cfg.SiteName
			info.Date = a.now()
			text := report.Shift(h.Snapshot(), info)

			fmt.Fprintln(cmd.OutOrStdout(), text)
			if copyOut {
				if err := a.clipboard.WriteText(text); err != nil {
					logger.Warn("clipboard unavailable", "error", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&info.Operator, "operator", "", "operator on shift")
	cmd.Flags().StringVar(&info.Tonnage, "tonnage", "", "tonnage moved")
	cmd.Flags().StringVar(&info.Notes, "notes", "", "free notes")
	cmd.Flags().BoolVar(&copyOut, "copy", false, "copy the report to the clipboard")
	return cmd
}
