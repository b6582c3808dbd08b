package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nimasrn/kamoa-supervision/internal/model"
	"github.com/nimasrn/kamoa-supervision/internal/report"
	"github.com/nimasrn/kamoa-supervision/internal/session"
	"github.com/nimasrn/kamoa-supervision/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	errNothingToSubmit = errors.New("nothing submitted: a description is required")
	errNoUnit          = errors.New("no unit known: pass --unit or run `console units` once while online")
)

func newReportCmd(a *app) *cobra.Command {
	var (
		unit    string
		desc    string
		faultID int64
		copyOut bool
	)

	cmd := &cobra.Command{
		Use:       "report stop|start|end-shift",
		Short:     "File a status report for a unit",
		Long:      "Composes the status message, stores it through the API and falls back to the local queue when the API cannot be reached.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(report.ActionStop), string(report.ActionStart), string(report.ActionEndShift)},
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := report.ParseAction(args[0])
			if err != nil {
				return err
			}
			if unit == "" {
				unit, err = a.defaultUnit(cmd)
				if err != nil {
					return err
				}
			}
			if faultID != 0 && strings.TrimSpace(desc) == "" {
				desc, err = a.faultDescription(cmd, faultID)
				if err != nil {
					return err
				}
			}

			outcome, r := a.submitter().Submit(cmd.Context(), unit, action, desc)
			out := cmd.OutOrStdout()
			if outcome == session.OutcomeSkipped {
				return errNothingToSubmit
			}

			fmt.Fprintln(out, r.RawMessage)
			fmt.Fprintln(out)
			printOutcome(out, a, cmd, outcome, r)

			if copyOut {
				if err := a.clipboard.WriteText(r.RawMessage); err != nil {
					logger.Warn("clipboard unavailable", "error", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&unit, "unit", "", "unit id, defaults to the first unit")
	cmd.Flags().StringVar(&desc, "desc", "", "what happened")
	cmd.Flags().Int64Var(&faultID, "fault", 0, "use a fault library entry as the description")
	cmd.Flags().BoolVar(&copyOut, "copy", false, "copy the message to the clipboard")
	return cmd
}

func printOutcome(out io.Writer, a *app, cmd *cobra.Command, outcome session.Outcome, r *model.Report) {
	switch outcome {
	case session.OutcomePersisted:
		fmt.Fprintf(out, "stored as #%d\n", r.ID)
	case session.OutcomeQueued:
		n, _ := a.queue.Len(cmd.Context())
		fmt.Fprintf(out, "api unreachable, kept locally (%d pending, run `console queue flush`)\n", n)
	case session.OutcomeDropped:
		fmt.Fprintln(out, "api unreachable and local queue unavailable, the message was NOT saved")
	}
}

// defaultUnit mirrors the console start-up: the first unit is selected.
// While the API is down the saved unit list answers.
func (a *app) defaultUnit(cmd *cobra.Command) (string, error) {
	ctx, cancel := readCtx(cmd.Context())
	defer cancel()

	units, err := a.api.Units(ctx)
	if err != nil {
		return "", fmt.Errorf("%w (%v)", errNoUnit, err)
	}
	if len(units) == 0 {
		return "", errNoUnit
	}
	return units[0].UnitID, nil
}

func (a *app) faultDescription(cmd *cobra.Command, id int64) (string, error) {
	ctx, cancel := readCtx(cmd.Context())
	defer cancel()

	groups, err := a.api.Faults(ctx)
	if err != nil {
		return "", fmt.Errorf("load fault library: %w", err)
	}
	for _, g := range groups {
		for _, f := range g.Faults {
			if f.ID == id {
				return f.Description, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %d", session.ErrUnknownFault, id)
}
