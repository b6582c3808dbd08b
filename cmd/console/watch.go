package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/nimasrn/kamoa-supervision/internal/model"
	"github.com/nimasrn/kamoa-supervision/internal/report"
	"github.com/nimasrn/kamoa-supervision/internal/session"
	"github.com/spf13/cobra"
)

var errFeedLost = errors.New("live feed lost, restart watch to reload history")

func newWatchCmd(a *app) *cobra.Command {
	var (
		info      report.ShiftInfo
		shiftCron string
		noShift   bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow new reports as they are stored",
		Long:  "Prints the latest reports, then every new report as it is stored. A shift report is printed at each shift change. Operator commands are read from stdin; type help. Ctrl+C to stop.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if shiftCron == "" {
				shiftCron = a.cfg.ShiftCron
			}
			if noShift {
				shiftCron = ""
			}
			return runWatch(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), a, info, shiftCron)
		},
	}

	cmd.Flags().StringVar(&info.Operator, "operator", "", "operator on shift, used by the shift report")
	cmd.Flags().StringVar(&info.Tonnage, "tonnage", "", "tonnage, used by the shift report")
	cmd.Flags().StringVar(&shiftCron, "shift-cron", "", "cron expression of shift changes (default SHIFT_CRON)")
	cmd.Flags().BoolVar(&noShift, "no-shift-report", false, "do not print shift reports")
	return cmd
}

func runWatch(ctx context.Context, in io.Reader, w io.Writer, a *app, info report.ShiftInfo, shiftCron string) error {
	out := &printer{w: w}

	s, err := session.Open(ctx, session.Options{
		API:           a.api,
		Queue:         a.queue,
		Clipboard:     a.clipboard,
		SubmitTimeout: a.cfg.ConsoleSubmitTimeout,
		Theme:         a.theme(),
		Site:          a.cfg.SiteName,
		Live:          true,
		Now:           a.now,
		OnReport: func(r *model.Report) {
			out.printf("%s\n\n", r.RawMessage)
		},
	})
	if err != nil {
		return err
	}
	defer s.Close()

	st := s.State()
	out.with(func(w io.Writer) {
		fmt.Fprintf(w, "%s  %s  theme=%s\n", st.Date, st.Clock, st.Theme)
		_ = s.History().Render(w)
	})

	if !st.Live {
		return errFeedLost
	}

	if shiftCron != "" {
		err := s.ScheduleShiftReport(shiftCron, func() report.ShiftInfo { return info }, func(text string) {
			out.printf("%s\n\n", text)
		})
		if err != nil {
			return err
		}
	}

	p := &prompt{s: s, queue: a.queue, out: out, info: info}
	done := make(chan struct{})
	defer close(done)
	lines := readLines(in, done)

	out.printf("watching for new reports... (type help, Ctrl+C to stop)\n")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.ListenerDone():
			return errFeedLost
		case line, ok := <-lines:
			if !ok {
				// stdin closed, keep following the feed
				lines = nil
				continue
			}
			if err := p.handle(ctx, line); errors.Is(err, errQuit) {
				return nil
			}
		}
	}
}
