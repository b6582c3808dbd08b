package main

import (
	"fmt"

	"github.com/nimasrn/kamoa-supervision/internal/session"
	"github.com/spf13/cobra"
)

func newQueueCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and reconcile reports kept locally",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List reports waiting in the local queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := a.queue.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "local queue is empty")
				return nil
			}
			for i, r := range items {
				fmt.Fprintf(out, "%d. %s %s %s\n%s\n\n", i+1, r.CreatedAt, r.UnitID, r.ClientRef, r.RawMessage)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "flush",
		Short: "Resubmit queued reports in order; each leaves the queue once stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := session.Flush(cmd.Context(), a.queue, a.submitter())
			fmt.Fprintf(cmd.OutOrStdout(), "stored %d, still queued %d\n", res.Persisted, res.Remaining)
			return err
		},
	})
	return cmd
}
