package main

import (
	"fmt"

	"github.com/nimasrn/kamoa-supervision/internal/model"
	"github.com/spf13/cobra"
)

func newUnitsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "units",
		Short: "List monitored units",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := readCtx(cmd.Context())
			defer cancel()

			units, err := a.api.Units(ctx)
			if err != nil {
				return fmt.Errorf("load units: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, u := range units {
				if u.Label != nil && *u.Label != "" {
					fmt.Fprintf(out, "%s\t%s\n", u.UnitID, *u.Label)
					continue
				}
				fmt.Fprintln(out, u.UnitID)
			}
			return nil
		},
	}
}

func newFaultsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "faults",
		Short: "Browse and extend the fault library",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFaultsList(cmd, a)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List known faults by category",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFaultsList(cmd, a)
		},
	})
	cmd.AddCommand(newFaultsAddCmd(a))
	return cmd
}

func runFaultsList(cmd *cobra.Command, a *app) error {
	ctx, cancel := readCtx(cmd.Context())
	defer cancel()

	groups, err := a.api.Faults(ctx)
	if err != nil {
		return fmt.Errorf("load fault library: %w", err)
	}
	out := cmd.OutOrStdout()
	for _, g := range groups {
		fmt.Fprintf(out, "[%s]\n", g.Category)
		for _, f := range g.Faults {
			fmt.Fprintf(out, "  %d\t%s\n", f.ID, f.Description)
		}
	}
	return nil
}

func newFaultsAddCmd(a *app) *cobra.Command {
	var (
		category string
		desc     string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a fault description to the library",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := readCtx(cmd.Context())
			defer cancel()

			f, err := a.api.CreateFault(ctx, model.FaultCreateRequest{
				Category:    model.FaultCategory(category),
				Description: desc,
			})
			if err != nil {
				return fmt.Errorf("add fault: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %d [%s] %s\n", f.ID, f.Category, f.Description)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", string(model.FaultCategorySafety), "Safety, Mechanical, Electrical or Planned")
	cmd.Flags().StringVar(&desc, "desc", "", "fault description")
	_ = cmd.MarkFlagRequired("desc")
	return cmd
}
