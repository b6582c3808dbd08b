package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// set via ldflags
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "console",
		Short:         "Kamoa belt supervision console",
		Long:          "Files belt status reports, follows the live report feed and prints shift reports.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup()
		},
	}

	cmd.PersistentFlags().StringVar(&a.envPath, "env", "", "path to a .env file")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newUnitsCmd(a))
	cmd.AddCommand(newFaultsCmd(a))
	cmd.AddCommand(newReportCmd(a))
	cmd.AddCommand(newHistoryCmd(a))
	cmd.AddCommand(newWatchCmd(a))
	cmd.AddCommand(newQueueCmd(a))
	cmd.AddCommand(newShiftReportCmd(a))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "console %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

// execute runs the command tree and releases what setup opened, whether
// the command failed or not.
func execute(a *app, args ...string) int {
	defer a.close()

	cmd := newRootCmd(a)
	if args != nil {
		cmd.SetArgs(args)
	}
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(&app{}))
}
