// Command tecal converts TimeEdit schedule exports into files calendar
// applications can import, dropping the sessions you don't attend.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	appLog "tecal/internal/log"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
)

// Build information (set via ldflags during build)
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		appLog.Error("tecal failed", err)
		cancel()
		os.Exit(ExitError)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tecal",
		Short: "Convert TimeEdit exports into calendar imports",
		Long: `tecal reads a TimeEdit CSV export, filters out the sessions you
don't attend and writes a CSV Google Calendar can import (and optionally
an .ics file).

Examples:
  # Convert everything
  tecal convert schema.csv -o calendar.csv

  # Only lab group A for labs, everything else untouched
  tecal convert schema.csv --within undervisningstyp=Laboration --keep information="Grupp A"

  # Use the rules in a config file
  tecal convert --config tecal.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newConvertCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tecal %s (%s)\n", version, commit)
		},
	}
}
