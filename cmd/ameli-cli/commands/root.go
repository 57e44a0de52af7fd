package commands

import (
	"context"
	"fmt"
	"os"

	"ameli-konnector/internal/components/telemetry"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	debug      *bool
	configPath *string
)

func init() {
	debug = rootCmd.PersistentFlags().Bool("debug", false, "Enables debug logs.")
	configPath = rootCmd.PersistentFlags().String("config", "config.json5", "The config to read the account from.")
}

var rootCmd = &cobra.Command{
	Use:   "ameli-cli",
	Short: "ameli-cli retrieves the health reimbursements of an ameli.fr account.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*debug)
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
