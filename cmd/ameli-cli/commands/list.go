package commands

import (
	"time"

	"ameli-konnector/internal/billstore"
	"ameli-konnector/internal/components/chrono"
	"ameli-konnector/internal/components/telemetry"
	"ameli-konnector/lib/osutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list [folder]",
	Short: "Lists the bills saved in a folder, the configured one by default.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		folder := cfg.Folder
		if len(args) > 0 {
			folder = args[0]
		}

		db, err := billstore.OpenDB(cfg.Database)
		if err != nil {
			osutil.Fatal("failed to open db", err)
		}
		defer db.Close()

		saved, err := billstore.NewStore(db, chrono.NewStandardImpl(), telemetry.SlogAPI{}).List(cmd.Context(), folder)
		if err != nil {
			osutil.Fatal("failed to list bills", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Date", "Beneficiary", "Subtype", "Amount", "Identifiers", "File"})
		for _, b := range saved {
			t.AppendRow(table.Row{
				b.Date.Format(time.DateOnly),
				b.Beneficiary,
				b.Subtype,
				b.Amount.StringFixed(2),
				b.Identifiers,
				b.FileURL,
			})
		}
		t.Render()
	},
}
