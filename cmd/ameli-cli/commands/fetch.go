package commands

import (
	"log/slog"
	"time"

	"ameli-konnector/internal/ameli"
	"ameli-konnector/internal/bills"
	"ameli-konnector/internal/billstore"
	"ameli-konnector/internal/components/chrono"
	"ameli-konnector/internal/components/telemetry"
	"ameli-konnector/internal/konnector"
	"ameli-konnector/lib/configutil"
	"ameli-konnector/lib/osutil"
	libtelemetry "ameli-konnector/lib/telemetry"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type Config struct {
	Login          string `json:"login"`
	Password       string `json:"password"`
	BankIdentifier string `json:"bank_identifier"`
	Folder         string `json:"folder"`
	// Database is a sqlite file path or a libsql url.
	Database          string  `json:"database"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	DumpMessages      bool    `json:"dump_messages"`
	DumpDir           string  `json:"dump_dir"`
}

var dryRun *bool

func init() {
	dryRun = fetchCmd.Flags().Bool("dry-run", false, "Prints the records without saving them.")
	rootCmd.AddCommand(fetchCmd)
}

func readConfig() Config {
	cfg, err := configutil.ReadConfig[Config](*configPath)
	if err != nil {
		osutil.Fatal("failed to read config", err)
	}
	if cfg.Folder == "" {
		cfg.Folder = "/Administratif/Ameli"
	}
	if cfg.Database == "" {
		cfg.Database = "bills.db"
	}
	return cfg
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [--dry-run]",
	Short: "Fetches the reimbursements of the last months and saves them as bills.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg := readConfig()

		libtelemetry.InstrumentPerfStats(ctx, 5*time.Second)

		fields := konnector.Fields{
			Login:          cfg.Login,
			Password:       cfg.Password,
			BankIdentifier: cfg.BankIdentifier,
			FolderPath:     cfg.Folder,
		}
		session := ameli.SessionOptions{
			RequestsPerSecond: cfg.RequestsPerSecond,
			DumpMessages:      cfg.DumpMessages,
			DumpDir:           cfg.DumpDir,
		}
		clock := chrono.NewStandardImpl()
		tel := telemetry.SlogAPI{}

		slog.Info("fetching reimbursements", "login", ameli.NormalizeLogin(cfg.Login))
		t1 := time.Now()

		if *dryRun {
			records, err := konnector.NewKonnector(session, nil, clock, tel).Run(ctx, fields)
			if err != nil {
				osutil.Fatal("failed to fetch reimbursements", err)
			}
			printRecords(records)
			slog.Info("fetching time", "seconds", time.Since(t1).Seconds())
			return
		}

		db, err := billstore.OpenDB(cfg.Database)
		if err != nil {
			osutil.Fatal("failed to open db", err)
		}
		defer db.Close()

		store := billstore.NewStore(db, clock, tel)
		records, res, err := konnector.NewKonnector(session, store, clock, tel).FetchAndSave(ctx, fields)
		if err != nil {
			osutil.Fatal("failed to fetch reimbursements", err)
		}
		printRecords(records)
		slog.Info(
			"saved bills",
			"inserted", res.Inserted,
			"skipped", res.Skipped,
			"seconds", time.Since(t1).Seconds(),
		)
	},
}

func printRecords(records []bills.BillingRecord) {
	t := newTable()
	t.AppendHeader(table.Row{"Date", "Beneficiary", "Subtype", "Amount", "Original date", "Original amount", "Third party", "File"})
	for _, r := range records {
		original := ""
		if r.OriginalAmount != nil {
			original = r.OriginalAmount.StringFixed(2)
		}
		t.AppendRow(table.Row{
			r.Date.Format(time.DateOnly),
			r.Beneficiary,
			r.Subtype,
			r.Amount.StringFixed(2),
			r.OriginalDate.Format(time.DateOnly),
			original,
			r.IsThirdPartyPayer,
			r.Filename,
		})
	}
	t.AppendFooter(table.Row{"", "", "", len(records)})
	t.Render()
}
