package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/retailops/storesync/internal/config"
	"github.com/retailops/storesync/internal/db"
	"github.com/retailops/storesync/internal/ingest"
	"github.com/retailops/storesync/internal/observability"
	"github.com/retailops/storesync/internal/pipeline"
	"github.com/retailops/storesync/internal/publish"
	"github.com/retailops/storesync/internal/session"
)

// syncFlags are the flags shared by the sync subcommands.
type syncFlags struct {
	fromDate    string
	toDate      string
	runID       string
	envFile     string
	configPath  string
	databaseURL string
	syncGroup   string
	stores      []string
	verbose     bool
}

func addSyncFlags(cmd *cobra.Command, f *syncFlags) {
	cmd.Flags().StringVar(&f.fromDate, "from-date", "", "Window start, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&f.toDate, "to-date", "", "Window end, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&f.runID, "run-id", "", "Run identifier (UUID); generated when omitted")
	cmd.Flags().StringVar(&f.envFile, "env", "", "Path to an additional .env file to load")
	cmd.Flags().StringVar(&f.configPath, "config", "", "Path to a JSON config file")
	cmd.Flags().StringVar(&f.databaseURL, "database-url", "", "PostgreSQL connection URL (overrides env/config)")
	cmd.Flags().StringVar(&f.syncGroup, "sync-group", "", "Only stores in this sync group")
	cmd.Flags().StringSliceVar(&f.stores, "stores", nil, "Only these store codes")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Verbose output with a run summary")

	cmd.MarkFlagRequired("from-date")
	cmd.MarkFlagRequired("to-date")
}

// loadConfig assembles the effective config: flags win over file values,
// file values win over the environment.
func loadConfig(f *syncFlags) (config.Config, error) {
	if f.envFile != "" {
		if err := godotenv.Load(f.envFile); err != nil {
			return config.Config{}, fmt.Errorf("failed to load env file %s: %w", f.envFile, err)
		}
	}

	cfg := config.FromEnv()
	if f.configPath != "" {
		fileCfg, err := config.LoadConfig(f.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = fileCfg.MergeWithDefaults(cfg)
	} else {
		cfg = cfg.MergeWithDefaults(config.Config{})
	}
	if f.databaseURL != "" {
		cfg.DatabaseURL = f.databaseURL
	}
	if f.verbose {
		cfg.Verbose = true
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	if cfg.DatabaseURL == "" {
		return config.Config{}, fmt.Errorf("no database URL: set --database-url or STORESYNC_DATABASE_URL")
	}
	return cfg, nil
}

func parseWindow(f *syncFlags) (from, to time.Time, runID uuid.UUID, err error) {
	from, err = time.Parse("2006-01-02", f.fromDate)
	if err != nil {
		return from, to, runID, fmt.Errorf("invalid --from-date %q: %w", f.fromDate, err)
	}
	to, err = time.Parse("2006-01-02", f.toDate)
	if err != nil {
		return from, to, runID, fmt.Errorf("invalid --to-date %q: %w", f.toDate, err)
	}
	if to.Before(from) {
		return from, to, runID, fmt.Errorf("--to-date is before --from-date")
	}
	if f.runID != "" {
		runID, err = uuid.Parse(f.runID)
		if err != nil {
			return from, to, runID, fmt.Errorf("invalid --run-id %q: %w", f.runID, err)
		}
	} else {
		runID = uuid.New()
	}
	return from, to, runID, nil
}

// runSync executes one pipeline over the selected stores. Per-store
// failures are reported in the summary and do not affect the exit code;
// only run-level problems return an error.
func runSync(cmd *cobra.Command, f *syncFlags, pipelineName string,
	mkExtractor func(cfg config.Config, sessions *session.Store) pipeline.Extractor) error {

	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	from, to, runID, err := parseWindow(f)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	sessions, err := session.NewStore(cfg.SessionDir, cfg.SessionKey)
	if err != nil {
		return err
	}

	runner := &pipeline.Runner{
		DB:        database,
		Extractor: mkExtractor(cfg, sessions),
		Ingestor:  &ingest.Ingestor{Store: database, PhoneFallback: cfg.PhoneFallback, Verbose: cfg.Verbose},
		Publisher: &publish.Publisher{Store: database, CoverageMinimum: cfg.CoverageMinimum, Verbose: cfg.Verbose},
		Verbose:   cfg.Verbose,
	}

	summary, err := runner.Run(ctx, pipeline.Options{
		Pipeline:   pipelineName,
		SyncGroup:  f.syncGroup,
		StoreCodes: f.stores,
		FromDate:   from,
		ToDate:     to,
		RunID:      runID,
	})
	if err != nil {
		return err
	}
	if len(summary.Stores) == 0 {
		return fmt.Errorf("no eligible stores matched the selection")
	}

	if cfg.Verbose {
		observability.NewPrinter(os.Stdout).PrintRunSummary(summary)
	} else if failed := summary.Failed(); failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d stores failed; see sync log for run %s\n",
			failed, len(summary.Stores), runID)
	}
	return nil
}
