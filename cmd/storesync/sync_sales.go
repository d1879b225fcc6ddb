package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/retailops/storesync/internal/config"
	"github.com/retailops/storesync/internal/pipeline"
	"github.com/retailops/storesync/internal/session"
)

var syncSalesCmd = &cobra.Command{
	Use:   "sync-sales",
	Short: "Sync sales and payments through each store's JSON API",
	Long:  "Sync sales for a date window by logging into each eligible store portal, paging through its authenticated JSON API with the session's bearer token, and landing orders, line items and payments.",
	RunE:  runSyncSales,
}

var salesFlags syncFlags

func init() {
	addSyncFlags(syncSalesCmd, &salesFlags)
	rootCmd.AddCommand(syncSalesCmd)
}

func runSyncSales(cmd *cobra.Command, args []string) error {
	return runSync(cmd, &salesFlags, "sales", func(cfg config.Config, sessions *session.Store) pipeline.Extractor {
		return &pipeline.APIExtractor{
			Sessions:    sessions,
			PageTimeout: time.Duration(cfg.PageTimeoutSecs) * time.Second,
			Verbose:     cfg.Verbose,
		}
	})
}
