package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/retailops/storesync/internal/config"
	"github.com/retailops/storesync/internal/pipeline"
	"github.com/retailops/storesync/internal/session"
)

var syncOrdersCmd = &cobra.Command{
	Use:   "sync-orders",
	Short: "Sync orders by walking each store's rendered listing pages",
	Long:  "Sync orders for a date window by logging into each eligible store portal, walking the paginated order listing in the browser, and landing the rows in staging and canonical tables.",
	RunE:  runSyncOrders,
}

var ordersFlags syncFlags

func init() {
	addSyncFlags(syncOrdersCmd, &ordersFlags)
	rootCmd.AddCommand(syncOrdersCmd)
}

func runSyncOrders(cmd *cobra.Command, args []string) error {
	return runSync(cmd, &ordersFlags, "orders", func(cfg config.Config, sessions *session.Store) pipeline.Extractor {
		return &pipeline.DOMExtractor{
			Sessions:    sessions,
			PageTimeout: time.Duration(cfg.PageTimeoutSecs) * time.Second,
			Verbose:     cfg.Verbose,
		}
	})
}
