// Package main provides the entry point for the storesync CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "storesync",
	Short: "Store portal synchronization engine",
	Long:  "storesync logs into retail store portals with persisted browser sessions, extracts order and payment data page by page, and lands it idempotently in staging and canonical tables.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
