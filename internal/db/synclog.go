package db

import (
	"context"
	"fmt"
)

// UpsertSyncLog records the outcome of one (pipeline, store, window, run).
// The attempt number counts prior entries for the same window across runs,
// so re-running a window increments it. Entry.Attempt is filled in.
func (db *DB) UpsertSyncLog(ctx context.Context, e *SyncLogEntry) error {
	err := db.pool.QueryRow(ctx,
		`INSERT INTO sync_logs (pipeline, store_code, from_date, to_date, run_id, status, attempt, reasons,
		                        rows_downloaded, staging_inserted, staging_updated,
		                        final_inserted, final_updated, warning_count, dropped_rows)
		 VALUES ($1, $2, $3, $4, $5, $6,
		         (SELECT COALESCE(MAX(attempt), 0) + 1 FROM sync_logs
		          WHERE pipeline = $1 AND store_code = $2 AND from_date = $3 AND to_date = $4),
		         $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (pipeline, store_code, from_date, to_date, run_id) DO UPDATE SET
		     status = EXCLUDED.status,
		     reasons = EXCLUDED.reasons,
		     rows_downloaded = EXCLUDED.rows_downloaded,
		     staging_inserted = EXCLUDED.staging_inserted,
		     staging_updated = EXCLUDED.staging_updated,
		     final_inserted = EXCLUDED.final_inserted,
		     final_updated = EXCLUDED.final_updated,
		     warning_count = EXCLUDED.warning_count,
		     dropped_rows = EXCLUDED.dropped_rows,
		     updated_at = NOW()
		 RETURNING attempt`,
		e.Pipeline, e.StoreCode, e.FromDate, e.ToDate, e.RunID, e.Status, e.Reasons,
		e.RowsDownloaded, e.StagingInserted, e.StagingUpdated,
		e.FinalInserted, e.FinalUpdated, e.WarningCount, e.DroppedRows,
	).Scan(&e.Attempt)
	if err != nil {
		return fmt.Errorf("failed to upsert sync log for %s %s: %w", e.Pipeline, e.StoreCode, err)
	}
	return nil
}
