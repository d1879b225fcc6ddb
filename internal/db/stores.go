package db

import (
	"context"
	"fmt"
)

// ListEligibleStores returns registry rows with syncing enabled, optionally
// filtered by sync group and an explicit store-code subset.
func (db *DB) ListEligibleStores(ctx context.Context, syncGroup string, storeCodes []string) ([]StoreRecord, error) {
	query := `SELECT store_code, display_name, cost_center, sync_group, sync_enabled, sync_config
		FROM stores WHERE sync_enabled = TRUE`
	args := []any{}
	argNum := 1

	if syncGroup != "" {
		query += fmt.Sprintf(" AND sync_group = $%d", argNum)
		args = append(args, syncGroup)
		argNum++
	}
	if len(storeCodes) > 0 {
		query += fmt.Sprintf(" AND store_code = ANY($%d)", argNum)
		args = append(args, storeCodes)
	}
	query += " ORDER BY store_code"

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}
	defer rows.Close()

	var stores []StoreRecord
	for rows.Next() {
		var s StoreRecord
		if err := rows.Scan(&s.StoreCode, &s.DisplayName, &s.CostCenter, &s.SyncGroup, &s.SyncEnabled, &s.SyncConfig); err != nil {
			return nil, fmt.Errorf("failed to scan store: %w", err)
		}
		stores = append(stores, s)
	}
	return stores, nil
}
