package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// UpsertStagingOrder inserts or updates one staging row on its natural key.
// The uniqueness constraint on (store_code, order_no, business_date) is the
// sole mechanism preventing duplicate rows; remarks from the incoming row are
// merged into any existing ones, never replacing them. Returns whether a new
// row was created.
func (db *DB) UpsertStagingOrder(ctx context.Context, o *StagingOrder) (bool, error) {
	var inserted bool
	err := db.pool.QueryRow(ctx,
		`INSERT INTO staging_orders (store_code, order_no, business_date, customer_name, mobile,
		                             due_date, gross_amount, advance, balance, status, remarks)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (store_code, order_no, business_date) DO UPDATE SET
		     customer_name = EXCLUDED.customer_name,
		     mobile = EXCLUDED.mobile,
		     due_date = EXCLUDED.due_date,
		     gross_amount = EXCLUDED.gross_amount,
		     advance = EXCLUDED.advance,
		     balance = EXCLUDED.balance,
		     status = EXCLUDED.status,
		     remarks = (SELECT COALESCE(array_agg(DISTINCT r), '{}')
		                FROM unnest(COALESCE(staging_orders.remarks, '{}') || EXCLUDED.remarks) AS r),
		     updated_at = NOW()
		 RETURNING id, created_at, updated_at, (xmax = 0)`,
		o.StoreCode, o.OrderNo, o.BusinessDate, o.CustomerName, o.Mobile,
		o.DueDate, o.GrossAmount, o.Advance, o.Balance, o.Status, o.Remarks,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt, &inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert staging order %s/%s: %w", o.StoreCode, o.OrderNo, err)
	}
	return inserted, nil
}

// FindStagingByOrderNo locates a staging row by store and order number alone,
// used by the publish linker when a child row's parent was staged by an
// earlier run but never published. Returns the most recently updated match.
func (db *DB) FindStagingByOrderNo(ctx context.Context, storeCode, orderNo string) (*StagingOrder, error) {
	var o StagingOrder
	err := db.pool.QueryRow(ctx,
		`SELECT id, store_code, order_no, business_date, customer_name, mobile,
		        due_date, gross_amount, advance, balance, status, remarks, created_at, updated_at
		 FROM staging_orders
		 WHERE store_code = $1 AND order_no = $2
		 ORDER BY updated_at DESC LIMIT 1`,
		storeCode, orderNo,
	).Scan(&o.ID, &o.StoreCode, &o.OrderNo, &o.BusinessDate, &o.CustomerName, &o.Mobile,
		&o.DueDate, &o.GrossAmount, &o.Advance, &o.Balance, &o.Status, &o.Remarks, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find staging order: %w", err)
	}
	return &o, nil
}
