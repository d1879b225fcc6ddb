package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// UpsertCanonicalOrder inserts or updates one canonical row on the coarse
// (cost_center, order_no, order_date) key. Protected fields — customer
// identity and financial totals already present — are preserved unless the
// incoming value is non-blank, so a later pass cannot blank out known data.
// Returns whether a new row was created.
func (db *DB) UpsertCanonicalOrder(ctx context.Context, o *CanonicalOrder) (bool, error) {
	var inserted bool
	err := db.pool.QueryRow(ctx,
		`INSERT INTO canonical_orders (cost_center, order_no, order_date, store_code, customer_name,
		                               mobile, gross_amount, advance, balance, status, remarks)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (cost_center, order_no, order_date) DO UPDATE SET
		     store_code = COALESCE(NULLIF(EXCLUDED.store_code, ''), canonical_orders.store_code),
		     customer_name = COALESCE(NULLIF(EXCLUDED.customer_name, ''), canonical_orders.customer_name),
		     mobile = COALESCE(NULLIF(EXCLUDED.mobile, ''), canonical_orders.mobile),
		     gross_amount = CASE WHEN EXCLUDED.gross_amount <> 0 THEN EXCLUDED.gross_amount
		                         ELSE canonical_orders.gross_amount END,
		     advance = CASE WHEN EXCLUDED.advance <> 0 THEN EXCLUDED.advance
		                    ELSE canonical_orders.advance END,
		     balance = CASE WHEN EXCLUDED.balance <> 0 THEN EXCLUDED.balance
		                    ELSE canonical_orders.balance END,
		     status = COALESCE(NULLIF(EXCLUDED.status, ''), canonical_orders.status),
		     remarks = (SELECT COALESCE(array_agg(DISTINCT r), '{}')
		                FROM unnest(COALESCE(canonical_orders.remarks, '{}') || EXCLUDED.remarks) AS r),
		     updated_at = NOW()
		 RETURNING id, created_at, updated_at, (xmax = 0)`,
		o.CostCenter, o.OrderNo, o.OrderDate, o.StoreCode, o.CustomerName,
		o.Mobile, o.GrossAmount, o.Advance, o.Balance, o.Status, o.Remarks,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt, &inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert canonical order %s/%s: %w", o.CostCenter, o.OrderNo, err)
	}
	return inserted, nil
}

// FindCanonicalByOrderNo locates a canonical row by cost center and order
// number alone, used by the publish linker to resolve child rows that carry
// no order date. Returns nil when absent.
func (db *DB) FindCanonicalByOrderNo(ctx context.Context, costCenter, orderNo string) (*CanonicalOrder, error) {
	var o CanonicalOrder
	err := db.pool.QueryRow(ctx,
		`SELECT id, cost_center, order_no, order_date, store_code, customer_name, mobile,
		        gross_amount, advance, balance, status, pieces, weight_kg, services, remarks,
		        created_at, updated_at
		 FROM canonical_orders
		 WHERE cost_center = $1 AND order_no = $2
		 ORDER BY order_date DESC LIMIT 1`,
		costCenter, orderNo,
	).Scan(&o.ID, &o.CostCenter, &o.OrderNo, &o.OrderDate, &o.StoreCode, &o.CustomerName, &o.Mobile,
		&o.GrossAmount, &o.Advance, &o.Balance, &o.Status, &o.Pieces, &o.WeightKg, &o.Services, &o.Remarks,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find canonical order: %w", err)
	}
	return &o, nil
}

// ApplyOrderAggregates writes the per-order line-item aggregates and merges
// publish-stage remarks onto an existing canonical row.
func (db *DB) ApplyOrderAggregates(ctx context.Context, id int64, pieces int, weightKg float64, services, remarks []string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE canonical_orders SET
		     pieces = $2,
		     weight_kg = $3,
		     services = $4,
		     remarks = (SELECT COALESCE(array_agg(DISTINCT r), '{}')
		                FROM unnest(COALESCE(remarks, '{}') || $5::text[]) AS r),
		     updated_at = NOW()
		 WHERE id = $1`,
		id, pieces, weightKg, services, remarks,
	)
	if err != nil {
		return fmt.Errorf("failed to apply order aggregates: %w", err)
	}
	return nil
}

// UpsertCanonicalPayment publishes one payment against its canonical parent.
// Idempotent on (cost_center, order_no, payment_date, receipt_no).
func (db *DB) UpsertCanonicalPayment(ctx context.Context, p *CanonicalPayment) (bool, error) {
	var inserted bool
	err := db.pool.QueryRow(ctx,
		`INSERT INTO canonical_payments (cost_center, order_no, payment_date, amount, mode, receipt_no)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (cost_center, order_no, payment_date, receipt_no) DO UPDATE SET
		     amount = EXCLUDED.amount,
		     mode = EXCLUDED.mode
		 RETURNING id, (xmax = 0)`,
		p.CostCenter, p.OrderNo, p.PaymentDate, p.Amount, p.Mode, p.ReceiptNo,
	).Scan(&p.ID, &inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert payment %s/%s: %w", p.CostCenter, p.OrderNo, err)
	}
	return inserted, nil
}
