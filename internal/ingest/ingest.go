package ingest

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/retailops/storesync/internal/db"
	"github.com/retailops/storesync/internal/types"
)

// StagingStore is the slice of the database layer ingestion needs.
type StagingStore interface {
	UpsertStagingOrder(ctx context.Context, o *db.StagingOrder) (bool, error)
}

// DroppedRow records a row that could not be staged, with the raw values so
// the operator can see exactly what the portal produced.
type DroppedRow struct {
	OrderCode string
	Reason    types.SkipReason
	Raw       types.OrderRow
}

// Result summarizes one ingestion pass over a store's extracted rows.
type Result struct {
	StoreCode     string
	Inserted      int
	Updated       int
	Resubmissions int
	Dropped       []DroppedRow

	// Staged holds the upserted rows in input order, with database-assigned
	// IDs and merged remarks, ready for publishing.
	Staged []*db.StagingOrder
}

// Ingestor lands extracted order rows in staging. Re-running the same window
// is safe: rows upsert on their natural key and remarks merge.
type Ingestor struct {
	Store         StagingStore
	PhoneFallback string
	Verbose       bool
}

// Ingest normalizes and stages every row. Rows missing the natural key are
// dropped and reported, never staged. When one run carries the same order
// twice for the same business date, the first occurrence wins and the staged
// row is flagged as a resubmission.
func (ing *Ingestor) Ingest(ctx context.Context, storeCode string, rows []types.OrderRow) (*Result, error) {
	res := &Result{StoreCode: storeCode}

	staged := make([]*db.StagingOrder, 0, len(rows))
	byKey := make(map[string]*db.StagingOrder, len(rows))

	for _, row := range rows {
		o, reason := ing.buildStagingOrder(storeCode, row)
		if o == nil {
			log.Printf("[INGEST] %s: dropping row %q (%s): booking_date=%q", storeCode, row.OrderCode, reason, row.BookingDate)
			res.Dropped = append(res.Dropped, DroppedRow{OrderCode: row.OrderCode, Reason: reason, Raw: row})
			continue
		}
		key := fmt.Sprintf("%s|%s|%s", o.StoreCode, o.OrderNo, o.BusinessDate.Format("2006-01-02"))
		if first, ok := byKey[key]; ok {
			first.Remarks = types.ParseRemarks(first.Remarks).
				Add("ingest", "", "duplicate_resubmission").Strings()
			res.Resubmissions++
			continue
		}
		byKey[key] = o
		staged = append(staged, o)
	}

	for _, o := range staged {
		inserted, err := ing.Store.UpsertStagingOrder(ctx, o)
		if err != nil {
			return res, fmt.Errorf("failed to stage order %s/%s: %w", o.StoreCode, o.OrderNo, err)
		}
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
		res.Staged = append(res.Staged, o)
	}

	if ing.Verbose {
		log.Printf("[INGEST] %s: %d inserted, %d updated, %d resubmissions, %d dropped",
			storeCode, res.Inserted, res.Updated, res.Resubmissions, len(res.Dropped))
	}
	return res, nil
}

// buildStagingOrder normalizes one raw row. A nil return means the row lacks
// its natural key and must be dropped; the reason says which part.
func (ing *Ingestor) buildStagingOrder(storeCode string, row types.OrderRow) (*db.StagingOrder, types.SkipReason) {
	orderNo := strings.TrimSpace(row.OrderCode)
	if orderNo == "" {
		return nil, types.SkipMissingNaturalKey
	}
	businessDate, err := ParseDateLenient(row.BookingDate)
	if err != nil {
		return nil, types.SkipMissingNaturalKey
	}

	var remarks types.RemarkList

	mobile, ok := NormalizePhone(row.Mobile, ing.PhoneFallback)
	if !ok && strings.TrimSpace(row.Mobile) != "" {
		remarks = remarks.Add("ingest", "mobile", fmt.Sprintf("unparseable value %q, fallback applied", row.Mobile))
	}

	o := &db.StagingOrder{
		StoreCode:    storeCode,
		OrderNo:      orderNo,
		BusinessDate: businessDate,
		CustomerName: strings.TrimSpace(row.CustomerName),
		Mobile:       mobile,
		Status:       strings.TrimSpace(row.Status),
	}

	if strings.TrimSpace(row.DueDate) != "" {
		if due, err := ParseDateLenient(row.DueDate); err == nil {
			o.DueDate = &due
		} else {
			remarks = remarks.Add("ingest", "due_date", fmt.Sprintf("unparseable value %q, cleared", row.DueDate))
		}
	}

	for _, f := range []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"gross_amount", row.GrossAmount, &o.GrossAmount},
		{"advance", row.Advance, &o.Advance},
		{"balance", row.Balance, &o.Balance},
	} {
		v, err := ParseAmount(f.raw)
		if err != nil {
			remarks = remarks.Add("ingest", f.name, err.Error())
			continue
		}
		*f.dst = v
	}

	o.Remarks = remarks.Strings()
	return o, ""
}
