package ingest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailops/storesync/internal/db"
	"github.com/retailops/storesync/internal/types"
)

// fakeStaging mimics the upsert semantics of the staging table: unique on
// the natural key, remarks merged on conflict.
type fakeStaging struct {
	rows    map[string]*db.StagingOrder
	upserts int
}

func newFakeStaging() *fakeStaging {
	return &fakeStaging{rows: make(map[string]*db.StagingOrder)}
}

func (f *fakeStaging) key(o *db.StagingOrder) string {
	return fmt.Sprintf("%s|%s|%s", o.StoreCode, o.OrderNo, o.BusinessDate.Format("2006-01-02"))
}

func (f *fakeStaging) UpsertStagingOrder(_ context.Context, o *db.StagingOrder) (bool, error) {
	f.upserts++
	k := f.key(o)
	existing, ok := f.rows[k]
	if !ok {
		cp := *o
		f.rows[k] = &cp
		return true, nil
	}
	merged := mergeStrings(existing.Remarks, o.Remarks)
	cp := *o
	cp.Remarks = merged
	f.rows[k] = &cp
	return false, nil
}

func mergeStrings(a, b []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			out = append(out, s)
			seen[s] = true
		}
	}
	return out
}

func row(orderNo, bookingDate string) types.OrderRow {
	return types.OrderRow{
		OrderCode:    orderNo,
		CustomerName: " Asha Rao ",
		Mobile:       "+91 98765 43210",
		BookingDate:  bookingDate,
		DueDate:      "10/03/2026",
		GrossAmount:  "1,200.50",
		Advance:      "500",
		Balance:      "700.50",
		Status:       "Ready",
	}
}

func TestIngestHappyPath(t *testing.T) {
	store := newFakeStaging()
	ing := &Ingestor{Store: store, PhoneFallback: "9999999999"}

	res, err := ing.Ingest(context.Background(), "BLR01", []types.OrderRow{
		row("ORD-1", "07/03/2026"),
		row("ORD-2", "07/03/2026"),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 0, res.Updated)
	assert.Empty(t, res.Dropped)

	o := store.rows["BLR01|ORD-1|2026-03-07"]
	require.NotNil(t, o)
	assert.Equal(t, "Asha Rao", o.CustomerName)
	assert.Equal(t, "9876543210", o.Mobile)
	assert.Equal(t, 1200.50, o.GrossAmount)
	assert.Equal(t, 500.0, o.Advance)
	assert.Equal(t, 700.50, o.Balance)
	require.NotNil(t, o.DueDate)
	assert.Empty(t, o.Remarks)
}

func TestIngestDropsRowsMissingNaturalKey(t *testing.T) {
	store := newFakeStaging()
	ing := &Ingestor{Store: store, PhoneFallback: "9999999999"}

	noCode := row("", "07/03/2026")
	noDate := row("ORD-9", "soon")

	res, err := ing.Ingest(context.Background(), "BLR01", []types.OrderRow{noCode, noDate, row("ORD-3", "07/03/2026")})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Inserted)
	require.Len(t, res.Dropped, 2)
	assert.Equal(t, types.SkipMissingNaturalKey, res.Dropped[0].Reason)
	assert.Equal(t, types.SkipMissingNaturalKey, res.Dropped[1].Reason)
	assert.Equal(t, "ORD-9", res.Dropped[1].OrderCode)
	// raw values survive for diagnosis
	assert.Equal(t, "soon", res.Dropped[1].Raw.BookingDate)
}

func TestIngestBadFieldsBecomeRemarks(t *testing.T) {
	store := newFakeStaging()
	ing := &Ingestor{Store: store, PhoneFallback: "9999999999"}

	r := row("ORD-4", "07/03/2026")
	r.Mobile = "call shop"
	r.DueDate = "whenever"
	r.GrossAmount = "n/a"

	res, err := ing.Ingest(context.Background(), "BLR01", []types.OrderRow{r})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)

	o := store.rows["BLR01|ORD-4|2026-03-07"]
	require.NotNil(t, o)
	assert.Equal(t, "9999999999", o.Mobile)
	assert.Nil(t, o.DueDate)
	assert.Equal(t, 0.0, o.GrossAmount)

	parsed := types.ParseRemarks(o.Remarks)
	require.Len(t, parsed, 3)
	fields := []string{parsed[0].Field, parsed[1].Field, parsed[2].Field}
	assert.Contains(t, fields, "mobile")
	assert.Contains(t, fields, "due_date")
	assert.Contains(t, fields, "gross_amount")
}

func TestIngestInRunResubmissionFirstWins(t *testing.T) {
	store := newFakeStaging()
	ing := &Ingestor{Store: store, PhoneFallback: "9999999999"}

	first := row("ORD-5", "07/03/2026")
	second := row("ORD-5", "07/03/2026")
	second.Status = "Delivered" // later occurrence must not win

	res, err := ing.Ingest(context.Background(), "BLR01", []types.OrderRow{first, second})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Resubmissions)
	assert.Equal(t, 1, store.upserts)

	o := store.rows["BLR01|ORD-5|2026-03-07"]
	require.NotNil(t, o)
	assert.Equal(t, "Ready", o.Status)
	assert.Contains(t, o.Remarks, "[ingest] duplicate_resubmission")
}

func TestIngestSameOrderDifferentDateIsSeparateRow(t *testing.T) {
	store := newFakeStaging()
	ing := &Ingestor{Store: store, PhoneFallback: "9999999999"}

	res, err := ing.Ingest(context.Background(), "BLR01", []types.OrderRow{
		row("ORD-6", "07/03/2026"),
		row("ORD-6", "09/03/2026"),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 0, res.Resubmissions)
}

func TestIngestReRunIsIdempotent(t *testing.T) {
	store := newFakeStaging()
	ing := &Ingestor{Store: store, PhoneFallback: "9999999999"}

	rows := []types.OrderRow{row("ORD-7", "07/03/2026")}

	res1, err := ing.Ingest(context.Background(), "BLR01", rows)
	require.NoError(t, err)
	assert.Equal(t, 1, res1.Inserted)

	res2, err := ing.Ingest(context.Background(), "BLR01", rows)
	require.NoError(t, err)
	assert.Equal(t, 0, res2.Inserted)
	assert.Equal(t, 1, res2.Updated)
	assert.Len(t, store.rows, 1)
}
