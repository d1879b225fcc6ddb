package observability

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/retailops/storesync/internal/pipeline"
)

func TestPrintRunSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	summary := &pipeline.RunSummary{
		RunID:    uuid.New(),
		Pipeline: "orders",
		FromDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		ToDate:   time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC),
		Stores: []pipeline.StoreSummary{
			{StoreCode: "BLR01", Status: pipeline.StatusOK, RowsDownloaded: 42, StagingInserted: 40, StagingUpdated: 2},
			{StoreCode: "BLR02", Status: pipeline.StatusPartial, RowsDownloaded: 10, WarningCount: 1,
				Reasons: []string{"pagination_non_advancing_after_retry"}},
			{StoreCode: "BLR03", Status: pipeline.StatusFailed, Reasons: []string{"login failed"}},
		},
	}

	p.PrintRunSummary(summary)
	output := buf.String()

	assert.Contains(t, output, "SYNC RUN SUMMARY")
	assert.Contains(t, output, "orders")
	assert.Contains(t, output, "2026-03-01 to 2026-03-07")
	assert.Contains(t, output, "BLR01")
	assert.Contains(t, output, "OK")
	assert.Contains(t, output, "PARTIAL")
	assert.Contains(t, output, "pagination_non_advancing_after_ret")
	assert.Contains(t, output, "1 of 3 stores failed")
}

func TestPrintRunSummaryNil(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintRunSummary(nil)
	assert.Empty(t, buf.String())
}
