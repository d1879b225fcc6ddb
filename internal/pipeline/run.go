// Package pipeline orchestrates one sync run: store selection, session
// bootstrap, extraction, ingestion and publishing, with one sync-log row
// per store window.
package pipeline

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/retailops/storesync/internal/config"
	"github.com/retailops/storesync/internal/db"
	"github.com/retailops/storesync/internal/extract"
	"github.com/retailops/storesync/internal/ingest"
	"github.com/retailops/storesync/internal/publish"
	"github.com/retailops/storesync/internal/types"
)

// Store statuses in a run summary and the sync log.
const (
	StatusOK      = "ok"
	StatusWarning = "warning"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// maxConcurrentStores bounds parallel browser sessions.
const maxConcurrentStores = 3

// Registry is the slice of the database layer the orchestrator needs
// directly; staging and canonical access go through the ingestor and
// publisher.
type Registry interface {
	ListEligibleStores(ctx context.Context, syncGroup string, storeCodes []string) ([]db.StoreRecord, error)
	UpsertSyncLog(ctx context.Context, e *db.SyncLogEntry) error
}

// Options selects what one run covers.
type Options struct {
	Pipeline   string // sync-log pipeline name, e.g. "orders" or "sales"
	SyncGroup  string
	StoreCodes []string // optional explicit subset
	FromDate   time.Time
	ToDate     time.Time
	RunID      uuid.UUID
}

// StoreSummary is the outcome for one store. Err is recorded, never
// propagated: one store's failure must not stop its siblings.
type StoreSummary struct {
	StoreCode string
	Status    string
	Reasons   []string
	Err       error

	RowsDownloaded  int
	StagingInserted int
	StagingUpdated  int
	FinalInserted   int
	FinalUpdated    int
	WarningCount    int
	DroppedRows     int
	Attempt         int
}

// RunSummary aggregates a whole run.
type RunSummary struct {
	RunID    uuid.UUID
	Pipeline string
	FromDate time.Time
	ToDate   time.Time
	Stores   []StoreSummary
}

// Failed reports how many stores did not complete.
func (s *RunSummary) Failed() int {
	n := 0
	for _, st := range s.Stores {
		if st.Status == StatusFailed {
			n++
		}
	}
	return n
}

// Runner wires the stages together. The extractor owns all browser work;
// ingestor and publisher own all database writes.
type Runner struct {
	DB        Registry
	Extractor Extractor
	Ingestor  *ingest.Ingestor
	Publisher *publish.Publisher
	Verbose   bool
}

// Run executes the pipeline for every eligible store. Stores run in
// parallel with a concurrency bound; each store's stages run strictly in
// order. The returned error covers run-level problems only (no eligible
// stores, registry unreachable) — per-store failures land in the summary.
func (r *Runner) Run(ctx context.Context, opts Options) (*RunSummary, error) {
	stores, err := r.DB.ListEligibleStores(ctx, opts.SyncGroup, opts.StoreCodes)
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{
		RunID:    opts.RunID,
		Pipeline: opts.Pipeline,
		FromDate: opts.FromDate,
		ToDate:   opts.ToDate,
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentStores)
	for _, rec := range stores {
		rec := rec
		g.Go(func() error {
			st := r.runStore(gctx, rec, opts)
			mu.Lock()
			summary.Stores = append(summary.Stores, st)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(summary.Stores, func(i, j int) bool {
		return summary.Stores[i].StoreCode < summary.Stores[j].StoreCode
	})
	return summary, nil
}

func (r *Runner) runStore(ctx context.Context, rec db.StoreRecord, opts Options) StoreSummary {
	st := StoreSummary{StoreCode: rec.StoreCode}

	fail := func(err error) StoreSummary {
		log.Printf("[RUN] %s: %v", rec.StoreCode, err)
		st.Status = StatusFailed
		st.Err = err
		st.Reasons = append(st.Reasons, err.Error())
		r.writeSyncLog(ctx, &st, opts)
		return st
	}

	store, err := config.ParseSyncConfig(rec.StoreCode, rec.DisplayName, rec.CostCenter, rec.SyncGroup, rec.SyncConfig)
	if err != nil {
		return fail(err)
	}

	rc := extract.NewRunContext(opts.RunID, opts.FromDate, opts.ToDate)
	res, err := r.Extractor.Extract(ctx, store, rc)
	if err != nil {
		return fail(err)
	}
	st.RowsDownloaded = len(res.BaseRows)

	ingRes, err := r.Ingestor.Ingest(ctx, store.StoreCode, res.BaseRows)
	if err != nil {
		return fail(err)
	}
	st.StagingInserted = ingRes.Inserted
	st.StagingUpdated = ingRes.Updated
	st.DroppedRows = len(ingRes.Dropped)

	pubRes, err := r.Publisher.Publish(ctx, store.StoreCode, store.CostCenter,
		ingRes.Staged, res.DetailRows, res.PaymentRows)
	if err != nil {
		return fail(err)
	}
	st.FinalInserted = pubRes.OrdersInserted + pubRes.PaymentsInserted
	st.FinalUpdated = pubRes.OrdersUpdated + pubRes.PaymentsUpdated

	st.WarningCount = len(res.Warnings) + len(pubRes.Warnings)
	st.Status, st.Reasons = storeStatus(res, st.WarningCount, st.DroppedRows)
	r.writeSyncLog(ctx, &st, opts)

	if r.Verbose {
		log.Printf("[RUN] %s: %s (%d rows, %d warnings)", store.StoreCode, st.Status, st.RowsDownloaded, st.WarningCount)
	}
	return st
}

// storeStatus maps a completed store's diagnostics to its sync-log status.
// A partial extraction or any warning always demotes the status: ok means
// clean.
func storeStatus(res *extract.Result, warnings, dropped int) (string, []string) {
	var reasons []string
	if res.PartialExtraction {
		reasons = append(reasons, res.PartialReason)
	}
	for _, reason := range distinctSkipReasons(res.Skipped) {
		reasons = append(reasons, string(reason))
	}
	switch {
	case res.PartialExtraction:
		return StatusPartial, reasons
	case warnings > 0 || dropped > 0 || len(res.Skipped) > 0:
		return StatusWarning, reasons
	default:
		return StatusOK, reasons
	}
}

func distinctSkipReasons(skipped []types.SkippedCode) []types.SkipReason {
	seen := make(map[types.SkipReason]bool)
	var out []types.SkipReason
	for _, s := range skipped {
		if !seen[s.Reason] {
			seen[s.Reason] = true
			out = append(out, s.Reason)
		}
	}
	return out
}

// writeSyncLog records the store outcome. A failed write is logged and
// swallowed: the data work already committed and must not be reported as
// failed because the tracker was unreachable.
func (r *Runner) writeSyncLog(ctx context.Context, st *StoreSummary, opts Options) {
	entry := &db.SyncLogEntry{
		Pipeline:        opts.Pipeline,
		StoreCode:       st.StoreCode,
		FromDate:        opts.FromDate,
		ToDate:          opts.ToDate,
		RunID:           opts.RunID,
		Status:          st.Status,
		Reasons:         st.Reasons,
		RowsDownloaded:  st.RowsDownloaded,
		StagingInserted: st.StagingInserted,
		StagingUpdated:  st.StagingUpdated,
		FinalInserted:   st.FinalInserted,
		FinalUpdated:    st.FinalUpdated,
		WarningCount:    st.WarningCount,
		DroppedRows:     st.DroppedRows,
	}
	if err := r.DB.UpsertSyncLog(ctx, entry); err != nil {
		log.Printf("[RUN] %s: failed to write sync log: %v", st.StoreCode, err)
		return
	}
	st.Attempt = entry.Attempt
}
