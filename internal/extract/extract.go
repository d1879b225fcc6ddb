// Package extract implements the paginated extraction engines. Two modes
// share one stall-detection contract: DOM-driven pagination over a rendered
// table, and authenticated JSON API pagination.
package extract

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/retailops/storesync/internal/types"
)

// RunContext carries per-run mutable state for one store task: the dedup set
// of seen order codes and the debug-logged-once set. It is created per store
// per run; concurrent store tasks never share one.
type RunContext struct {
	RunID    uuid.UUID
	FromDate time.Time
	ToDate   time.Time

	seenCodes map[string]bool
	debugOnce map[string]bool
}

// NewRunContext creates a fresh per-run context.
func NewRunContext(runID uuid.UUID, from, to time.Time) *RunContext {
	return &RunContext{
		RunID:     runID,
		FromDate:  from,
		ToDate:    to,
		seenCodes: make(map[string]bool),
		debugOnce: make(map[string]bool),
	}
}

// MarkSeen records an order code and reports whether this is its first
// appearance in the run.
func (rc *RunContext) MarkSeen(code string) bool {
	if rc.seenCodes[code] {
		return false
	}
	rc.seenCodes[code] = true
	return true
}

// SeenCount returns the number of distinct order codes recorded so far.
func (rc *RunContext) SeenCount() int {
	return len(rc.seenCodes)
}

// DebugOnce reports whether the given key has not been logged yet, marking it
// logged. Used to keep per-store debug output to one line per condition.
func (rc *RunContext) DebugOnce(key string) bool {
	if rc.debugOnce[key] {
		return false
	}
	rc.debugOnce[key] = true
	return true
}

// Result is the run-scoped aggregate of one extraction: base rows, child
// rows, and diagnostics. It is owned by exactly one extraction run and
// discarded after ingestion commits.
type Result struct {
	StoreCode string

	BaseRows    []types.OrderRow
	DetailRows  []types.OrderDetailRow
	PaymentRows []types.PaymentRow

	Skipped       []types.SkippedCode
	PageCount     int
	DeclaredTotal int

	// PartialExtraction marks a deliberate early stop; the rows collected
	// before the stop are still valid and ingested.
	PartialExtraction bool
	PartialReason     string

	Warnings []string
}

// NewResult creates an empty result for a store.
func NewResult(storeCode string) *Result {
	return &Result{StoreCode: storeCode}
}

// Skip records a skipped order code with its reason.
func (r *Result) Skip(code string, reason types.SkipReason, detail string) {
	r.Skipped = append(r.Skipped, types.SkippedCode{OrderCode: code, Reason: reason, Detail: detail})
}

// Warn records a diagnostic warning.
func (r *Result) Warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// MarkPartial flags the result as a deliberate early stop. The first reason
// wins; later stops do not overwrite it.
func (r *Result) MarkPartial(reason string) {
	if !r.PartialExtraction {
		r.PartialExtraction = true
		r.PartialReason = reason
	}
}

// CheckDeclaredTotal cross-checks the declared total against rows actually
// collected. Any mismatch warns; when rows plus recorded skips cannot account
// for the declared total, the result is additionally flagged partial with the
// mismatch code (an earlier stop reason is kept).
func (r *Result) CheckDeclaredTotal() {
	if r.DeclaredTotal <= 0 || r.DeclaredTotal == len(r.BaseRows) {
		return
	}
	r.Warn("declared total %d does not match %d rows collected", r.DeclaredTotal, len(r.BaseRows))
	if len(r.BaseRows)+len(r.Skipped) < r.DeclaredTotal {
		r.MarkPartial(types.PartialDeclaredTotalMismatch)
	}
}
