package db

import (
	"time"

	"github.com/google/uuid"
)

// StoreRecord is one row of the external store registry. The engine reads it
// and never writes it.
type StoreRecord struct {
	StoreCode   string
	DisplayName string
	CostCenter  string
	SyncGroup   string
	SyncEnabled bool
	SyncConfig  []byte // raw JSON blob, validated by internal/config
}

// StagingOrder is the first-landing row for one extracted order, keyed by the
// natural business key (store_code, order_no, business_date). Re-ingesting
// the same key updates the row in place and merges remarks.
type StagingOrder struct {
	ID           int64
	StoreCode    string
	OrderNo      string
	BusinessDate time.Time
	CustomerName string
	Mobile       string
	DueDate      *time.Time
	GrossAmount  float64
	Advance      float64
	Balance      float64
	Status       string
	Remarks      []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanonicalOrder is the published cross-store row, keyed by the coarser
// (cost_center, order_no, order_date) key. Several store codes sharing one
// cost center resolve to the same canonical row.
type CanonicalOrder struct {
	ID           int64
	CostCenter   string
	OrderNo      string
	OrderDate    time.Time
	StoreCode    string
	CustomerName string
	Mobile       string
	GrossAmount  float64
	Advance      float64
	Balance      float64
	Status       string
	Pieces       int
	WeightKg     float64
	Services     []string
	Remarks      []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanonicalPayment is one published payment, linked to its canonical parent
// order.
type CanonicalPayment struct {
	ID          int64
	CostCenter  string
	OrderNo     string
	PaymentDate time.Time
	Amount      float64
	Mode        string
	ReceiptNo   string
}

// SyncLogEntry is one row of the external run-tracker table, one per
// (pipeline, store_code, from_date, to_date, run_id) window. The engine
// writes entries but does not own the schema.
type SyncLogEntry struct {
	Pipeline  string
	StoreCode string
	FromDate  time.Time
	ToDate    time.Time
	RunID     uuid.UUID
	Status    string // ok | warning | partial | failed
	Attempt   int
	Reasons   []string

	RowsDownloaded  int
	StagingInserted int
	StagingUpdated  int
	FinalInserted   int
	FinalUpdated    int
	WarningCount    int
	DroppedRows     int
}
