// Package types defines the shared row and annotation types passed between
// extraction, ingestion and publishing.
package types

// OrderRow is one order/booking as extracted from a listing page or API
// response. Field values are kept raw; normalization happens at ingest time.
type OrderRow struct {
	StoreCode    string `json:"store_code"`
	OrderCode    string `json:"order_code"`
	CustomerName string `json:"customer_name"`
	Mobile       string `json:"mobile"`
	BookingDate  string `json:"booking_date"`
	DueDate      string `json:"due_date"`
	GrossAmount  string `json:"gross_amount"`
	Advance      string `json:"advance"`
	Balance      string `json:"balance"`
	Status       string `json:"status"`
}

// LineItem is one positional line item expanded from an order detail row.
// Pointers distinguish "missing position" from an empty value.
type LineItem struct {
	Name     *string `json:"name"`
	Rate     *string `json:"rate"`
	Quantity *string `json:"quantity"`
	Weight   *string `json:"weight"`
	Service  *string `json:"service"`
}

// OrderDetailRow carries the line items fetched for a single order.
type OrderDetailRow struct {
	StoreCode string     `json:"store_code"`
	OrderCode string     `json:"order_code"`
	Items     []LineItem `json:"items"`
}

// PaymentRow is one payment/transaction record extracted for an order.
type PaymentRow struct {
	StoreCode   string `json:"store_code"`
	OrderCode   string `json:"order_code"`
	PaymentDate string `json:"payment_date"`
	Amount      string `json:"amount"`
	Mode        string `json:"mode"`
	ReceiptNo   string `json:"receipt_no"`
}

// SkipReason explains why an order/page was skipped during extraction or
// ingestion. Reasons are recorded, never thrown.
type SkipReason string

const (
	SkipDuplicateOrderCode SkipReason = "duplicate_order_code"
	SkipAuth401            SkipReason = "auth_401"
	SkipHTTPClientError    SkipReason = "http_4xx"
	SkipMissingNaturalKey  SkipReason = "missing_natural_key"
	SkipTransientExhausted SkipReason = "transient_retries_exhausted"
)

// Partial-extraction reason codes. A partial result is not an error: the
// caller still gets every row collected, and the reason says why
// completeness cannot be claimed.
const (
	PartialNonAdvancingAfterRetry = "pagination_non_advancing_after_retry"
	PartialPaginationStall        = "pagination_stall"
	PartialDeclaredTotalMismatch  = "declared_total_mismatch"
)

// SkippedCode pairs a skipped order code with its reason.
type SkippedCode struct {
	OrderCode string     `json:"order_code"`
	Reason    SkipReason `json:"reason"`
	Detail    string     `json:"detail,omitempty"`
}
