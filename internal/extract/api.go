package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/retailops/storesync/internal/types"
)

// BrowserFetcher issues a request from inside the authenticated browser
// context, so the portal's cookies and session apply. Used as the one
// fallback when a direct API call comes back unauthorized.
type BrowserFetcher interface {
	Fetch(ctx context.Context, url string) (status int, body []byte, err error)
}

// APIOptions configures API-mode extraction.
type APIOptions struct {
	BaseURL     string
	PageSize    int
	MaxAttempts int           // transient retry budget per request
	Backoff     time.Duration // linear backoff unit
	MaxPages    int
	Verbose     bool
}

func (o *APIOptions) pageSize() int {
	if o.PageSize > 0 {
		return o.PageSize
	}
	return 100
}

func (o *APIOptions) maxAttempts() int {
	if o.MaxAttempts > 0 {
		return o.MaxAttempts
	}
	return 3
}

func (o *APIOptions) backoff() time.Duration {
	if o.Backoff > 0 {
		return o.Backoff
	}
	return 2 * time.Second
}

func (o *APIOptions) maxPages() int {
	if o.MaxPages > 0 {
		return o.MaxPages
	}
	return DefaultMaxPages
}

// APIClient fetches a store's order listing through its authenticated JSON
// API.
type APIClient struct {
	HTTP    *http.Client
	Tokens  TokenResolver
	Browser BrowserFetcher
}

// flexString accepts JSON strings or bare numbers; the portal's API is not
// consistent about which it sends for money fields.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	*f = flexString(strings.Trim(string(b), `"`))
	return nil
}

type apiPage struct {
	Total  int        `json:"total"`
	Page   int        `json:"page"`
	Orders []apiOrder `json:"orders"`
}

type apiOrder struct {
	OrderNo      string       `json:"order_no"`
	CustomerName string       `json:"customer_name"`
	Mobile       string       `json:"mobile"`
	BookingDate  string       `json:"booking_date"`
	DueDate      string       `json:"due_date"`
	GrossAmount  flexString   `json:"gross_amount"`
	Advance      flexString   `json:"advance"`
	Balance      flexString   `json:"balance"`
	Status       string       `json:"status"`
	ItemNames    string       `json:"item_names"`
	ItemRates    string       `json:"item_rates"`
	ItemQty      string       `json:"item_qty"`
	ItemWeights  string       `json:"item_weights"`
	ItemServices string       `json:"item_services"`
	Payments     []apiPayment `json:"payments"`
}

type apiPayment struct {
	Date      string     `json:"date"`
	Amount    flexString `json:"amount"`
	Mode      string     `json:"mode"`
	ReceiptNo string     `json:"receipt_no"`
}

// ExtractAPI crawls the store's JSON listing API page by page under the same
// stall-detection contract as DOM mode: an unchanged page signature after
// requesting the next page is retried exactly once, then extraction stops
// early with the partial flag.
func ExtractAPI(ctx context.Context, c *APIClient, storeCode string, rc *RunContext, opts APIOptions) (*Result, error) {
	res := NewResult(storeCode)

	token := ""
	if c.Tokens != nil {
		t, err := c.Tokens.ResolveSessionToken(ctx)
		if err != nil {
			if rc.DebugOnce("token_resolve_failed") {
				log.Printf("[EXTRACT] %s: token resolution failed, relying on browser fallback: %v", storeCode, err)
			}
		} else {
			token = t
		}
	}

	prevSig := ""
	page := 1
	consecutiveSkips := 0
	for {
		pageURL := apiPageURL(opts.BaseURL, storeCode, rc.FromDate, rc.ToDate, page, opts.pageSize())

		body, stop := c.fetchPage(ctx, res, rc, pageURL, token, &opts)
		if stop {
			break
		}
		if body == nil {
			// terminal non-401 client error for this page only
			consecutiveSkips++
			if consecutiveSkips >= 3 {
				res.MarkPartial(types.PartialPaginationStall)
				res.Warn("%d consecutive pages skipped, stopping", consecutiveSkips)
				break
			}
			page++
			continue
		}
		consecutiveSkips = 0

		var pg apiPage
		if err := json.Unmarshal(body, &pg); err != nil {
			res.MarkPartial(types.PartialPaginationStall)
			res.Warn("page %d: unparseable API response: %v", page, err)
			break
		}
		res.PageCount++
		if pg.Total > 0 {
			res.DeclaredTotal = pg.Total
		}

		sig := apiPageSignature(pg)
		if page > 1 && sig == prevSig && sig != "" {
			// retry the advance exactly once
			body, stop = c.fetchPage(ctx, res, rc, pageURL, token, &opts)
			if stop {
				break
			}
			retried := apiPage{}
			if body == nil || json.Unmarshal(body, &retried) != nil || apiPageSignature(retried) == prevSig {
				res.MarkPartial(types.PartialNonAdvancingAfterRetry)
				break
			}
			pg = retried
			sig = apiPageSignature(pg)
		}

		collectAPIOrders(res, rc, storeCode, pg.Orders)
		if opts.Verbose {
			log.Printf("[EXTRACT] %s: api page %d, %d orders", storeCode, page, len(pg.Orders))
		}

		if len(pg.Orders) == 0 {
			break
		}
		if pg.Total > 0 && rc.SeenCount() >= pg.Total {
			break
		}
		if res.PageCount >= opts.maxPages() {
			res.MarkPartial(types.PartialPaginationStall)
			res.Warn("page limit %d reached before declared total", opts.maxPages())
			break
		}
		prevSig = sig
		page++
	}

	res.CheckDeclaredTotal()
	return res, nil
}

// fetchPage retrieves one API page with the retry/fallback policy. A nil
// body with stop=false means the page was skipped (terminal 4xx); stop=true
// means extraction must end.
func (c *APIClient) fetchPage(ctx context.Context, res *Result, rc *RunContext, url, token string, opts *APIOptions) (body []byte, stop bool) {
	status, body, err := c.get(ctx, url, token, opts)
	if err != nil {
		res.Skip(url, types.SkipTransientExhausted, err.Error())
		res.MarkPartial(string(types.SkipTransientExhausted))
		return nil, true
	}

	if status == http.StatusUnauthorized {
		// One fallback: issue the same request from inside the browser
		// context so its cookies apply.
		if c.Browser != nil {
			if rc.DebugOnce("auth_fallback") {
				log.Printf("[EXTRACT] %s: direct API call unauthorized, falling back to in-browser fetch", res.StoreCode)
			}
			bStatus, bBody, bErr := c.Browser.Fetch(ctx, url)
			if bErr == nil && bStatus >= 200 && bStatus < 300 {
				return bBody, false
			}
		}
		res.Skip(url, types.SkipAuth401, "unauthorized after browser fallback")
		res.MarkPartial(string(types.SkipAuth401))
		return nil, true
	}

	if status >= 200 && status < 300 {
		return body, false
	}

	// Other 4xx: terminal for this page, recorded, never retried.
	res.Skip(url, types.SkipHTTPClientError, fmt.Sprintf("HTTP %d", status))
	return nil, false
}

// get performs a direct HTTP request, retrying 5xx/429 and transport errors
// with linear backoff up to the attempt budget.
func (c *APIClient) get(ctx context.Context, url, token string, opts *APIOptions) (int, []byte, error) {
	client := c.HTTP
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	var lastErr error
	for attempt := 1; attempt <= opts.maxAttempts(); attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return 0, nil, ctx.Err()
			case <-time.After(time.Duration(attempt-1) * opts.backoff()):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Accept", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
			continue
		}
		return resp.StatusCode, body, nil
	}
	return 0, nil, fmt.Errorf("request failed after %d attempts: %w", opts.maxAttempts(), lastErr)
}

func collectAPIOrders(res *Result, rc *RunContext, storeCode string, orders []apiOrder) {
	for _, o := range orders {
		if o.OrderNo == "" {
			continue
		}
		if !rc.MarkSeen(o.OrderNo) {
			res.Skip(o.OrderNo, types.SkipDuplicateOrderCode, "")
			continue
		}

		res.BaseRows = append(res.BaseRows, types.OrderRow{
			StoreCode:    storeCode,
			OrderCode:    o.OrderNo,
			CustomerName: o.CustomerName,
			Mobile:       o.Mobile,
			BookingDate:  o.BookingDate,
			DueDate:      o.DueDate,
			GrossAmount:  string(o.GrossAmount),
			Advance:      string(o.Advance),
			Balance:      string(o.Balance),
			Status:       o.Status,
		})

		if items := ExpandParallelLists(o.ItemNames, o.ItemRates, o.ItemQty, o.ItemWeights, o.ItemServices); len(items) > 0 {
			res.DetailRows = append(res.DetailRows, types.OrderDetailRow{
				StoreCode: storeCode,
				OrderCode: o.OrderNo,
				Items:     items,
			})
		}
		for _, p := range o.Payments {
			res.PaymentRows = append(res.PaymentRows, types.PaymentRow{
				StoreCode:   storeCode,
				OrderCode:   o.OrderNo,
				PaymentDate: p.Date,
				Amount:      string(p.Amount),
				Mode:        p.Mode,
				ReceiptNo:   p.ReceiptNo,
			})
		}
	}
}

func apiPageSignature(pg apiPage) string {
	if len(pg.Orders) == 0 {
		return "page:" + strconv.Itoa(pg.Page)
	}
	return pg.Orders[0].OrderNo + "@" + strconv.Itoa(pg.Page)
}

func apiPageURL(base, storeCode string, from, to time.Time, page, size int) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%sstore=%s&from=%s&to=%s&page=%d&size=%d",
		base, sep, storeCode, from.Format("2006-01-02"), to.Format("2006-01-02"), page, size)
}

// ChromeFetcher is the production BrowserFetcher: it runs fetch() inside the
// store's authenticated tab.
type ChromeFetcher struct {
	Timeout time.Duration
}

func (f ChromeFetcher) timeout() time.Duration {
	if f.Timeout > 0 {
		return f.Timeout
	}
	return 30 * time.Second
}

// Fetch issues the request from the page context with credentials included.
func (f ChromeFetcher) Fetch(ctx context.Context, url string) (int, []byte, error) {
	opCtx, cancel := context.WithTimeout(ctx, f.timeout())
	defer cancel()

	script := fmt.Sprintf(
		`fetch(%q, {credentials: "include"}).then(r => r.text().then(t => ({status: r.status, body: t})))`,
		url,
	)
	var out struct {
		Status int    `json:"status"`
		Body   string `json:"body"`
	}
	err := chromedp.Run(opCtx, chromedp.Evaluate(script, &out,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}))
	if err != nil {
		return 0, nil, fmt.Errorf("in-browser fetch failed: %w", err)
	}
	return out.Status, []byte(out.Body), nil
}
