package extract

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"github.com/retailops/storesync/internal/types"
)

// Pager abstracts one paginated listing surface: the current page's rendered
// HTML and the action advancing to the next page. The production
// implementation drives a browser tab; tests substitute canned pages.
type Pager interface {
	HTML(ctx context.Context) (string, error)
	Next(ctx context.Context) error
}

// DOMOptions configures DOM-mode extraction.
type DOMOptions struct {
	// MaxPages is a safety bound against endless paginators. Hitting it
	// stops extraction with a pagination_stall partial flag.
	MaxPages int
	Verbose  bool
}

// DefaultMaxPages bounds a single extraction run.
const DefaultMaxPages = 200

// ExtractDOM crawls a rendered listing table page by page. Every advance is
// checked against the page signature; a non-advancing "next" is retried
// exactly once, then extraction stops early with the partial flag set. The
// caller always gets the rows collected up to the stop.
func ExtractDOM(ctx context.Context, storeCode string, pager Pager, rc *RunContext, opts DOMOptions) (*Result, error) {
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	res := NewResult(storeCode)

	html, err := pager.HTML(ctx)
	if err != nil {
		return res, fmt.Errorf("store %s: failed to read listing page: %w", storeCode, err)
	}

	for {
		page, err := ParseListingPage(html, storeCode)
		if err != nil {
			res.MarkPartial(types.PartialPaginationStall)
			res.Warn("page %d unparseable: %v", res.PageCount+1, err)
			break
		}
		res.PageCount++

		for _, row := range page.Rows {
			if !rc.MarkSeen(row.OrderCode) {
				res.Skip(row.OrderCode, types.SkipDuplicateOrderCode, "")
				continue
			}
			res.BaseRows = append(res.BaseRows, row)
		}
		if opts.Verbose {
			log.Printf("[EXTRACT] %s: page %d, %d rows", storeCode, res.PageCount, len(page.Rows))
		}

		if page.HasFooter {
			res.DeclaredTotal = page.Footer.Total
			if page.Footer.LastPage() {
				break
			}
		}
		if len(page.Rows) == 0 {
			break
		}
		if res.PageCount >= maxPages {
			res.MarkPartial(types.PartialPaginationStall)
			res.Warn("page limit %d reached before listing end", maxPages)
			break
		}

		nextHTML, advanced, err := advancePage(ctx, pager, page.Signature)
		if err != nil {
			res.MarkPartial(types.PartialPaginationStall)
			res.Warn("advance failed on page %d: %v", res.PageCount, err)
			break
		}
		if !advanced {
			res.MarkPartial(types.PartialNonAdvancingAfterRetry)
			break
		}
		html = nextHTML
	}

	res.CheckDeclaredTotal()
	return res, nil
}

// advancePage performs the page-advance check: click next, compare the page
// signature against the previous page's. An unchanged signature gets exactly
// one retry; still unchanged means the listing cannot be proven to advance.
func advancePage(ctx context.Context, pager Pager, before PageSignature) (string, bool, error) {
	for attempt := 1; attempt <= advanceAttempts; attempt++ {
		if err := pager.Next(ctx); err != nil {
			return "", false, err
		}
		html, err := pager.HTML(ctx)
		if err != nil {
			return "", false, err
		}
		if sig := SignatureOf(html); !sig.Equal(before) {
			return html, true, nil
		}
	}
	return "", false, nil
}

// ListingPage is one parsed page of the order listing table.
type ListingPage struct {
	Rows      []types.OrderRow
	Signature PageSignature
	Footer    FooterRange
	HasFooter bool
}

// ParseListingPage parses a rendered listing page. Columns are located by
// header text, so column reordering in the portal does not break extraction.
func ParseListingPage(html, storeCode string) (*ListingPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	headers := headerIndex(doc)
	orderCol := columnFor(headers, "order", "booking no", "bill")
	if orderCol < 0 {
		return nil, fmt.Errorf("no order-number column found")
	}
	customerCol := columnFor(headers, "customer", "name")
	mobileCol := columnFor(headers, "mobile", "phone", "contact")
	bookingCol := columnFor(headers, "booking date", "order date", "date")
	dueCol := columnFor(headers, "due", "delivery")
	amountCol := columnFor(headers, "amount", "gross", "total")
	advanceCol := columnFor(headers, "advance", "paid")
	balanceCol := columnFor(headers, "balance", "pending")
	statusCol := columnFor(headers, "status")

	page := &ListingPage{}
	doc.Find("table tbody tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td").Map(func(_ int, td *goquery.Selection) string {
			return strings.TrimSpace(td.Text())
		})
		code := cellAt(cells, orderCol)
		if code == "" {
			return
		}
		page.Rows = append(page.Rows, types.OrderRow{
			StoreCode:    storeCode,
			OrderCode:    code,
			CustomerName: cellAt(cells, customerCol),
			Mobile:       cellAt(cells, mobileCol),
			BookingDate:  cellAt(cells, bookingCol),
			DueDate:      cellAt(cells, dueCol),
			GrossAmount:  cellAt(cells, amountCol),
			Advance:      cellAt(cells, advanceCol),
			Balance:      cellAt(cells, balanceCol),
			Status:       cellAt(cells, statusCol),
		})
	})

	page.Signature = signatureFromDoc(doc)
	if page.Signature.FirstRowID == "" && len(page.Rows) > 0 {
		page.Signature.FirstRowID = page.Rows[0].OrderCode
	}
	if fr, ok := ParseFooterRange(footerText(doc)); ok {
		page.Footer = fr
		page.HasFooter = true
	}
	return page, nil
}

// SignatureOf computes only the page signature, used by the advance check
// where full row parsing would be wasted work.
func SignatureOf(html string) PageSignature {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return PageSignature{}
	}
	return signatureFromDoc(doc)
}

func signatureFromDoc(doc *goquery.Document) PageSignature {
	sig := PageSignature{
		FirstRowID:    strings.TrimSpace(doc.Find("table tbody tr").First().Find("td").First().Text()),
		PageIndicator: strings.TrimSpace(doc.Find(".pagination .active, .pagination li.active, .page-current").First().Text()),
	}
	if fr, ok := ParseFooterRange(footerText(doc)); ok {
		sig.FooterRange = fmt.Sprintf("%d-%d/%d", fr.From, fr.To, fr.Total)
	}
	return sig
}

func footerText(doc *goquery.Document) string {
	text := doc.Find(".dataTables_info, .pagination-info, tfoot").Text()
	if strings.TrimSpace(text) == "" {
		text = doc.Find("body").Text()
	}
	return text
}

// headerIndex maps normalized header text to column position.
func headerIndex(doc *goquery.Document) []string {
	var headers []string
	doc.Find("table thead th").Each(func(_ int, th *goquery.Selection) {
		headers = append(headers, strings.ToLower(strings.TrimSpace(th.Text())))
	})
	return headers
}

// columnFor finds the first header containing any keyword, in keyword
// priority order. Returns -1 when no header matches.
func columnFor(headers []string, keywords ...string) int {
	for _, kw := range keywords {
		for i, h := range headers {
			if strings.Contains(h, kw) {
				return i
			}
		}
	}
	return -1
}

func cellAt(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return cells[i]
}

// BrowserPager is the chromedp-backed Pager used in production. Next clicks
// the portal's next-page control and waits briefly for the table re-render.
type BrowserPager struct {
	NextSelector string
	Settle       time.Duration
	Timeout      time.Duration
}

func (p *BrowserPager) settle() time.Duration {
	if p.Settle > 0 {
		return p.Settle
	}
	return 2 * time.Second
}

func (p *BrowserPager) timeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return 30 * time.Second
}

// HTML returns the tab's current rendered HTML.
func (p *BrowserPager) HTML(ctx context.Context) (string, error) {
	opCtx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	var html string
	if err := chromedp.Run(opCtx, chromedp.OuterHTML("html", &html)); err != nil {
		return "", fmt.Errorf("failed to read page HTML: %w", err)
	}
	return html, nil
}

// Next clicks the next-page control.
func (p *BrowserPager) Next(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	return chromedp.Run(opCtx,
		chromedp.Click(p.NextSelector, chromedp.NodeVisible),
		chromedp.Sleep(p.settle()),
	)
}

// OpenListing navigates the tab to the listing URL and waits for the table.
func OpenListing(ctx context.Context, listingURL string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return chromedp.Run(opCtx,
		chromedp.Navigate(listingURL),
		chromedp.WaitReady("table"),
	)
}
