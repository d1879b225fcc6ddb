package extract

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailops/storesync/internal/types"
)

func listingHTML(footer string, rows ...[2]string) string {
	var b strings.Builder
	b.WriteString(`<html><body><table><thead><tr>` +
		`<th>Order No</th><th>Customer Name</th><th>Mobile</th>` +
		`<th>Booking Date</th><th>Due Date</th><th>Amount</th>` +
		`<th>Advance</th><th>Balance</th><th>Status</th>` +
		`</tr></thead><tbody>`)
	for _, r := range rows {
		fmt.Fprintf(&b, `<tr><td>%s</td><td>%s</td><td>98765 43210</td>`+
			`<td>01-03-2026</td><td>05-03-2026</td><td>1200</td>`+
			`<td>500</td><td>700</td><td>Received</td></tr>`, r[0], r[1])
	}
	b.WriteString(`</tbody></table>`)
	if footer != "" {
		fmt.Fprintf(&b, `<div class="dataTables_info">%s</div>`, footer)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

type fakePager struct {
	pages     []string
	idx       int
	nextCalls int
	advances  bool
}

func (p *fakePager) HTML(context.Context) (string, error) {
	return p.pages[p.idx], nil
}

func (p *fakePager) Next(context.Context) error {
	p.nextCalls++
	if p.advances && p.idx < len(p.pages)-1 {
		p.idx++
	}
	return nil
}

func newRunContext() *RunContext {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return NewRunContext(uuid.New(), from, from.AddDate(0, 0, 7))
}

func TestParseListingPage(t *testing.T) {
	html := listingHTML("Showing 1 to 2 of 5", [2]string{"ORD-001", "Asha"}, [2]string{"ORD-002", "Ravi"})

	page, err := ParseListingPage(html, "BLN01")
	require.NoError(t, err)

	require.Len(t, page.Rows, 2)
	assert.Equal(t, "ORD-001", page.Rows[0].OrderCode)
	assert.Equal(t, "Asha", page.Rows[0].CustomerName)
	assert.Equal(t, "BLN01", page.Rows[0].StoreCode)
	assert.Equal(t, "01-03-2026", page.Rows[0].BookingDate)

	assert.True(t, page.HasFooter)
	assert.Equal(t, 5, page.Footer.Total)
	assert.False(t, page.Footer.LastPage())
	assert.Equal(t, "ORD-001", page.Signature.FirstRowID)
}

func TestParseListingPage_NoOrderColumn(t *testing.T) {
	_, err := ParseListingPage(`<table><thead><tr><th>Foo</th></tr></thead></table>`, "BLN01")
	assert.Error(t, err)
}

func TestExtractDOM_MultiPage(t *testing.T) {
	pager := &fakePager{
		advances: true,
		pages: []string{
			listingHTML("Showing 1 to 2 of 4", [2]string{"ORD-001", "Asha"}, [2]string{"ORD-002", "Ravi"}),
			listingHTML("Showing 3 to 4 of 4", [2]string{"ORD-003", "Meera"}, [2]string{"ORD-004", "Dev"}),
		},
	}

	res, err := ExtractDOM(context.Background(), "BLN01", pager, newRunContext(), DOMOptions{})
	require.NoError(t, err)

	assert.Len(t, res.BaseRows, 4)
	assert.Equal(t, 2, res.PageCount)
	assert.Equal(t, 4, res.DeclaredTotal)
	assert.False(t, res.PartialExtraction)
	assert.Empty(t, res.Warnings)
}

func TestExtractDOM_StallAfterRetry(t *testing.T) {
	// The signature never changes after "next": the engine must perform
	// exactly 2 advance attempts (original + 1 retry), then stop early with
	// the partial flag and the non-advancing reason.
	pager := &fakePager{
		pages: []string{listingHTML("", [2]string{"ORD-001", "Asha"}, [2]string{"ORD-002", "Ravi"})},
	}

	res, err := ExtractDOM(context.Background(), "BLN01", pager, newRunContext(), DOMOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, pager.nextCalls)
	assert.True(t, res.PartialExtraction)
	assert.Equal(t, types.PartialNonAdvancingAfterRetry, res.PartialReason)
	assert.Len(t, res.BaseRows, 2)
}

func TestExtractDOM_DuplicateCodesSkipped(t *testing.T) {
	pager := &fakePager{
		advances: true,
		pages: []string{
			listingHTML("Showing 1 to 2 of 3", [2]string{"ORD-001", "Asha"}, [2]string{"ORD-002", "Ravi"}),
			listingHTML("Showing 3 to 3 of 3", [2]string{"ORD-002", "Ravi"}),
		},
	}

	res, err := ExtractDOM(context.Background(), "BLN01", pager, newRunContext(), DOMOptions{})
	require.NoError(t, err)

	assert.Len(t, res.BaseRows, 2)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "ORD-002", res.Skipped[0].OrderCode)
	assert.Equal(t, types.SkipDuplicateOrderCode, res.Skipped[0].Reason)
	// Declared total counted the duplicate, so the cross-check warns.
	assert.Len(t, res.Warnings, 1)
}

func TestExtractDOM_DeclaredTotalMismatchWarns(t *testing.T) {
	pager := &fakePager{
		pages: []string{listingHTML("Showing 1 to 1 of 9", [2]string{"ORD-001", "Asha"})},
	}
	// Footer claims 9 but says 1-to-1 is not the last page; the single page
	// yields one row and the stalled advance ends the run.
	res, err := ExtractDOM(context.Background(), "BLN01", pager, newRunContext(), DOMOptions{})
	require.NoError(t, err)

	assert.True(t, res.PartialExtraction)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "declared total 9")
	// the stall was detected first, so its reason is kept
	assert.Equal(t, types.PartialNonAdvancingAfterRetry, res.PartialReason)
}

func TestExtractDOM_UnderCollectionFlagsDeclaredTotalMismatch(t *testing.T) {
	// Footer claims this is the last page of 5, but only 2 rows rendered and
	// nothing was skipped: the shortfall has no explanation, so the run is
	// flagged with the mismatch code.
	pager := &fakePager{
		pages: []string{listingHTML("Showing 1 to 5 of 5",
			[2]string{"ORD-001", "Asha"}, [2]string{"ORD-002", "Ravi"})},
	}

	res, err := ExtractDOM(context.Background(), "BLN01", pager, newRunContext(), DOMOptions{})
	require.NoError(t, err)

	assert.Len(t, res.BaseRows, 2)
	assert.True(t, res.PartialExtraction)
	assert.Equal(t, types.PartialDeclaredTotalMismatch, res.PartialReason)
}

func TestParseFooterRange(t *testing.T) {
	tests := []struct {
		text  string
		want  FooterRange
		found bool
	}{
		{"Showing 1 to 25 of 1,204", FooterRange{1, 25, 1204}, true},
		{"showing 26 to 50 of 100 entries", FooterRange{26, 50, 100}, true},
		{"1 to 10 of 10", FooterRange{1, 10, 10}, true},
		{"no pagination here", FooterRange{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ParseFooterRange(tt.text)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFooterRange_LastPage(t *testing.T) {
	assert.True(t, FooterRange{From: 91, To: 100, Total: 100}.LastPage())
	assert.False(t, FooterRange{From: 1, To: 25, Total: 100}.LastPage())
}
