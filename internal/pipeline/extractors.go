package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/retailops/storesync/internal/config"
	"github.com/retailops/storesync/internal/extract"
	"github.com/retailops/storesync/internal/session"
)

// defaultNextSelector matches the next-page controls the supported portals
// render. Stores needing something else set urls.listing to a pre-filtered
// view instead.
const defaultNextSelector = `a.paginate_button.next, .pagination .next a, li.next a`

// Extractor bootstraps a store's session and pulls its rows for the run
// window. Implementations own the browser lifecycle.
type Extractor interface {
	Extract(ctx context.Context, store *config.StoreConfig, rc *extract.RunContext) (*extract.Result, error)
}

// DOMExtractor drives the rendered-HTML path: log in, open the listing,
// walk the paginated table.
type DOMExtractor struct {
	Sessions    *session.Store
	PageTimeout time.Duration
	MaxPages    int
	Verbose     bool
}

func (e *DOMExtractor) Extract(ctx context.Context, store *config.StoreConfig, rc *extract.RunContext) (*extract.Result, error) {
	bctx, cancel := session.NewBrowserContext(ctx)
	defer cancel()

	boot := &session.Bootstrap{Sessions: e.Sessions, Timeout: e.PageTimeout, Verbose: e.Verbose}
	if _, err := boot.Run(bctx, store); err != nil {
		return nil, err
	}

	listing := store.URLs.Listing
	if listing == "" {
		listing = store.URLs.Home
	}
	if err := extract.OpenListing(bctx, listing, e.PageTimeout); err != nil {
		return nil, fmt.Errorf("store %s: failed to open listing: %w", store.StoreCode, err)
	}

	pager := &extract.BrowserPager{NextSelector: defaultNextSelector, Timeout: e.PageTimeout}
	return extract.ExtractDOM(bctx, store.StoreCode, pager, rc, extract.DOMOptions{
		MaxPages: e.MaxPages,
		Verbose:  e.Verbose,
	})
}

// APIExtractor drives the JSON path: log in (the API reuses the portal
// session's bearer token), then page through the authenticated endpoint.
type APIExtractor struct {
	Sessions    *session.Store
	HTTP        *http.Client
	PageTimeout time.Duration
	MaxPages    int
	Verbose     bool
}

func (e *APIExtractor) Extract(ctx context.Context, store *config.StoreConfig, rc *extract.RunContext) (*extract.Result, error) {
	if store.URLs.API == "" {
		return nil, fmt.Errorf("store %s: no api url configured", store.StoreCode)
	}

	bctx, cancel := session.NewBrowserContext(ctx)
	defer cancel()

	boot := &session.Bootstrap{Sessions: e.Sessions, Timeout: e.PageTimeout, Verbose: e.Verbose}
	if _, err := boot.Run(bctx, store); err != nil {
		return nil, err
	}

	httpClient := e.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	client := &extract.APIClient{
		HTTP:    httpClient,
		Tokens:  extract.StorageTokenResolver{},
		Browser: extract.ChromeFetcher{Timeout: e.PageTimeout},
	}
	return extract.ExtractAPI(bctx, client, store.StoreCode, rc, extract.APIOptions{
		BaseURL:  store.URLs.API,
		MaxPages: e.MaxPages,
		Verbose:  e.Verbose,
	})
}
