package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
)

// Cookie is the serialized form of one browser cookie. Kept as our own type
// so persisted blobs survive cdproto upgrades.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	Secure   bool    `json:"secure"`
	HTTPOnly bool    `json:"http_only"`
	SameSite string  `json:"same_site,omitempty"`
}

// State is the persisted browser session for one store: cookies plus
// per-origin local-storage entries. One State belongs to exactly one store
// code and is never merged across stores.
type State struct {
	StoreCode    string                       `json:"store_code"`
	SavedAt      time.Time                    `json:"saved_at"`
	Cookies      []Cookie                     `json:"cookies"`
	LocalStorage map[string]map[string]string `json:"local_storage"` // origin -> key -> value
}

// Origin extracts the scheme://host origin from a page URL.
func Origin(pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("invalid URL %q", pageURL)
	}
	return parsed.Scheme + "://" + parsed.Host, nil
}

// CaptureState reads the current browser context's cookies and the current
// origin's local storage into a State. The tab must already be on an
// authenticated page of the store's portal.
func CaptureState(ctx context.Context, storeCode, pageURL string) (*State, error) {
	origin, err := Origin(pageURL)
	if err != nil {
		return nil, err
	}

	state := &State{
		StoreCode:    storeCode,
		SavedAt:      time.Now().UTC(),
		LocalStorage: map[string]map[string]string{},
	}

	var entries map[string]string
	err = chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			cookies, err := storage.GetCookies().Do(ctx)
			if err != nil {
				return fmt.Errorf("failed to read cookies: %w", err)
			}
			for _, c := range cookies {
				state.Cookies = append(state.Cookies, Cookie{
					Name:     c.Name,
					Value:    c.Value,
					Domain:   c.Domain,
					Path:     c.Path,
					Expires:  c.Expires,
					Secure:   c.Secure,
					HTTPOnly: c.HTTPOnly,
					SameSite: string(c.SameSite),
				})
			}
			return nil
		}),
		chromedp.Evaluate(`(() => {
			const out = {};
			for (let i = 0; i < localStorage.length; i++) {
				const k = localStorage.key(i);
				out[k] = localStorage.getItem(k);
			}
			return out;
		})()`, &entries),
	)
	if err != nil {
		return nil, err
	}

	if len(entries) > 0 {
		state.LocalStorage[origin] = entries
	}
	return state, nil
}

// PrimeCookies installs the state's cookies into the browser context. Must
// run before the first navigation so the portal sees them on the initial
// request.
func PrimeCookies(ctx context.Context, state *State) error {
	if len(state.Cookies) == 0 {
		return nil
	}
	params := make([]*network.CookieParam, 0, len(state.Cookies))
	for _, c := range state.Cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: network.CookieSameSite(c.SameSite),
		}
		if c.Expires > 0 {
			t := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &t
		}
		params = append(params, p)
	}
	return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := storage.SetCookies(params).Do(ctx); err != nil {
			return fmt.Errorf("failed to set cookies: %w", err)
		}
		return nil
	}))
}

// RestoreLocalStorage writes the saved local-storage entries for the current
// origin. The tab must already be on a page of that origin.
func RestoreLocalStorage(ctx context.Context, state *State, pageURL string) error {
	origin, err := Origin(pageURL)
	if err != nil {
		return err
	}
	entries := state.LocalStorage[origin]
	if len(entries) == 0 {
		return nil
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode local storage: %w", err)
	}
	script := fmt.Sprintf(`(() => {
		const entries = %s;
		for (const [k, v] of Object.entries(entries)) {
			localStorage.setItem(k, v);
		}
		return true;
	})()`, payload)
	var ok bool
	return chromedp.Run(ctx, chromedp.Evaluate(script, &ok))
}
