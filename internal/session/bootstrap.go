package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/retailops/storesync/internal/config"
)

// Outcome reports which path bootstrap took to reach an authenticated page.
type Outcome string

const (
	// OutcomeSessionReused means the saved session was still valid and no
	// interactive login happened.
	OutcomeSessionReused Outcome = "session_reused"
	// OutcomeLoggedIn means a full interactive login was performed and the
	// fresh session was persisted.
	OutcomeLoggedIn Outcome = "logged_in"
)

// DefaultLoginTimeout bounds the wait for a login completion signal.
const DefaultLoginTimeout = 45 * time.Second

const authPollInterval = 500 * time.Millisecond

// Bootstrap drives the login state machine:
// NoSession -> ProbingSession -> {Authenticated | LoginRequired} ->
// LoggingIn -> {Authenticated | LoginFailed} -> SessionPersisted.
// It always leaves the caller with an authenticated page ready for
// extraction, or a typed failure.
type Bootstrap struct {
	Sessions *Store
	Timeout  time.Duration
	Verbose  bool
}

func (b *Bootstrap) timeout() time.Duration {
	if b.Timeout > 0 {
		return b.Timeout
	}
	return DefaultLoginTimeout
}

// Run probes the saved session first and falls back to a full login. On a
// successful login the fresh session is serialized and written to the
// session store, overwriting any prior state.
func (b *Bootstrap) Run(ctx context.Context, store *config.StoreConfig) (Outcome, error) {
	authenticated, err := b.Probe(ctx, store)
	if err != nil {
		return "", err
	}
	if authenticated {
		if b.Verbose {
			log.Printf("[SESSION] %s: existing session valid, login skipped", store.StoreCode)
		}
		return OutcomeSessionReused, nil
	}

	if err := b.Login(ctx, store); err != nil {
		return "", err
	}

	var pageURL string
	if err := chromedp.Run(ctx, chromedp.Location(&pageURL)); err != nil {
		return OutcomeLoggedIn, nil
	}
	state, err := CaptureState(ctx, store.StoreCode, pageURL)
	if err != nil {
		// The page is authenticated; failing to snapshot it only costs the
		// next run a fresh login.
		log.Printf("[SESSION] %s: warning: failed to capture session: %v", store.StoreCode, err)
		return OutcomeLoggedIn, nil
	}
	if err := b.Sessions.Save(state); err != nil {
		log.Printf("[SESSION] %s: warning: failed to persist session: %v", store.StoreCode, err)
	}
	return OutcomeLoggedIn, nil
}

// Probe primes the browser context with any saved session and navigates to
// the store's home page. Success is judged by the resulting URL/DOM carrying
// the store's auth marker, not by HTTP 200: login portals answer 200 for
// their own login form too. Returns false when an interactive login is
// required. Certificate errors are returned as-is and abort the store.
func (b *Bootstrap) Probe(ctx context.Context, store *config.StoreConfig) (bool, error) {
	state, err := b.Sessions.Load(store.StoreCode)
	if err != nil {
		log.Printf("[SESSION] %s: warning: unreadable saved session: %v", store.StoreCode, err)
		return false, nil
	}
	if state == nil {
		return false, nil
	}

	if err := PrimeCookies(ctx, state); err != nil {
		log.Printf("[SESSION] %s: warning: failed to prime cookies: %v", store.StoreCode, err)
		return false, nil
	}

	navCtx, cancel := context.WithTimeout(ctx, b.timeout())
	defer cancel()
	err = chromedp.Run(navCtx,
		chromedp.Navigate(store.URLs.Home),
		chromedp.WaitReady("body"),
	)
	if err != nil {
		if cerr := classifyNavigationError(store.StoreCode, err); IsCertificateError(cerr) {
			return false, cerr
		}
		return false, nil
	}

	// Storage-backed apps read their token on load, so restore and reload.
	if len(state.LocalStorage) > 0 {
		if err := RestoreLocalStorage(navCtx, state, store.URLs.Home); err == nil {
			_ = chromedp.Run(navCtx,
				chromedp.Navigate(store.URLs.Home),
				chromedp.WaitReady("body"),
			)
		}
	}

	return b.authenticated(navCtx, store)
}

// Login performs the interactive login. It fails fast when credentials or
// required selectors are absent (configuration error, not transient), then
// submits the form and races two completion signals with a bounded timeout:
// the URL containing the store's auth marker, or the post-login landmark
// element appearing. On timeout the page is inspected for explicit provider
// error text; finding one means the credentials are wrong and there is no
// retry. Otherwise the attempt is surfaced as ambiguous failure.
func (b *Bootstrap) Login(ctx context.Context, store *config.StoreConfig) error {
	if !store.HasCredentials() {
		return &MissingCredentialsError{StoreCode: store.StoreCode, Missing: "credentials"}
	}
	if !store.HasLoginSelectors() {
		return &MissingCredentialsError{StoreCode: store.StoreCode, Missing: "login selectors"}
	}

	loginCtx, cancel := context.WithTimeout(ctx, b.timeout())
	defer cancel()

	err := chromedp.Run(loginCtx,
		chromedp.Navigate(store.URLs.Login),
		chromedp.WaitVisible(store.Selectors.Username),
	)
	if err != nil {
		if cerr := classifyNavigationError(store.StoreCode, err); IsCertificateError(cerr) {
			return cerr
		}
		return &LoginFailedError{StoreCode: store.StoreCode, Reason: fmt.Sprintf("login page did not load: %v", err)}
	}

	actions := []chromedp.Action{
		chromedp.SendKeys(store.Selectors.Username, store.Username),
		chromedp.SendKeys(store.Selectors.Password, store.Password),
	}
	if store.Selectors.StoreCode != "" {
		actions = append(actions, chromedp.SendKeys(store.Selectors.StoreCode, store.StoreCode))
	}
	actions = append(actions, chromedp.Click(store.Selectors.Submit))

	if err := chromedp.Run(loginCtx, actions...); err != nil {
		return &LoginFailedError{StoreCode: store.StoreCode, Reason: fmt.Sprintf("failed to submit login form: %v", err)}
	}

	if b.Verbose {
		log.Printf("[SESSION] %s: login submitted, waiting for completion signal", store.StoreCode)
	}

	authenticated, err := b.waitForAuth(loginCtx, store)
	if err != nil {
		return err
	}
	if authenticated {
		return nil
	}

	// Timed out with no completion signal: look for an explicit rejection.
	var pageText string
	_ = chromedp.Run(ctx, chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &pageText))
	if phrase := findProviderError(pageText); phrase != "" {
		return &LoginFailedError{StoreCode: store.StoreCode, Reason: fmt.Sprintf("provider reported %q", phrase)}
	}
	return &LoginFailedError{
		StoreCode: store.StoreCode,
		Reason:    "no completion signal before timeout and no provider error text found",
		Ambiguous: true,
	}
}

// waitForAuth polls until either completion signal fires or the context
// deadline passes. A deadline is not an error here; the caller inspects the
// page to decide what the timeout meant.
func (b *Bootstrap) waitForAuth(ctx context.Context, store *config.StoreConfig) (bool, error) {
	ticker := time.NewTicker(authPollInterval)
	defer ticker.Stop()

	for {
		ok, err := b.authenticated(ctx, store)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return false, nil
			}
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}

// authenticated checks the two markers of a live session: the current URL
// containing the store's auth marker, or the configured landmark element
// being present in the DOM.
func (b *Bootstrap) authenticated(ctx context.Context, store *config.StoreConfig) (bool, error) {
	var pageURL string
	if err := chromedp.Run(ctx, chromedp.Location(&pageURL)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return false, nil
		}
		return false, err
	}
	if MarkerInURL(pageURL, store.AuthMarker) {
		return true, nil
	}

	if store.Selectors.Landmark != "" {
		var present bool
		script := fmt.Sprintf(`document.querySelector(%q) !== null`, store.Selectors.Landmark)
		if err := chromedp.Run(ctx, chromedp.Evaluate(script, &present)); err == nil && present {
			return true, nil
		}
	}
	return false, nil
}

// MarkerInURL reports whether a URL carries the store's auth marker,
// case-insensitively. The login URL itself never counts as authenticated.
func MarkerInURL(pageURL, marker string) bool {
	if marker == "" {
		return false
	}
	return strings.Contains(strings.ToLower(pageURL), strings.ToLower(marker))
}
