package browser

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// searchBoxSelector matches the search input across the engine's page
// variants (it renders either a textarea or an input).
const searchBoxSelector = `textarea[name="q"], input[name="q"]`

// NormalizeURL prefixes bare hosts with https://. Idempotent: URLs that
// already carry a scheme pass through unchanged.
func NormalizeURL(raw string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return "https://" + raw
}

// Navigate drives the page to rawURL and captures a screenshot. Navigation
// failures (timeout, DNS, TLS) surface as a NavigationError and are not
// retried; that policy belongs to launches only.
func (c *Controller) Navigate(ctx context.Context, rawURL string) (Result, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Result{}, &ValidationError{Message: "URL required"}
	}
	target := NormalizeURL(rawURL)

	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	page, err := c.ensureReady(ctx)
	if err != nil {
		return Result{}, err
	}

	c.logger.Info("Navigating", "url", target)
	c.setState(StateNavigating)

	navCtx, cancel := context.WithTimeout(ctx, navigateTimeout)
	defer cancel()
	if err := page.Navigate(navCtx, target); err != nil {
		c.setState(StateReady)
		return Result{}, &NavigationError{URL: target, Err: err}
	}

	// URL committed only after the navigation confirmed, never before.
	c.mu.Lock()
	c.sess.state = StateReady
	c.sess.currentURL = target
	c.mu.Unlock()
	c.notify()

	ref := c.capture(ctx, page)
	return Result{URL: target, Screenshot: ref}, nil
}

// Search runs query on the search engine: routes there first if the page is
// elsewhere, waits for the search box to render, clears it, types, submits,
// and waits for the results page to load.
func (c *Controller) Search(ctx context.Context, query string) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, &ValidationError{Message: "Search query required"}
	}

	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	page, err := c.ensureReady(ctx)
	if err != nil {
		return Result{}, err
	}

	c.logger.Info("Searching", "query", query)

	if !strings.Contains(c.currentURL(), c.searchHost) {
		navCtx, cancel := context.WithTimeout(ctx, navigateTimeout)
		err := page.Navigate(navCtx, c.homeURL)
		cancel()
		if err != nil {
			return Result{}, &NavigationError{URL: c.homeURL, Err: err}
		}
		c.setURL(c.homeURL)
	}

	// The page may still be rendering right after navigation; the box is
	// not necessarily in the DOM yet.
	waitCtx, cancel := context.WithTimeout(ctx, searchBoxTimeout)
	err = page.WaitVisible(waitCtx, searchBoxSelector)
	cancel()
	if err != nil {
		return Result{}, &ElementNotFoundError{Selector: searchBoxSelector, Err: err}
	}

	// Clear before typing; some engines restore the previous query.
	typeCtx, cancel := context.WithTimeout(ctx, interactTimeout)
	defer cancel()
	if err := page.Clear(typeCtx, searchBoxSelector); err != nil {
		return Result{}, fmt.Errorf("clear search box: %w", err)
	}
	if err := page.Type(typeCtx, searchBoxSelector, query); err != nil {
		return Result{}, fmt.Errorf("type search query: %w", err)
	}

	submitCtx, cancel := context.WithTimeout(ctx, navigateTimeout)
	defer cancel()
	if err := page.SubmitAndWait(submitCtx, searchBoxSelector); err != nil {
		return Result{}, fmt.Errorf("wait for search results: %w", err)
	}

	if u, err := page.URL(ctx); err == nil {
		c.setURL(u)
	}

	ref := c.capture(ctx, page)
	return Result{URL: c.currentURL(), Screenshot: ref}, nil
}

var (
	visitPattern         = regexp.MustCompile(`(?i)(?:go to|visit)\s+(\S+)`)
	searchTriggerPattern = regexp.MustCompile(`(?i)search(?:\s+for)?`)
)

// Command routes a free-text prompt to a browser action by literal keyword
// matching — deliberately not language understanding. A prompt matching
// neither verb is accepted as a completed no-op.
func (c *Controller) Command(ctx context.Context, prompt string) (Result, string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Result{}, "", &ValidationError{Message: "Prompt is required"}
	}

	if m := visitPattern.FindStringSubmatch(prompt); m != nil {
		res, err := c.Navigate(ctx, m[1])
		return res, "navigate", err
	}

	if loc := searchTriggerPattern.FindStringIndex(prompt); loc != nil {
		query := strings.TrimSpace(prompt[:loc[0]] + prompt[loc[1]:])
		if query != "" {
			res, err := c.Search(ctx, query)
			return res, "search", err
		}
	}

	snap := c.Status()
	return Result{URL: snap.URL, Screenshot: snap.Screenshot}, "none", nil
}
