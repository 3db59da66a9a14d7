package browser

import "context"

// LaunchConfig carries the browser process parameters the Controller asks
// its Driver to launch with.
type LaunchConfig struct {
	// Headless hides the browser window. The default is a visible window;
	// tests and CI environments set this.
	Headless bool
	// ViewportWidth and ViewportHeight fix the page viewport and the
	// screenshot clip region.
	ViewportWidth  int
	ViewportHeight int
	// UserAgent is sent on every request to reduce bot-blocking.
	UserAgent string
}

// Driver launches browser processes. The production implementation drives
// Chrome over the DevTools protocol; tests substitute a fake.
type Driver interface {
	// Launch starts a browser process and opens its single page. The
	// returned Page is valid until its Done channel is closed or Close is
	// called. ctx bounds the launch itself and remains the parent of the
	// browser process lifetime.
	Launch(ctx context.Context, cfg LaunchConfig) (Page, error)
}

// Page is the single active browser tab. Methods honor ctx deadlines; every
// call that touches the page must be serialized by the caller — interleaving
// two operations against the same tab produces undefined results.
type Page interface {
	// Navigate loads url and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error
	// URL reports the page's current location.
	URL(ctx context.Context) (string, error)
	// WaitVisible blocks until an element matching selector is visible.
	WaitVisible(ctx context.Context, selector string) error
	// Clear empties the value of the element matching selector.
	Clear(ctx context.Context, selector string) error
	// Type clicks the element matching selector and types text into it.
	Type(ctx context.Context, selector, text string) error
	// SubmitAndWait presses Enter in the element matching selector and
	// waits for the resulting navigation to finish loading.
	SubmitAndWait(ctx context.Context, selector string) error
	// Screenshot captures the fixed viewport clip of the page as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)
	// Navigations delivers the URL of every completed top-level navigation,
	// including ones not initiated through this Page (redirects, user
	// clicks). Slow consumers may miss intermediate entries.
	Navigations() <-chan string
	// Done is closed when the browser process exits or the page crashes.
	Done() <-chan struct{}
	// Close shuts the browser process down. Safe to call more than once.
	Close(ctx context.Context) error
}
