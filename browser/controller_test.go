package browser

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// fakePage implements Page without a real browser.
type fakePage struct {
	mu        sync.Mutex
	url       string
	navs      []string
	typed     string
	cleared   bool
	submits   int
	closed    bool
	navErr    error
	waitErr   error
	shotErr   error
	resultURL string

	navCh chan string
	done  chan struct{}
}

func newFakePage() *fakePage {
	return &fakePage{
		navCh: make(chan string, 8),
		done:  make(chan struct{}),
	}
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.navErr != nil {
		return p.navErr
	}
	p.url = url
	p.navs = append(p.navs, url)
	return nil
}

func (p *fakePage) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *fakePage) WaitVisible(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitErr
}

func (p *fakePage) Clear(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleared = true
	return nil
}

func (p *fakePage) Type(ctx context.Context, selector, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.typed = text
	return nil
}

func (p *fakePage) SubmitAndWait(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submits++
	if p.resultURL != "" {
		p.url = p.resultURL
	}
	return nil
}

func (p *fakePage) Screenshot(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shotErr != nil {
		return nil, p.shotErr
	}
	return []byte("\x89PNG fake"), nil
}

func (p *fakePage) Navigations() <-chan string { return p.navCh }
func (p *fakePage) Done() <-chan struct{}      { return p.done }

func (p *fakePage) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// fakeDriver counts launches and can be made to fail or dawdle.
type fakeDriver struct {
	mu      sync.Mutex
	delay   time.Duration
	failAll bool
	pages   []*fakePage

	launches int
}

func (d *fakeDriver) Launch(ctx context.Context, cfg LaunchConfig) (Page, error) {
	d.mu.Lock()
	d.launches++
	d.mu.Unlock()

	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	if d.failAll {
		return nil, errors.New("injected launch failure")
	}

	p := newFakePage()
	d.mu.Lock()
	d.pages = append(d.pages, p)
	d.mu.Unlock()
	return p, nil
}

func (d *fakeDriver) launchCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.launches
}

func (d *fakeDriver) page(i int) *fakePage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pages[i]
}

func testController(t *testing.T, driver Driver) *Controller {
	t.Helper()
	c := New(context.Background(), Config{
		Driver:    driver,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		PublicDir: t.TempDir(),
	})
	t.Cleanup(c.Close)
	return c
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestStatusNeverTriggersLaunch(t *testing.T) {
	driver := &fakeDriver{}
	c := testController(t, driver)

	snap := c.Status()
	if snap.Ready {
		t.Error("fresh session reported ready")
	}
	if snap.State != "uninitialized" {
		t.Errorf("state = %q, want uninitialized", snap.State)
	}
	if snap.URL != BlankURL {
		t.Errorf("url = %q, want %q", snap.URL, BlankURL)
	}
	if driver.launchCount() != 0 {
		t.Errorf("Status triggered %d launches", driver.launchCount())
	}
}

func TestConcurrentCommandsShareOneLaunch(t *testing.T) {
	driver := &fakeDriver{delay: 50 * time.Millisecond}
	c := testController(t, driver)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Navigate(context.Background(), "example.com")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("request %d failed: %v", i, err)
		}
	}
	if got := driver.launchCount(); got != 1 {
		t.Errorf("launch count = %d, want 1", got)
	}
}

func TestConcurrentWarmUpsShareOneLaunch(t *testing.T) {
	// WarmUp hits the availability guard without the command lock, so this
	// exercises the singleflight collapse directly.
	driver := &fakeDriver{delay: 50 * time.Millisecond}
	c := testController(t, driver)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.WarmUp(context.Background()); err != nil {
				t.Errorf("warm-up: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := driver.launchCount(); got != 1 {
		t.Errorf("launch count = %d, want 1", got)
	}
}

func TestLaunchRetryBound(t *testing.T) {
	driver := &fakeDriver{failAll: true}
	c := testController(t, driver)

	_, err := c.Navigate(context.Background(), "example.com")
	var le *LaunchError
	if !errors.As(err, &le) {
		t.Fatalf("error = %v, want LaunchError", err)
	}
	if le.Attempts != 4 {
		t.Errorf("attempts = %d, want 4 (initial + 3 retries)", le.Attempts)
	}
	if got := driver.launchCount(); got != 4 {
		t.Errorf("launch count = %d, want 4", got)
	}
	if snap := c.Status(); snap.State != "error" {
		t.Errorf("state = %q, want error", snap.State)
	}

	// The retry budget resets per external launch invocation: the next
	// command attempts a full fresh cycle.
	_, err = c.Navigate(context.Background(), "example.com")
	if !errors.As(err, &le) {
		t.Fatalf("second error = %v, want LaunchError", err)
	}
	if got := driver.launchCount(); got != 8 {
		t.Errorf("launch count after second command = %d, want 8", got)
	}
}

func TestNavigationFailureIsNotRetried(t *testing.T) {
	driver := &fakeDriver{}
	c := testController(t, driver)

	if _, err := c.Navigate(context.Background(), "example.com"); err != nil {
		t.Fatalf("first navigate: %v", err)
	}
	launchesBefore := driver.launchCount()

	page := driver.page(0)
	page.mu.Lock()
	page.navErr = errors.New("net::ERR_NAME_NOT_RESOLVED")
	page.mu.Unlock()

	_, err := c.Navigate(context.Background(), "bad.invalid")
	var ne *NavigationError
	if !errors.As(err, &ne) {
		t.Fatalf("error = %v, want NavigationError", err)
	}
	if got := driver.launchCount(); got != launchesBefore {
		t.Errorf("navigation failure triggered %d extra launches", got-launchesBefore)
	}
	// The session stays usable and the failed target is not committed.
	if snap := c.Status(); snap.URL == "https://bad.invalid" {
		t.Error("currentURL updated before navigation confirmed")
	}
}

func TestNavigateSchemePrefixing(t *testing.T) {
	driver := &fakeDriver{}
	c := testController(t, driver)

	res, err := c.Navigate(context.Background(), "example.com")
	if err != nil {
		t.Fatal(err)
	}
	if res.URL != "https://example.com" {
		t.Errorf("url = %q, want https://example.com", res.URL)
	}

	// Idempotent: navigating again, with or without scheme, yields the
	// same single-prefixed URL.
	for _, raw := range []string{"example.com", "https://example.com"} {
		res, err := c.Navigate(context.Background(), raw)
		if err != nil {
			t.Fatal(err)
		}
		if res.URL != "https://example.com" {
			t.Errorf("navigate(%q) url = %q, want https://example.com", raw, res.URL)
		}
	}
	if snap := c.Status(); snap.URL != "https://example.com" {
		t.Errorf("session url = %q, want https://example.com", snap.URL)
	}
}

func TestDisconnectRecovery(t *testing.T) {
	driver := &fakeDriver{}
	c := testController(t, driver)

	if err := c.WarmUp(context.Background()); err != nil {
		t.Fatal(err)
	}
	if snap := c.Status(); !snap.Ready {
		t.Fatalf("not ready after warm-up: %+v", snap)
	}

	// Simulate the browser process dying out from under the session.
	close(driver.page(0).done)

	waitFor(t, 2*time.Second, func() bool {
		return c.Status().Ready && driver.launchCount() == 2
	})

	if _, err := c.Navigate(context.Background(), "example.com"); err != nil {
		t.Fatalf("navigate after recovery: %v", err)
	}
}

func TestNavigationObserverUpdatesURL(t *testing.T) {
	driver := &fakeDriver{}
	c := testController(t, driver)

	if err := c.WarmUp(context.Background()); err != nil {
		t.Fatal(err)
	}

	// A redirect the controller did not initiate.
	driver.page(0).navCh <- "https://example.com/redirected"
	waitFor(t, 2*time.Second, func() bool {
		return c.Status().URL == "https://example.com/redirected"
	})
}

func TestCloseReleasesBrowser(t *testing.T) {
	driver := &fakeDriver{}
	c := New(context.Background(), Config{
		Driver:    driver,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		PublicDir: t.TempDir(),
	})
	if err := c.WarmUp(context.Background()); err != nil {
		t.Fatal(err)
	}

	c.Close()

	page := driver.page(0)
	page.mu.Lock()
	closed := page.closed
	page.mu.Unlock()
	if !closed {
		t.Error("browser not closed on shutdown")
	}

	if _, err := c.Navigate(context.Background(), "example.com"); err == nil {
		t.Error("navigate succeeded after Close")
	}
}

func TestStateChangeNotifications(t *testing.T) {
	driver := &fakeDriver{}
	var mu sync.Mutex
	var states []string
	c := New(context.Background(), Config{
		Driver:    driver,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		PublicDir: t.TempDir(),
		OnChange: func(snap Snapshot) {
			mu.Lock()
			states = append(states, snap.State)
			mu.Unlock()
		},
	})
	t.Cleanup(c.Close)

	if err := c.WarmUp(context.Background()); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) < 2 {
		t.Fatalf("got %d notifications, want at least starting+ready", len(states))
	}
	if states[0] != "starting" {
		t.Errorf("first state = %q, want starting", states[0])
	}
	if states[len(states)-1] != "ready" {
		t.Errorf("last state = %q, want ready", states[len(states)-1])
	}
}
