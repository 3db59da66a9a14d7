package browser

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"tailscale.com/util/singleflight"
)

const (
	// DefaultHomeURL is where a freshly launched browser lands. It doubles
	// as the search engine for the search command.
	DefaultHomeURL = "https://www.google.com"
	// defaultSearchHost is the substring of the current URL that tells the
	// search command it is already on the search engine.
	defaultSearchHost = "google.com"

	DefaultViewportWidth  = 1200
	DefaultViewportHeight = 800

	// maxLaunchRetries bounds automatic relaunch attempts. A launch that
	// fails 1+3 times settles in the Error state; the next command starts
	// a fresh cycle with a fresh budget.
	maxLaunchRetries = 3

	launchTimeout    = 30 * time.Second
	navigateTimeout  = 30 * time.Second
	searchBoxTimeout = 10 * time.Second
	interactTimeout  = 10 * time.Second
	captureTimeout   = 10 * time.Second
	closeTimeout     = 5 * time.Second
)

// Config configures a Controller. Zero values get sensible defaults.
type Config struct {
	Driver   Driver
	Logger   *slog.Logger
	Headless bool

	// PublicDir is where the screenshot file is written; it is served as
	// static content by the HTTP layer.
	PublicDir string
	HomeURL   string
	UserAgent string

	ViewportWidth  int
	ViewportHeight int

	// MaxImageDim, when positive, downscales screenshots whose larger side
	// exceeds it before writing them out.
	MaxImageDim int

	// OnChange, when set, is called with a fresh Snapshot after every
	// observable session transition. Must not block.
	OnChange func(Snapshot)
}

// Controller owns the single browser session. All mutation of the session
// record goes through it: launches (initial, lazy, and crash recovery),
// command handlers, and the navigation/disconnect observers. Commands are
// serialized; Status never is.
type Controller struct {
	driver   Driver
	logger   *slog.Logger
	baseCtx  context.Context
	homeURL  string
	shots    *screenshotWriter
	onChange func(Snapshot)

	launchCfg  LaunchConfig
	searchHost string

	// launches collapses concurrent launch attempts into one; every caller
	// that races on the availability guard shares the single result.
	launches singleflight.Group[string, Page]

	// cmdMu serializes guard→handler→screenshot for every command. The
	// browser has exactly one tab; interleaved operations against it are
	// undefined.
	cmdMu sync.Mutex

	// mu guards the session record. Held only for field access, never
	// across browser I/O, so Status stays responsive mid-command.
	mu      sync.Mutex
	sess    session
	closing bool
}

// New creates the process-wide Controller. ctx is the parent of every
// browser process the controller launches; cancelling it kills the browser.
func New(ctx context.Context, cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HomeURL == "" {
		cfg.HomeURL = DefaultHomeURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.ViewportWidth <= 0 {
		cfg.ViewportWidth = DefaultViewportWidth
	}
	if cfg.ViewportHeight <= 0 {
		cfg.ViewportHeight = DefaultViewportHeight
	}
	if cfg.Driver == nil {
		cfg.Driver = NewChromeDriver(cfg.Logger)
	}

	return &Controller{
		driver:   cfg.Driver,
		logger:   cfg.Logger,
		baseCtx:  ctx,
		homeURL:  cfg.HomeURL,
		onChange: cfg.OnChange,
		shots: &screenshotWriter{
			dir:    cfg.PublicDir,
			maxDim: cfg.MaxImageDim,
			logger: cfg.Logger,
		},
		launchCfg: LaunchConfig{
			Headless:       cfg.Headless,
			ViewportWidth:  cfg.ViewportWidth,
			ViewportHeight: cfg.ViewportHeight,
			UserAgent:      cfg.UserAgent,
		},
		searchHost: defaultSearchHost,
		sess: session{
			state:      StateUninitialized,
			currentURL: BlankURL,
		},
	}
}

// WarmUp launches the browser eagerly. Called at process start so the
// window is already open when the first command arrives; failure is not
// fatal, the next command retries from scratch. Idempotent once ready.
func (c *Controller) WarmUp(ctx context.Context) error {
	_, err := c.ensureReady(ctx)
	return err
}

// Status is the read-only health projection. It only touches the state
// mutex and never triggers a launch, so it stays responsive while a slow
// command or launch is in flight.
func (c *Controller) Status() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		Ready:      c.sess.page != nil && !c.sess.starting,
		State:      c.sess.state.String(),
		URL:        c.sess.currentURL,
		Screenshot: c.sess.screenshotRef,
	}
}

// notify publishes the current snapshot to the OnChange hook. Never called
// with either mutex held.
func (c *Controller) notify() {
	if c.onChange == nil {
		return
	}
	c.onChange(c.Status())
}

// ensureReady is the availability guard: commands call it before touching
// the page. A missing or dead session triggers a launch; concurrent callers
// collapse onto the same in-flight launch and share its outcome.
func (c *Controller) ensureReady(ctx context.Context) (Page, error) {
	c.mu.Lock()
	page := c.sess.page
	state := c.sess.state
	c.mu.Unlock()

	if page != nil && (state == StateReady || state == StateNavigating) {
		return page, nil
	}
	return c.launchShared(ctx)
}

func (c *Controller) launchShared(ctx context.Context) (Page, error) {
	page, err, _ := c.launches.Do("launch", func() (Page, error) {
		return c.launch(ctx)
	})
	return page, err
}

// launch brings the session from any state to Ready or fails definitively.
// Only ever executed by one goroutine at a time (the singleflight group is
// the starting guard); the starting flag it sets covers the whole attempt,
// retries included.
func (c *Controller) launch(ctx context.Context) (Page, error) {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return nil, errors.New("controller is shut down")
	}
	c.sess.starting = true
	c.sess.state = StateStarting
	c.sess.retries = 0
	old := c.sess.page
	c.sess.page = nil
	c.mu.Unlock()
	c.notify()

	// A failed close must not block relaunch.
	if old != nil {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		if err := old.Close(closeCtx); err != nil {
			c.logger.Warn("Closing previous browser failed", "error", err)
		}
		cancel()
	}

	var lastErr error
	for attempt := 0; attempt <= maxLaunchRetries; attempt++ {
		if attempt > 0 {
			c.mu.Lock()
			c.sess.retries = attempt
			c.mu.Unlock()
			c.logger.Warn("Retrying browser launch", "attempt", attempt+1, "error", lastErr)
		}

		page, err := c.launchOnce(ctx)
		if err != nil {
			lastErr = err
			continue
		}

		c.mu.Lock()
		c.sess.page = page
		c.sess.state = StateReady
		c.sess.currentURL = c.homeURL
		c.sess.retries = 0
		c.sess.starting = false
		c.mu.Unlock()

		go c.watch(page)
		c.capture(context.WithoutCancel(ctx), page)
		c.notify()
		c.logger.Info("Browser ready", "url", c.homeURL)
		return page, nil
	}

	c.mu.Lock()
	c.sess.state = StateError
	c.sess.starting = false
	c.mu.Unlock()
	c.notify()
	return nil, &LaunchError{Attempts: maxLaunchRetries + 1, Err: lastErr}
}

// launchOnce performs a single launch attempt: start the process, open the
// page, land on the home URL. The browser process is parented to the
// controller's base context so it outlives the request that triggered it.
func (c *Controller) launchOnce(ctx context.Context) (Page, error) {
	c.logger.Info("Starting browser")
	page, err := c.driver.Launch(c.baseCtx, c.launchCfg)
	if err != nil {
		return nil, err
	}

	navCtx, cancel := context.WithTimeout(ctx, launchTimeout)
	defer cancel()
	if err := page.Navigate(navCtx, c.homeURL); err != nil {
		closeCtx, ccancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		if cerr := page.Close(closeCtx); cerr != nil {
			c.logger.Warn("Closing failed browser launch", "error", cerr)
		}
		ccancel()
		return nil, &NavigationError{URL: c.homeURL, Err: err}
	}
	return page, nil
}

// watch consumes a launched page's observer channels until the page dies.
// One watcher per launch; a stale watcher unregisters itself by noticing
// the session no longer holds its page.
func (c *Controller) watch(page Page) {
	for {
		select {
		case u := <-page.Navigations():
			c.onNavigated(page, u)
		case <-page.Done():
			c.onDisconnected(page)
			return
		}
	}
}

// onNavigated fires on every completed top-level navigation, whether or not
// this controller initiated it. currentURL is updated unconditionally; both
// writers report the page's true URL at slightly different times.
func (c *Controller) onNavigated(page Page, url string) {
	c.mu.Lock()
	if c.sess.page != page {
		c.mu.Unlock()
		return
	}
	c.sess.currentURL = url
	c.mu.Unlock()
	c.notify()

	// Commands capture their own screenshot at the end; only capture here
	// when no command is mid-flight, so the capture never interleaves with
	// other page operations.
	if c.cmdMu.TryLock() {
		c.capture(c.baseCtx, page)
		c.cmdMu.Unlock()
	}
}

// onDisconnected is the self-healing path: the browser process died out
// from under us. Nobody is waiting on this, so the relaunch runs in the
// background; an in-flight command against the dead page fails on its own.
func (c *Controller) onDisconnected(page Page) {
	c.mu.Lock()
	if c.closing || c.sess.page != page {
		c.mu.Unlock()
		return
	}
	c.sess.page = nil
	c.sess.state = StateDisconnected
	c.mu.Unlock()
	c.notify()

	c.logger.Error("Browser disconnected, relaunching")
	go func() {
		if _, err := c.launchShared(c.baseCtx); err != nil {
			c.logger.Error("Background relaunch failed", "error", err)
		}
	}()
}

// Close tears the session down on process shutdown. Further commands fail.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closing = true
	page := c.sess.page
	c.sess.page = nil
	c.sess.state = StateUninitialized
	c.mu.Unlock()

	if page != nil {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := page.Close(ctx); err != nil {
			c.logger.Warn("Browser close failed", "error", err)
		}
		c.logger.Info("Browser closed")
	}
}

func (c *Controller) currentURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.currentURL
}

func (c *Controller) setURL(url string) {
	c.mu.Lock()
	c.sess.currentURL = url
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) setState(state State) {
	c.mu.Lock()
	c.sess.state = state
	c.mu.Unlock()
	c.notify()
}
