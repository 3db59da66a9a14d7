package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/inspector"
	cdpage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// DefaultUserAgent is a realistic desktop user agent. Some search engines
// serve automation-detected clients a degraded page without a search box.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ChromeDriver launches Chrome (or Chromium) over the DevTools protocol.
type ChromeDriver struct {
	logger *slog.Logger
}

func NewChromeDriver(logger *slog.Logger) *ChromeDriver {
	return &ChromeDriver{logger: logger}
}

// Launch starts a Chrome process with a single page. The window is visible
// unless cfg.Headless is set, and the viewport is fixed so screenshots have
// a stable clip region.
func (d *ChromeDriver) Launch(ctx context.Context, cfg LaunchConfig) (Page, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-web-security", true),
		chromedp.Flag("disable-features", "VizDisplayCompositor"),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.IgnoreCertErrors,
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WSURLReadTimeout(60*time.Second),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(
		allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			d.logger.Debug(fmt.Sprintf(format, args...))
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			d.logger.Error(fmt.Sprintf(format, args...))
		}),
	)

	p := &chromePage{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		width:         cfg.ViewportWidth,
		height:        cfg.ViewportHeight,
		navCh:         make(chan string, 8),
		done:          make(chan struct{}),
		logger:        d.logger,
	}

	chromedp.ListenTarget(browserCtx, func(ev any) {
		switch e := ev.(type) {
		case *cdpage.EventFrameNavigated:
			// Only top-level navigations; iframes churn constantly.
			if e.Frame.ParentID == "" {
				select {
				case p.navCh <- e.Frame.URL:
				default:
				}
			}
		case *inspector.EventTargetCrashed:
			d.logger.Error("Browser page crashed")
			browserCancel()
		}
	})

	// Starting the browser is the first Run against a fresh context.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser (is chromium installed?): %w", err)
	}

	if err := chromedp.Run(browserCtx,
		chromedp.EmulateViewport(int64(cfg.ViewportWidth), int64(cfg.ViewportHeight)),
	); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	go func() {
		<-browserCtx.Done()
		close(p.done)
	}()

	return p, nil
}

// chromePage drives the single tab of a launched Chrome process.
type chromePage struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	width, height int
	navCh         chan string
	done          chan struct{}
	closeOnce     sync.Once
	logger        *slog.Logger
}

// run executes actions against the browser context, carrying over the
// caller's deadline. chromedp actions must run on the browser's own context
// chain to resolve their target, so the request context itself cannot be
// passed through.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := p.browserCtx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(runCtx, deadline)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	var u string
	if err := p.run(ctx, chromedp.Location(&u)); err != nil {
		return "", err
	}
	return u, nil
}

func (p *chromePage) WaitVisible(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (p *chromePage) Clear(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.Clear(selector, chromedp.ByQuery))
}

func (p *chromePage) Type(ctx context.Context, selector, text string) error {
	return p.run(ctx,
		chromedp.Click(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

func (p *chromePage) SubmitAndWait(ctx context.Context, selector string) error {
	// Subscribe to the load event before pressing Enter so a fast
	// navigation cannot slip past the listener.
	loaded := make(chan struct{}, 1)
	listenCtx, cancel := context.WithCancel(p.browserCtx)
	defer cancel()
	chromedp.ListenTarget(listenCtx, func(ev any) {
		if _, ok := ev.(*cdpage.EventLoadEventFired); ok {
			select {
			case loaded <- struct{}{}:
			default:
			}
		}
	})

	if err := p.run(ctx, chromedp.SendKeys(selector, kb.Enter, chromedp.ByQuery)); err != nil {
		return err
	}

	select {
	case <-loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return fmt.Errorf("browser disconnected while waiting for page load")
	}
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = cdpage.CaptureScreenshot().
			WithFormat(cdpage.CaptureScreenshotFormatPng).
			WithClip(&cdpage.Viewport{
				X:      0,
				Y:      0,
				Width:  float64(p.width),
				Height: float64(p.height),
				Scale:  1,
			}).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *chromePage) Navigations() <-chan string { return p.navCh }

func (p *chromePage) Done() <-chan struct{} { return p.done }

// Close tears the browser process down. Cancellation-based, so it cannot
// fail; the error return satisfies Page for implementations that can.
func (p *chromePage) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		// Graceful close first so Chrome flushes its profile; fall back to
		// hard cancellation either way.
		if err := chromedp.Cancel(p.browserCtx); err != nil {
			p.logger.Debug("Graceful browser close failed", "error", err)
		}
		p.browserCancel()
		p.allocCancel()
	})
	return nil
}
