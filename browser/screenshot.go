package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Viraaj141413/browse-chat-buddy-main/imageutil"
)

// ScreenshotFile is the single well-known screenshot file, overwritten on
// every capture. There is no history, only the latest image.
const ScreenshotFile = "browser-screenshot.png"

// ScreenshotPath is where the HTTP layer serves ScreenshotFile.
const ScreenshotPath = "/" + ScreenshotFile

// screenshotWriter writes captures over the well-known file and mints the
// cache-busting reference clients poll against.
type screenshotWriter struct {
	dir    string
	maxDim int
	logger *slog.Logger

	mu        sync.Mutex
	lastToken int64
}

// write stores PNG data and returns its reference. The timestamp token is
// bumped past the previous one when two captures land in the same
// millisecond, so freshness checks can rely on strict increase.
func (w *screenshotWriter) write(data []byte) (string, error) {
	if w.maxDim > 0 {
		shrunk, err := imageutil.ShrinkPNG(data, w.maxDim)
		if err != nil {
			w.logger.Warn("Screenshot downscale failed, keeping original", "error", err)
		} else {
			data = shrunk
		}
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(w.dir, ScreenshotFile), data, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}

	w.mu.Lock()
	token := time.Now().UnixMilli()
	if token <= w.lastToken {
		token = w.lastToken + 1
	}
	w.lastToken = token
	w.mu.Unlock()

	return fmt.Sprintf("%s?t=%d", ScreenshotPath, token), nil
}

// capture runs the screenshot pipeline against page and updates the session
// record. Capture failure is logged and swallowed: a stale screenshot beats
// an error for this non-critical side effect. Returns the freshest
// available reference either way.
func (c *Controller) capture(ctx context.Context, page Page) string {
	if page == nil {
		c.logger.Warn("No page available for screenshot")
	} else {
		shotCtx, cancel := context.WithTimeout(ctx, captureTimeout)
		data, err := page.Screenshot(shotCtx)
		cancel()
		switch {
		case err != nil:
			c.logger.Warn("Screenshot capture failed", "error", err)
		default:
			ref, err := c.shots.write(data)
			if err != nil {
				c.logger.Warn("Screenshot save failed", "error", err)
				break
			}
			c.mu.Lock()
			c.sess.screenshotRef = ref
			c.mu.Unlock()
			c.notify()
			return ref
		}
	}

	c.mu.Lock()
	ref := c.sess.screenshotRef
	c.mu.Unlock()
	return ref
}

// Screenshot captures the current page on demand.
func (c *Controller) Screenshot(ctx context.Context) (Result, error) {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	page, err := c.ensureReady(ctx)
	if err != nil {
		return Result{}, err
	}
	ref := c.capture(ctx, page)
	return Result{URL: c.currentURL(), Screenshot: ref}, nil
}
