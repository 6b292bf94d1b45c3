package capture

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// Default capture parameters for the /calendar page.
const (
	DefaultWidth         = 1280
	DefaultHeight        = 960
	DefaultTimeout       = 30 * time.Second
	DefaultReadySelector = `[data-ready="true"]`
)

// CaptureOptions defines parameters for a Chromium-based screenshot capture.
type CaptureOptions struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/calendar?month=2024-03".
	URL string

	// OutputPath is where the PNG is written. Empty means the caller only
	// wants the returned bytes.
	OutputPath string

	// Width and Height are the viewport dimensions in pixels. If zero,
	// DefaultWidth / DefaultHeight are used.
	Width  int
	Height int

	// Timeout bounds the entire capture operation.
	Timeout time.Duration

	// ReadySelector is waited on before the screenshot is taken.
	ReadySelector string
}

func (o *CaptureOptions) normalize() error {
	if o.URL == "" {
		return errors.New("capture: URL is required")
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.ReadySelector == "" {
		o.ReadySelector = DefaultReadySelector
	}
	return nil
}

// CalendarURL builds the /calendar address for a month (zero-based index)
// and an optional group filter. A nil groups slice leaves the server's
// default selection in place.
func CalendarURL(base string, year, monthIndex int, groups []string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + "/calendar")
	if err != nil {
		return "", fmt.Errorf("capture: invalid base url: %w", err)
	}
	first := time.Date(year, time.Month(monthIndex+1), 1, 0, 0, 0, 0, time.UTC)
	q := u.Query()
	q.Set("month", first.Format("2006-01"))
	if groups != nil {
		q.Set("groups", strings.Join(groups, ","))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// CaptureCalendarPNG launches a headless Chromium via chromedp, opens
// opts.URL, waits until the page marks itself ready and takes a full-page
// PNG screenshot.
//
// The /calendar page renders server-side, so the root element carries
// data-ready="true" as soon as the document is parsed.
func CaptureCalendarPNG(parentCtx context.Context, opts CaptureOptions) ([]byte, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(opts.ReadySelector, chromedp.ByQuery),
		// 웹폰트 로딩 후 마지막 paint 를 기다린다.
		chromedp.Sleep(300 * time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if opts.OutputPath != "" {
		if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
			return nil, fmt.Errorf("capture: failed to write PNG: %w", err)
		}
	}
	return png, nil
}
