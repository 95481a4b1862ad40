// Package capture renders a running dashboard page in headless Chrome and returns a PNG.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
)

type Options struct {
	URL         string        // e.g. http://localhost:8087/
	WaitFor     string        // CSS selector that must be visible before the shot
	Width       int64         // viewport width in CSS pixels
	Height      int64         // viewport height
	Quality     int           // 0-100; 100 keeps the PNG lossless
	Headless    bool          // false => show the window
	Wait        time.Duration // overall timeout
	UserDataDir string        // optional Chrome profile dir; empty => temp
	Logger      *slog.Logger  // optional: route chromedp logs to slog
	Quiet       bool          // if true, suppress chromedp debug/log output
}

// withDefaults fills zero fields.
func (o Options) withDefaults() Options {
	if o.WaitFor == "" {
		o.WaitFor = "#book"
	}
	if o.Width <= 0 {
		o.Width = 1440
	}
	if o.Height <= 0 {
		o.Height = 900
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = 100
	}
	if o.Wait <= 0 {
		o.Wait = 30 * time.Second
	}
	return o
}

func (o Options) validate() error {
	u, err := url.Parse(o.URL)
	if err != nil {
		return fmt.Errorf("bad dashboard url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("dashboard url must be http or https")
	}
	return nil
}

// Screenshot opens opts.URL, waits for opts.WaitFor and captures the full page.
func Screenshot(ctx context.Context, opts Options) ([]byte, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("allow-insecure-localhost", true),
	}
	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Headless)
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}

	actx, acancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer acancel()

	cctx, cancel := chromedp.NewContext(actx, contextOptions(opts)...)
	defer cancel()
	cctx, timeoutCancel := context.WithTimeout(cctx, opts.Wait)
	defer timeoutCancel()

	var png []byte
	err := chromedp.Run(cctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetDeviceMetricsOverride(opts.Width, opts.Height, 1, false).Do(ctx)
		}),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(opts.WaitFor, chromedp.ByQuery),
		chromedp.FullScreenshot(&png, opts.Quality),
	)
	if err != nil {
		return nil, fmt.Errorf("capture %s: %w", opts.URL, err)
	}
	return png, nil
}

func contextOptions(opts Options) []chromedp.ContextOption {
	switch {
	case opts.Quiet:
		return []chromedp.ContextOption{
			chromedp.WithLogf(func(string, ...any) {}),
			chromedp.WithDebugf(func(string, ...any) {}),
			chromedp.WithErrorf(func(string, ...any) {}),
		}
	case opts.Logger != nil:
		return []chromedp.ContextOption{
			chromedp.WithLogf(func(f string, a ...any) { opts.Logger.Info(fmt.Sprintf(f, a...)) }),
			chromedp.WithDebugf(func(f string, a ...any) { opts.Logger.Debug(fmt.Sprintf(f, a...)) }),
			chromedp.WithErrorf(func(f string, a ...any) { opts.Logger.Warn(fmt.Sprintf(f, a...)) }),
		}
	}
	return nil
}
