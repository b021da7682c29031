// Package browser captures the page a failing test was driving.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/kernhell/kernhell-go/internal/domain"
	"github.com/kernhell/kernhell-go/internal/infrastructure/cache"
	"github.com/kernhell/kernhell-go/internal/ports"
)

const (
	viewportWidth  = 1024
	viewportHeight = 768
	settleDelay    = 2 * time.Second
)

// ErrNoURL means the test file gave no page to open.
var ErrNoURL = errors.New("could not extract a URL from the test file")

var (
	gotoPattern = regexp.MustCompile(`\.goto\(\s*["']([^"']+)["']`)
	urlPattern  = regexp.MustCompile(`https?://[^\s"'<>)]+`)
)

// ShootFunc renders url and returns PNG bytes.
type ShootFunc func(ctx context.Context, url string) ([]byte, error)

// Capturer opens the test's target URL in a headless browser and stores a full-page PNG
// in the project cache.
type Capturer struct {
	timeout time.Duration
	logger  ports.Logger
	shoot   ShootFunc
}

// NewCapturer builds a go-rod backed capturer.
func NewCapturer(cfg domain.ScreenshotSettings, timeout time.Duration, logger ports.Logger) *Capturer {
	c := &Capturer{timeout: timeout, logger: logger}
	c.shoot = rodShooter(cfg.Headless, logger)
	return c
}

// WithShooter swaps the browser for another renderer.
func (c *Capturer) WithShooter(fn ShootFunc) *Capturer {
	c.shoot = fn
	return c
}

// Capture extracts the URL from the test source, screenshots it and caches the result.
func (c *Capturer) Capture(ctx context.Context, testPath string) ([]byte, error) {
	source, err := os.ReadFile(testPath)
	if err != nil {
		return nil, fmt.Errorf("read test: %w", err)
	}
	url := ExtractURL(string(source))
	if url == "" {
		return nil, ErrNoURL
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	png, err := c.shoot(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("screenshot %s: %w", url, err)
	}

	store := cache.ForTest(testPath)
	path, err := store.SaveScreenshot(testPath, png)
	if err != nil && c.logger != nil {
		c.logger.Warn("could not cache screenshot", map[string]interface{}{"error": err.Error()})
	}
	if c.logger != nil {
		c.logger.Info("screenshot captured", map[string]interface{}{
			"url":   url,
			"path":  path,
			"bytes": len(png),
		})
	}
	return png, nil
}

// ExtractURL prefers the first page.goto("...") target and falls back to the first http(s) URL.
func ExtractURL(source string) string {
	if m := gotoPattern.FindStringSubmatch(source); m != nil {
		return m[1]
	}
	return urlPattern.FindString(source)
}

// LookPath reports the browser binary go-rod would launch, if one is installed.
func LookPath() (string, bool) {
	return launcher.LookPath()
}

func rodShooter(headless bool, logger ports.Logger) ShootFunc {
	return func(ctx context.Context, url string) ([]byte, error) {
		l := launcher.New().Headless(headless).Context(ctx)
		controlURL, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		defer l.Cleanup()
		defer l.Kill()

		browser := rod.New().ControlURL(controlURL).Context(ctx)
		if err := browser.Connect(); err != nil {
			return nil, fmt.Errorf("connect to browser: %w", err)
		}
		defer browser.Close()

		page, err := browser.Page(proto.TargetCreateTarget{})
		if err != nil {
			return nil, fmt.Errorf("create page: %w", err)
		}
		if err := (proto.EmulationSetDeviceMetricsOverride{
			Width:             viewportWidth,
			Height:            viewportHeight,
			DeviceScaleFactor: 1.0,
		}).Call(page); err != nil {
			logDebug(logger, "viewport override failed", url, err)
		}

		if err := page.Navigate(url); err != nil {
			return nil, fmt.Errorf("navigate: %w", err)
		}
		if err := page.WaitLoad(); err != nil {
			logDebug(logger, "page did not finish loading", url, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(settleDelay):
		}
		return page.Screenshot(true, nil)
	}
}

// logDebug records a non-fatal browser error; the screenshot is still taken.
func logDebug(logger ports.Logger, msg, url string, err error) {
	if logger == nil {
		return
	}
	logger.Debug(msg, map[string]interface{}{"url": url, "error": err.Error()})
}

var _ ports.ScreenshotCapturer = (*Capturer)(nil)
