package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// TestTimeout returns the wall-clock bound of one test execution.
func (c *Config) TestTimeout() time.Duration {
	return secondsOr(c.Healing.TestTimeoutSeconds, DefaultTestTimeout)
}

// ScreenshotTimeout bounds failure screenshot capture.
func (c *Config) ScreenshotTimeout() time.Duration {
	return secondsOr(c.Screenshot.TimeoutSeconds, DefaultScreenshotTimeout)
}

// RequestTimeout bounds a single backend call.
func (c *Config) RequestTimeout() time.Duration {
	return secondsOr(c.Backends.RequestTimeoutSeconds, DefaultRequestTimeout)
}

// WatchDebounce is the per-file quiet period in watch mode.
func (c *Config) WatchDebounce() time.Duration {
	return secondsOr(c.Watch.DebounceSeconds, DefaultWatchDebounce)
}

// MaxRetries returns the retry budget; a file is executed at most MaxRetries+1 times.
func (c *Config) MaxRetries() int {
	if c.Healing.MaxRetries < 0 {
		return 0
	}
	return c.Healing.MaxRetries
}

// DailyLimit returns the configured ceiling for a backend.
// The second value is false when the backend has no limit.
func (c *Config) DailyLimit(b Backend) (int, bool) {
	limit, ok := c.Quota.DailyLimits[b]
	if !ok || limit <= 0 {
		return 0, false
	}
	return limit, true
}

// Location resolves the quota reference time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c.Quota.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Quota.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StatePath joins a file name onto the state directory.
func (c *Config) StatePath(name string) string {
	return filepath.Join(c.Paths.StateDir, name)
}

// ShouldCaptureScreenshot decides whether a failure screenshot is worth taking:
// always on the first failure, afterwards only when the error mentions one of the hints.
func (c *Config) ShouldCaptureScreenshot(attempt int, errText string) bool {
	if !c.Screenshot.Enabled {
		return false
	}
	if attempt == 0 {
		return true
	}
	haystack := errText
	if !c.Screenshot.CaseSensitive {
		haystack = strings.ToLower(haystack)
	}
	for _, hint := range c.Screenshot.Hints {
		if hint == "" {
			continue
		}
		needle := hint
		if !c.Screenshot.CaseSensitive {
			needle = strings.ToLower(needle)
		}
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

// IsTestFile reports whether a file name matches any configured test pattern.
func (c *Config) IsTestFile(name string) bool {
	base := filepath.Base(name)
	for _, pattern := range c.Healing.TestPatterns {
		if ok, err := filepath.Match(pattern, base); err == nil && ok {
			return true
		}
	}
	return false
}

func secondsOr(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
