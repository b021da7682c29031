// Package quota counts daily backend calls against free-tier ceilings.
package quota

import (
	"sync"
	"time"

	"github.com/kernhell/kernhell-go/internal/domain"
	"github.com/kernhell/kernhell-go/internal/pkg/fsutil"
	"github.com/kernhell/kernhell-go/internal/ports"
)

// usage is the on-disk shape: backend -> {"2006-01-02": count}.
type usage map[domain.Backend]map[string]int

// Tracker persists per-day counts to a JSON file. Write failures are logged and swallowed.
type Tracker struct {
	path      string
	limits    map[domain.Backend]int
	location  *time.Location
	retention int
	logger    ports.Logger
	now       func() time.Time

	mu     sync.Mutex
	counts usage
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithClock replaces time.Now, mostly for tests around day boundaries.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLogger sets the logger used for swallowed persistence errors.
func WithLogger(logger ports.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// Open loads the quota file and prunes stale days.
func Open(path string, cfg domain.Config, opts ...Option) *Tracker {
	limits := make(map[domain.Backend]int)
	for _, b := range domain.BackendOrder {
		if limit, ok := cfg.DailyLimit(b); ok {
			limits[b] = limit
		}
	}
	retention := cfg.Quota.RetentionDays
	if retention <= 0 {
		retention = domain.DefaultQuotaRetentionDays
	}

	t := &Tracker{
		path:      path,
		limits:    limits,
		location:  cfg.Location(),
		retention: retention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.Reload()
	return t
}

// Reload re-reads the file and drops every date older than the retention window.
func (t *Tracker) Reload() {
	counts := make(usage)
	if err := fsutil.ReadJSON(t.path, &counts); err != nil {
		counts = make(usage)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts = counts
	if t.pruneLocked() {
		t.saveLocked()
	}
}

// CanUse reports whether today's count is still under the backend's limit.
func (t *Tracker) CanUse(b domain.Backend) bool {
	limit, ok := t.limits[b]
	if !ok {
		return true
	}
	return t.Used(b) < limit
}

// RecordUsage increments today's count.
func (t *Tracker) RecordUsage(b domain.Backend) {
	t.mu.Lock()
	defer t.mu.Unlock()
	day := t.today()
	if t.counts[b] == nil {
		t.counts[b] = make(map[string]int)
	}
	t.counts[b][day]++
	t.saveLocked()
}

// Used returns today's count.
func (t *Tracker) Used(b domain.Backend) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[b][t.today()]
}

// Remaining is limit minus today's usage, never negative.
// Backends without a limit report domain.UnlimitedQuota.
func (t *Tracker) Remaining(b domain.Backend) int {
	limit, ok := t.limits[b]
	if !ok {
		return domain.UnlimitedQuota
	}
	left := limit - t.Used(b)
	if left < 0 {
		return 0
	}
	return left
}

// Limit returns the configured ceiling, if any.
func (t *Tracker) Limit(b domain.Backend) (int, bool) {
	limit, ok := t.limits[b]
	return limit, ok
}

func (t *Tracker) today() string {
	return t.now().In(t.location).Format(domain.QuotaDateFormat)
}

// pruneLocked removes dates before the retention cutoff and keys that are not dates.
func (t *Tracker) pruneLocked() bool {
	now := t.now().In(t.location)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, t.location)
	cutoff := midnight.AddDate(0, 0, -t.retention)

	changed := false
	for b, days := range t.counts {
		for day := range days {
			parsed, err := time.ParseInLocation(domain.QuotaDateFormat, day, t.location)
			if err != nil || parsed.Before(cutoff) {
				delete(days, day)
				changed = true
			}
		}
		if len(days) == 0 {
			delete(t.counts, b)
			changed = true
		}
	}
	return changed
}

func (t *Tracker) saveLocked() {
	if err := fsutil.WriteJSONAtomic(t.path, t.counts, domain.SecureFilePermissions); err != nil && t.logger != nil {
		t.logger.Warn("failed to persist quota usage", map[string]interface{}{
			"path":  t.path,
			"error": err.Error(),
		})
	}
}

var _ ports.QuotaTracker = (*Tracker)(nil)
