// Package memory remembers fixes that worked so similar failures can skip the AI call.
package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/kernhell/kernhell-go/internal/domain"
	"github.com/kernhell/kernhell-go/internal/pkg/fsutil"
	"github.com/kernhell/kernhell-go/internal/ports"
)

// Store is a bounded, JSON-persisted log of healing records.
type Store struct {
	path       string
	maxRecords int
	logger     ports.Logger
	now        func() time.Time

	mu      sync.Mutex
	records []domain.HealingRecord
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the logger used for swallowed persistence errors.
func WithLogger(logger ports.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithMaxRecords overrides the retention bound.
func WithMaxRecords(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxRecords = n
		}
	}
}

// WithClock replaces time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open loads the memory file. Missing or malformed files yield an empty log.
func Open(path string, opts ...Option) *Store {
	s := &Store{
		path:       path,
		maxRecords: domain.DefaultMaxMemoryRecords,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	var records []domain.HealingRecord
	if err := fsutil.ReadJSON(path, &records); err != nil {
		records = nil
	}
	s.records = records
	return s
}

// Recall returns the best successful record whose snippet is at least threshold-similar
// to errText. Records are scanned newest first, so ties go to the most recent fix.
func (s *Store) Recall(errText string, threshold float64) (domain.HealingRecord, bool) {
	query := strings.ToLower(Snippet(errText))
	if query == "" {
		return domain.HealingRecord{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		best      domain.HealingRecord
		bestScore = -1.0
	)
	for i := len(s.records) - 1; i >= 0; i-- {
		rec := s.records[i]
		if !rec.Success {
			continue
		}
		score := Similarity(query, strings.ToLower(rec.ErrorSnippet))
		if score >= threshold && score > bestScore {
			best, bestScore = rec, score
		}
	}
	if bestScore < 0 {
		return domain.HealingRecord{}, false
	}
	return best, true
}

// Remember appends a record and keeps only the most recent entries.
func (s *Store) Remember(errText, fix string, success bool, b domain.Backend) {
	rec := domain.HealingRecord{
		Fingerprint:  Fingerprint(errText),
		ErrorSnippet: Snippet(errText),
		Fix:          fix,
		Success:      success,
		Backend:      b,
		Timestamp:    s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	if overflow := len(s.records) - s.maxRecords; overflow > 0 {
		s.records = append([]domain.HealingRecord(nil), s.records[overflow:]...)
	}
	s.saveLocked()
}

// Records returns a copy of the log, oldest first.
func (s *Store) Records() []domain.HealingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.HealingRecord(nil), s.records...)
}

// Clear forgets everything.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	return fsutil.WriteJSONAtomic(s.path, []domain.HealingRecord{}, domain.SecureFilePermissions)
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) saveLocked() {
	records := s.records
	if records == nil {
		records = []domain.HealingRecord{}
	}
	if err := fsutil.WriteJSONAtomic(s.path, records, domain.SecureFilePermissions); err != nil && s.logger != nil {
		s.logger.Warn("failed to persist healing memory", map[string]interface{}{
			"path":  s.path,
			"error": err.Error(),
		})
	}
}

// Snippet truncates an error to the stored length, on a rune boundary.
func Snippet(errText string) string {
	if utf8.RuneCountInString(errText) <= domain.MaxErrorSnippetLength {
		return errText
	}
	runes := []rune(errText)
	return string(runes[:domain.MaxErrorSnippetLength])
}

// Fingerprint is a short stable hash of the whitespace-normalized, lowercased error.
func Fingerprint(errText string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(errText), " "))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:8])
}

// Similarity is the character-level matching ratio 2*M/T of two strings, in [0, 1].
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	m := difflib.NewMatcher(splitRunes(a), splitRunes(b))
	return m.Ratio()
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

var _ ports.HealingMemory = (*Store)(nil)
