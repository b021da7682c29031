// Package selectors suggests replacement selectors from the project's app map.
package selectors

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kernhell/kernhell-go/internal/domain"
	"github.com/kernhell/kernhell-go/internal/infrastructure/memory"
	"github.com/kernhell/kernhell-go/internal/pkg/fsutil"
	"github.com/kernhell/kernhell-go/internal/ports"
)

// AppMapFileName lives inside the per-project cache directory.
const AppMapFileName = "app_map.json"

const minScore = 0.3

// Element is one interactive element recorded in the app map.
type Element struct {
	Selector  string `json:"selector"`
	Text      string `json:"text,omitempty"`
	Role      string `json:"role,omitempty"`
	Page      string `json:"page,omitempty"`
	AriaLabel string `json:"aria_label,omitempty"`
}

// AppMap is the on-disk layout of app_map.json.
type AppMap struct {
	Elements []Element `json:"elements"`
}

// Lookup ranks app map selectors by similarity to a selector that stopped matching.
type Lookup struct {
	logger ports.Logger
}

// NewLookup builds a Lookup. The app map is read on every call so edits show up immediately.
func NewLookup(logger ports.Logger) *Lookup {
	return &Lookup{logger: logger}
}

// MapPath is where the app map for a test lives.
func MapPath(testPath string) string {
	abs, err := filepath.Abs(testPath)
	if err != nil {
		abs = testPath
	}
	return filepath.Join(filepath.Dir(abs), domain.CacheDirName, AppMapFileName)
}

// Alternatives returns up to limit selectors, best first. A missing map yields no matches.
func (l *Lookup) Alternatives(ctx context.Context, testPath, selector string, limit int) ([]domain.SelectorMatch, error) {
	if strings.TrimSpace(selector) == "" || limit <= 0 {
		return nil, nil
	}
	var m AppMap
	if err := fsutil.ReadJSON(MapPath(testPath), &m); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matches := Rank(m.Elements, selector)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	if l.logger != nil {
		l.logger.Debug("selector alternatives", map[string]interface{}{
			"selector": selector,
			"found":    len(matches),
		})
	}
	return matches, nil
}

// Rank scores every element against the failed selector, dropping the selector itself and
// anything below the noise floor.
func Rank(elements []Element, failed string) []domain.SelectorMatch {
	query := strings.ToLower(normalize(failed))
	seen := make(map[string]bool, len(elements))
	var matches []domain.SelectorMatch
	for _, el := range elements {
		if el.Selector == "" || el.Selector == failed || seen[el.Selector] {
			continue
		}
		seen[el.Selector] = true

		score := memory.Similarity(query, strings.ToLower(normalize(el.Selector)))
		for _, hint := range []string{el.Text, el.AriaLabel} {
			if hint == "" {
				continue
			}
			if s := memory.Similarity(query, strings.ToLower(hint)); s > score {
				score = s
			}
		}
		if score < minScore {
			continue
		}
		matches = append(matches, domain.SelectorMatch{Selector: el.Selector, Score: score})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return matches
}

// normalize strips selector punctuation so "#login-btn" and "Login button" compare on words.
func normalize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '#', '.', '[', ']', '\'', '"', '=', '-', '_':
			return ' '
		}
		return r
	}, s)
}

var _ ports.SelectorLookup = (*Lookup)(nil)
