// Package credentials keeps the per-backend API key pool and its active selection.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/kernhell/kernhell-go/internal/domain"
	"github.com/kernhell/kernhell-go/internal/pkg/fsutil"
	"github.com/kernhell/kernhell-go/internal/ports"
)

// Pool stores ordered credentials per backend in a JSON file
// ({"google": [...], "groq": [...]}) and tracks which one is in use.
type Pool struct {
	path string

	mu          sync.Mutex
	keys        map[domain.Backend][]string
	active      domain.Backend
	activeIndex int
}

// Open loads the pool at path. A missing or malformed file yields an empty pool.
func Open(path string) (*Pool, error) {
	p := &Pool{path: path}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload re-reads the file, discarding the in-memory copy. The selection is reset
// to the first backend that has credentials.
func (p *Pool) Reload() error {
	keys, migrated := load(p.path)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = keys
	p.active = p.defaultBackendLocked()
	p.activeIndex = 0

	if migrated {
		return p.saveLocked()
	}
	if _, err := os.Stat(p.path); errors.Is(err, fs.ErrNotExist) {
		return p.saveLocked()
	}
	return nil
}

// Path returns the backing file path.
func (p *Pool) Path() string {
	return p.path
}

// Add appends a credential to a backend's rotation.
func (p *Pool) Add(b domain.Backend, credential string) error {
	if !b.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownBackend, b)
	}
	if credential == "" {
		return fmt.Errorf("%w: empty key", domain.ErrMalformedCredential)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.keys[b] {
		if existing == credential {
			return fmt.Errorf("%w for %s", domain.ErrCredentialExists, b)
		}
	}
	p.keys[b] = append(p.keys[b], credential)
	if p.countLocked(p.active) == 0 {
		p.active = b
		p.activeIndex = 0
	}
	return p.saveLocked()
}

// Remove deletes a credential. With an empty backend every backend is searched
// in total order and the first match is removed. It returns the backend the key came from.
func (p *Pool) Remove(credential string, b domain.Backend) (domain.Backend, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	candidates := domain.BackendOrder
	if b != "" {
		if !b.Valid() {
			return "", fmt.Errorf("%w: %q", domain.ErrUnknownBackend, b)
		}
		candidates = []domain.Backend{b}
	}

	for _, backend := range candidates {
		list := p.keys[backend]
		for i, existing := range list {
			if existing != credential {
				continue
			}
			p.keys[backend] = append(list[:i:i], list[i+1:]...)
			if backend == p.active {
				if i < p.activeIndex {
					p.activeIndex--
				}
				if p.activeIndex >= len(p.keys[backend]) {
					p.activeIndex = 0
				}
			}
			return backend, p.saveLocked()
		}
	}
	if b != "" {
		return "", fmt.Errorf("%w in %s", domain.ErrCredentialNotFound, b)
	}
	return "", fmt.Errorf("%w in any provider", domain.ErrCredentialNotFound)
}

// ActiveCredential returns the credential in use, if the active backend has any.
func (p *Pool) ActiveCredential() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeCredentialLocked()
}

// Rotate advances to the next credential of the active backend.
func (p *Pool) Rotate() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.countLocked(p.active)
	if n == 0 {
		return "", false
	}
	p.activeIndex = (p.activeIndex + 1) % n
	return p.activeCredentialLocked()
}

// SwitchBackend moves to the next backend in total order, after the active one,
// that has at least one credential. It reports false when a full cycle finds none.
func (p *Pool) SwitchBackend() (domain.Backend, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := indexOf(p.active)
	total := len(domain.BackendOrder)
	for step := 1; step < total; step++ {
		next := domain.BackendOrder[(start+step)%total]
		if p.countLocked(next) > 0 {
			p.active = next
			p.activeIndex = 0
			return next, true
		}
	}
	return "", false
}

// Select makes b active if it has credentials.
func (p *Pool) Select(b domain.Backend) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.countLocked(b) == 0 {
		return false
	}
	p.active = b
	p.activeIndex = 0
	return true
}

// Active returns the active backend and raw index.
func (p *Pool) Active() (domain.Backend, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active, p.activeIndex
}

// Count returns how many credentials a backend holds.
func (p *Pool) Count(b domain.Backend) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.countLocked(b)
}

// Total counts credentials across all backends.
func (p *Pool) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, list := range p.keys {
		total += len(list)
	}
	return total
}

// CountsByBackend reports credential counts for every known backend.
func (p *Pool) CountsByBackend() map[domain.Backend]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	counts := make(map[domain.Backend]int, len(domain.BackendOrder))
	for _, b := range domain.BackendOrder {
		counts[b] = len(p.keys[b])
	}
	return counts
}

// Credentials returns a copy of a backend's credentials.
func (p *Pool) Credentials(b domain.Backend) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys[b]...)
}

func (p *Pool) activeCredentialLocked() (string, bool) {
	list := p.keys[p.active]
	if len(list) == 0 {
		return "", false
	}
	return list[p.activeIndex%len(list)], true
}

func (p *Pool) countLocked(b domain.Backend) int {
	return len(p.keys[b])
}

func (p *Pool) defaultBackendLocked() domain.Backend {
	for _, b := range domain.BackendOrder {
		if len(p.keys[b]) > 0 {
			return b
		}
	}
	return domain.BackendGoogle
}

func (p *Pool) saveLocked() error {
	out := make(map[string][]string, len(domain.BackendOrder))
	for _, b := range domain.BackendOrder {
		list := p.keys[b]
		if list == nil {
			list = []string{}
		}
		out[string(b)] = list
	}
	if err := fsutil.WriteJSONAtomic(p.path, out, domain.SecureFilePermissions); err != nil {
		return fmt.Errorf("save key pool: %w", err)
	}
	return nil
}

// load reads the key file defensively. The second value reports a legacy
// {"api_keys": [...]} file that was migrated into the google pool.
func load(path string) (map[domain.Backend][]string, bool) {
	keys := make(map[domain.Backend][]string, len(domain.BackendOrder))

	data, err := os.ReadFile(path)
	if err != nil {
		return keys, false
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return keys, false
	}

	if legacy, ok := raw["api_keys"]; ok {
		var list []string
		if err := json.Unmarshal(legacy, &list); err == nil {
			keys[domain.BackendGoogle] = dedupe(list)
			return keys, true
		}
	}

	for name, value := range raw {
		b := domain.Backend(name)
		if !b.Valid() {
			continue
		}
		var list []string
		if err := json.Unmarshal(value, &list); err != nil {
			continue
		}
		keys[b] = dedupe(list)
	}
	return keys, false
}

func dedupe(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, k := range list {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func indexOf(b domain.Backend) int {
	for i, candidate := range domain.BackendOrder {
		if candidate == b {
			return i
		}
	}
	return 0
}

var _ ports.CredentialPool = (*Pool)(nil)
