// Package history keeps the run log: one row per terminal heal outcome.
package history

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/kernhell/kernhell-go/internal/domain"
	"github.com/kernhell/kernhell-go/internal/ports"
)

// FileStore appends runs to a jsonl file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a run log backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Record implements ports.RunRecorder.
func (f *FileStore) Record(run domain.HealingRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(f.path), domain.DirectoryPermissions); err != nil {
		return err
	}
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	_, err = file.Write(append(data, '\n'))
	return err
}

// Recent returns up to limit runs, newest first. limit <= 0 returns everything.
func (f *FileStore) Recent(limit int) ([]domain.HealingRun, error) {
	runs, err := f.all()
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Stats aggregates the whole log.
func (f *FileStore) Stats() (domain.RunStats, error) {
	runs, err := f.all()
	if err != nil {
		return domain.RunStats{}, err
	}
	healed := 0
	for _, r := range runs {
		if r.Healed {
			healed++
		}
	}
	return newStats(len(runs), healed), nil
}

// Clear removes the log file.
func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ExportJSON writes the log, oldest first, to dest as jsonl.
func (f *FileStore) ExportJSON(dest string) error {
	runs, err := f.all()
	if err != nil {
		return err
	}
	return writeJSONL(dest, runs)
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

// all loads every run, skipping lines that do not decode.
func (f *FileStore) all() ([]domain.HealingRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var runs []domain.HealingRun
	for _, line := range bytes.Split(bytes.TrimSpace(data), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var run domain.HealingRun
		if err := json.Unmarshal(line, &run); err == nil {
			runs = append(runs, run)
		}
	}
	return runs, nil
}

func newStats(total, healed int) domain.RunStats {
	return domain.RunStats{
		TotalRuns:   total,
		TotalHealed: healed,
		SavedHours:  float64(healed) * domain.SavedHoursPerHeal,
	}
}

func writeJSONL(dest string, runs []domain.HealingRun) error {
	file, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer file.Close()
	for _, run := range runs {
		b, err := json.Marshal(run)
		if err != nil {
			return err
		}
		if _, err := file.Write(append(b, '\n')); err != nil {
			return err
		}
	}
	return nil
}

var _ ports.RunHistory = (*FileStore)(nil)
