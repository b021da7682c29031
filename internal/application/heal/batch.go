package heal

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/kernhell/kernhell-go/internal/domain"
)

// CollectTests walks root and returns every file matching the configured test patterns,
// sorted and without duplicates. The project cache is never descended into.
func CollectTests(root string, cfg domain.Config) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && d.Name() == domain.CacheDirName {
				return filepath.SkipDir
			}
			return nil
		}
		if !cfg.IsTestFile(d.Name()) || seen[path] {
			return nil
		}
		seen[path] = true
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// HealDir heals every test under root in sorted order. A failing file never stops the
// batch; only a missing-credentials error does, since it would fail every file alike.
func (s *Service) HealDir(ctx context.Context, root string) (domain.BatchReport, error) {
	files, err := CollectTests(root, s.Config)
	if err != nil {
		return domain.BatchReport{}, err
	}

	var report domain.BatchReport
	s.Logger.Info("healing directory", map[string]interface{}{"root": root, "files": len(files)})
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		outcome, err := s.HealFile(ctx, file)
		report.Outcomes = append(report.Outcomes, outcome)
		if !outcome.Healed() {
			report.Failures++
		}
		if err != nil {
			return report, err
		}
	}
	return report, nil
}
