// Package cache manages the per-project .kernhell_cache directory.
package cache

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/kernhell/kernhell-go/internal/domain"
	"github.com/kernhell/kernhell-go/internal/pkg/fsutil"
)

const (
	screenshotsDir        = "screenshots"
	defaultMaxScreenshots = 50
)

// FileCache stores failure screenshots next to the tests that produced them.
type FileCache struct {
	root           string
	mu             sync.Mutex
	maxScreenshots int
}

// New returns a cache rooted at <projectDir>/.kernhell_cache.
func New(projectDir string) *FileCache {
	return &FileCache{
		root:           filepath.Join(projectDir, domain.CacheDirName),
		maxScreenshots: defaultMaxScreenshots,
	}
}

// ForTest returns the cache of the directory holding testPath.
func ForTest(testPath string) *FileCache {
	abs, err := filepath.Abs(testPath)
	if err != nil {
		abs = testPath
	}
	return New(filepath.Dir(abs))
}

// Dir exposes the cache directory path.
func (c *FileCache) Dir() string {
	return c.root
}

// ScreenshotPath is where the failure screenshot of a test stem lives.
func (c *FileCache) ScreenshotPath(testPath string) string {
	base := filepath.Base(testPath)
	stem := base[:len(base)-len(filepath.Ext(base))]
	return filepath.Join(c.root, screenshotsDir, "fail_"+stem+".png")
}

// SaveScreenshot writes a screenshot and evicts the oldest ones past the bound.
func (c *FileCache) SaveScreenshot(testPath string, png []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	path := c.ScreenshotPath(testPath)
	if err := fsutil.WriteFileAtomic(path, png, 0o644); err != nil {
		return "", err
	}
	return path, c.evictIfNeeded()
}

// Screenshot returns a previously saved screenshot.
func (c *FileCache) Screenshot(testPath string) ([]byte, bool) {
	data, err := os.ReadFile(c.ScreenshotPath(testPath))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

// Exists reports whether the cache directory is present.
func (c *FileCache) Exists() bool {
	info, err := os.Stat(c.root)
	return err == nil && info.IsDir()
}

// Size returns the total bytes held by the cache.
func (c *FileCache) Size() (int64, error) {
	if !c.Exists() {
		return 0, nil
	}
	return fsutil.DirSize(c.root)
}

// Clear removes the whole cache directory and returns the bytes freed.
func (c *FileCache) Clear() (int64, error) {
	size, err := c.Size()
	if err != nil {
		return 0, err
	}
	if err := os.RemoveAll(c.root); err != nil {
		return 0, err
	}
	return size, nil
}

func (c *FileCache) evictIfNeeded() error {
	if c.maxScreenshots <= 0 {
		return nil
	}
	dir := filepath.Join(c.root, screenshotsDir)
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(files) <= c.maxScreenshots {
		return nil
	}
	type fileInfo struct {
		name string
		mod  time.Time
	}
	var infos []fileInfo
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		infos = append(infos, fileInfo{name: f.Name(), mod: info.ModTime()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].mod.Before(infos[j].mod) })
	for len(infos) > c.maxScreenshots {
		_ = os.Remove(filepath.Join(dir, infos[0].name))
		infos = infos[1:]
	}
	return nil
}
