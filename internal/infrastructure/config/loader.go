package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kernhell/kernhell-go/assets"
	"github.com/kernhell/kernhell-go/internal/domain"
	"github.com/kernhell/kernhell-go/internal/pkg/filesystem"
	"github.com/kernhell/kernhell-go/internal/ports"
)

// EnvConfigPath overrides the config location.
const EnvConfigPath = "KERNHELL_CONFIG"

// FileLoader loads YAML configuration from ~/.kernhell/config.yaml (overridable via KERNHELL_CONFIG).
type FileLoader struct {
	overridePath string
}

// NewFileLoader builds a new loader.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{overridePath: path}
}

// Load implements ports.ConfigProvider.
// A missing file is created from the embedded defaults; keys absent from an existing
// file keep their default values.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	path := l.Path()
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return domain.Config{}, err
	}

	cfg, err := Defaults()
	if err != nil {
		return domain.Config{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if err := os.WriteFile(path, assets.DefaultConfigYAML, domain.SecureFilePermissions); err != nil {
				return domain.Config{}, err
			}
			return hydrate(cfg), nil
		}
		return domain.Config{}, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return hydrate(cfg), nil
}

// Path resolves the config file location.
func (l *FileLoader) Path() string {
	if l.overridePath != "" {
		return filesystem.ExpandHome(l.overridePath)
	}
	if custom := os.Getenv(EnvConfigPath); custom != "" {
		return filesystem.ExpandHome(custom)
	}
	return filepath.Join(filesystem.DefaultStateDir(), "config.yaml")
}

// Defaults parses the embedded default configuration with paths expanded.
func Defaults() (domain.Config, error) {
	var cfg domain.Config
	if err := yaml.Unmarshal(assets.DefaultConfigYAML, &cfg); err != nil {
		return domain.Config{}, fmt.Errorf("embedded defaults: %w", err)
	}
	return hydrate(cfg), nil
}

func hydrate(cfg domain.Config) domain.Config {
	if cfg.Paths.StateDir == "" {
		cfg.Paths.StateDir = "~/.kernhell"
	}
	cfg.Paths.StateDir = filesystem.ExpandHome(cfg.Paths.StateDir)
	if cfg.Guardrail.RulesFile != "" {
		cfg.Guardrail.RulesFile = filesystem.ExpandHome(cfg.Guardrail.RulesFile)
	}
	if cfg.Logging.File != "" {
		cfg.Logging.File = filesystem.ExpandHome(cfg.Logging.File)
	}
	if cfg.Healing.Interpreter == "" {
		cfg.Healing.Interpreter = domain.DefaultInterpreter
	}
	if cfg.Healing.EscalateAtAttempt <= 0 {
		cfg.Healing.EscalateAtAttempt = domain.DefaultEscalateAttempt
	}
	if len(cfg.Healing.TestPatterns) == 0 {
		cfg.Healing.TestPatterns = []string{"test_*.py", "*_test.py"}
	}
	if cfg.Memory.Threshold <= 0 || cfg.Memory.Threshold > 1 {
		cfg.Memory.Threshold = domain.DefaultRecallThreshold
	}
	if cfg.Memory.MaxRecords <= 0 {
		cfg.Memory.MaxRecords = domain.DefaultMaxMemoryRecords
	}
	if cfg.Quota.RetentionDays <= 0 {
		cfg.Quota.RetentionDays = domain.DefaultQuotaRetentionDays
	}
	if cfg.Backends.MaxTokens <= 0 {
		cfg.Backends.MaxTokens = domain.DefaultMaxTokens
	}
	return cfg
}

var _ ports.ConfigProvider = (*FileLoader)(nil)
