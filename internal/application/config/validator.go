package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kernhell/kernhell-go/internal/domain"
)

// Validate ensures config structure is consistent.
func Validate(cfg domain.Config) error {
	if err := validateHealing(cfg.Healing); err != nil {
		return err
	}
	if err := validateMemory(cfg.Memory); err != nil {
		return err
	}
	if err := validateQuota(cfg.Quota); err != nil {
		return err
	}
	if err := validateLogging(cfg.Logging); err != nil {
		return err
	}
	if cfg.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func validateHealing(h domain.HealingSettings) error {
	if h.MaxRetries < 0 {
		return fmt.Errorf("healing.max_retries must be >= 0, got %d", h.MaxRetries)
	}
	if h.EscalateAtAttempt < 0 {
		return fmt.Errorf("healing.escalate_at_attempt must be >= 0, got %d", h.EscalateAtAttempt)
	}
	if strings.TrimSpace(h.Interpreter) == "" {
		return errors.New("healing.interpreter must be set")
	}
	if len(h.TestPatterns) == 0 {
		return errors.New("healing.test_patterns must list at least one pattern")
	}
	for _, pattern := range h.TestPatterns {
		if _, err := filepath.Match(pattern, "x"); err != nil {
			return fmt.Errorf("healing.test_patterns: bad pattern %q: %w", pattern, err)
		}
	}
	return nil
}

func validateMemory(m domain.MemorySettings) error {
	if m.Threshold <= 0 || m.Threshold > 1 {
		return fmt.Errorf("memory.threshold must be in (0, 1], got %v", m.Threshold)
	}
	if m.MaxRecords <= 0 {
		return fmt.Errorf("memory.max_records must be > 0")
	}
	return nil
}

func validateQuota(q domain.QuotaSettings) error {
	if q.TimeZone != "" {
		if _, err := time.LoadLocation(q.TimeZone); err != nil {
			return fmt.Errorf("quota.time_zone invalid: %w", err)
		}
	}
	if q.RetentionDays < 0 {
		return fmt.Errorf("quota.retention_days must be >= 0")
	}
	for b, limit := range q.DailyLimits {
		if !b.Valid() {
			return fmt.Errorf("quota.daily_limits: %w %q", domain.ErrUnknownBackend, b)
		}
		if limit < 0 {
			return fmt.Errorf("quota.daily_limits.%s must be >= 0", b)
		}
	}
	return nil
}

func validateLogging(l domain.LoggingSettings) error {
	if l.Level == "" {
		return nil
	}
	if _, err := logrus.ParseLevel(l.Level); err != nil {
		return fmt.Errorf("logging.level invalid: %w", err)
	}
	return nil
}
