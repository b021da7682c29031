package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	appconfig "github.com/kernhell/kernhell-go/internal/application/config"
	"github.com/kernhell/kernhell-go/internal/domain"
	"github.com/kernhell/kernhell-go/internal/ports"
)

// Service runs environment diagnostics.
type Service struct {
	ConfigProvider ports.ConfigProvider
	Pool           ports.CredentialPool
	Quota          ports.QuotaTracker
	History        ports.RunHistory

	// LookPath finds the test interpreter; defaults to exec.LookPath.
	LookPath func(string) (string, error)
	// BrowserPath finds the headless browser used for screenshots.
	BrowserPath func() (string, bool)
	// Guardrail is the loaded fix screen, nil when disabled.
	Guardrail RuleSet
}

// RuleSet reports how many guardrail rules are active.
type RuleSet interface {
	Rules() int
}

// Run executes checks and returns a report.
func (s *Service) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Config file", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	if err := appconfig.Validate(cfg); err != nil {
		checks = append(checks, fail("Config file", err.Error()))
	} else {
		checks = append(checks, ok("Config file", fmt.Sprintf("format v%s", cfg.ConfigFormatVersion)))
	}

	checks = append(checks, stateDirCheck(cfg.Paths.StateDir))

	if s.Pool != nil {
		checks = append(checks, credentialsCheck(s.Pool))
		if s.Quota != nil {
			checks = append(checks, quotaChecks(s.Pool, s.Quota)...)
		}
	}

	checks = append(checks, s.interpreterCheck(cfg.Healing.Interpreter))
	checks = append(checks, s.browserCheck(cfg.Screenshot.Enabled))
	checks = append(checks, s.guardrailCheck(cfg.Guardrail))

	if s.History != nil {
		if stats, err := s.History.Stats(); err != nil {
			checks = append(checks, warn("Run log", err.Error()))
		} else {
			checks = append(checks, ok("Run log", fmt.Sprintf("%d runs, %d healed, ~%.1fh saved (%s)",
				stats.TotalRuns, stats.TotalHealed, stats.SavedHours, s.History.Path())))
		}
	}

	return domain.HealthReport{Checks: checks}, nil
}

func stateDirCheck(dir string) domain.HealthCheck {
	if err := os.MkdirAll(dir, domain.DirectoryPermissions); err != nil {
		return fail("State directory", err.Error())
	}
	probe, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return fail("State directory", fmt.Sprintf("%s not writable: %v", dir, err))
	}
	probe.Close()
	os.Remove(probe.Name())
	return ok("State directory", dir)
}

func credentialsCheck(pool ports.CredentialPool) domain.HealthCheck {
	if pool.Total() == 0 {
		return fail("API keys", "none configured; run `kernhell config add-key <KEY> --provider <name>`")
	}
	counts := pool.CountsByBackend()
	parts := make([]string, 0, len(domain.BackendOrder))
	for _, b := range domain.BackendOrder {
		parts = append(parts, fmt.Sprintf("%s=%d", b, counts[b]))
	}
	active, _ := pool.Active()
	return ok("API keys", fmt.Sprintf("%s (active: %s)", strings.Join(parts, " "), active))
}

func quotaChecks(pool ports.CredentialPool, quota ports.QuotaTracker) []domain.HealthCheck {
	var backends []domain.Backend
	for b, n := range pool.CountsByBackend() {
		if n > 0 {
			backends = append(backends, b)
		}
	}
	sort.Slice(backends, func(i, j int) bool { return backends[i] < backends[j] })

	checks := make([]domain.HealthCheck, 0, len(backends))
	for _, b := range backends {
		name := "Quota " + string(b)
		remaining := quota.Remaining(b)
		switch {
		case remaining >= domain.UnlimitedQuota:
			checks = append(checks, ok(name, "unlimited"))
		case remaining == 0:
			checks = append(checks, warn(name, fmt.Sprintf("exhausted for today (%d used)", quota.Used(b))))
		default:
			checks = append(checks, ok(name, fmt.Sprintf("%d remaining today", remaining)))
		}
	}
	return checks
}

func (s *Service) interpreterCheck(interpreter string) domain.HealthCheck {
	lookPath := s.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	path, err := lookPath(interpreter)
	if err != nil {
		return fail("Interpreter", fmt.Sprintf("%s not found on PATH", interpreter))
	}
	return ok("Interpreter", path)
}

func (s *Service) browserCheck(screenshots bool) domain.HealthCheck {
	if !screenshots {
		return ok("Browser", "screenshots disabled")
	}
	if s.BrowserPath == nil {
		return warn("Browser", "browser lookup not configured")
	}
	if path, found := s.BrowserPath(); found {
		return ok("Browser", path)
	}
	return warn("Browser", "no Chrome/Chromium found; failures will be diagnosed text-only")
}

func (s *Service) guardrailCheck(settings domain.GuardrailSettings) domain.HealthCheck {
	if !settings.Enabled {
		return warn("Guardrail", "disabled; generated fixes are applied unscreened")
	}
	if s.Guardrail == nil {
		return warn("Guardrail", "enabled but not loaded")
	}
	source := "built-in rules"
	if settings.RulesFile != "" {
		if _, err := os.Stat(settings.RulesFile); err == nil {
			source = settings.RulesFile
		}
	}
	return ok("Guardrail", fmt.Sprintf("%d rules from %s", s.Guardrail.Rules(), source))
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}
