package domain_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kernhell/kernhell-go/internal/domain"
)

// TestConfig_ShouldCaptureScreenshot covers both branches of the capture gate.
func TestConfig_ShouldCaptureScreenshot(t *testing.T) {
	base := domain.Config{
		Screenshot: domain.ScreenshotSettings{
			Enabled:       true,
			Hints:         []string{"Timeout", "Element"},
			CaseSensitive: true,
		},
	}

	tests := []struct {
		name          string
		attempt       int
		errText       string
		caseSensitive bool
		enabled       bool
		want          bool
	}{
		{name: "first failure always captures", attempt: 0, errText: "AssertionError", caseSensitive: true, enabled: true, want: true},
		{name: "later failure with timeout hint", attempt: 1, errText: "playwright Timeout 30000ms exceeded", caseSensitive: true, enabled: true, want: true},
		{name: "later failure with element hint", attempt: 2, errText: "Element is not visible", caseSensitive: true, enabled: true, want: true},
		{name: "later failure without hint", attempt: 1, errText: "AssertionError: expected 3", caseSensitive: true, enabled: true, want: false},
		{name: "case sensitive misses lowercase hint", attempt: 1, errText: "timeout exceeded", caseSensitive: true, enabled: true, want: false},
		{name: "case insensitive matches lowercase hint", attempt: 1, errText: "timeout exceeded", caseSensitive: false, enabled: true, want: true},
		{name: "disabled never captures", attempt: 0, errText: "Timeout", caseSensitive: true, enabled: false, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.Screenshot.CaseSensitive = tt.caseSensitive
			cfg.Screenshot.Enabled = tt.enabled
			if got := cfg.ShouldCaptureScreenshot(tt.attempt, tt.errText); got != tt.want {
				t.Errorf("ShouldCaptureScreenshot(%d, %q) = %v, want %v", tt.attempt, tt.errText, got, tt.want)
			}
		})
	}
}

// TestConfig_DailyLimit tests limit lookup, including unlimited backends
func TestConfig_DailyLimit(t *testing.T) {
	cfg := domain.Config{
		Quota: domain.QuotaSettings{DailyLimits: map[domain.Backend]int{
			domain.BackendGoogle:     1500,
			domain.BackendOpenRouter: 0,
		}},
	}

	if limit, ok := cfg.DailyLimit(domain.BackendGoogle); !ok || limit != 1500 {
		t.Fatalf("google limit = %d, %v", limit, ok)
	}
	if _, ok := cfg.DailyLimit(domain.BackendOpenRouter); ok {
		t.Fatal("zero limit should mean unlimited")
	}
	if _, ok := cfg.DailyLimit(domain.BackendNvidia); ok {
		t.Fatal("absent limit should mean unlimited")
	}
}

// TestConfig_Durations tests fallback durations
func TestConfig_Durations(t *testing.T) {
	var cfg domain.Config
	if cfg.TestTimeout() != domain.DefaultTestTimeout {
		t.Errorf("TestTimeout() = %v", cfg.TestTimeout())
	}
	if cfg.WatchDebounce() != domain.DefaultWatchDebounce {
		t.Errorf("WatchDebounce() = %v", cfg.WatchDebounce())
	}

	cfg.Healing.TestTimeoutSeconds = 5
	if cfg.TestTimeout() != 5*time.Second {
		t.Errorf("TestTimeout() = %v, want 5s", cfg.TestTimeout())
	}
	if cfg.Location() != time.UTC {
		t.Errorf("Location() = %v, want UTC", cfg.Location())
	}
	cfg.Quota.TimeZone = "Not/AZone"
	if cfg.Location() != time.UTC {
		t.Errorf("invalid zone should fall back to UTC")
	}
}

// TestConfig_IsTestFile tests pattern matching on base names
func TestConfig_IsTestFile(t *testing.T) {
	cfg := domain.Config{Healing: domain.HealingSettings{TestPatterns: []string{"test_*.py", "*_test.py"}}}

	tests := map[string]bool{
		"/tmp/tests/test_login.py": true,
		"checkout_test.py":         true,
		"conftest.py":              false,
		"test_login.py.bak":        false,
		"helpers.py":               false,
	}
	for name, want := range tests {
		if got := cfg.IsTestFile(name); got != want {
			t.Errorf("IsTestFile(%q) = %v, want %v", name, got, want)
		}
	}
}

// TestParseBackend tests identifier normalization
func TestParseBackend(t *testing.T) {
	b, err := domain.ParseBackend("  GROQ ")
	if err != nil || b != domain.BackendGroq {
		t.Fatalf("ParseBackend = %q, %v", b, err)
	}
	if _, err := domain.ParseBackend("anthropic"); !errors.Is(err, domain.ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
}

// TestBackendSpec_ModelFor tests vision model switching
func TestBackendSpec_ModelFor(t *testing.T) {
	spec, ok := domain.SpecFor(domain.BackendOpenRouter)
	if !ok {
		t.Fatal("openrouter spec missing")
	}
	if spec.ModelFor(false) != spec.Model {
		t.Errorf("text model = %q", spec.ModelFor(false))
	}
	if spec.ModelFor(true) != spec.VisionModel {
		t.Errorf("vision model = %q", spec.ModelFor(true))
	}
	if domain.SupportsVision(domain.BackendGroq) {
		t.Error("groq must not be vision capable")
	}
	if domain.ModelName("bogus") != "unknown" {
		t.Error("unknown backend should report unknown model")
	}
}

func TestExhaustionErrorMentionsRemediation(t *testing.T) {
	err := &domain.ExhaustionError{Attempted: []domain.Backend{domain.BackendGroq, domain.BackendGoogle}}
	msg := err.Error()
	for _, want := range []string{"groq, google", "kernhell config add-key"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}
