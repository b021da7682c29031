// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// The healing core in internal/application depends only on these contracts.
// Concrete adapters (AI SDK clients, JSON state files, process execution, the
// headless browser) live in internal/infrastructure and are wired together in
// internal/app.
package ports

import (
	"context"

	"github.com/kernhell/kernhell-go/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.kernhell/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// BackendClient is one AI backend integration.
// Invoke returns extracted code only; an empty string means the backend had nothing usable.
type BackendClient interface {
	Invoke(ctx context.Context, code, errorLog, credential string, image []byte) (string, error)
}

// CredentialVerifier is implemented by clients that can cheaply check a credential.
type CredentialVerifier interface {
	Verify(ctx context.Context, credential string) error
}

// VerifierSource hands out credential checkers per backend.
type VerifierSource interface {
	Verifier(b domain.Backend) (CredentialVerifier, bool)
}

// BackendRegistry maps a backend to its implementation and static capabilities.
type BackendRegistry interface {
	Client(domain.Backend) (BackendClient, bool)
	Spec(domain.Backend) (domain.BackendSpec, bool)
}

// CredentialPool holds ordered credentials per backend plus the active selection.
type CredentialPool interface {
	Add(b domain.Backend, credential string) error
	Remove(credential string, b domain.Backend) (domain.Backend, error)
	ActiveCredential() (string, bool)
	Rotate() (string, bool)
	SwitchBackend() (domain.Backend, bool)
	Select(b domain.Backend) bool
	Active() (domain.Backend, int)
	Count(b domain.Backend) int
	Total() int
	CountsByBackend() map[domain.Backend]int
	Credentials(b domain.Backend) []string
}

// QuotaTracker counts daily calls per backend against static limits.
type QuotaTracker interface {
	CanUse(b domain.Backend) bool
	RecordUsage(b domain.Backend)
	Remaining(b domain.Backend) int
	Used(b domain.Backend) int
}

// HealingMemory recalls fixes that worked for similar errors.
type HealingMemory interface {
	Recall(errText string, threshold float64) (domain.HealingRecord, bool)
	Remember(errText, fix string, success bool, b domain.Backend)
	Records() []domain.HealingRecord
}

// FixProvider obtains a code fix for one failing test.
type FixProvider interface {
	Fix(ctx context.Context, req domain.FixRequest) (domain.Fix, error)
}

// FixGuard screens proposed code before it is written and executed.
type FixGuard interface {
	Evaluate(code string) domain.RiskAssessment
}

// Patcher applies a proposed fix to a file on disk.
type Patcher interface {
	Apply(path, fixed string) (domain.PatchResult, error)
}

// TestRunner executes a test script once.
type TestRunner interface {
	Run(ctx context.Context, path string) domain.RunResult
}

// ScreenshotCapturer grabs the page a failing test was driving.
type ScreenshotCapturer interface {
	Capture(ctx context.Context, testPath string) ([]byte, error)
}

// SelectorLookup suggests selectors similar to one that failed.
type SelectorLookup interface {
	Alternatives(ctx context.Context, testPath, selector string, limit int) ([]domain.SelectorMatch, error)
}

// RunRecorder persists terminal healing outcomes.
type RunRecorder interface {
	Record(run domain.HealingRun) error
}

// RunHistory is the read side of the run log.
type RunHistory interface {
	RunRecorder
	Recent(limit int) ([]domain.HealingRun, error)
	Stats() (domain.RunStats, error)
	Clear() error
	ExportJSON(dest string) error
	Path() string
}

// Logger provides structured logging abstraction for the application layer.
// Implementations can route to different backends (stdout, files, external services).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
