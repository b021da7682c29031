// Package heal drives the run, diagnose, patch and re-run loop for test files.
package heal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kernhell/kernhell-go/internal/domain"
	"github.com/kernhell/kernhell-go/internal/ports"
)

// Service heals one file at a time. All collaborators are shared across files.
type Service struct {
	Config      domain.Config
	Runner      ports.TestRunner
	Fixer       ports.FixProvider
	Patcher     ports.Patcher
	Pool        ports.CredentialPool
	Screenshots ports.ScreenshotCapturer
	Recorder    ports.RunRecorder
	Logger      ports.Logger

	// Guard screens every fix before it touches the file; nil applies fixes unchecked.
	Guard ports.FixGuard

	// Now stamps run log rows; defaults to time.Now.
	Now func() time.Time
}

// HealFile runs the retry loop for a single test file.
//
// The test runs at most MaxRetries+1 times. Every terminal outcome is written to the run
// log. The returned error is only set when no backend is configured at all, which would
// fail every other file the same way.
func (s *Service) HealFile(ctx context.Context, path string) (domain.HealOutcome, error) {
	if err := s.validate(); err != nil {
		return domain.HealOutcome{}, err
	}

	maxRetries := s.Config.MaxRetries()
	outcome := domain.HealOutcome{File: path, State: domain.HealFailed, Model: s.activeModel()}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			outcome.Reason = "cancelled"
			break
		}

		s.Logger.Info("running test", map[string]interface{}{"file": path, "attempt": attempt + 1})
		result := s.Runner.Run(ctx, path)
		outcome.Attempts = attempt + 1
		if result.Passed {
			outcome.State = domain.HealPassed
			outcome.Error = ""
			outcome.Reason = ""
			s.finish(outcome)
			return outcome, nil
		}

		outcome.Error = result.ErrorText()
		if attempt == maxRetries {
			outcome.Reason = "retry budget exhausted"
			break
		}

		fix, err := s.diagnose(ctx, path, attempt, outcome.Error)
		if err != nil {
			outcome.Reason = err.Error()
			s.finish(outcome)
			if errors.Is(err, domain.ErrNoCredentials) {
				return outcome, err
			}
			return outcome, nil
		}
		outcome.Model = fix.Model

		if reason, ok := s.screen(path, fix); !ok {
			outcome.Reason = reason
			break
		}

		patch, err := s.Patcher.Apply(path, fix.Code)
		if err != nil {
			outcome.Reason = err.Error()
			break
		}
		s.Logger.Info("fix applied", map[string]interface{}{
			"file":      path,
			"source":    fix.Source,
			"commented": patch.Commented,
			"inserted":  patch.Inserted,
		})
	}

	s.finish(outcome)
	return outcome, nil
}

// diagnose gathers context for the failed attempt and asks the fixer for a fix.
func (s *Service) diagnose(ctx context.Context, path string, attempt int, errText string) (domain.Fix, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return domain.Fix{}, fmt.Errorf("read test: %w", err)
	}

	req := domain.FixRequest{File: path, Code: string(code), ErrorLog: errText}

	if s.Screenshots != nil && s.Config.ShouldCaptureScreenshot(attempt, errText) {
		shot, err := s.Screenshots.Capture(ctx, path)
		if err != nil {
			s.Logger.Warn("screenshot unavailable, continuing text-only", map[string]interface{}{
				"file":  path,
				"error": err.Error(),
			})
		} else {
			req.Screenshot = shot
		}
	}

	if attempt > 0 {
		req.Feedback = Feedback(errText)
	}

	if attempt == s.escalateAt() && s.Pool != nil {
		if next, ok := s.Pool.SwitchBackend(); ok {
			req.Escalated = true
			s.Logger.Info("escalating to a second opinion", map[string]interface{}{"provider": next})
		}
	}

	fix, err := s.Fixer.Fix(ctx, req)
	if err != nil {
		return domain.Fix{}, err
	}
	if strings.TrimSpace(fix.Code) == "" {
		return domain.Fix{}, domain.ErrEmptyResponse
	}
	return fix, nil
}

// screen runs the guardrail over a fix. A blocked fix ends the loop without patching.
func (s *Service) screen(path string, fix domain.Fix) (string, bool) {
	if s.Guard == nil {
		return "", true
	}
	verdict := s.Guard.Evaluate(fix.Code)
	if len(verdict.Reasons) == 0 {
		return "", true
	}
	fields := map[string]interface{}{
		"file":    path,
		"source":  fix.Source,
		"level":   verdict.Level,
		"reasons": strings.Join(verdict.Reasons, "; "),
	}
	if !verdict.Blocked() {
		s.Logger.Warn("fix flagged by guardrail", fields)
		return "", true
	}
	s.Logger.Warn("fix rejected by guardrail", fields)
	return "fix rejected by guardrail: " + strings.Join(verdict.Reasons, "; "), false
}

// Feedback is the retry context sent along with a repeated failure.
func Feedback(errText string) string {
	return "Previous fix failed validation.\nError detected:\n" + errText + "\n\nFix this error specifically."
}

func (s *Service) finish(outcome domain.HealOutcome) {
	fields := map[string]interface{}{
		"file":     outcome.File,
		"state":    outcome.State,
		"attempts": outcome.Attempts,
		"model":    outcome.Model,
	}
	if outcome.Healed() {
		s.Logger.Info("test healed", fields)
	} else {
		fields["reason"] = outcome.Reason
		s.Logger.Warn("healing failed", fields)
	}

	if s.Recorder == nil {
		return
	}
	run := domain.HealingRun{
		Timestamp: s.now(),
		File:      outcome.File,
		Healed:    outcome.Healed(),
		Model:     outcome.Model,
	}
	if !outcome.Healed() {
		text := Truncate(outcome.Error, domain.MaxRunErrorLength)
		run.Error = &text
	}
	if err := s.Recorder.Record(run); err != nil {
		s.Logger.Warn("could not write run log", map[string]interface{}{"error": err.Error()})
	}
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func (s *Service) activeModel() string {
	if s.Pool == nil {
		return "unknown"
	}
	active, _ := s.Pool.Active()
	return domain.ModelName(active)
}

func (s *Service) escalateAt() int {
	if s.Config.Healing.EscalateAtAttempt <= 0 {
		return domain.DefaultEscalateAttempt
	}
	return s.Config.Healing.EscalateAtAttempt
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) validate() error {
	if s.Runner == nil || s.Fixer == nil || s.Patcher == nil || s.Logger == nil {
		return errors.New("heal.Service dependencies not satisfied")
	}
	return nil
}
