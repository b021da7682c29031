// Package keys manages the credential pool from the command line: listing and pruning.
package keys

import (
	"context"
	"errors"
	"time"

	"github.com/kernhell/kernhell-go/internal/domain"
	"github.com/kernhell/kernhell-go/internal/pkg/logger"
	"github.com/kernhell/kernhell-go/internal/ports"
)

const defaultVerifyTimeout = 20 * time.Second

// Entry is one credential as shown to the user.
type Entry struct {
	Backend domain.Backend
	Index   int
	Masked  string
	Active  bool
}

// Check is the verification result of one credential.
type Check struct {
	Backend domain.Backend
	Masked  string
	Alive   bool
	Skipped bool
	Err     string
}

// PruneReport summarizes a prune run.
type PruneReport struct {
	Checks  []Check
	Removed int
}

// Service lists and prunes credentials.
type Service struct {
	Pool      ports.CredentialPool
	Verifiers ports.VerifierSource
	Logger    ports.Logger

	// VerifyTimeout bounds each verification call.
	VerifyTimeout time.Duration
}

// List returns every credential in total backend order with the active one marked.
func (s *Service) List() []Entry {
	active, index := s.Pool.Active()
	var entries []Entry
	for _, b := range domain.BackendOrder {
		creds := s.Pool.Credentials(b)
		for i, c := range creds {
			entries = append(entries, Entry{
				Backend: b,
				Index:   i,
				Masked:  logger.MaskSecret(c),
				Active:  b == active && i == index%len(creds),
			})
		}
	}
	return entries
}

// Prune verifies every credential and removes the ones that fail.
// Backends without a verifier are reported as skipped and left alone.
func (s *Service) Prune(ctx context.Context) (PruneReport, error) {
	if s.Pool == nil || s.Verifiers == nil || s.Logger == nil {
		return PruneReport{}, errors.New("keys.Service dependencies not satisfied")
	}
	if s.Pool.Total() == 0 {
		return PruneReport{}, domain.ErrNoCredentials
	}

	var report PruneReport
	for _, b := range domain.BackendOrder {
		creds := s.Pool.Credentials(b)
		if len(creds) == 0 {
			continue
		}
		verifier, ok := s.Verifiers.Verifier(b)
		for _, cred := range creds {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			check := Check{Backend: b, Masked: logger.MaskSecret(cred)}
			if !ok {
				check.Skipped = true
				report.Checks = append(report.Checks, check)
				continue
			}

			if err := s.verify(ctx, verifier, cred); err != nil {
				// An interrupted check says nothing about the key.
				if ctxErr := ctx.Err(); ctxErr != nil {
					return report, ctxErr
				}
				check.Err = err.Error()
				if _, rmErr := s.Pool.Remove(cred, b); rmErr != nil {
					return report, rmErr
				}
				report.Removed++
				s.Logger.Warn("removed dead key", map[string]interface{}{
					"provider": b,
					"key":      check.Masked,
					"error":    check.Err,
				})
			} else {
				check.Alive = true
			}
			report.Checks = append(report.Checks, check)
		}
	}
	return report, nil
}

func (s *Service) verify(ctx context.Context, v ports.CredentialVerifier, cred string) error {
	timeout := s.VerifyTimeout
	if timeout <= 0 {
		timeout = defaultVerifyTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return v.Verify(ctx, cred)
}
