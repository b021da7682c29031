// Package failover obtains a code fix from the configured AI backends, rotating
// credentials and switching backends until one answers or every option is spent.
package failover

import (
	"context"
	"errors"
	"strings"

	"github.com/kernhell/kernhell-go/internal/domain"
	"github.com/kernhell/kernhell-go/internal/pkg/logger"
	"github.com/kernhell/kernhell-go/internal/ports"
)

const feedbackHeader = "\n\n=== PREVIOUS FAILED FIX ATTEMPT ===\n"

// Orchestrator picks a backend for each fix request and fails over on errors.
type Orchestrator struct {
	Pool      ports.CredentialPool
	Quota     ports.QuotaTracker
	Registry  ports.BackendRegistry
	Memory    ports.HealingMemory
	Selectors ports.SelectorLookup
	Logger    ports.Logger

	// MemoryEnabled turns on recall before any backend call.
	MemoryEnabled   bool
	RecallThreshold float64
}

// Fix returns a usable fix for req.
//
// Memory is consulted first unless req carries feedback from a failed fix. Otherwise the
// router picks a preferred backend, and each backend gets up to twice its credential count
// in calls, rotating on every empty or failed answer. When all backends are spent the
// error is a *domain.ExhaustionError.
func (o *Orchestrator) Fix(ctx context.Context, req domain.FixRequest) (domain.Fix, error) {
	if o.Pool == nil || o.Quota == nil || o.Registry == nil || o.Logger == nil {
		return domain.Fix{}, errors.New("failover.Orchestrator dependencies not satisfied")
	}
	if o.Pool.Total() == 0 {
		return domain.Fix{}, domain.ErrNoCredentials
	}

	if fix, ok := o.recall(req); ok {
		return fix, nil
	}

	errorLog := o.enrich(ctx, req)
	if req.Feedback != "" {
		errorLog += feedbackHeader + req.Feedback
	}

	if !req.Escalated {
		o.route(len(req.Screenshot) > 0)
	}

	attempted := make(map[domain.Backend]bool)
	var order []domain.Backend
	budget := o.backendsWithCredentials() + 1

	for i := 0; i < budget; i++ {
		if err := ctx.Err(); err != nil {
			return domain.Fix{}, err
		}
		backend, _ := o.Pool.Active()
		if attempted[backend] {
			next, ok := o.nextUnattempted(attempted)
			if !ok {
				break
			}
			backend = next
		}
		attempted[backend] = true
		order = append(order, backend)

		fix, ok, err := o.tryBackend(ctx, backend, req, errorLog)
		if err != nil {
			return domain.Fix{}, err
		}
		if ok {
			return fix, nil
		}
	}

	o.Logger.Warn("all providers exhausted", map[string]interface{}{"attempted": order})
	return domain.Fix{}, &domain.ExhaustionError{Attempted: order}
}

// tryBackend runs the credential sub-loop on one backend. err is only set for cancellation.
func (o *Orchestrator) tryBackend(ctx context.Context, backend domain.Backend, req domain.FixRequest, errorLog string) (domain.Fix, bool, error) {
	client, hasClient := o.Registry.Client(backend)
	spec, _ := o.Registry.Spec(backend)
	keys := o.Pool.Count(backend)

	switch {
	case keys == 0 || !hasClient:
		o.Logger.Warn("no keys or unsupported provider, skipping", map[string]interface{}{"provider": backend})
		return domain.Fix{}, false, nil
	case !o.Quota.CanUse(backend):
		o.Logger.Warn("daily quota reached, skipping", map[string]interface{}{
			"provider": backend,
			"used":     o.Quota.Used(backend),
		})
		return domain.Fix{}, false, nil
	}

	var image []byte
	if len(req.Screenshot) > 0 && spec.SupportsVision {
		image = req.Screenshot
	}
	model := spec.ModelFor(image != nil)
	o.Logger.Info("consulting provider", map[string]interface{}{
		"provider": backend,
		"model":    model,
		"vision":   image != nil,
		"retry":    req.Feedback != "",
	})

	for sub := 0; sub < 2*keys; sub++ {
		credential, ok := o.Pool.ActiveCredential()
		if !ok {
			break
		}
		code, err := client.Invoke(ctx, req.Code, errorLog, credential, image)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return domain.Fix{}, false, ctxErr
			}
			o.Logger.Warn("provider call failed, rotating key", map[string]interface{}{
				"provider": backend,
				"key":      logger.MaskSecret(credential),
				"error":    err.Error(),
			})
			o.Pool.Rotate()
			if sub+1 >= keys {
				break
			}
			continue
		}
		if strings.TrimSpace(code) == "" {
			o.Logger.Warn("empty response, rotating key", map[string]interface{}{
				"provider": backend,
				"key":      logger.MaskSecret(credential),
			})
			o.Pool.Rotate()
			continue
		}

		o.Quota.RecordUsage(backend)
		if o.Memory != nil {
			o.Memory.Remember(req.ErrorLog, code, true, backend)
		}
		o.Logger.Info("fix received", map[string]interface{}{"provider": backend, "model": model})
		return domain.Fix{Code: code, Backend: backend, Model: model, Source: domain.FixSourceBackend}, true, nil
	}
	return domain.Fix{}, false, nil
}

func (o *Orchestrator) recall(req domain.FixRequest) (domain.Fix, bool) {
	if !o.MemoryEnabled || o.Memory == nil || req.Feedback != "" {
		return domain.Fix{}, false
	}
	threshold := o.RecallThreshold
	if threshold <= 0 {
		threshold = domain.DefaultRecallThreshold
	}
	rec, ok := o.Memory.Recall(req.ErrorLog, threshold)
	if !ok {
		return domain.Fix{}, false
	}
	o.Logger.Info("memory hit, reusing a fix that worked before", map[string]interface{}{
		"fingerprint": rec.Fingerprint,
		"provider":    rec.Backend,
	})
	return domain.Fix{
		Code:    rec.Fix,
		Backend: rec.Backend,
		Model:   domain.ModelName(rec.Backend),
		Source:  domain.FixSourceMemory,
	}, true
}

// route makes the preferred backend active when it differs from the current one.
func (o *Orchestrator) route(hasImage bool) {
	preferred, ok := o.Preferred(hasImage)
	if !ok {
		return
	}
	o.Logger.Debug("router suggestion", map[string]interface{}{"provider": preferred})
	if active, _ := o.Pool.Active(); active == preferred {
		return
	}
	if o.Pool.Select(preferred) {
		o.Logger.Info("smart switch", map[string]interface{}{"provider": preferred})
	}
}

// Preferred returns the first backend of the routing policy that has keys and quota left.
func (o *Orchestrator) Preferred(hasImage bool) (domain.Backend, bool) {
	priority := domain.TextPriority
	if hasImage {
		priority = domain.VisionPriority
	}
	for _, b := range priority {
		if o.Pool.Count(b) > 0 && o.Quota.CanUse(b) {
			return b, true
		}
	}
	return "", false
}

// nextUnattempted switches backends until it lands on one not yet tried in this call.
func (o *Orchestrator) nextUnattempted(attempted map[domain.Backend]bool) (domain.Backend, bool) {
	for range domain.BackendOrder {
		next, ok := o.Pool.SwitchBackend()
		if !ok {
			return "", false
		}
		if !attempted[next] {
			return next, true
		}
	}
	return "", false
}

func (o *Orchestrator) backendsWithCredentials() int {
	n := 0
	for _, count := range o.Pool.CountsByBackend() {
		if count > 0 {
			n++
		}
	}
	return n
}
