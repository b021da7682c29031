package keys

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernhell/kernhell-go/internal/domain"
	"github.com/kernhell/kernhell-go/internal/infrastructure/credentials"
	"github.com/kernhell/kernhell-go/internal/pkg/logger"
	"github.com/kernhell/kernhell-go/internal/ports"
)

type denyList map[string]bool

func (d denyList) Verify(_ context.Context, cred string) error {
	if d[cred] {
		return errors.New("401")
	}
	return nil
}

type verifiers map[domain.Backend]ports.CredentialVerifier

func (v verifiers) Verifier(b domain.Backend) (ports.CredentialVerifier, bool) {
	c, ok := v[b]
	return c, ok
}

// cancelOnVerify simulates an interrupt arriving while a key is being checked.
type cancelOnVerify struct {
	cancel context.CancelFunc
}

func (c cancelOnVerify) Verify(ctx context.Context, _ string) error {
	c.cancel()
	<-ctx.Done()
	return ctx.Err()
}

func openPool(t *testing.T, keys map[domain.Backend][]string) *credentials.Pool {
	t.Helper()
	pool, err := credentials.Open(filepath.Join(t.TempDir(), "keys.json"))
	require.NoError(t, err)
	for _, b := range domain.BackendOrder {
		for _, k := range keys[b] {
			require.NoError(t, pool.Add(b, k))
		}
	}
	return pool
}

func TestPrune_RemovesDeadKeys(t *testing.T) {
	pool := openPool(t, map[domain.Backend][]string{
		domain.BackendGoogle: {"good-google-key", "dead-google-key"},
		domain.BackendGroq:   {"dead-groq-key-1"},
		domain.BackendNvidia: {"nvapi-unverified"},
	})
	deny := denyList{"dead-google-key": true, "dead-groq-key-1": true}
	svc := &Service{
		Pool:      pool,
		Verifiers: verifiers{domain.BackendGoogle: deny, domain.BackendGroq: deny},
		Logger:    logger.Discard(),
	}

	report, err := svc.Prune(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Removed)
	require.Len(t, report.Checks, 4)
	assert.True(t, report.Checks[0].Alive)
	assert.False(t, report.Checks[1].Alive)
	assert.Equal(t, "401", report.Checks[1].Err)
	assert.True(t, report.Checks[3].Skipped)

	assert.Equal(t, []string{"good-google-key"}, pool.Credentials(domain.BackendGoogle))
	assert.Empty(t, pool.Credentials(domain.BackendGroq))
	assert.Equal(t, 1, pool.Count(domain.BackendNvidia))

	reopened, err := credentials.Open(pool.Path())
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Total())
}

func TestPrune_NoKeys(t *testing.T) {
	svc := &Service{Pool: openPool(t, nil), Verifiers: verifiers{}, Logger: logger.Discard()}
	_, err := svc.Prune(context.Background())
	assert.True(t, errors.Is(err, domain.ErrNoCredentials))
}

func TestList_MasksAndMarksActive(t *testing.T) {
	pool := openPool(t, map[domain.Backend][]string{
		domain.BackendGoogle: {"AIzaSyABCDEFGH1234"},
		domain.BackendGroq:   {"gsk_1234567890", "short"},
	})
	require.True(t, pool.Select(domain.BackendGroq))
	pool.Rotate()

	entries := (&Service{Pool: pool}).List()
	require.Len(t, entries, 3)
	assert.Equal(t, Entry{Backend: domain.BackendGoogle, Index: 0, Masked: "AIza********1234"}, entries[0])
	assert.Equal(t, "gsk_********7890", entries[1].Masked)
	assert.False(t, entries[1].Active)
	assert.Equal(t, "****", entries[2].Masked)
	assert.True(t, entries[2].Active)
}

func TestPrune_InterruptKeepsKeys(t *testing.T) {
	pool := openPool(t, map[domain.Backend][]string{
		domain.BackendGroq: {"gsk_first", "gsk_second"},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := &Service{
		Pool:      pool,
		Verifiers: verifiers{domain.BackendGroq: cancelOnVerify{cancel: cancel}},
		Logger:    logger.Discard(),
	}

	report, err := svc.Prune(ctx)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.Zero(t, report.Removed)
	assert.Equal(t, []string{"gsk_first", "gsk_second"}, pool.Credentials(domain.BackendGroq))

	reopened, err := credentials.Open(pool.Path())
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Total())
}
