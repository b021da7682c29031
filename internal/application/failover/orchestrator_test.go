package failover

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernhell/kernhell-go/internal/domain"
	"github.com/kernhell/kernhell-go/internal/infrastructure/credentials"
	"github.com/kernhell/kernhell-go/internal/infrastructure/memory"
	"github.com/kernhell/kernhell-go/internal/infrastructure/quota"
	"github.com/kernhell/kernhell-go/internal/pkg/logger"
	"github.com/kernhell/kernhell-go/internal/ports"
)

type call struct {
	credential string
	errorLog   string
	image      []byte
}

// scriptedClient answers per credential; a missing entry is a failure.
type scriptedClient struct {
	answers map[string]string
	calls   []call
}

func (c *scriptedClient) Invoke(_ context.Context, _, errorLog, credential string, image []byte) (string, error) {
	c.calls = append(c.calls, call{credential: credential, errorLog: errorLog, image: image})
	answer, ok := c.answers[credential]
	if !ok {
		return "", errors.New("401 unauthorized")
	}
	return answer, nil
}

type stubRegistry map[domain.Backend]*scriptedClient

func (r stubRegistry) Client(b domain.Backend) (ports.BackendClient, bool) {
	c, ok := r[b]
	if !ok {
		return nil, false
	}
	return c, true
}

func (r stubRegistry) Spec(b domain.Backend) (domain.BackendSpec, bool) {
	return domain.SpecFor(b)
}

type stubLookup struct {
	selector string
	matches  []domain.SelectorMatch
}

func (s *stubLookup) Alternatives(_ context.Context, _, selector string, _ int) ([]domain.SelectorMatch, error) {
	s.selector = selector
	return s.matches, nil
}

type fixture struct {
	pool    *credentials.Pool
	tracker *quota.Tracker
	memory  *memory.Store
	orch    *Orchestrator
}

func newFixture(t *testing.T, keys map[domain.Backend][]string, limits map[domain.Backend]int, reg stubRegistry) *fixture {
	t.Helper()
	dir := t.TempDir()
	pool, err := credentials.Open(filepath.Join(dir, "keys.json"))
	require.NoError(t, err)
	for _, b := range domain.BackendOrder {
		for _, k := range keys[b] {
			require.NoError(t, pool.Add(b, k))
		}
	}
	cfg := domain.Config{Quota: domain.QuotaSettings{DailyLimits: limits}}
	tracker := quota.Open(filepath.Join(dir, "quota.json"), cfg)
	mem := memory.Open(filepath.Join(dir, "memory.json"))
	return &fixture{
		pool:    pool,
		tracker: tracker,
		memory:  mem,
		orch: &Orchestrator{
			Pool:            pool,
			Quota:           tracker,
			Registry:        reg,
			Memory:          mem,
			Logger:          logger.Discard(),
			MemoryEnabled:   true,
			RecallThreshold: 0.7,
		},
	}
}

func credentialsOf(calls []call) []string {
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.credential)
	}
	return out
}

func TestFix_FailsOverToNextBackend(t *testing.T) {
	groq := &scriptedClient{}
	cloudflare := &scriptedClient{answers: map[string]string{"acct:k3": "FIXED"}}
	f := newFixture(t, map[domain.Backend][]string{
		domain.BackendGroq:       {"k1", "k2"},
		domain.BackendCloudflare: {"acct:k3"},
	}, nil, stubRegistry{domain.BackendGroq: groq, domain.BackendCloudflare: cloudflare})

	fix, err := f.orch.Fix(context.Background(), domain.FixRequest{Code: "x", ErrorLog: "AssertionError: boom"})
	require.NoError(t, err)

	assert.Equal(t, "FIXED", fix.Code)
	assert.Equal(t, domain.BackendCloudflare, fix.Backend)
	assert.Equal(t, domain.FixSourceBackend, fix.Source)
	assert.Equal(t, []string{"k1", "k2"}, credentialsOf(groq.calls))
	assert.Equal(t, []string{"acct:k3"}, credentialsOf(cloudflare.calls))

	active, index := f.pool.Active()
	assert.Equal(t, domain.BackendCloudflare, active)
	assert.Equal(t, 0, index)

	records := f.memory.Records()
	require.Len(t, records, 1)
	assert.True(t, records[0].Success)
	assert.Equal(t, domain.BackendCloudflare, records[0].Backend)
	assert.Equal(t, "FIXED", records[0].Fix)

	assert.Equal(t, 1, f.tracker.Used(domain.BackendCloudflare))
	assert.Zero(t, f.tracker.Used(domain.BackendGroq))
}

func TestFix_ExhaustionIsDeterministic(t *testing.T) {
	reg := stubRegistry{
		domain.BackendGoogle:     &scriptedClient{},
		domain.BackendGroq:       &scriptedClient{},
		domain.BackendOpenRouter: &scriptedClient{},
	}
	f := newFixture(t, map[domain.Backend][]string{
		domain.BackendGoogle:     {"g1"},
		domain.BackendGroq:       {"q1", "q2"},
		domain.BackendOpenRouter: {"o1"},
	}, nil, reg)

	for i := 0; i < 2; i++ {
		fix, err := f.orch.Fix(context.Background(), domain.FixRequest{Code: "x", ErrorLog: "boom"})
		assert.Empty(t, fix.Code)

		var exhausted *domain.ExhaustionError
		require.True(t, errors.As(err, &exhausted), "got %v", err)
		want := []domain.Backend{domain.BackendGroq, domain.BackendOpenRouter, domain.BackendGoogle}
		if diff := cmp.Diff(want, exhausted.Attempted); diff != "" {
			t.Errorf("attempted mismatch (-want +got):\n%s", diff)
		}
		assert.Contains(t, err.Error(), "kernhell config add-key")
	}
	assert.Empty(t, f.memory.Records())
	assert.Len(t, reg[domain.BackendGroq].calls, 4)
}

func TestFix_NoCredentials(t *testing.T) {
	f := newFixture(t, nil, nil, stubRegistry{})
	_, err := f.orch.Fix(context.Background(), domain.FixRequest{ErrorLog: "boom"})
	assert.True(t, errors.Is(err, domain.ErrNoCredentials))
}

func TestFix_MissingDependencies(t *testing.T) {
	_, err := (&Orchestrator{}).Fix(context.Background(), domain.FixRequest{})
	assert.Error(t, err)
}

func TestFix_EmptyResponseRotates(t *testing.T) {
	groq := &scriptedClient{answers: map[string]string{"k1": "  \n", "k2": "FIX"}}
	f := newFixture(t, map[domain.Backend][]string{domain.BackendGroq: {"k1", "k2"}}, nil,
		stubRegistry{domain.BackendGroq: groq})

	fix, err := f.orch.Fix(context.Background(), domain.FixRequest{ErrorLog: "boom"})
	require.NoError(t, err)
	assert.Equal(t, "FIX", fix.Code)
	_, index := f.pool.Active()
	assert.Equal(t, 1, index)
}

func TestFix_MemoryRecallAndBypass(t *testing.T) {
	groq := &scriptedClient{answers: map[string]string{"k1": "FRESH"}}
	f := newFixture(t, map[domain.Backend][]string{domain.BackendGroq: {"k1"}}, nil,
		stubRegistry{domain.BackendGroq: groq})
	f.memory.Remember("TimeoutError: locator('#buy') not visible", "REMEMBERED", true, domain.BackendGoogle)

	fix, err := f.orch.Fix(context.Background(), domain.FixRequest{ErrorLog: "TimeoutError: locator('#buy') not visible"})
	require.NoError(t, err)
	assert.Equal(t, "REMEMBERED", fix.Code)
	assert.Equal(t, domain.FixSourceMemory, fix.Source)
	assert.Empty(t, groq.calls)
	assert.Zero(t, f.tracker.Used(domain.BackendGroq))

	fix, err = f.orch.Fix(context.Background(), domain.FixRequest{
		ErrorLog: "TimeoutError: locator('#buy') not visible",
		Feedback: "Previous fix failed validation.",
	})
	require.NoError(t, err)
	assert.Equal(t, "FRESH", fix.Code)
	require.Len(t, groq.calls, 1)
	assert.True(t, strings.HasSuffix(groq.calls[0].errorLog, "=== PREVIOUS FAILED FIX ATTEMPT ===\nPrevious fix failed validation."))
}

func TestFix_MemoryDisabled(t *testing.T) {
	groq := &scriptedClient{answers: map[string]string{"k1": "FRESH"}}
	f := newFixture(t, map[domain.Backend][]string{domain.BackendGroq: {"k1"}}, nil,
		stubRegistry{domain.BackendGroq: groq})
	f.memory.Remember("boom", "OLD", true, domain.BackendGroq)
	f.orch.MemoryEnabled = false

	fix, err := f.orch.Fix(context.Background(), domain.FixRequest{ErrorLog: "boom"})
	require.NoError(t, err)
	assert.Equal(t, "FRESH", fix.Code)
}

func TestFix_VisionRouting(t *testing.T) {
	png := []byte("\x89PNG")

	t.Run("screenshot prefers a vision backend", func(t *testing.T) {
		google := &scriptedClient{answers: map[string]string{"g1": "FIX"}}
		groq := &scriptedClient{answers: map[string]string{"q1": "FIX"}}
		f := newFixture(t, map[domain.Backend][]string{
			domain.BackendGoogle: {"g1"},
			domain.BackendGroq:   {"q1"},
		}, nil, stubRegistry{domain.BackendGoogle: google, domain.BackendGroq: groq})
		require.True(t, f.pool.Select(domain.BackendGroq))

		fix, err := f.orch.Fix(context.Background(), domain.FixRequest{ErrorLog: "boom", Screenshot: png})
		require.NoError(t, err)
		assert.Equal(t, domain.BackendGoogle, fix.Backend)
		require.Len(t, google.calls, 1)
		assert.Equal(t, png, google.calls[0].image)
		assert.Empty(t, groq.calls)
	})

	t.Run("image is omitted for text backends", func(t *testing.T) {
		groq := &scriptedClient{answers: map[string]string{"q1": "FIX"}}
		f := newFixture(t, map[domain.Backend][]string{domain.BackendGroq: {"q1"}}, nil,
			stubRegistry{domain.BackendGroq: groq})

		fix, err := f.orch.Fix(context.Background(), domain.FixRequest{ErrorLog: "boom", Screenshot: png})
		require.NoError(t, err)
		assert.Equal(t, domain.BackendGroq, fix.Backend)
		require.Len(t, groq.calls, 1)
		assert.Nil(t, groq.calls[0].image)
	})
}

func TestFix_SkipsBackendsOverQuota(t *testing.T) {
	groq := &scriptedClient{answers: map[string]string{"q1": "FIX"}}
	cloudflare := &scriptedClient{answers: map[string]string{"a:c1": "CF"}}
	f := newFixture(t, map[domain.Backend][]string{
		domain.BackendGroq:       {"q1"},
		domain.BackendCloudflare: {"a:c1"},
	}, map[domain.Backend]int{domain.BackendGroq: 1},
		stubRegistry{domain.BackendGroq: groq, domain.BackendCloudflare: cloudflare})

	fix, err := f.orch.Fix(context.Background(), domain.FixRequest{ErrorLog: "first"})
	require.NoError(t, err)
	assert.Equal(t, domain.BackendGroq, fix.Backend)
	assert.False(t, f.tracker.CanUse(domain.BackendGroq))

	fix, err = f.orch.Fix(context.Background(), domain.FixRequest{ErrorLog: "something else entirely"})
	require.NoError(t, err)
	assert.Equal(t, domain.BackendCloudflare, fix.Backend)
	assert.Len(t, groq.calls, 1)
}

func TestFix_EscalatedKeepsActiveBackend(t *testing.T) {
	groq := &scriptedClient{answers: map[string]string{"q1": "GROQ"}}
	cloudflare := &scriptedClient{answers: map[string]string{"a:c1": "CF"}}
	f := newFixture(t, map[domain.Backend][]string{
		domain.BackendGroq:       {"q1"},
		domain.BackendCloudflare: {"a:c1"},
	}, nil, stubRegistry{domain.BackendGroq: groq, domain.BackendCloudflare: cloudflare})

	_, ok := f.pool.SwitchBackend()
	require.True(t, ok)

	fix, err := f.orch.Fix(context.Background(), domain.FixRequest{ErrorLog: "boom", Escalated: true})
	require.NoError(t, err)
	assert.Equal(t, domain.BackendCloudflare, fix.Backend)
	assert.Empty(t, groq.calls)
}

func TestFix_AppendsSelectorAlternatives(t *testing.T) {
	groq := &scriptedClient{answers: map[string]string{"q1": "FIX"}}
	f := newFixture(t, map[domain.Backend][]string{domain.BackendGroq: {"q1"}}, nil,
		stubRegistry{domain.BackendGroq: groq})
	lookup := &stubLookup{matches: []domain.SelectorMatch{{Selector: "#login-btn", Score: 0.87}}}
	f.orch.Selectors = lookup

	_, err := f.orch.Fix(context.Background(), domain.FixRequest{
		File:     "test_login.py",
		ErrorLog: `TimeoutError: waiting for locator("#login-button") to be visible`,
	})
	require.NoError(t, err)
	assert.Equal(t, "#login-button", lookup.selector)
	require.Len(t, groq.calls, 1)
	assert.Contains(t, groq.calls[0].errorLog, "- #login-btn (similarity 0.87)")

	// memory stores the raw error, not the enriched one
	records := f.memory.Records()
	require.Len(t, records, 1)
	assert.NotContains(t, records[0].ErrorSnippet, "ALTERNATIVE SELECTORS")
}

func TestExtractSelector(t *testing.T) {
	tests := []struct {
		errText string
		want    string
	}{
		{`waiting for locator("#submit")`, "#submit"},
		{`locator('.cart >> text=Buy') resolved to 0 elements`, ".cart >> text=Buy"},
		{`Timeout 30000ms exceeded waiting for selector "button.primary"`, "button.primary"},
		{`page.get_by_role("button") timed out`, "button"},
		{`AssertionError: expected 2`, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractSelector(tt.errText), tt.errText)
	}
}

func TestPreferred(t *testing.T) {
	f := newFixture(t, map[domain.Backend][]string{
		domain.BackendGoogle:     {"g"},
		domain.BackendCloudflare: {"a:c"},
		domain.BackendNvidia:     {"n"},
	}, nil, stubRegistry{})

	got, ok := f.orch.Preferred(false)
	require.True(t, ok)
	assert.Equal(t, domain.BackendCloudflare, got)

	got, ok = f.orch.Preferred(true)
	require.True(t, ok)
	assert.Equal(t, domain.BackendNvidia, got)
}
