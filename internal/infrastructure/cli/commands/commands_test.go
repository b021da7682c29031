package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernhell/kernhell-go/internal/application/keys"
	"github.com/kernhell/kernhell-go/internal/domain"
	"github.com/kernhell/kernhell-go/internal/infrastructure/cache"
	"github.com/kernhell/kernhell-go/internal/infrastructure/history"
)

type fakeQuota struct {
	used   map[domain.Backend]int
	limits map[domain.Backend]int
}

func (f fakeQuota) CanUse(b domain.Backend) bool { return f.Remaining(b) > 0 }
func (f fakeQuota) RecordUsage(domain.Backend)   {}
func (f fakeQuota) Used(b domain.Backend) int    { return f.used[b] }

func (f fakeQuota) Remaining(b domain.Backend) int {
	l, ok := f.limits[b]
	if !ok {
		return domain.UnlimitedQuota
	}
	return l - f.used[b]
}

func (f fakeQuota) Limit(b domain.Backend) (int, bool) {
	l, ok := f.limits[b]
	return l, ok
}

func TestDisplayQuota(t *testing.T) {
	var out bytes.Buffer
	displayQuota(&out, fakeQuota{
		used:   map[domain.Backend]int{domain.BackendGroq: 3},
		limits: map[domain.Backend]int{domain.BackendGroq: 10},
	}, map[domain.Backend]int{domain.BackendGroq: 2})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1+len(domain.BackendOrder))
	assert.Equal(t, []string{"groq", "3", "10", "7", "2"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"google", "0", "-", "unlimited", "0"}, strings.Fields(lines[1]))
}

func TestDisplayMemory_NewestFirstWithLimit(t *testing.T) {
	base := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	records := []domain.HealingRecord{
		{Fingerprint: "aaa", ErrorSnippet: "old", Backend: domain.BackendGroq, Timestamp: base},
		{Fingerprint: "bbb", ErrorSnippet: "mid\nline", Backend: domain.BackendGoogle, Timestamp: base.Add(time.Hour)},
		{Fingerprint: "ccc", ErrorSnippet: strings.Repeat("x", 120), Backend: domain.BackendNvidia, Timestamp: base.Add(2 * time.Hour)},
	}

	var out bytes.Buffer
	displayMemory(&out, records, 2)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "ccc")
	assert.True(t, strings.HasSuffix(lines[0], "..."))
	assert.Contains(t, lines[1], "mid line")

	out.Reset()
	displayMemory(&out, nil, 5)
	assert.Equal(t, MsgNoMemoryRecorded+"\n", out.String())
}

func TestDisplayPruneReport(t *testing.T) {
	var out bytes.Buffer
	displayPruneReport(&out, keys.PruneReport{
		Checks: []keys.Check{
			{Backend: domain.BackendGroq, Masked: "gsk_********abcd", Alive: true},
			{Backend: domain.BackendGroq, Masked: "gsk_********dead", Err: "401 unauthorized"},
			{Backend: domain.BackendCloudflare, Masked: "acct********tokn", Skipped: true},
		},
		Removed: 1,
	})
	got := out.String()
	assert.Contains(t, got, "[OK]   groq gsk_********abcd")
	assert.Contains(t, got, "[DEAD] groq gsk_********dead - 401 unauthorized")
	assert.Contains(t, got, "[SKIP] cloudflare")
	assert.Contains(t, got, "Removed 1 of 3 keys.")
}

func TestDisplayKeys(t *testing.T) {
	var out bytes.Buffer
	displayKeys(&out, nil)
	assert.Equal(t, MsgNoKeysConfigured+"\n", out.String())

	out.Reset()
	displayKeys(&out, []keys.Entry{
		{Backend: domain.BackendGoogle, Index: 0, Masked: "AIza********0000", Active: true},
		{Backend: domain.BackendGroq, Index: 0, Masked: "gsk_********1111"},
	})
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "* google"))
	assert.True(t, strings.HasPrefix(lines[1], "  groq"))
}

func TestHistoryListAndStats(t *testing.T) {
	store := history.NewFileStore(filepath.Join(t.TempDir(), "runs.jsonl"))

	var out bytes.Buffer
	require.NoError(t, listHistoryEntries(&out, store, 10))
	assert.Equal(t, MsgNoHistoryRecorded+"\n", out.String())

	errText := "AssertionError: boom"
	now := time.Now()
	require.NoError(t, store.Record(domain.HealingRun{Timestamp: now, File: "test_a.py", Healed: true, Model: "llama"}))
	require.NoError(t, store.Record(domain.HealingRun{Timestamp: now, File: "test_b.py", Error: &errText, Model: "llama"}))

	out.Reset()
	require.NoError(t, listHistoryEntries(&out, store, 10))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "FAILED")
	assert.Contains(t, lines[1], errText)
	assert.Contains(t, lines[2], "HEALED")

	out.Reset()
	require.NoError(t, showHistoryStats(&out, store))
	got := out.String()
	assert.Contains(t, got, "Total runs: 2")
	assert.Contains(t, got, "Heal rate: 50.0%")
	assert.Contains(t, got, "Time saved: 0.5 hours")
	assert.Contains(t, got, "llama: 1")
	assert.Contains(t, got, "test_b.py (1)")
}

func TestCleanCommand(t *testing.T) {
	dir := t.TempDir()

	cmd := NewCleanCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{dir})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, MsgNoCache+"\n", out.String())

	_, err := cache.New(dir).SaveScreenshot("test_a.py", []byte("12345"))
	require.NoError(t, err)

	out.Reset()
	cmd = NewCleanCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{dir})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "5 B freed")

	_, err = os.Stat(filepath.Join(dir, domain.CacheDirName))
	assert.True(t, os.IsNotExist(err))
}

func TestVersionCommand(t *testing.T) {
	cmd := NewVersionCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	got := out.String()
	assert.True(t, strings.HasPrefix(got, "kernhell dev\n"))
	assert.Contains(t, got, "  groq       llama-3.3-70b-versatile\n")
	assert.Contains(t, got, "  nvidia     meta/llama-3.2-90b-vision-instruct [vision]\n")

	cmd = NewVersionCommand()
	out.Reset()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--short"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "dev\n", out.String())
}
