package selectors

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernhell/kernhell-go/internal/pkg/fsutil"
)

func writeMap(t *testing.T, dir string, m AppMap) string {
	t.Helper()
	testPath := filepath.Join(dir, "test_login.py")
	require.NoError(t, os.WriteFile(testPath, []byte("pass\n"), 0o644))
	require.NoError(t, fsutil.WriteJSONAtomic(MapPath(testPath), m, 0o644))
	return testPath
}

func TestLookup_Alternatives(t *testing.T) {
	testPath := writeMap(t, t.TempDir(), AppMap{Elements: []Element{
		{Selector: "#login-button"},
		{Selector: "#newsletter-frame"},
		{Selector: "#login-btn", Text: "Log in", Role: "button"},
		{Selector: "[data-testid='login-submit']", Role: "button"},
		{Selector: "#login-btn"},
	}})

	l := NewLookup(nil)
	got, err := l.Alternatives(context.Background(), testPath, "#login-button", 2)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.LessOrEqual(t, len(got), 2)
	assert.Equal(t, "#login-btn", got[0].Selector)
	for i, m := range got {
		assert.NotEqual(t, "#login-button", m.Selector)
		if i > 0 {
			assert.GreaterOrEqual(t, got[i-1].Score, m.Score)
		}
	}
}

func TestLookup_MissingMapOrSelector(t *testing.T) {
	l := NewLookup(nil)
	dir := t.TempDir()

	got, err := l.Alternatives(context.Background(), filepath.Join(dir, "test_x.py"), "#a", 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = l.Alternatives(context.Background(), filepath.Join(dir, "test_x.py"), "  ", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLookup_MalformedMap(t *testing.T) {
	dir := t.TempDir()
	testPath := filepath.Join(dir, "test_x.py")
	require.NoError(t, os.MkdirAll(filepath.Dir(MapPath(testPath)), 0o755))
	require.NoError(t, os.WriteFile(MapPath(testPath), []byte("{not json"), 0o644))

	_, err := NewLookup(nil).Alternatives(context.Background(), testPath, "#a", 5)
	assert.Error(t, err)
}

func TestRank_TextHintsCount(t *testing.T) {
	got := Rank([]Element{
		{Selector: "#btn-7", Text: "checkout"},
		{Selector: "#zzz"},
	}, "#checkout")
	require.NotEmpty(t, got)
	assert.Equal(t, "#btn-7", got[0].Selector)
	assert.InDelta(t, 1.0, got[0].Score, 0.2)
}
