package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_Precedence(t *testing.T) {
	e := New().WithPairs([]string{"A=global", "B=global"})
	out := e.Merge([]string{"B=proc", "C=proc"})
	assert.Equal(t, []string{"A=global", "B=proc", "C=proc"}, out)
}

func TestMerge_Expansion(t *testing.T) {
	e := New().WithSet("HOME", "/home/x").WithSet("DATA", "${HOME}/data")
	out := e.Merge([]string{"LOG=${DATA}.log", "KEEP=${MISSING}"})
	assert.Contains(t, out, "DATA=/home/x/data")
	assert.Contains(t, out, "KEEP=${MISSING}")
	// one pass only: LOG sees the unexpanded DATA value
	assert.Contains(t, out, "LOG=${HOME}/data.log")
}

func TestWithSet_DoesNotMutateReceiver(t *testing.T) {
	a := New().WithSet("X", "1")
	b := a.WithSet("X", "2")
	assert.Equal(t, []string{"X=1"}, a.Merge(nil))
	assert.Equal(t, []string{"X=2"}, b.Merge(nil))
}

func TestFromOS(t *testing.T) {
	t.Setenv("TASKMASTER_ENV_TEST", "yes")
	assert.Contains(t, FromOS().Merge(nil), "TASKMASTER_ENV_TEST=yes")
	assert.NotContains(t, New().Merge(nil), "TASKMASTER_ENV_TEST=yes")
}

func TestMerge_SkipsMalformed(t *testing.T) {
	out := New().WithPairs([]string{"=x", "novalue"}).Merge([]string{"=y", "Z"})
	assert.Empty(t, out)
}

func TestParseFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "app.env")
	content := "# comment\n\nA=1\nexport B = two \nC=\"quoted value\"\nD='x'\n"
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	m, err := ParseFile(p)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "two", "C": "quoted value", "D": "x"}, m)
}

func TestParseFile_Errors(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)

	p := filepath.Join(t.TempDir(), "bad.env")
	require.NoError(t, os.WriteFile(p, []byte("GOOD=1\nBAD LINE\n"), 0o600))
	_, err = ParseFile(p)
	assert.ErrorContains(t, err, ":2:")
}
