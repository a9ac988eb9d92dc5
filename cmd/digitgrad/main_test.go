package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/digitgrad/internal/data"
)

func TestNLLCheck(t *testing.T) {
	for _, seed := range []string{"1", "7"} {
		require.NoError(t, runNLLCheck([]string{"-seed", seed, "-batch-size", "32", "-workers", "1"}), "seed %s", seed)
	}
	assert.ErrorContains(t, runNLLCheck([]string{"-tol", "-1"}), "disagree")
}

func TestAutograd(t *testing.T) {
	for _, seed := range []string{"1", "42"} {
		require.NoError(t, runAutograd([]string{"-seed", seed}), "seed %s", seed)
	}
}

func TestInfo_VerifiesDigests(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, runInfo([]string{"-data-dir", dir}))

	bogus := filepath.Join(dir, data.TrainLabelsFile+".gz")
	require.NoError(t, os.WriteFile(bogus, []byte("not mnist"), 0o600))
	assert.ErrorContains(t, runInfo([]string{"-data-dir", dir}), "sha256")
}

func TestCommandTable(t *testing.T) {
	seen := make(map[string]bool)
	for _, c := range commands {
		assert.False(t, seen[c.name], "duplicate command %s", c.name)
		seen[c.name] = true
		assert.NotNil(t, c.run, c.name)
	}
	for _, name := range []string{"train", "eval", "nllcheck", "autograd", "export", "info", "version"} {
		assert.True(t, seen[name], name)
	}
}
