package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SALESBOARD_TEST_TOKEN=from-file\nSALESBOARD_TEST_KEEP=from-file\n"), 0o644))
	t.Setenv("SALESBOARD_TEST_KEEP", "from-env")
	t.Setenv("SALESBOARD_TEST_TOKEN", "")
	require.NoError(t, os.Unsetenv("SALESBOARD_TEST_TOKEN"))

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("SALESBOARD_TEST_TOKEN"))
	assert.Equal(t, "from-env", os.Getenv("SALESBOARD_TEST_KEEP"))
}

func TestLoadEnvFileMissingIsIgnored(t *testing.T) {
	assert.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
	assert.NoError(t, loadEnvFile(""))
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "backend", "render", "seed"} {
		assert.True(t, names[want], want)
	}
}
