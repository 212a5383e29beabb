package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbedded(t *testing.T) {
	cfg, err := LoadEmbedded()
	require.NoError(t, err)

	assert.False(t, cfg.Verbose)
	assert.Empty(t, cfg.Output)
	assert.Equal(t, FormatAuto, cfg.Format)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("verbose: true\noutput: accounts.csv\nformat: sqlite\n"), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.True(t, cfg.Verbose)
	assert.Equal(t, "accounts.csv", cfg.Output)
	assert.Equal(t, FormatSQLite, cfg.Format)
}

func TestMissingFormatDefaultsToAuto(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("verbose: true\n"), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, FormatAuto, cfg.Format)
}

func TestInvalidFormatRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("format: xml\n"), 0644))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestMalformedYAMLRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("verbose: [unclosed\n"), 0644))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestMissingFileRejected(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
