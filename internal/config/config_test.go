package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWhenNoFilesPresent(t *testing.T) {
	t.Parallel()

	cfg, err := Load(t.TempDir(), Config{DocumentRoot: "docs"}, nil, true)
	require.NoError(t, err)
	require.Equal(t, "docs", cfg.DocumentRoot)
	require.Equal(t, DefaultFIFODir, cfg.FIFODir)
}

func TestLoadDoesNotRequireDocumentRootWhenNotRequired(t *testing.T) {
	t.Parallel()

	cfg, err := Load(t.TempDir(), Config{}, nil, false)
	require.NoError(t, err)
	require.Empty(t, cfg.DocumentRoot)
}

func TestLoadRequiresDocumentRootWhenRequired(t *testing.T) {
	t.Parallel()

	_, err := Load(t.TempDir(), Config{}, nil, true)
	require.ErrorIs(t, err, ErrDocumentRootUnset)
}

func TestLoadLayersProjectConfigOverGlobal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	projectFile := filepath.Join(dir, ConfigFileName)

	require.NoError(t, os.WriteFile(projectFile, []byte(`{
		// a comment, since this is hujson
		"document_root": "from-project",
		"cache_size": 16,
	}`), 0o600))

	cfg, err := Load(dir, Config{}, nil, true)
	require.NoError(t, err)
	require.Equal(t, "from-project", cfg.DocumentRoot)
	require.Equal(t, 16, cfg.CacheSize)
}

func TestLoadCLIOverridesWinOverProjectConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	projectFile := filepath.Join(dir, ConfigFileName)

	require.NoError(t, os.WriteFile(projectFile, []byte(`{"document_root": "from-project"}`), 0o600))

	cfg, err := Load(dir, Config{DocumentRoot: "from-cli"}, nil, true)
	require.NoError(t, err)
	require.Equal(t, "from-cli", cfg.DocumentRoot)
}

func TestGlobalConfigPathUsesXDGFromEnvSlice(t *testing.T) {
	t.Parallel()

	path := globalConfigPath([]string{"XDG_CONFIG_HOME=/custom/xdg"})
	require.Equal(t, filepath.Join("/custom/xdg", "dindex", "config.json"), path)
}
