package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  connection_string: "postgres://localhost/nexira"
llm_client:
  provider: openai
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 0.02, cfg.Personality.Speed)
	require.Equal(t, 20, cfg.Memory.EpisodeThreshold)
	require.Equal(t, 2, cfg.Memory.MinConfirmations)
	require.Equal(t, 7, cfg.Backup.MaxBackups)
	require.Equal(t, []string{"python", "bash", "node"}, cfg.Actions.ExecutableLangs)
	require.Equal(t, "nexira", cfg.OTel.ServiceName)
}

func TestLoadRequiresConnectionString(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`host: localhost`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
