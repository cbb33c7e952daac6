package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "word", cfg.Splitter.Unit)
	assert.Equal(t, 100, cfg.Splitter.Length)
	assert.Equal(t, 1024, cfg.Embedding.Dimensions)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
store:
  backend: chromem
  path: /var/lib/docindex
embedding:
  provider: ollama
  model: mxbai-embed-large
watch:
  dir: /srv/inbox
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "chromem", cfg.Store.Backend)
	assert.Equal(t, "/var/lib/docindex", cfg.Store.Path)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, "/srv/inbox", cfg.Watch.Dir)

	// Untouched sections keep their defaults.
	assert.Equal(t, "passages", cfg.Store.Collection)
	assert.Equal(t, 100, cfg.Splitter.Length)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: ["), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}
