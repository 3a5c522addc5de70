package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, DefaultPageSize, cfg.Search.DefaultLimit)
	assert.Equal(t, DefaultMaxPageSize, cfg.Search.MaxLimit)
	assert.Equal(t, DefaultRebuildInterval, cfg.Search.RebuildInterval)
	assert.Equal(t, DefaultSdkLibraries, cfg.Search.SdkLibraries)
	assert.Equal(t, SourceNone, cfg.Source.Type)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9000
search:
  defaultLimit: 20
  maxLimit: 50
  rebuildInterval: 30s
  sdkLibraries: ["dart:io", "dart:async"]
source:
  type: file
  path: /tmp/packages.json
  watch: true
logging:
  level: debug
  format: text
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 20, cfg.Search.DefaultLimit)
	assert.Equal(t, 50, cfg.Search.MaxLimit)
	assert.Equal(t, 30*time.Second, cfg.Search.RebuildInterval)
	assert.Equal(t, []string{"dart:io", "dart:async"}, cfg.Search.SdkLibraries)
	assert.Equal(t, SourceFile, cfg.Source.Type)
	assert.True(t, cfg.Source.Watch)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Values absent from the file keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PKGSEARCH_SERVER_PORT", "7070")
	t.Setenv("PKGSEARCH_SEARCH_REBUILD_INTERVAL", "2m")
	t.Setenv("PKGSEARCH_KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Search.RebuildInterval)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("file source without path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cfg.yaml")
		require.NoError(t, os.WriteFile(path, []byte("source:\n  type: file\n"), 0o600))
		_, err := Load(path)
		assert.ErrorContains(t, err, "source.path")
	})

	t.Run("unknown source type", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cfg.yaml")
		require.NoError(t, os.WriteFile(path, []byte("source:\n  type: s3\n"), 0o600))
		_, err := Load(path)
		assert.ErrorContains(t, err, "unknown source.type")
	})
}

func TestPostgresConfig_DSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "d", SSLMode: "require"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=d sslmode=require", p.DSN())
}
