package docstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xdbsoft/docstore/rules"
)

const testConfig = `
LogLevel = "debug"

[Store]
Backend = "mongodb"
URI = "mongodb://localhost:27017/coreio-test"
ConnectRetries = 2

[[Collections]]
Name = "users"
Batch = "settle"

  [[Collections.Rules]]
  Path = "users/{id}"

    [[Collections.Rules.Allow]]
    Methods = ["READ"]

[[Collections]]
Name = "notes"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docstore.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {

	cfg, err := LoadConfig(writeConfig(t, testConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "mongodb", cfg.Store.Backend)
	assert.Equal(t, "mongodb://localhost:27017/coreio-test", cfg.Store.URI)
	assert.Equal(t, 2, cfg.Store.ConnectRetries)
	assert.Equal(t, "200ms", cfg.Store.RetryDelay)
	assert.Equal(t, "0.0.0.0:9889", cfg.Server.Addr)

	require.Len(t, cfg.Collections, 2)
	users, ok := cfg.Collection("users")
	require.True(t, ok)
	assert.Equal(t, Settle, users.Batch)
	require.Len(t, users.Rules, 1)
	assert.Equal(t, []rules.Method{rules.READ}, users.Rules[0].Allow[0].Methods)

	_, ok = cfg.Collection("missing")
	assert.False(t, ok)
}

func TestLoadConfig_Environment(t *testing.T) {

	t.Setenv("DOCSTORE_STORE_BACKEND", "sqlite")
	t.Setenv("DOCSTORE_STORE_URI", "records.db")

	cfg, err := LoadConfig(writeConfig(t, testConfig))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "records.db", cfg.Store.URI)
}

func TestConfigValidate(t *testing.T) {

	cases := []struct {
		name string
		cfg  Config
	}{
		{"unknown backend", Config{Store: StoreConfig{Backend: "cassandra"}}},
		{"unnamed collection", Config{Store: StoreConfig{Backend: "memory"}, Collections: []CollectionDefinition{{}}}},
		{"duplicated collection", Config{Store: StoreConfig{Backend: "memory"}, Collections: []CollectionDefinition{{Name: "a"}, {Name: "a"}}}},
		{"bad policy", Config{Store: StoreConfig{Backend: "memory"}, Collections: []CollectionDefinition{{Name: "a", Batch: "never"}}}},
		{"negative retries", Config{Store: StoreConfig{Backend: "memory", ConnectRetries: -1}}},
		{"bad delay", Config{Store: StoreConfig{Backend: "memory", RetryDelay: "soon"}}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.cfg.Validate()
			require.Error(t, err)
			assert.True(t, IsBadRequest(err))
		})
	}

	valid := Config{Store: StoreConfig{Backend: "memory"}, Collections: []CollectionDefinition{{Name: "a"}, {Name: "b", Batch: FailFast}}}
	assert.NoError(t, valid.Validate())
}
