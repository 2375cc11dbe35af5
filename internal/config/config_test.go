package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresRiotAPIKeyFromEnvironment(t *testing.T) {
	t.Setenv("RIOT_API_KEY", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(minimalTOML), 0o644))

	_, err := Load(path)
	require.Error(t, err, "expected Load to fail when RIOT_API_KEY is unset")
}

func TestLoad_NeverReadsAPIKeyFromFile(t *testing.T) {
	t.Setenv("RIOT_API_KEY", "env-key")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	// api_key is not a recognized TOML field (APIKey is tagged toml:"-"),
	// so even a config file that tries to set one is ignored.
	require.NoError(t, os.WriteFile(path, []byte(minimalTOML+"\napi_key = \"file-key\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.API.APIKey, "expected API key to come from the environment")
}

func TestLoad_NormalizesRegionAndContinentCasing(t *testing.T) {
	t.Setenv("RIOT_API_KEY", "env-key")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	toml := `
[api]
region = "NA1"
continent = "americas"
rate_limit = 90
request_timeout_seconds = 30

[collection]
mode = "weekly"
incomplete_match_policy = "mark"
worker_count = 8
checkpoint_every_n_matches = 500
matches_per_player_query = 50

[quality]
quality_threshold = 0.6

[backup]
auto_backup = true
retention_days = 30

[registry]
backend = "embedded"
path = "data/registry.json"

[logging]
format = "text"
level = "info"

[metrics]
enabled = false
address = ":9090"

[paths]
data_dir = "."
`
	require.NoError(t, os.WriteFile(path, []byte(toml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "na1", cfg.API.Region, "expected region normalized to lowercase")
	assert.Equal(t, "AMERICAS", cfg.API.Continent, "expected continent normalized to uppercase")
}

func TestLoad_RejectsUnrecognizedRegion(t *testing.T) {
	t.Setenv("RIOT_API_KEY", "env-key")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	bad := `
[api]
region = "atlantis"
continent = "AMERICAS"
rate_limit = 90
request_timeout_seconds = 30

[collection]
mode = "weekly"
incomplete_match_policy = "mark"
worker_count = 8
checkpoint_every_n_matches = 500
matches_per_player_query = 50

[quality]
quality_threshold = 0.6

[backup]
auto_backup = true
retention_days = 30

[registry]
backend = "embedded"
path = "data/registry.json"

[logging]
format = "text"
level = "info"

[metrics]
enabled = false
address = ":9090"

[paths]
data_dir = "."
`
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))

	_, err := Load(path)
	require.Error(t, err, "expected Load to reject an unrecognized region")
}

func TestValidate_PostgresBackendRequiresDatabaseURL(t *testing.T) {
	cfg := Default()
	cfg.API.APIKey = "k"
	cfg.Registry.Backend = "postgres"
	cfg.Registry.DatabaseURL = ""
	require.Error(t, cfg.Validate(), "expected Validate to reject postgres backend without a database_url")
}

const minimalTOML = `
[api]
region = "na1"
continent = "AMERICAS"
rate_limit = 90
request_timeout_seconds = 30

[collection]
mode = "weekly"
incomplete_match_policy = "mark"
worker_count = 8
checkpoint_every_n_matches = 500
matches_per_player_query = 50

[quality]
quality_threshold = 0.6

[backup]
auto_backup = true
retention_days = 30

[registry]
backend = "embedded"
path = "data/registry.json"

[logging]
format = "text"
level = "info"

[metrics]
enabled = false
address = ":9090"

[paths]
data_dir = "."
`
