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
	t.Setenv(RefreshTokenEnv, "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 6, cfg.Solver.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Solver.InitialBackoff)
	assert.Equal(t, 10*time.Second, cfg.Solver.MaxBackoff)
}

func TestDecode_OverridesOnlyGivenAttributes(t *testing.T) {
	t.Setenv(RefreshTokenEnv, "")
	src := `
solver {
  game_type           = "MTTGeneral"
  refresh_token       = "from-file"
  max_backoff         = "20s"
  requests_per_second = 2.5
}

crawl {
  cache_dir = "/var/spots"
  max_nodes = 500
}

output {
  database = "reach.db"
}
`
	cfg, err := Decode("spotreach.hcl", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, "MTTGeneral", cfg.Solver.GameType)
	assert.Equal(t, "from-file", cfg.Solver.RefreshToken)
	assert.Equal(t, 20*time.Second, cfg.Solver.MaxBackoff)
	assert.Equal(t, 500*time.Millisecond, cfg.Solver.InitialBackoff)
	assert.Equal(t, 2.5, cfg.Solver.RequestsPerSecond)
	assert.Equal(t, DefaultSpotURL, cfg.Solver.SpotURL)
	assert.Equal(t, "/var/spots", cfg.Crawl.CacheDir)
	assert.Equal(t, DefaultLedger, cfg.Crawl.Ledger)
	assert.Equal(t, 500, cfg.Crawl.MaxNodes)
	assert.Equal(t, "reach.db", cfg.Output.Database)
	assert.Equal(t, 25, cfg.Output.Top)

	fc := cfg.Fetch()
	assert.Equal(t, "MTTGeneral", fc.GameType)
	assert.Equal(t, 20*time.Second, fc.MaxBackoff)
}

func TestDecode_EnvOverridesToken(t *testing.T) {
	t.Setenv(RefreshTokenEnv, "from-env")
	cfg, err := Decode("spotreach.hcl", []byte(`solver { refresh_token = "from-file" }`))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Solver.RefreshToken)
}

func TestDecode_Errors(t *testing.T) {
	tests := map[string]string{
		"bad duration": `solver { timeout = "soon" }`,
		"unknown attr": `crawl { workers = 4 }`,
		"syntax":       `solver {`,
		"inverted":     `solver { max_backoff = "100ms" }`,
		"negative top": `output { top = -1 }`,
		"empty game":   `solver { game_type = "" }`,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode("spotreach.hcl", []byte(src))
			assert.Error(t, err)
		})
	}
}

func TestLoad_File(t *testing.T) {
	t.Setenv(RefreshTokenEnv, "")
	path := filepath.Join(t.TempDir(), "spotreach.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`crawl { ledger = "done.txt" }`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "done.txt", cfg.Crawl.Ledger)

	_, err = Load(filepath.Join(t.TempDir(), "missing.hcl"))
	assert.Error(t, err)
}
