package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTable(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadProviderTable(t *testing.T) {
	path := writeTable(t, `
providers:
  - id: deepl-main
    type: deepl
    api_key_env: DEEPL_API_KEY
    cost_per_char_usd: 0.00002
    quality_rating: 0.95
    pairs: ["en:de", "de:en", "*:en"]
    preferred_pairs: ["en:de"]
  - id: openai-fallback
    type: openai
    api_key_env: OPENAI_API_KEY
    model: gpt-4o-mini
    cost_per_char_usd: 0.00004
    quality_rating: 0.85
`)

	table, err := LoadProviderTable(path)
	require.NoError(t, err)
	require.Len(t, table.Providers, 2)

	deepl := table.Providers[0]
	assert.Equal(t, "deepl-main", deepl.ID)
	assert.Equal(t, "deepl", deepl.Type)
	assert.Equal(t, []string{"en:de", "de:en", "*:en"}, deepl.Pairs)
	assert.Equal(t, 0.95, deepl.QualityRating)

	t.Setenv("OPENAI_API_KEY", "sk-test")
	assert.Equal(t, "sk-test", table.Providers[1].APIKey())
}

func TestLoadProviderTableRejectsBadEntries(t *testing.T) {
	cases := map[string]string{
		"empty table": `providers: []`,
		"missing id": `
providers:
  - type: deepl
    api_key_env: K
`,
		"duplicate id": `
providers:
  - id: a
    type: deepl
    api_key_env: K
  - id: a
    type: openai
    api_key_env: K
`,
		"bad quality rating": `
providers:
  - id: a
    type: deepl
    api_key_env: K
    quality_rating: 1.5
`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadProviderTable(writeTable(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 30, cfg.Admission.UserRequestsPerMinute)
	assert.Equal(t, 0.00005, cfg.Orchestrator.EstimatedCostPerCharUSD)
	assert.False(t, cfg.Usage.UseRedisQueue)
}
