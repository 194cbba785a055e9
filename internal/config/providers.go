package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ProviderEntry is one row of the provider table. API keys are referenced by
// environment variable name so the file itself stays free of secrets.
type ProviderEntry struct {
	ID             string   `yaml:"id"`
	Type           string   `yaml:"type"`
	BaseURL        string   `yaml:"base_url,omitempty"`
	APIKeyEnv      string   `yaml:"api_key_env"`
	Model          string   `yaml:"model,omitempty"`
	CostPerCharUSD float64  `yaml:"cost_per_char_usd"`
	QualityRating  float64  `yaml:"quality_rating"`
	Pairs          []string `yaml:"pairs,omitempty"`
	PreferredPairs []string `yaml:"preferred_pairs,omitempty"`
}

// ProviderTable is the parsed providers.yaml.
type ProviderTable struct {
	Providers []ProviderEntry `yaml:"providers"`
}

// LoadProviderTable reads and validates the provider table.
func LoadProviderTable(path string) (*ProviderTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider table: %w", err)
	}

	var table ProviderTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse provider table: %w", err)
	}

	if len(table.Providers) == 0 {
		return nil, fmt.Errorf("provider table %s defines no providers", path)
	}

	seen := make(map[string]bool, len(table.Providers))
	for i, entry := range table.Providers {
		if entry.ID == "" {
			return nil, fmt.Errorf("provider %d has no id", i)
		}
		if seen[entry.ID] {
			return nil, fmt.Errorf("duplicate provider id %q", entry.ID)
		}
		seen[entry.ID] = true
		if entry.Type == "" {
			return nil, fmt.Errorf("provider %q has no type", entry.ID)
		}
		if entry.QualityRating < 0 || entry.QualityRating > 1 {
			return nil, fmt.Errorf("provider %q quality_rating must be in [0,1]", entry.ID)
		}
	}

	return &table, nil
}

// APIKey resolves the entry's key from the environment.
func (e *ProviderEntry) APIKey() string {
	if e.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(e.APIKeyEnv)
}
