package providers

import (
	"fmt"
	"sync"
)

// Creator is a function that creates a provider instance
type Creator func(config Config) (Translator, error)

// Factory creates provider instances based on type and configuration
type Factory struct {
	mu       sync.RWMutex
	creators map[string]Creator
}

// NewFactory creates a new provider factory with built-in providers registered
func NewFactory() *Factory {
	f := &Factory{
		creators: make(map[string]Creator),
	}

	f.Register("deepl", NewDeepLProvider)
	f.Register("openai", NewOpenAIProvider)

	return f
}

// Register registers a provider creator for a specific type
func (f *Factory) Register(providerType string, creator Creator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creators[providerType] = creator
}

// Create creates a new provider instance based on the configuration
func (f *Factory) Create(config Config) (Translator, error) {
	f.mu.RLock()
	creator, exists := f.creators[config.Type]
	f.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported provider type: %s", config.Type)
	}

	provider, err := creator(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider %s (%s): %w", config.ID, config.Type, err)
	}

	return provider, nil
}

// SupportedTypes returns the list of supported provider types
func (f *Factory) SupportedTypes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]string, 0, len(f.creators))
	for t := range f.creators {
		types = append(types, t)
	}
	return types
}
