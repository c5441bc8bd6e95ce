package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotawatch/backend/internal/domain"
)

func TestRegistry_ResolvesRegisteredVariants(t *testing.T) {
	registry := NewRegistry()

	adapter, err := registry.Resolve("openrouter", "sk-or", nil)
	require.NoError(t, err)
	assert.IsType(t, &OpenRouterAdapter{}, adapter)

	adapter, err = registry.Resolve("openai", "sk-oa", map[string]any{"total_grant": 100.0})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIUsageAdapter{}, adapter)
}

func TestRegistry_UnknownKey(t *testing.T) {
	registry := NewRegistry()

	for _, key := range []string{"", "anthropic", "OPENROUTER"} {
		_, err := registry.Resolve(key, "sk", nil)
		var unknownErr *domain.UnknownAdapterError
		require.ErrorAs(t, err, &unknownErr, "key %q", key)
		assert.Equal(t, key, unknownErr.Key)
	}
}

func TestRegistry_ConstructorValidationPassesThrough(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Resolve("openai", "sk-oa", map[string]any{})
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}
