/**
 * @description
 * Static registry mapping a platform's adapter key to the constructor for
 * its adapter variant. The table is fixed at process start; adding a
 * platform means adding a constructor here and a catalog row in the seeder.
 */
package adapters

import "github.com/quotawatch/backend/internal/domain"

// Registry resolves adapter keys to adapter instances.
type Registry struct {
	constructors map[string]Constructor
}

// NewRegistry returns the registry with every supported variant registered.
func NewRegistry() *Registry {
	return &Registry{
		constructors: map[string]Constructor{
			"openrouter": NewOpenRouterAdapter,
			"openai":     NewOpenAIUsageAdapter,
		},
	}
}

// Resolve builds the adapter for the given key. An unregistered key is an
// UnknownAdapterError; constructor-level metadata validation errors pass
// through unchanged.
func (r *Registry) Resolve(key, secret string, metadata map[string]any) (BalanceAdapter, error) {
	construct, ok := r.constructors[key]
	if !ok {
		return nil, &domain.UnknownAdapterError{Key: key}
	}
	return construct(secret, metadata)
}
