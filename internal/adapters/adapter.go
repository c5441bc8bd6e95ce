/**
 * @description
 * Balance adapters know how to query one external platform for the remaining
 * balance of a credential. The adapter set is closed: every variant is
 * registered statically in registry.go, keyed by the platform's adapter key.
 *
 * Adapters receive the plaintext secret and the credential's metadata bag at
 * construction time and expose a single FetchBalance operation.
 */
package adapters

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/quotawatch/backend/internal/domain"
)

// fetchTimeout bounds every outbound platform call.
const fetchTimeout = 30 * time.Second

// BalanceAdapter fetches the current balance from one external platform.
type BalanceAdapter interface {
	FetchBalance(ctx context.Context) (domain.BalanceFetchResult, error)
}

// Constructor builds an adapter from a plaintext secret and metadata.
// Metadata validation happens here, before any network call.
type Constructor func(secret string, metadata map[string]any) (BalanceAdapter, error)

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: fetchTimeout}
}

// numericMetadata extracts a float from a JSON metadata bag, accepting
// numbers and numeric strings.
func numericMetadata(metadata map[string]any, field string) (float64, bool) {
	raw, ok := metadata[field]
	if !ok || raw == nil {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
