/**
 * @description
 * Exact-balance adapter for OpenRouter, which exposes a direct credits
 * endpoint. Any non-2xx response or malformed body is an AdapterFetchError;
 * no fallback value is ever returned.
 */
package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/quotawatch/backend/internal/domain"
)

const openRouterBaseURL = "https://openrouter.ai"

// OpenRouterAdapter reads the exact remaining balance from OpenRouter.
type OpenRouterAdapter struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

// NewOpenRouterAdapter is the registry constructor for the OpenRouter variant.
func NewOpenRouterAdapter(secret string, _ map[string]any) (BalanceAdapter, error) {
	return &OpenRouterAdapter{
		baseURL:    openRouterBaseURL,
		secret:     secret,
		httpClient: newHTTPClient(),
	}, nil
}

type openRouterCreditsResponse struct {
	Credits *float64 `json:"credits"`
}

// FetchBalance issues one authenticated GET to the credits endpoint.
func (a *OpenRouterAdapter) FetchBalance(ctx context.Context) (domain.BalanceFetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/v1/credits", nil)
	if err != nil {
		return domain.BalanceFetchResult{}, &domain.AdapterFetchError{Platform: "openrouter", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+a.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return domain.BalanceFetchResult{}, &domain.AdapterFetchError{Platform: "openrouter", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.BalanceFetchResult{}, &domain.AdapterFetchError{
			Platform: "openrouter",
			Err:      fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var body openRouterCreditsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.BalanceFetchResult{}, &domain.AdapterFetchError{Platform: "openrouter", Err: fmt.Errorf("decode response: %w", err)}
	}
	if body.Credits == nil {
		return domain.BalanceFetchResult{}, &domain.AdapterFetchError{
			Platform: "openrouter",
			Err:      fmt.Errorf("response missing credits field"),
		}
	}

	return domain.BalanceFetchResult{Balance: *body.Credits, IsEstimate: false}, nil
}
