/**
 * @description
 * Estimate-balance adapter for OpenAI, which has no direct balance endpoint.
 * The credential metadata must carry a numeric total_grant; the remaining
 * balance is estimated as max(0, grant - usage). When the usage endpoint is
 * unavailable or the call fails, the grant itself is returned as the
 * estimate. Estimation never fails the check job once the adapter exists.
 */
package adapters

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/quotawatch/backend/internal/domain"
)

const openAIBaseURL = "https://api.openai.com"

// OpenAIUsageAdapter estimates the remaining balance from usage data.
type OpenAIUsageAdapter struct {
	baseURL    string
	secret     string
	totalGrant float64
	httpClient *http.Client
}

// NewOpenAIUsageAdapter is the registry constructor for the OpenAI variant.
// A missing or non-numeric total_grant fails here, before any network call.
func NewOpenAIUsageAdapter(secret string, metadata map[string]any) (BalanceAdapter, error) {
	grant, ok := numericMetadata(metadata, "total_grant")
	if !ok {
		return nil, &domain.ConfigurationError{
			Field:  "total_grant",
			Reason: "metadata must provide a numeric total grant for balance estimation",
		}
	}

	return &OpenAIUsageAdapter{
		baseURL:    openAIBaseURL,
		secret:     secret,
		totalGrant: grant,
		httpClient: newHTTPClient(),
	}, nil
}

type openAIUsageResponse struct {
	// TotalUsage is reported in minor units (cents).
	TotalUsage float64 `json:"total_usage"`
}

// FetchBalance attempts one authenticated GET to the usage endpoint and
// subtracts usage from the grant. Every failure path degrades to the grant
// as an estimate rather than an error.
func (a *OpenAIUsageAdapter) FetchBalance(ctx context.Context) (domain.BalanceFetchResult, error) {
	grantEstimate := domain.BalanceFetchResult{Balance: a.totalGrant, IsEstimate: true}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/v1/usage", nil)
	if err != nil {
		return grantEstimate, nil
	}
	req.Header.Set("Authorization", "Bearer "+a.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return grantEstimate, nil
	}
	defer resp.Body.Close()

	// Not-found means the platform exposes no usage data for this key.
	if resp.StatusCode == http.StatusNotFound {
		return grantEstimate, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return grantEstimate, nil
	}

	var body openAIUsageResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return grantEstimate, nil
	}

	remaining := a.totalGrant - body.TotalUsage/100
	if remaining < 0 {
		remaining = 0
	}
	return domain.BalanceFetchResult{Balance: remaining, IsEstimate: true}, nil
}
