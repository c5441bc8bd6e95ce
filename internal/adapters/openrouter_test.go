package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotawatch/backend/internal/domain"
)

func newOpenRouterForTest(t *testing.T, server *httptest.Server, secret string) *OpenRouterAdapter {
	t.Helper()
	adapter, err := NewOpenRouterAdapter(secret, nil)
	require.NoError(t, err)
	or := adapter.(*OpenRouterAdapter)
	or.baseURL = server.URL
	return or
}

func TestOpenRouter_FetchBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/credits", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"credits": 42.5}`))
	}))
	defer server.Close()

	adapter := newOpenRouterForTest(t, server, "sk-test")
	result, err := adapter.FetchBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42.5, result.Balance)
	assert.False(t, result.IsEstimate)
}

func TestOpenRouter_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	adapter := newOpenRouterForTest(t, server, "sk-bad")
	_, err := adapter.FetchBalance(context.Background())

	var fetchErr *domain.AdapterFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "openrouter", fetchErr.Platform)
}

func TestOpenRouter_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	adapter := newOpenRouterForTest(t, server, "sk-test")
	_, err := adapter.FetchBalance(context.Background())

	var fetchErr *domain.AdapterFetchError
	require.ErrorAs(t, err, &fetchErr)
}

func TestOpenRouter_MissingCreditsField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"label": "personal"}`))
	}))
	defer server.Close()

	adapter := newOpenRouterForTest(t, server, "sk-test")
	_, err := adapter.FetchBalance(context.Background())

	var fetchErr *domain.AdapterFetchError
	require.ErrorAs(t, err, &fetchErr)
}

func TestOpenRouter_ServerUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	adapter, err := NewOpenRouterAdapter("sk-test", nil)
	require.NoError(t, err)
	or := adapter.(*OpenRouterAdapter)
	or.baseURL = server.URL

	_, err = or.FetchBalance(context.Background())
	var fetchErr *domain.AdapterFetchError
	require.ErrorAs(t, err, &fetchErr)
}
