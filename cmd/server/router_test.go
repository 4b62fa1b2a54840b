package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/vault-ledger/internal/feed"
)

func TestRouterHealth(t *testing.T) {
	r := newRouter(feed.NewHub(1))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","service":"vault-ledger"}`, rec.Body.String())
}

func TestRouterMetrics(t *testing.T) {
	r := newRouter(feed.NewHub(1))

	// Record one request so the HTTP series exist.
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "vaultledger_http_requests_total"))
}

func TestRouterHasNoLedgerQueries(t *testing.T) {
	r := newRouter(feed.NewHub(1))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/vaults", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
