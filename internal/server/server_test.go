package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	dec "github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/ledger"
	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/server"
)

func newTestServer(t *testing.T) (*server.Server, *ledger.MemoryStore) {
	t.Helper()
	store := ledger.NewMemoryStore()
	srv := server.NewServer(&server.Config{Address: ":0"}, store, zerolog.Nop())
	return srv, store
}

func seed(t *testing.T, store *ledger.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Record(ctx, ledger.Entry{
		InvoiceNumber: "INV-001",
		Status:        ledger.StatusSubmitted,
		IRN:           "NG-IRN-001",
		CustomerName:  "Acme Ltd",
		Amount:        dec.RequireFromString("1612.50"),
	}))
	require.NoError(t, store.Record(ctx, ledger.Entry{
		InvoiceNumber: "INV-002",
		Status:        ledger.StatusFailed,
		LastError:     "tin is invalid",
	}))
	require.NoError(t, store.Record(ctx, ledger.Entry{
		InvoiceNumber: "INV-003",
		Status:        ledger.StatusPending,
	}))
}

func get(srv *server.Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	w := get(srv, "/health")
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestListInvoices(t *testing.T) {
	srv, store := newTestServer(t)
	seed(t, store)

	w := get(srv, "/api/v1/invoices")
	require.Equal(t, http.StatusOK, w.Code)

	var resp server.ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Count)
	assert.Len(t, resp.Invoices, 3)
}

func TestListInvoicesStatusFilter(t *testing.T) {
	srv, store := newTestServer(t)
	seed(t, store)

	w := get(srv, "/api/v1/invoices?status=failed")
	require.Equal(t, http.StatusOK, w.Code)

	var resp server.ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "INV-002", resp.Invoices[0].InvoiceNumber)
}

func TestListInvoicesRejectsUnknownStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	w := get(srv, "/api/v1/invoices?status=exploded")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetInvoice(t *testing.T) {
	srv, store := newTestServer(t)
	seed(t, store)

	w := get(srv, "/api/v1/invoices/INV-001")
	require.Equal(t, http.StatusOK, w.Code)

	var entry ledger.Entry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entry))
	assert.Equal(t, ledger.StatusSubmitted, entry.Status)
	assert.Equal(t, "NG-IRN-001", entry.IRN)
}

func TestGetInvoiceNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	w := get(srv, "/api/v1/invoices/INV-404")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSummary(t *testing.T) {
	srv, store := newTestServer(t)
	seed(t, store)

	w := get(srv, "/api/v1/summary")
	require.Equal(t, http.StatusOK, w.Code)

	var resp server.SummaryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 1, resp.Submitted)
	assert.Equal(t, 1, resp.Failed)
	assert.Equal(t, 1, resp.Pending)
	assert.True(t, resp.SubmittedAmount.Equal(dec.RequireFromString("1612.50")))
}
