package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/receiptiq/receiptiq/internal/export"
	"github.com/receiptiq/receiptiq/internal/query/engine"
	"github.com/receiptiq/receiptiq/internal/query/merchant"
	"github.com/receiptiq/receiptiq/internal/retrieval"
	"github.com/receiptiq/receiptiq/internal/retrieval/sqlitestore"
)

type stubExecutor struct {
	result engine.QueryResult
}

func (s *stubExecutor) Execute(context.Context, string) engine.QueryResult {
	return s.result
}

func newTestServer(t *testing.T, executor QueryExecutor) (*Server, *merchant.Corpus) {
	t.Helper()
	store, err := sqlitestore.Open(filepath.Join(t.TempDir(), "chunks.db"), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	corpus := merchant.NewCorpus()
	return NewServer(DefaultServerConfig(), executor, store, corpus,
		export.NewReportWriter(nil), zap.NewNop()), corpus
}

func postJSON(t *testing.T, srv *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	srv, _ := newTestServer(t, &stubExecutor{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestQueryEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &stubExecutor{result: engine.QueryResult{
		Answer:     "You spent $24.84.",
		QueryType:  "temporal",
		Confidence: 0.9,
	}})

	rec := postJSON(t, srv, "/api/v1/query", QueryRequest{Query: "how much at Walmart"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Contains(t, rec.Body.String(), "You spent $24.84.")
}

func TestQueryEndpointRequiresQuery(t *testing.T) {
	srv, _ := newTestServer(t, &stubExecutor{})

	rec := postJSON(t, srv, "/api/v1/query", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestAndStats(t *testing.T) {
	srv, corpus := newTestServer(t, &stubExecutor{})

	total := 9.50
	rec := postJSON(t, srv, "/api/v1/chunks", IngestRequest{Chunks: []retrieval.Evidence{
		{ReceiptID: "r1", ChunkType: retrieval.ChunkReceiptSummary, Content: "x", MerchantName: "Blue Bottle", TotalAmount: &total},
	}})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, corpus.Len(), "ingested merchants feed the resolver corpus")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	statsRec := httptest.NewRecorder()
	srv.Router().ServeHTTP(statsRec, req)

	require.Equal(t, http.StatusOK, statsRec.Code)
	assert.Contains(t, statsRec.Body.String(), `"chunks":1`)
	assert.Contains(t, statsRec.Body.String(), `"receipts":1`)
}

func TestIngestRejectsEmptyPayload(t *testing.T) {
	srv, _ := newTestServer(t, &stubExecutor{})

	rec := postJSON(t, srv, "/api/v1/chunks", IngestRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &stubExecutor{result: engine.QueryResult{
		Answer:    "two receipts",
		QueryType: "merchant",
		Receipts:  []engine.ReceiptSummary{{ReceiptID: "r1"}, {ReceiptID: "r2"}},
	}})

	rec := postJSON(t, srv, "/api/v1/query/export", QueryRequest{Query: "receipts from Target"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")
	assert.NotEmpty(t, rec.Body.Bytes())
}
