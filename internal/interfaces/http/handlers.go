package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/receiptiq/receiptiq/internal/export"
	"github.com/receiptiq/receiptiq/internal/query/engine"
	"github.com/receiptiq/receiptiq/internal/retrieval"
	"github.com/receiptiq/receiptiq/internal/retrieval/sqlitestore"
)

// QueryExecutor runs one receipt query end to end.
type QueryExecutor interface {
	Execute(ctx context.Context, query string) engine.QueryResult
}

// ChunkStore is the index surface the API exposes: ingestion and stats.
type ChunkStore interface {
	AddChunks(ctx context.Context, chunks []retrieval.Evidence) error
	IndexStats(ctx context.Context) (sqlitestore.Stats, error)
}

// MerchantLearner accumulates merchant names for fuzzy resolution.
type MerchantLearner interface {
	Add(names ...string)
}

// Handlers contains all HTTP request handlers.
type Handlers struct {
	executor QueryExecutor
	store    ChunkStore
	corpus   MerchantLearner
	exporter *export.ReportWriter
	logger   *zap.Logger
}

// NewHandlers creates a Handlers instance. corpus may be nil when
// ingestion should not feed the merchant resolver.
func NewHandlers(executor QueryExecutor, store ChunkStore, corpus MerchantLearner, exporter *export.ReportWriter, logger *zap.Logger) *Handlers {
	return &Handlers{
		executor: executor,
		store:    store,
		corpus:   corpus,
		exporter: exporter,
		logger:   logger,
	}
}

// Response is the standard JSON envelope.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// QueryRequest is the body of POST /api/v1/query.
type QueryRequest struct {
	Query string `json:"query" binding:"required"`
}

// IngestRequest is the body of POST /api/v1/chunks.
type IngestRequest struct {
	Chunks []retrieval.Evidence `json:"chunks" binding:"required"`
}

// HealthCheck handles GET /health.
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// Query handles POST /api/v1/query. The engine never fails; error-class
// results still come back as 200 with query_type="error".
func (h *Handlers) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "query is required",
		})
		return
	}

	result := h.executor.Execute(c.Request.Context(), req.Query)
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    result,
	})
}

// ExportQuery handles POST /api/v1/query/export: runs the query and
// streams the result as an Excel workbook.
func (h *Handlers) ExportQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "query is required",
		})
		return
	}

	result := h.executor.Execute(c.Request.Context(), req.Query)
	buf, err := h.exporter.WriteQueryResult(result)
	if err != nil {
		h.logger.Error("export failed", zap.String("query", req.Query), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to build export",
		})
		return
	}

	filename := fmt.Sprintf("receipts-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		buf.Bytes())
}

// IngestChunks handles POST /api/v1/chunks, indexing externally produced
// chunk records and feeding their merchants to the resolver corpus.
func (h *Handlers) IngestChunks(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Chunks) == 0 {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "chunks are required",
		})
		return
	}

	if err := h.store.AddChunks(c.Request.Context(), req.Chunks); err != nil {
		h.logger.Error("chunk ingestion failed", zap.Int("count", len(req.Chunks)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to index chunks",
		})
		return
	}
	if h.corpus != nil {
		for _, chunk := range req.Chunks {
			if chunk.MerchantName != "" {
				h.corpus.Add(chunk.MerchantName)
			}
		}
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    gin.H{"indexed": len(req.Chunks)},
	})
}

// Stats handles GET /api/v1/stats.
func (h *Handlers) Stats(c *gin.Context) {
	stats, err := h.store.IndexStats(c.Request.Context())
	if err != nil {
		h.logger.Error("stats lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to read index stats",
		})
		return
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    stats,
	})
}
