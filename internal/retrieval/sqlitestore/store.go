// Package sqlitestore implements the retrieval capability on SQLite:
// chunk metadata in typed columns for exact filtering, embeddings in a
// BLOB column for semantic ranking. Ranking happens in process, which is
// fine at personal-receipt scale.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/receiptiq/receiptiq/internal/query/merchant"
	"github.com/receiptiq/receiptiq/internal/retrieval"
)

// Embedder produces embedding vectors for chunk content and query text.
// Failure during a search degrades ranking, never the search itself.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	chunk_id          TEXT PRIMARY KEY,
	receipt_id        TEXT NOT NULL,
	chunk_type        TEXT NOT NULL,
	content           TEXT NOT NULL DEFAULT '',
	merchant_name     TEXT NOT NULL DEFAULT '',
	merchant_norm     TEXT NOT NULL DEFAULT '',
	merchant_city     TEXT NOT NULL DEFAULT '',
	merchant_state    TEXT NOT NULL DEFAULT '',
	transaction_date  TEXT NOT NULL DEFAULT '',
	transaction_ts    INTEGER,
	transaction_month INTEGER,
	transaction_year  INTEGER,
	payment_method    TEXT NOT NULL DEFAULT '',
	card_network      TEXT NOT NULL DEFAULT '',
	total_amount      REAL,
	tax_amount        REAL,
	tip_amount        REAL,
	subtotal          REAL,
	item_name         TEXT NOT NULL DEFAULT '',
	item_price        REAL,
	item_category     TEXT NOT NULL DEFAULT '',
	group_category    TEXT NOT NULL DEFAULT '',
	has_warranty      INTEGER NOT NULL DEFAULT 0,
	has_tip           INTEGER NOT NULL DEFAULT 0,
	has_discounts     INTEGER NOT NULL DEFAULT 0,
	has_delivery_fee  INTEGER NOT NULL DEFAULT 0,
	is_return         INTEGER NOT NULL DEFAULT 0,
	filename          TEXT NOT NULL DEFAULT '',
	extra             TEXT NOT NULL DEFAULT '{}',
	embedding         BLOB,
	created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_chunks_receipt ON chunks(receipt_id);
CREATE INDEX IF NOT EXISTS idx_chunks_merchant ON chunks(merchant_norm);
CREATE INDEX IF NOT EXISTS idx_chunks_ts ON chunks(transaction_ts);
`

// Store is a SQLite-backed retriever. Safe for concurrent use.
type Store struct {
	db       *sql.DB
	embedder Embedder
	logger   *zap.Logger
}

// Open opens (creating if needed) the chunk database at path. embedder
// may be nil, disabling semantic ranking and leaving filter-only search.
func Open(path string, embedder Embedder, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open chunk database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping chunk database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create chunk schema: %w", err)
	}
	logger.Info("chunk store opened", zap.String("path", path))
	return &Store{db: db, embedder: embedder, logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// AddChunks indexes evidence records. Missing chunk IDs are assigned;
// merchant_norm and the coarse month/year columns are derived here so
// every filterable field is queryable without recomputation.
func (s *Store) AddChunks(ctx context.Context, chunks []retrieval.Evidence) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunk insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks (
			chunk_id, receipt_id, chunk_type, content,
			merchant_name, merchant_norm, merchant_city, merchant_state,
			transaction_date, transaction_ts, transaction_month, transaction_year,
			payment_method, card_network,
			total_amount, tax_amount, tip_amount, subtotal,
			item_name, item_price, item_category, group_category,
			has_warranty, has_tip, has_discounts, has_delivery_fee, is_return,
			filename, extra, embedding
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range chunks {
		chunkID := ev.ChunkID
		if chunkID == "" {
			chunkID = uuid.NewString()
		}

		var month, year interface{}
		var ts interface{}
		if ev.TransactionTS > 0 {
			t := time.Unix(ev.TransactionTS, 0).UTC()
			ts = ev.TransactionTS
			month = int(t.Month())
			year = t.Year()
		}

		extra := "{}"
		if len(ev.Extra) > 0 {
			raw, err := json.Marshal(ev.Extra)
			if err != nil {
				return fmt.Errorf("marshal extra metadata for %s: %w", chunkID, err)
			}
			extra = string(raw)
		}

		var embedding []byte
		if s.embedder != nil && ev.Content != "" {
			vec, err := s.embedder.EmbedText(ctx, ev.Content)
			if err != nil {
				return fmt.Errorf("embed chunk %s: %w", chunkID, err)
			}
			embedding = encodeVector(vec)
		}

		_, err = stmt.ExecContext(ctx,
			chunkID, ev.ReceiptID, ev.ChunkType, ev.Content,
			ev.MerchantName, merchant.Normalize(ev.MerchantName), ev.MerchantCity, ev.MerchantState,
			ev.TransactionDate, ts, month, year,
			ev.PaymentMethod, ev.CardNetwork,
			ev.TotalAmount, ev.TaxAmount, ev.TipAmount, ev.Subtotal,
			ev.ItemName, ev.ItemPrice, ev.ItemCategory, ev.GroupCategory,
			ev.HasWarranty, ev.HasTip, ev.HasDiscounts, ev.HasDeliveryFee, ev.IsReturn,
			ev.Filename, extra, embedding)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", chunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunk insert: %w", err)
	}
	s.logger.Info("chunks indexed", zap.Int("count", len(chunks)))
	return nil
}

// HybridSearch applies the filter in SQL, then ranks the surviving rows
// by cosine similarity to the query text. Without an embedder, or when
// embedding the query fails, rows come back newest first.
func (s *Store) HybridSearch(ctx context.Context, query string, filter *retrieval.Filter, topK int) ([]retrieval.Evidence, error) {
	where, args, err := buildWhere(filter)
	if err != nil {
		return nil, err
	}

	q := selectColumns + " FROM chunks"
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY transaction_ts DESC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("chunk search: %w", err)
	}
	defer rows.Close()

	var results []scoredEvidence
	for rows.Next() {
		ev, embedding, err := scanEvidence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		results = append(results, scoredEvidence{evidence: ev, embedding: embedding})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chunk search: %w", err)
	}

	s.rank(ctx, query, results)

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	out := make([]retrieval.Evidence, len(results))
	for i, r := range results {
		out[i] = r.evidence
	}
	return out, nil
}

type scoredEvidence struct {
	evidence  retrieval.Evidence
	embedding []float32
}

// rank orders results by similarity to the query, in place. Rows without
// embeddings keep score 0 and sink to the bottom.
func (s *Store) rank(ctx context.Context, query string, results []scoredEvidence) {
	if s.embedder == nil || len(results) == 0 {
		return
	}
	queryVec, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Warn("query embedding failed, returning filter-only order", zap.Error(err))
		return
	}
	for i := range results {
		if len(results[i].embedding) > 0 {
			results[i].evidence.Score = cosineSimilarity(queryVec, results[i].embedding)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].evidence.Score > results[j].evidence.Score
	})
}

// LatestTransactionTime returns the newest receipt_summary transaction
// timestamp, anchoring relative-date queries to the data's own recency.
func (s *Store) LatestTransactionTime(ctx context.Context) (time.Time, bool, error) {
	var ts sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(transaction_ts) FROM chunks WHERE chunk_type = ? AND transaction_ts IS NOT NULL`,
		retrieval.ChunkReceiptSummary).Scan(&ts)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("latest transaction: %w", err)
	}
	if !ts.Valid || ts.Int64 <= 0 {
		return time.Time{}, false, nil
	}
	return time.Unix(ts.Int64, 0).UTC(), true, nil
}

// Merchants returns every distinct display merchant name in the index,
// used to seed the merchant corpus at startup.
func (s *Store) Merchants(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT merchant_name FROM chunks WHERE merchant_name != '' ORDER BY merchant_name`)
	if err != nil {
		return nil, fmt.Errorf("list merchants: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan merchant: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Stats summarizes the index contents.
type Stats struct {
	Chunks    int    `json:"chunks"`
	Receipts  int    `json:"receipts"`
	Merchants int    `json:"merchants"`
	Earliest  string `json:"earliest_transaction,omitempty"`
	Latest    string `json:"latest_transaction,omitempty"`
}

// IndexStats reports chunk, receipt, and merchant counts plus the
// transaction date span.
func (s *Store) IndexStats(ctx context.Context) (Stats, error) {
	var st Stats
	var minTS, maxTS sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(DISTINCT receipt_id),
		       COUNT(DISTINCT CASE WHEN merchant_norm != '' THEN merchant_norm END),
		       MIN(transaction_ts), MAX(transaction_ts)
		FROM chunks`).Scan(&st.Chunks, &st.Receipts, &st.Merchants, &minTS, &maxTS)
	if err != nil {
		return Stats{}, fmt.Errorf("index stats: %w", err)
	}
	if minTS.Valid {
		st.Earliest = time.Unix(minTS.Int64, 0).UTC().Format("2006-01-02")
	}
	if maxTS.Valid {
		st.Latest = time.Unix(maxTS.Int64, 0).UTC().Format("2006-01-02")
	}
	return st, nil
}
