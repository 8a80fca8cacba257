// Package engine orchestrates a receipt query end to end: parse the
// query into an Intent, translate it into a retrieval filter, run the
// hybrid search, deduplicate the evidence, recompute any requested
// aggregation deterministically, and synthesize the answer. Execute never
// fails; every internal failure degrades or is converted into a terminal
// error result.
package engine

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/receiptiq/receiptiq/internal/query/intent"
	"github.com/receiptiq/receiptiq/internal/retrieval"
)

// DefaultTopK bounds how many evidence records one query retrieves.
const DefaultTopK = 30

// AnswerGenerator synthesizes the final natural-language answer from
// verified evidence. When audit is non-nil the implementation must cite
// audit.Value verbatim instead of doing its own arithmetic. Failure means
// "no answer"; the engine falls back to a template.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, query string, it intent.Intent, receipts []ReceiptSummary, items []ItemSummary, audit *AuditResult) (string, error)
}

// Parser is the query-understanding stage, satisfied by *intent.Parser.
type Parser interface {
	Parse(ctx context.Context, query string, ref time.Time) intent.Intent
}

// Engine executes receipt queries. Stateless per query; safe for
// concurrent use when its collaborators are.
type Engine struct {
	retriever retrieval.Retriever
	parser    Parser
	generator AnswerGenerator
	topK      int
	logger    *zap.Logger
	now       func() time.Time
}

// New creates an engine. generator may be nil to always use the template
// answer; topK <= 0 selects DefaultTopK.
func New(retriever retrieval.Retriever, parser Parser, generator AnswerGenerator, topK int, logger *zap.Logger) *Engine {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		retriever: retriever,
		parser:    parser,
		generator: generator,
		topK:      topK,
		logger:    logger,
		now:       time.Now,
	}
}

// Execute runs the full pipeline for one query. It never returns an
// error: unexpected failures become a query_type="error" result with
// confidence 0.
func (e *Engine) Execute(ctx context.Context, query string) (result QueryResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("query pipeline panicked",
				zap.String("query", query),
				zap.Any("panic", r))
			result = QueryResult{
				Answer:    errorAnswer,
				QueryType: string(intent.QueryError),
			}
		}
	}()

	// Relative dates are anchored to the data's own recency, so "last
	// week" means the last week the corpus knows about, not wall clock.
	ref := e.referenceDate(ctx)

	started := e.now()
	it := e.parser.Parse(ctx, query, ref)
	filter := BuildFilter(it)

	evidence, err := e.retriever.HybridSearch(ctx, expandQuery(query, it.SemanticKeywords), filter, e.topK)
	if err != nil {
		e.logger.Warn("hybrid search failed", zap.String("query", query), zap.Error(err))
		evidence = nil
	}

	if len(evidence) == 0 {
		return QueryResult{
			Answer:         noMatchAnswer,
			QueryType:      string(it.QueryType),
			ProcessingTime: e.now().Sub(started).Seconds(),
			Metadata:       Metadata{Intent: it, Filter: filter},
		}
	}

	receipts, items := Deduplicate(evidence)
	audit := RunAudit(it, receipts, items)
	answer := e.generateAnswer(ctx, query, it, receipts, items, audit)

	confidence := float64(len(evidence)) / 10.0
	if confidence > 1.0 {
		confidence = 1.0
	}
	if audit != nil && audit.Verified && confidence < 0.9 {
		confidence = 0.9
	}

	e.logger.Info("query executed",
		zap.String("query", query),
		zap.String("query_type", string(it.QueryType)),
		zap.Int("raw_matches", len(evidence)),
		zap.Int("receipts", len(receipts)),
		zap.Int("items", len(items)),
		zap.Bool("audited", audit != nil),
		zap.Float64("confidence", confidence))

	return QueryResult{
		Answer:         answer,
		Receipts:       receipts,
		Items:          items,
		Confidence:     confidence,
		QueryType:      string(it.QueryType),
		ProcessingTime: e.now().Sub(started).Seconds(),
		Metadata: Metadata{
			Intent:     it,
			Filter:     filter,
			Audit:      audit,
			RawMatches: len(evidence),
		},
	}
}

// referenceDate picks the anchor for relative date expressions: the most
// recent indexed transaction, or the wall clock when the index is empty
// or unreachable.
func (e *Engine) referenceDate(ctx context.Context) time.Time {
	ts, ok, err := e.retriever.LatestTransactionTime(ctx)
	if err != nil {
		e.logger.Warn("latest transaction lookup failed", zap.Error(err))
		return e.now().UTC()
	}
	if !ok {
		return e.now().UTC()
	}
	return ts.UTC()
}

func (e *Engine) generateAnswer(ctx context.Context, query string, it intent.Intent, receipts []ReceiptSummary, items []ItemSummary, audit *AuditResult) string {
	if e.generator != nil {
		answer, err := e.generator.GenerateAnswer(ctx, query, it, receipts, items, audit)
		if err == nil && strings.TrimSpace(answer) != "" {
			return answer
		}
		if err != nil {
			e.logger.Warn("answer generation failed", zap.String("query", query), zap.Error(err))
		}
	}
	return fallbackAnswer(it, receipts, items, audit)
}

// expandQuery appends semantic category keywords to the retrieval text so
// vector ranking sees the expanded vocabulary. Filters are unaffected.
func expandQuery(query string, keywords []string) string {
	if len(keywords) == 0 {
		return query
	}
	lower := strings.ToLower(query)
	extra := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if !strings.Contains(lower, kw) {
			extra = append(extra, kw)
		}
	}
	if len(extra) == 0 {
		return query
	}
	return query + " " + strings.Join(extra, " ")
}
