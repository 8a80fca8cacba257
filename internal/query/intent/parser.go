package intent

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/receiptiq/receiptiq/internal/query/merchant"
	"github.com/receiptiq/receiptiq/internal/query/temporal"
)

// Gaps carries the fields the gap-filling fallback may supply. Rule-based
// extraction always takes precedence: Parse only copies a gap field when
// the rules produced nothing for it.
type Gaps struct {
	Merchants   []string
	DateRange   *temporal.DateRange
	Aggregation Aggregation
}

// GapFiller is the language-understanding fallback invoked when rules
// leave both merchants and dates empty. Failure means "no information".
type GapFiller interface {
	FillIntentGaps(ctx context.Context, query string, ref time.Time) (*Gaps, error)
}

// Parser composes the temporal and merchant resolvers into Intent
// records. Parsing is deterministic given the same reference date and
// corpus state, and never fails: unparseable fragments are omitted.
type Parser struct {
	temporal  *temporal.Resolver
	merchants *merchant.Resolver
	gapFiller GapFiller
	logger    *zap.Logger
}

// NewParser creates a parser. gapFiller may be nil.
func NewParser(tr *temporal.Resolver, mr *merchant.Resolver, gapFiller GapFiller, logger *zap.Logger) *Parser {
	return &Parser{temporal: tr, merchants: mr, gapFiller: gapFiller, logger: logger}
}

// Parse extracts a structured Intent from the query, resolving relative
// dates against ref.
func (p *Parser) Parse(ctx context.Context, query string, ref time.Time) Intent {
	q := strings.ToLower(query)

	it := Intent{
		RawQuery:  query,
		QueryType: classify(q),
		Metric:    extractMetric(q),
	}

	if c := p.temporal.Resolve(ctx, query, ref); c != nil {
		it.DateRange = c.Range
		it.CoarseDate = c.Coarse
	}

	it.Merchants = merchant.FilterReserved(p.merchants.Extract(ctx, query))
	it.Categories = extractCategories(q)
	it.SemanticKeywords = extractSemanticKeywords(q)
	it.PaymentMethod, it.CardNetwork = extractPayment(q)
	it.FeatureFlags, it.FeatureAnyOf = extractFeatureFlags(q)
	it.MinAmount, it.MaxAmount = extractAmounts(q)
	it.Location = extractLocation(query)
	it.Aggregation = extractAggregation(q)
	it.SumBasis = deriveSumBasis(it, q)

	p.fillGaps(ctx, query, ref, &it)

	p.log().Debug("parsed query",
		zap.String("query", query),
		zap.String("query_type", string(it.QueryType)),
		zap.Strings("merchants", it.Merchants),
		zap.Strings("categories", it.Categories),
		zap.String("aggregation", string(it.Aggregation)),
		zap.String("sum_basis", string(it.SumBasis)))

	return it
}

// fillGaps invokes the semantic fallback when rules left both the
// merchant list and the date range empty, copying only missing fields.
func (p *Parser) fillGaps(ctx context.Context, query string, ref time.Time, it *Intent) {
	if p.gapFiller == nil {
		return
	}
	if len(it.Merchants) > 0 && it.DateRange != nil {
		return
	}
	gaps, err := p.gapFiller.FillIntentGaps(ctx, query, ref)
	if err != nil {
		p.log().Warn("intent gap fill failed", zap.Error(err))
		return
	}
	if gaps == nil {
		return
	}
	if len(it.Merchants) == 0 && len(gaps.Merchants) > 0 {
		it.Merchants = merchant.FilterReserved(gaps.Merchants)
	}
	if it.DateRange == nil && it.CoarseDate == nil && gaps.DateRange != nil {
		// Extractors return date-precision bounds; widen to full days so
		// the final day's transactions survive the timestamp filter.
		dr := temporal.DayBounded(gaps.DateRange.Start, gaps.DateRange.End)
		it.DateRange = &dr
	}
	if it.Aggregation == AggregationNone && gaps.Aggregation != AggregationNone {
		it.Aggregation = gaps.Aggregation
		it.SumBasis = deriveSumBasis(*it, strings.ToLower(query))
	}
}

// classify assigns the first matching pattern class, defaulting to
// general.
func classify(q string) QueryType {
	for _, class := range classifications {
		for _, re := range class.patterns {
			if re.MatchString(q) {
				return class.queryType
			}
		}
	}
	return QueryGeneral
}

func extractMetric(q string) Metric {
	switch {
	case strings.Contains(q, "subtotal"):
		return MetricSubtotal
	case strings.Contains(q, "tax"):
		return MetricTax
	case tipMetricRe.MatchString(q):
		return MetricTip
	default:
		return MetricTotal
	}
}

func extractCategories(q string) []string {
	var cats []string
	seen := make(map[string]struct{})
	for _, m := range categoryMappings {
		if !strings.Contains(q, m.term) {
			continue
		}
		if _, dup := seen[m.category]; dup {
			continue
		}
		seen[m.category] = struct{}{}
		cats = append(cats, m.category)
	}
	return cats
}

func extractSemanticKeywords(q string) []string {
	var keywords []string
	seen := make(map[string]struct{})
	for _, m := range semanticMappings {
		matched := strings.Contains(q, m.group)
		if !matched {
			for _, kw := range m.keywords {
				if strings.Contains(q, kw) {
					matched = true
					break
				}
			}
		}
		if !matched {
			continue
		}
		for _, kw := range m.keywords {
			if _, dup := seen[kw]; dup {
				continue
			}
			seen[kw] = struct{}{}
			keywords = append(keywords, kw)
		}
	}
	return keywords
}

func extractPayment(q string) (method, network string) {
	for _, pm := range paymentMethods {
		if strings.Contains(q, pm.term) {
			method = pm.method
			break
		}
	}
	for _, cn := range cardNetworks {
		if strings.Contains(q, cn.term) {
			network = cn.network
			break
		}
	}
	// A named network implies a card payment even without the word
	// "credit" in the query.
	if network != "" && method == "" {
		method = "credit"
	}
	return method, network
}

func extractFeatureFlags(q string) (map[string]bool, []string) {
	flags := make(map[string]bool)
	for _, fp := range featureFlagPatterns {
		if fp.re.MatchString(q) {
			flags[fp.flag] = true
		}
	}

	var anyOf []string
	if deliveryOrTipRe.MatchString(q) {
		anyOf = []string{FlagHasDeliveryFee, FlagHasTip}
		delete(flags, FlagHasDeliveryFee)
		delete(flags, FlagHasTip)
	}

	if len(flags) == 0 {
		flags = nil
	}
	return flags, anyOf
}

func extractAmounts(q string) (min, max *float64) {
	for _, m := range dollarAmountRe.FindAllStringSubmatch(q, -1) {
		amount, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		a := amount
		switch {
		case minDirectionRe.MatchString(q) && min == nil:
			min = &a
		case maxDirectionRe.MatchString(q) && max == nil:
			max = &a
		}
	}
	return min, max
}

func extractLocation(query string) *Location {
	m := locationRe.FindStringSubmatch(query)
	if m == nil {
		return nil
	}
	return &Location{City: m[1], State: m[2]}
}

func extractAggregation(q string) Aggregation {
	for _, at := range aggregationTerms {
		if at.re.MatchString(q) {
			return at.agg
		}
	}
	return AggregationNone
}

// deriveSumBasis applies the basis invariants: tax and subtotal only
// exist per receipt; category and item-flavored queries aggregate over
// line items; everything else aggregates over receipts.
func deriveSumBasis(it Intent, q string) SumBasis {
	if it.Metric == MetricTax || it.Metric == MetricSubtotal {
		return BasisReceipts
	}
	if it.QueryType == QueryCategory || it.QueryType == QueryItemSpecific {
		return BasisItems
	}
	if len(it.Categories) > 0 {
		return BasisItems
	}
	if purchaseVerbRe.MatchString(q) {
		return BasisItems
	}
	return BasisReceipts
}

func (p *Parser) log() *zap.Logger {
	if p.logger == nil {
		return zap.NewNop()
	}
	return p.logger
}
