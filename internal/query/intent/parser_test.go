package intent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/receiptiq/receiptiq/internal/query/merchant"
	"github.com/receiptiq/receiptiq/internal/query/temporal"
)

var testRef = time.Date(2024, time.February, 7, 12, 0, 0, 0, time.UTC)

func newTestParser(gapFiller GapFiller) *Parser {
	tr := temporal.NewResolver(nil, 5, nil)
	mr := merchant.NewResolver(nil, nil, nil)
	return NewParser(tr, mr, gapFiller, nil)
}

func TestParseMerchantSpendingQuery(t *testing.T) {
	p := newTestParser(nil)
	it := p.Parse(context.Background(), "How much did I spend at Walmart in January 2024?", testRef)

	assert.Equal(t, []string{"Walmart"}, it.Merchants)
	assert.Equal(t, AggregationSum, it.Aggregation)
	assert.Equal(t, BasisReceipts, it.SumBasis)
	assert.Equal(t, MetricTotal, it.Metric)

	require.NotNil(t, it.DateRange)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), it.DateRange.Start)
	assert.Equal(t, time.January, it.DateRange.End.Month())
	assert.Equal(t, 31, it.DateRange.End.Day())
}

func TestParseCategoryThresholdQuery(t *testing.T) {
	p := newTestParser(nil)
	it := p.Parse(context.Background(), "List all groceries over $5", testRef)

	assert.Equal(t, QueryCategory, it.QueryType)
	assert.Equal(t, []string{"groceries"}, it.Categories)
	require.NotNil(t, it.MinAmount)
	assert.Equal(t, 5.0, *it.MinAmount)
	assert.Nil(t, it.MaxAmount)
	assert.Equal(t, BasisItems, it.SumBasis)
}

func TestClassifyQueryTypes(t *testing.T) {
	tests := []struct {
		query string
		want  QueryType
	}{
		{"how much did I spend last month", QueryTemporal},
		{"show me receipts from Target", QueryMerchant},
		{"how much at restaurants this year", QueryTemporal}, // temporal class matches first
		{"list all electronics", QueryCategory},
		{"purchases over $100", QueryAmount},
		{"find receipts with warranty", QueryItemSpecific},
		{"average receipt", QueryAggregation},
		{"tell me something", QueryGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.query))
		})
	}
}

func TestExtractMetric(t *testing.T) {
	tests := []struct {
		query string
		want  Metric
	}{
		{"how much tax did i pay", MetricTax},
		{"total tips last month", MetricTip},
		{"what was the subtotal at target", MetricSubtotal},
		{"how much did i spend", MetricTotal},
		// "multiple" contains no flagged words; "tip" must be word-bounded.
		{"show multiple receipts", MetricTotal},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, extractMetric(tt.query))
		})
	}
}

func TestTaxMetricForcesReceiptBasis(t *testing.T) {
	p := newTestParser(nil)
	it := p.Parse(context.Background(), "how much tax did I pay on groceries", testRef)

	assert.Equal(t, MetricTax, it.Metric)
	assert.Equal(t, []string{"groceries"}, it.Categories)
	// Tax only exists per receipt, so basis stays receipts despite the
	// category.
	assert.Equal(t, BasisReceipts, it.SumBasis)
}

func TestExtractPayment(t *testing.T) {
	method, network := extractPayment("receipts paid with apple pay")
	assert.Equal(t, "apple_pay", method)
	assert.Empty(t, network)

	method, network = extractPayment("what did i put on my visa")
	assert.Equal(t, "credit", method, "a network without a method implies credit")
	assert.Equal(t, "visa", network)

	method, network = extractPayment("cash purchases with american express")
	assert.Equal(t, "cash", method)
	assert.Equal(t, "amex", network)
}

func TestExtractFeatureFlags(t *testing.T) {
	flags, anyOf := extractFeatureFlags("find purchases with warranty")
	assert.True(t, flags[FlagHasWarranty])
	assert.Empty(t, anyOf)

	flags, anyOf = extractFeatureFlags("show returned or refunded items")
	assert.True(t, flags[FlagIsReturn])
	assert.Empty(t, anyOf)

	// The delivery-or-tip disjunction replaces the two AND flags.
	flags, anyOf = extractFeatureFlags("receipts with a delivery fee or tip")
	assert.Equal(t, []string{FlagHasDeliveryFee, FlagHasTip}, anyOf)
	assert.NotContains(t, flags, FlagHasDeliveryFee)
	assert.NotContains(t, flags, FlagHasTip)
}

func TestExtractAmounts(t *testing.T) {
	min, max := extractAmounts("groceries over $25.50")
	require.NotNil(t, min)
	assert.Equal(t, 25.50, *min)
	assert.Nil(t, max)

	min, max = extractAmounts("receipts under $100")
	assert.Nil(t, min)
	require.NotNil(t, max)
	assert.Equal(t, 100.0, *max)

	min, max = extractAmounts("no amounts here")
	assert.Nil(t, min)
	assert.Nil(t, max)
}

func TestExtractAggregation(t *testing.T) {
	tests := []struct {
		query string
		want  Aggregation
	}{
		{"how much did i spend", AggregationSum},
		{"add up my receipts", AggregationSum},
		{"average coffee price", AggregationAverage},
		{"how many receipts from target", AggregationCount},
		{"show me receipts", AggregationNone},
		// Sum terms win when several classes match.
		{"total average", AggregationSum},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, extractAggregation(tt.query))
		})
	}
}

func TestExtractLocation(t *testing.T) {
	loc := extractLocation("coffee shops in San Francisco, CA")
	require.NotNil(t, loc)
	assert.Equal(t, "San Francisco", loc.City)
	assert.Equal(t, "CA", loc.State)

	assert.Nil(t, extractLocation("coffee shops near me"))
}

func TestParseDiscardsReservedMerchantCandidates(t *testing.T) {
	p := newTestParser(nil)
	// "from December 2023" looks like a merchant to the prepositional
	// strategy; the post-filter must drop it.
	it := p.Parse(context.Background(), "Show me receipts from December 2023", testRef)
	assert.Empty(t, it.Merchants)
	require.NotNil(t, it.DateRange)
	assert.Equal(t, time.December, it.DateRange.Start.Month())
}

type stubGapFiller struct {
	gaps  *Gaps
	err   error
	calls int
}

func (s *stubGapFiller) FillIntentGaps(_ context.Context, _ string, _ time.Time) (*Gaps, error) {
	s.calls++
	return s.gaps, s.err
}

func TestParseGapFillerFillsOnlyMissingFields(t *testing.T) {
	gapRange := &temporal.DateRange{
		Start: time.Date(2023, time.July, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2023, time.July, 31, 0, 0, 0, 0, time.UTC),
	}
	stub := &stubGapFiller{gaps: &Gaps{
		Merchants: []string{"Blue Bottle"},
		DateRange: gapRange,
	}}
	p := newTestParser(stub)

	// Rules already find the merchant; only the date gap is filled.
	it := p.Parse(context.Background(), "spending at Starbucks during my trip", testRef)
	assert.Equal(t, []string{"Starbucks"}, it.Merchants, "rule-based extraction takes precedence")
	require.NotNil(t, it.DateRange)
	assert.Equal(t, gapRange.Start, it.DateRange.Start)
	assert.Equal(t, time.Date(2023, time.July, 31, 23, 59, 59, 999999000, time.UTC), it.DateRange.End)
	assert.Equal(t, 1, stub.calls)
}

func TestParseGapFilledRangeCoversFinalDay(t *testing.T) {
	stub := &stubGapFiller{gaps: &Gaps{DateRange: &temporal.DateRange{
		Start: time.Date(2023, time.July, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2023, time.July, 31, 0, 0, 0, 0, time.UTC),
	}}}
	p := newTestParser(stub)

	it := p.Parse(context.Background(), "spending at Starbucks during my trip", testRef)
	require.NotNil(t, it.DateRange)

	lastDayPurchase := time.Date(2023, time.July, 31, 12, 0, 0, 0, time.UTC)
	assert.False(t, lastDayPurchase.After(it.DateRange.End),
		"a transaction on the range's final day must fall inside the range")
	assert.False(t, lastDayPurchase.Before(it.DateRange.Start))
}

func TestParseGapFillerSkippedWhenRulesSucceed(t *testing.T) {
	stub := &stubGapFiller{gaps: &Gaps{Merchants: []string{"Nope"}}}
	p := newTestParser(stub)

	it := p.Parse(context.Background(), "How much did I spend at Walmart in January 2024?", testRef)
	assert.Equal(t, []string{"Walmart"}, it.Merchants)
	assert.Zero(t, stub.calls)
}

func TestParseGapFillerFailureIsIgnored(t *testing.T) {
	stub := &stubGapFiller{err: assert.AnError}
	p := newTestParser(stub)

	it := p.Parse(context.Background(), "what did I get for lunch", testRef)
	assert.Empty(t, it.Merchants)
	assert.Nil(t, it.DateRange)
}
