// Package intent turns a natural-language receipt query into a structured
// Intent record by composing the temporal and merchant resolvers with
// category mapping, payment detection, feature-flag detection, and
// numeric threshold extraction.
package intent

import (
	"github.com/receiptiq/receiptiq/internal/query/temporal"
)

// QueryType is the high-level classification of a query, assigned by the
// first pattern class that matches.
type QueryType string

const (
	QueryTemporal     QueryType = "temporal"
	QueryMerchant     QueryType = "merchant"
	QueryCategory     QueryType = "category"
	QueryAmount       QueryType = "amount"
	QueryItemSpecific QueryType = "item_specific"
	QueryAggregation  QueryType = "aggregation"
	QueryGeneral      QueryType = "general"

	// QueryError is only ever produced by the engine's failure boundary.
	QueryError QueryType = "error"
)

// Metric is the monetary field a query asks about.
type Metric string

const (
	MetricTotal    Metric = "total"
	MetricTax      Metric = "tax"
	MetricTip      Metric = "tip"
	MetricSubtotal Metric = "subtotal"
)

// Field returns the evidence metadata field carrying this metric.
func (m Metric) Field() string {
	switch m {
	case MetricTax:
		return "tax_amount"
	case MetricTip:
		return "tip_amount"
	case MetricSubtotal:
		return "subtotal"
	default:
		return "total_amount"
	}
}

// Aggregation is the numeric computation a query requests, if any.
type Aggregation string

const (
	AggregationNone    Aggregation = ""
	AggregationSum     Aggregation = "sum"
	AggregationAverage Aggregation = "average"
	AggregationCount   Aggregation = "count"
)

// SumBasis selects what an aggregation iterates over.
type SumBasis string

const (
	BasisReceipts SumBasis = "receipts"
	BasisItems    SumBasis = "items"
)

// Feature flag names as they appear in evidence metadata.
const (
	FlagHasWarranty    = "has_warranty"
	FlagIsReturn       = "is_return"
	FlagHasTip         = "has_tip"
	FlagHasDiscounts   = "has_discounts"
	FlagHasDeliveryFee = "has_delivery_fee"
)

// Location is a city/state constraint extracted from the query.
type Location struct {
	City  string `json:"city,omitempty"`
	State string `json:"state,omitempty"`
}

// Intent is the structured representation of a parsed query. It is
// created fresh per query, treated as immutable once returned by Parse,
// and discarded after use.
type Intent struct {
	RawQuery   string                 `json:"raw_query"`
	QueryType  QueryType              `json:"query_type"`
	DateRange  *temporal.DateRange    `json:"date_range,omitempty"`
	CoarseDate *temporal.CoarseFilter `json:"coarse_date_filter,omitempty"`
	Merchants  []string               `json:"merchants,omitempty"`
	Categories []string               `json:"categories,omitempty"`

	// SemanticKeywords expand the retrieval query text (not the filters)
	// for category-flavored queries.
	SemanticKeywords []string `json:"semantic_keywords,omitempty"`

	Metric      Metric      `json:"metric"`
	Aggregation Aggregation `json:"aggregation,omitempty"`
	SumBasis    SumBasis    `json:"sum_basis"`

	MinAmount *float64 `json:"min_amount,omitempty"`
	MaxAmount *float64 `json:"max_amount,omitempty"`

	FeatureFlags map[string]bool `json:"feature_flags,omitempty"`
	FeatureAnyOf []string        `json:"feature_any_of,omitempty"`

	PaymentMethod string    `json:"payment_method,omitempty"`
	CardNetwork   string    `json:"card_network,omitempty"`
	Location      *Location `json:"location,omitempty"`
}
