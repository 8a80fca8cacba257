package engine

import (
	"github.com/shopspring/decimal"

	"github.com/receiptiq/receiptiq/internal/query/intent"
)

// AuditResult is the deterministic recomputation of an aggregation over
// retrieved metadata. It exists so the answer-generation step can cite a
// verified figure instead of doing its own arithmetic. Immutable once
// produced.
type AuditResult struct {
	Aggregation intent.Aggregation `json:"aggregation"`
	Basis       intent.SumBasis    `json:"basis"`
	MetricField string             `json:"metric_field"`
	Count       int                `json:"count"`
	Value       decimal.Decimal    `json:"value"`
	Verified    bool               `json:"verified"`
}

// RunAudit computes the requested aggregation over the deduplicated
// evidence: per-receipt metric values or per-item prices depending on the
// basis. Returns nil when no values exist for the metric, meaning the
// audit is impossible rather than zero.
func RunAudit(it intent.Intent, receipts []ReceiptSummary, items []ItemSummary) *AuditResult {
	if it.Aggregation == intent.AggregationNone {
		return nil
	}

	var values []decimal.Decimal
	metricField := it.Metric.Field()
	if it.SumBasis == intent.BasisItems {
		metricField = "item_price"
		for _, item := range items {
			if item.ItemPrice != nil {
				values = append(values, decimal.NewFromFloat(*item.ItemPrice))
			}
		}
	} else {
		for _, r := range receipts {
			if v := receiptMetric(r, it.Metric); v != nil {
				values = append(values, decimal.NewFromFloat(*v))
			}
		}
	}

	if len(values) == 0 {
		return nil
	}

	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}

	count := len(values)
	var value decimal.Decimal
	switch it.Aggregation {
	case intent.AggregationSum:
		value = sum
	case intent.AggregationAverage:
		value = sum.Div(decimal.NewFromInt(int64(count)))
	case intent.AggregationCount:
		value = decimal.NewFromInt(int64(count))
	}

	return &AuditResult{
		Aggregation: it.Aggregation,
		Basis:       it.SumBasis,
		MetricField: metricField,
		Count:       count,
		Value:       value,
		Verified:    true,
	}
}

func receiptMetric(r ReceiptSummary, m intent.Metric) *float64 {
	switch m {
	case intent.MetricTax:
		return r.TaxAmount
	case intent.MetricTip:
		return r.TipAmount
	case intent.MetricSubtotal:
		return r.Subtotal
	default:
		return r.TotalAmount
	}
}
