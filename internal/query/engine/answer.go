package engine

import (
	"fmt"
	"strings"

	"github.com/receiptiq/receiptiq/internal/query/intent"
)

const noMatchAnswer = "I couldn't find any receipts matching those criteria."

const errorAnswer = "I ran into a problem while processing your query. Please try rephrasing it."

// fallbackAnswer produces a deterministic template answer from the
// deduplicated evidence when the generation capability is unavailable or
// fails. The audited figure is always preferred when present.
func fallbackAnswer(it intent.Intent, receipts []ReceiptSummary, items []ItemSummary, audit *AuditResult) string {
	if audit != nil {
		unit := pluralize("receipt", audit.Count)
		if audit.Basis == intent.BasisItems {
			unit = pluralize("item", audit.Count)
		}
		switch audit.Aggregation {
		case intent.AggregationSum:
			return fmt.Sprintf("You spent a total of $%s%s across %d %s.",
				audit.Value.StringFixed(2), metricPhrase(it.Metric), audit.Count, unit)
		case intent.AggregationAverage:
			return fmt.Sprintf("The average%s was $%s across %d %s.",
				metricPhrase(it.Metric), audit.Value.StringFixed(2), audit.Count, unit)
		case intent.AggregationCount:
			return fmt.Sprintf("I found %d matching %s.", audit.Count, unit)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I found %d %s", len(receipts), pluralize("receipt", len(receipts)))
	if len(items) > 0 {
		fmt.Fprintf(&b, " with %d matching %s", len(items), pluralize("item", len(items)))
	}
	if len(it.Merchants) == 1 {
		fmt.Fprintf(&b, " from %s", it.Merchants[0])
	}
	b.WriteString(".")
	return b.String()
}

func metricPhrase(m intent.Metric) string {
	switch m {
	case intent.MetricTax:
		return " in tax"
	case intent.MetricTip:
		return " in tips"
	case intent.MetricSubtotal:
		return " before tax"
	default:
		return ""
	}
}

func pluralize(noun string, n int) string {
	if n == 1 {
		return noun
	}
	return noun + "s"
}
