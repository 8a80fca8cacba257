package engine

import (
	"sort"

	"github.com/receiptiq/receiptiq/internal/query/intent"
	"github.com/receiptiq/receiptiq/internal/query/merchant"
	"github.com/receiptiq/receiptiq/internal/retrieval"
)

// BuildFilter translates an Intent into the retrieval predicate tree. The
// filter is built once per query and never mutated afterwards. A nil
// return means the query is unconstrained.
func BuildFilter(it intent.Intent) *retrieval.Filter {
	f := &retrieval.Filter{}

	if len(it.Merchants) > 0 {
		norms := make([]interface{}, 0, len(it.Merchants))
		for _, m := range it.Merchants {
			if n := merchant.Normalize(m); n != "" {
				norms = append(norms, n)
			}
		}
		switch len(norms) {
		case 0:
		case 1:
			f.All = append(f.All, retrieval.Eq("merchant_norm", norms[0]))
		default:
			f.All = append(f.All, retrieval.In("merchant_norm", norms...))
		}
	}

	if it.DateRange != nil {
		f.All = append(f.All,
			retrieval.Gte("transaction_ts", it.DateRange.Start.Unix()),
			retrieval.Lte("transaction_ts", it.DateRange.End.Unix()))
	}
	if it.CoarseDate != nil {
		f.All = append(f.All, retrieval.Eq("transaction_month", int(it.CoarseDate.Month)))
		if it.CoarseDate.Year != 0 {
			f.All = append(f.All, retrieval.Eq("transaction_year", it.CoarseDate.Year))
		}
	}

	// The index tags categories at item or group granularity depending on
	// the chunk, so a category constraint matches either field.
	if len(it.Categories) > 0 {
		cats := make([]interface{}, len(it.Categories))
		for i, c := range it.Categories {
			cats[i] = c
		}
		f.AnyGroups = append(f.AnyGroups, []retrieval.Condition{
			retrieval.In("item_category", cats...),
			retrieval.In("group_category", cats...),
		})
	}

	if it.MinAmount != nil || it.MaxAmount != nil {
		field := thresholdField(it)
		if it.MinAmount != nil {
			f.All = append(f.All, retrieval.Gte(field, *it.MinAmount))
		}
		if it.MaxAmount != nil {
			f.All = append(f.All, retrieval.Lte(field, *it.MaxAmount))
		}
	}

	for _, flag := range sortedFlags(it.FeatureFlags) {
		f.All = append(f.All, retrieval.Eq(flag, true))
	}
	if len(it.FeatureAnyOf) > 0 {
		group := make([]retrieval.Condition, 0, len(it.FeatureAnyOf))
		for _, flag := range it.FeatureAnyOf {
			group = append(group, retrieval.Eq(flag, true))
		}
		f.AnyGroups = append(f.AnyGroups, group)
	}

	if it.PaymentMethod != "" {
		f.All = append(f.All, retrieval.Eq("payment_method", it.PaymentMethod))
	}
	if it.CardNetwork != "" {
		f.All = append(f.All, retrieval.Eq("card_network", it.CardNetwork))
	}
	if it.Location != nil {
		if it.Location.City != "" {
			f.All = append(f.All, retrieval.Eq("merchant_city", it.Location.City))
		}
		if it.Location.State != "" {
			f.All = append(f.All, retrieval.Eq("merchant_state", it.Location.State))
		}
	}

	if f.IsEmpty() {
		return nil
	}
	return f
}

// thresholdField picks the field an amount threshold applies to: item
// prices when aggregating over items, the requested metric otherwise.
func thresholdField(it intent.Intent) string {
	if it.SumBasis == intent.BasisItems {
		return "item_price"
	}
	return it.Metric.Field()
}

func sortedFlags(flags map[string]bool) []string {
	out := make([]string, 0, len(flags))
	for flag, set := range flags {
		if set {
			out = append(out, flag)
		}
	}
	sort.Strings(out)
	return out
}
