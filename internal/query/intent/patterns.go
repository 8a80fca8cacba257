package intent

import "regexp"

// classification is an ordered table: the first pattern class with a
// match decides the QueryType.
type classification struct {
	queryType QueryType
	patterns  []*regexp.Regexp
}

var classifications = []classification{
	{QueryTemporal, compileAll(
		`how much.* (?:in|during|for) (?:january|february|march|april|may|june|july|august|september|october|november|december)`,
		`how much.* (?:last|this|past) (?:week|month|year)`,
		`show me.* (?:january|february|march|april|may|june|july|august|september|october|november|december)`,
		`what did i buy (?:last|this|past) (?:week|month|year)`,
		`(?:in|during) (?:20\d{2})`,
	)},
	{QueryMerchant, compileAll(
		`show me.* (?:from|at) .*`,
		`find all.* receipts? (?:from|at) .*`,
		`how much.* (?:at|from) .*`,
	)},
	{QueryCategory, compileAll(
		`how much.* (?:coffee shops|restaurants|groceries|electronics)`,
		`show me.* (?:electronics|groceries|pharmacy|health)`,
		`what'?s.* (?:total|total spending) (?:at|in) (?:restaurants|coffee shops)`,
		`list all.* (?:groceries|electronics)`,
	)},
	{QueryAmount, compileAll(
		`over \$\d+`,
		`under \$\d+`,
		`between \$\d+ and \$\d+`,
		`more than \$\d+`,
		`less than \$\d+`,
	)},
	{QueryItemSpecific, compileAll(
		`find.* with warranty`,
		`show me.* (?:phone|laptop|tv|tablet)`,
		`list all.* (?:vitamins|medicine|supplements)`,
	)},
	{QueryAggregation, compileAll(
		`how much.* (?:total|sum)`,
		`what'?s my total`,
		`average`,
		`count`,
	)},
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// categoryMappings map query substrings to normalized category tags,
// matched by containment, not whole words.
var categoryMappings = []struct {
	term     string
	category string
}{
	{"coffee shops", "coffee_shop"},
	{"restaurants", "restaurant"},
	{"groceries", "groceries"},
	{"electronics", "electronics"},
	{"pharmacy", "pharmacy"},
	{"health", "pharmacy"},
	{"treats", "treats"},
}

// semanticMappings expand general terms into keyword lists appended to
// the retrieval query text for better semantic ranking.
var semanticMappings = []struct {
	group    string
	keywords []string
}{
	{"health related", []string{"pharmacy", "health", "medicine", "vitamin", "supplement"}},
	{"treats", []string{"candy", "chocolate", "ice cream", "cake", "cookie", "donut", "dessert", "sweet"}},
	{"coffee shops", []string{"coffee", "cafe", "latte", "espresso"}},
	{"restaurants", []string{"restaurant", "burger", "pizza", "sandwich", "salad", "pasta", "steak"}},
}

// paymentMethods are checked in order; multi-word forms first.
var paymentMethods = []struct {
	term   string
	method string
}{
	{"apple pay", "apple_pay"},
	{"google pay", "google_pay"},
	{"cash", "cash"},
	{"debit", "debit"},
	{"credit", "credit"},
}

var cardNetworks = []struct {
	term    string
	network string
}{
	{"american express", "amex"},
	{"mastercard", "mastercard"},
	{"discover", "discover"},
	{"visa", "visa"},
	{"amex", "amex"},
}

// featureFlagPatterns map word patterns to evidence flag names.
var featureFlagPatterns = []struct {
	re   *regexp.Regexp
	flag string
}{
	{regexp.MustCompile(`\bwarrant(?:y|ies)\b`), FlagHasWarranty},
	{regexp.MustCompile(`\breturn(?:ed|s)?\b|\brefund(?:ed|s)?\b`), FlagIsReturn},
	{regexp.MustCompile(`\bdiscount(?:s|ed)?\b`), FlagHasDiscounts},
	{regexp.MustCompile(`\bdelivery\b`), FlagHasDeliveryFee},
	{regexp.MustCompile(`\btips?\b`), FlagHasTip},
}

// deliveryOrTipRe is the one special-cased disjunction: "delivery fee or
// tip" asks for either, not both.
var deliveryOrTipRe = regexp.MustCompile(`delivery(?:\s+fees?)?\s+or\s+(?:a\s+)?tips?\b|tips?\s+or\s+(?:a\s+)?delivery(?:\s+fees?)?`)

var (
	dollarAmountRe = regexp.MustCompile(`\$(\d+(?:\.\d{2})?)`)
	minDirectionRe = regexp.MustCompile(`\bover\b|\bmore than\b|\babove\b`)
	maxDirectionRe = regexp.MustCompile(`\bunder\b|\bless than\b|\bbelow\b`)

	tipMetricRe      = regexp.MustCompile(`\btips?\b`)
	purchaseVerbRe   = regexp.MustCompile(`\bitems?\b|\bbuy\b|\bbought\b|\bpurchases?\b|\bpurchased\b`)
	aggregationTerms = []struct {
		agg Aggregation
		re  *regexp.Regexp
	}{
		{AggregationSum, regexp.MustCompile(`\btotal\b|\bsum\b|\badd up\b|\bhow much\b|\bspent\b`)},
		{AggregationAverage, regexp.MustCompile(`\baverage\b|\bavg\b`)},
		{AggregationCount, regexp.MustCompile(`\bcount\b|\bhow many\b`)},
	}
)

// locationRe matches "in <City>, <ST>" forms; city names are capitalized
// words, state a two-letter code.
var locationRe = regexp.MustCompile(`\bin ([A-Z][a-z]+(?: [A-Z][a-z]+)*), ([A-Z]{2})\b`)
