package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/receiptiq/receiptiq/internal/query/intent"
	"github.com/receiptiq/receiptiq/internal/query/temporal"
	"github.com/receiptiq/receiptiq/internal/retrieval"
)

func fptr(v float64) *float64 { return &v }

func TestBuildFilterEmptyIntent(t *testing.T) {
	assert.Nil(t, BuildFilter(intent.Intent{}))
}

func TestBuildFilterMerchantsNormalized(t *testing.T) {
	f := BuildFilter(intent.Intent{Merchants: []string{"Walmart"}})
	require.NotNil(t, f)
	require.Len(t, f.All, 1)
	assert.Equal(t, retrieval.Eq("merchant_norm", "walmart"), f.All[0])

	f = BuildFilter(intent.Intent{Merchants: []string{"Target Store", "Whole Foods"}})
	require.Len(t, f.All, 1)
	assert.Equal(t, retrieval.OpIn, f.All[0].Op)
	assert.Equal(t, []interface{}{"target", "whole foods"}, f.All[0].Values)
}

func TestBuildFilterDateRangeAsEpochSeconds(t *testing.T) {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.January, 31, 23, 59, 59, 0, time.UTC)
	f := BuildFilter(intent.Intent{DateRange: &temporal.DateRange{Start: start, End: end}})

	require.NotNil(t, f)
	assert.Contains(t, f.All, retrieval.Gte("transaction_ts", start.Unix()))
	assert.Contains(t, f.All, retrieval.Lte("transaction_ts", end.Unix()))
}

func TestBuildFilterCoarseMonth(t *testing.T) {
	f := BuildFilter(intent.Intent{CoarseDate: &temporal.CoarseFilter{Month: time.March}})
	require.NotNil(t, f)
	assert.Equal(t, []retrieval.Condition{retrieval.Eq("transaction_month", 3)}, f.All)

	f = BuildFilter(intent.Intent{CoarseDate: &temporal.CoarseFilter{Month: time.March, Year: 2023}})
	assert.Contains(t, f.All, retrieval.Eq("transaction_year", 2023))
}

func TestBuildFilterCategoriesMatchEitherGranularity(t *testing.T) {
	f := BuildFilter(intent.Intent{Categories: []string{"groceries"}})
	require.NotNil(t, f)
	require.Len(t, f.AnyGroups, 1)
	assert.Equal(t, []retrieval.Condition{
		retrieval.In("item_category", "groceries"),
		retrieval.In("group_category", "groceries"),
	}, f.AnyGroups[0])
}

func TestBuildFilterThresholdFieldFollowsBasis(t *testing.T) {
	f := BuildFilter(intent.Intent{SumBasis: intent.BasisItems, MinAmount: fptr(5)})
	require.NotNil(t, f)
	assert.Equal(t, []retrieval.Condition{retrieval.Gte("item_price", 5.0)}, f.All)

	f = BuildFilter(intent.Intent{
		SumBasis:  intent.BasisReceipts,
		Metric:    intent.MetricTax,
		MaxAmount: fptr(20),
	})
	assert.Equal(t, []retrieval.Condition{retrieval.Lte("tax_amount", 20.0)}, f.All)
}

func TestBuildFilterFeatureFlags(t *testing.T) {
	f := BuildFilter(intent.Intent{FeatureFlags: map[string]bool{
		intent.FlagHasWarranty: true,
		intent.FlagIsReturn:    true,
	}})
	require.NotNil(t, f)
	// Deterministic order regardless of map iteration.
	assert.Equal(t, []retrieval.Condition{
		retrieval.Eq("has_warranty", true),
		retrieval.Eq("is_return", true),
	}, f.All)
}

func TestBuildFilterFeatureAnyOfIsOrGroup(t *testing.T) {
	f := BuildFilter(intent.Intent{FeatureAnyOf: []string{intent.FlagHasDeliveryFee, intent.FlagHasTip}})
	require.NotNil(t, f)
	assert.Empty(t, f.All)
	require.Len(t, f.AnyGroups, 1)
	assert.Equal(t, []retrieval.Condition{
		retrieval.Eq("has_delivery_fee", true),
		retrieval.Eq("has_tip", true),
	}, f.AnyGroups[0])
}

func TestBuildFilterPaymentAndLocation(t *testing.T) {
	f := BuildFilter(intent.Intent{
		PaymentMethod: "credit",
		CardNetwork:   "visa",
		Location:      &intent.Location{City: "San Francisco", State: "CA"},
	})
	require.NotNil(t, f)
	assert.Equal(t, []retrieval.Condition{
		retrieval.Eq("payment_method", "credit"),
		retrieval.Eq("card_network", "visa"),
		retrieval.Eq("merchant_city", "San Francisco"),
		retrieval.Eq("merchant_state", "CA"),
	}, f.All)
}
