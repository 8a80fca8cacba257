// Package retrieval defines the boundary between the query core and the
// vector index: the Evidence record shape, the metadata filter language,
// and the Retriever capability interface.
package retrieval

import (
	"context"
	"time"
)

// Chunk types produced by the upstream chunker. The query core only needs
// to distinguish item-level records and authoritative receipt summaries.
const (
	ChunkReceiptSummary = "receipt_summary"
	ChunkItemDetail     = "item_detail"
	ChunkCategoryGroup  = "category_group"
	ChunkMerchantInfo   = "merchant_info"
	ChunkPaymentMethod  = "payment_method"
)

// Evidence is a single retrieved record. It is produced externally and
// read-only to the query core. Monetary and price fields are pointers so
// an absent value is distinguishable from zero.
type Evidence struct {
	ChunkID         string    `json:"chunk_id"`
	ReceiptID       string    `json:"receipt_id"`
	ChunkType       string    `json:"chunk_type"`
	Content         string    `json:"content,omitempty"`
	MerchantName    string    `json:"merchant_name,omitempty"`
	MerchantCity    string    `json:"merchant_city,omitempty"`
	MerchantState   string    `json:"merchant_state,omitempty"`
	TransactionDate string    `json:"transaction_date,omitempty"`
	TransactionTS   int64     `json:"transaction_ts,omitempty"`
	PaymentMethod   string    `json:"payment_method,omitempty"`
	CardNetwork     string    `json:"card_network,omitempty"`
	TotalAmount     *float64  `json:"total_amount,omitempty"`
	TaxAmount       *float64  `json:"tax_amount,omitempty"`
	TipAmount       *float64  `json:"tip_amount,omitempty"`
	Subtotal        *float64  `json:"subtotal,omitempty"`
	ItemName        string    `json:"item_name,omitempty"`
	ItemPrice       *float64  `json:"item_price,omitempty"`
	ItemCategory    string    `json:"item_category,omitempty"`
	GroupCategory   string    `json:"group_category,omitempty"`
	HasWarranty     bool      `json:"has_warranty,omitempty"`
	HasTip          bool      `json:"has_tip,omitempty"`
	HasDiscounts    bool      `json:"has_discounts,omitempty"`
	HasDeliveryFee  bool      `json:"has_delivery_fee,omitempty"`
	IsReturn        bool      `json:"is_return,omitempty"`
	Filename        string    `json:"filename,omitempty"`
	Score           float64   `json:"score,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`

	// Extra carries forward-compatible metadata the core does not read.
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// Op is a filter comparison operator.
type Op string

const (
	OpEq  Op = "$eq"
	OpIn  Op = "$in"
	OpGte Op = "$gte"
	OpLte Op = "$lte"
)

// Condition is a single field predicate. Value holds the operand for
// Eq/Gte/Lte; Values holds the operand set for In.
type Condition struct {
	Field  string        `json:"field"`
	Op     Op            `json:"op"`
	Value  interface{}   `json:"value,omitempty"`
	Values []interface{} `json:"values,omitempty"`
}

// Eq builds an equality condition.
func Eq(field string, value interface{}) Condition {
	return Condition{Field: field, Op: OpEq, Value: value}
}

// In builds a set-membership condition.
func In(field string, values ...interface{}) Condition {
	return Condition{Field: field, Op: OpIn, Values: values}
}

// Gte builds a lower-bound condition (inclusive).
func Gte(field string, value interface{}) Condition {
	return Condition{Field: field, Op: OpGte, Value: value}
}

// Lte builds an upper-bound condition (inclusive).
func Lte(field string, value interface{}) Condition {
	return Condition{Field: field, Op: OpLte, Value: value}
}

// Filter is the boolean predicate attached to a hybrid search. All
// conditions in All are ANDed; each group in AnyGroups is ORed internally
// and ANDed with the rest. A Filter is built once per query and never
// mutated afterwards.
type Filter struct {
	All       []Condition   `json:"all,omitempty"`
	AnyGroups [][]Condition `json:"any_groups,omitempty"`
}

// IsEmpty reports whether the filter constrains nothing.
func (f *Filter) IsEmpty() bool {
	return f == nil || (len(f.All) == 0 && len(f.AnyGroups) == 0)
}

// Retriever is the external retrieval capability: semantic ranking
// intersected with hard metadata constraints. Calls are blocking network
// operations with no internal retry.
type Retriever interface {
	// HybridSearch returns up to topK evidence records matching the filter,
	// ranked by similarity to the query text.
	HybridSearch(ctx context.Context, query string, filter *Filter, topK int) ([]Evidence, error)

	// LatestTransactionTime returns the most recent transaction timestamp
	// across indexed receipts. ok is false when nothing is indexed.
	LatestTransactionTime(ctx context.Context) (ts time.Time, ok bool, err error)
}
