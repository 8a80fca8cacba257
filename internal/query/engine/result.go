package engine

import (
	"github.com/receiptiq/receiptiq/internal/query/intent"
	"github.com/receiptiq/receiptiq/internal/retrieval"
)

// ReceiptSummary is one deduplicated receipt in a query result.
type ReceiptSummary struct {
	ReceiptID       string   `json:"receipt_id"`
	MerchantName    string   `json:"merchant_name,omitempty"`
	TransactionDate string   `json:"transaction_date,omitempty"`
	TotalAmount     *float64 `json:"total_amount,omitempty"`
	TaxAmount       *float64 `json:"tax_amount,omitempty"`
	TipAmount       *float64 `json:"tip_amount,omitempty"`
	Subtotal        *float64 `json:"subtotal,omitempty"`
	PaymentMethod   string   `json:"payment_method,omitempty"`
	CardNetwork     string   `json:"card_network,omitempty"`
	Filename        string   `json:"filename,omitempty"`
}

// ItemSummary is one deduplicated line item in a query result.
type ItemSummary struct {
	ReceiptID       string   `json:"receipt_id"`
	ItemName        string   `json:"item_name"`
	ItemPrice       *float64 `json:"item_price,omitempty"`
	ItemCategory    string   `json:"item_category,omitempty"`
	MerchantName    string   `json:"merchant_name,omitempty"`
	TransactionDate string   `json:"transaction_date,omitempty"`
}

// Metadata carries the intermediate artifacts of a query for callers that
// want to inspect how the answer was produced.
type Metadata struct {
	Intent     intent.Intent     `json:"intent"`
	Filter     *retrieval.Filter `json:"filters,omitempty"`
	Audit      *AuditResult      `json:"audit,omitempty"`
	RawMatches int               `json:"raw_matches"`
}

// QueryResult is the immutable outcome of one Execute call.
type QueryResult struct {
	Answer         string           `json:"answer"`
	Receipts       []ReceiptSummary `json:"receipts"`
	Items          []ItemSummary    `json:"items"`
	Confidence     float64          `json:"confidence"`
	QueryType      string           `json:"query_type"`
	ProcessingTime float64          `json:"processing_time"`
	Metadata       Metadata         `json:"metadata"`
}
