package engine

import (
	"strconv"

	"github.com/receiptiq/receiptiq/internal/retrieval"
)

// Deduplicate collapses raw evidence into one entry per receipt and one
// entry per distinct line item, preserving first-seen order. A receipt
// first seen through a partial chunk is upgraded in place when its
// authoritative receipt_summary chunk appears later in the result list.
func Deduplicate(evidence []retrieval.Evidence) ([]ReceiptSummary, []ItemSummary) {
	type slot struct {
		index         int
		authoritative bool
	}

	var receipts []ReceiptSummary
	var items []ItemSummary
	receiptSlots := make(map[string]slot)
	itemSeen := make(map[string]struct{})

	for _, ev := range evidence {
		if ev.ReceiptID != "" {
			summary := ev.ChunkType == retrieval.ChunkReceiptSummary
			if s, seen := receiptSlots[ev.ReceiptID]; !seen {
				receiptSlots[ev.ReceiptID] = slot{index: len(receipts), authoritative: summary}
				receipts = append(receipts, receiptFromEvidence(ev))
			} else if summary && !s.authoritative {
				receipts[s.index] = receiptFromEvidence(ev)
				receiptSlots[ev.ReceiptID] = slot{index: s.index, authoritative: true}
			}
		}

		if ev.ChunkType == retrieval.ChunkItemDetail && ev.ItemName != "" {
			key := itemKey(ev)
			if _, dup := itemSeen[key]; dup {
				continue
			}
			itemSeen[key] = struct{}{}
			items = append(items, ItemSummary{
				ReceiptID:       ev.ReceiptID,
				ItemName:        ev.ItemName,
				ItemPrice:       ev.ItemPrice,
				ItemCategory:    ev.ItemCategory,
				MerchantName:    ev.MerchantName,
				TransactionDate: ev.TransactionDate,
			})
		}
	}

	return receipts, items
}

func receiptFromEvidence(ev retrieval.Evidence) ReceiptSummary {
	return ReceiptSummary{
		ReceiptID:       ev.ReceiptID,
		MerchantName:    ev.MerchantName,
		TransactionDate: ev.TransactionDate,
		TotalAmount:     ev.TotalAmount,
		TaxAmount:       ev.TaxAmount,
		TipAmount:       ev.TipAmount,
		Subtotal:        ev.Subtotal,
		PaymentMethod:   ev.PaymentMethod,
		CardNetwork:     ev.CardNetwork,
		Filename:        ev.Filename,
	}
}

func itemKey(ev retrieval.Evidence) string {
	price := "-"
	if ev.ItemPrice != nil {
		price = strconv.FormatFloat(*ev.ItemPrice, 'f', 2, 64)
	}
	return ev.ReceiptID + "|" + ev.ItemName + "|" + price
}
