package sqlitestore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/receiptiq/receiptiq/internal/retrieval"
)

// filterableColumns whitelists the fields a retrieval filter may
// reference. Anything else is rejected rather than interpolated.
var filterableColumns = map[string]struct{}{
	"receipt_id":        {},
	"chunk_type":        {},
	"merchant_norm":     {},
	"merchant_city":     {},
	"merchant_state":    {},
	"transaction_ts":    {},
	"transaction_month": {},
	"transaction_year":  {},
	"payment_method":    {},
	"card_network":      {},
	"total_amount":      {},
	"tax_amount":        {},
	"tip_amount":        {},
	"subtotal":          {},
	"item_price":        {},
	"item_category":     {},
	"group_category":    {},
	"has_warranty":      {},
	"has_tip":           {},
	"has_discounts":     {},
	"has_delivery_fee":  {},
	"is_return":         {},
}

// buildWhere translates the predicate tree into a WHERE clause with
// placeholder args. An empty clause means no constraint.
func buildWhere(filter *retrieval.Filter) (string, []interface{}, error) {
	if filter.IsEmpty() {
		return "", nil, nil
	}

	var clauses []string
	var args []interface{}

	for _, cond := range filter.All {
		clause, condArgs, err := conditionSQL(cond)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, clause)
		args = append(args, condArgs...)
	}

	for _, group := range filter.AnyGroups {
		var alternatives []string
		for _, cond := range group {
			clause, condArgs, err := conditionSQL(cond)
			if err != nil {
				return "", nil, err
			}
			alternatives = append(alternatives, clause)
			args = append(args, condArgs...)
		}
		if len(alternatives) > 0 {
			clauses = append(clauses, "("+strings.Join(alternatives, " OR ")+")")
		}
	}

	return strings.Join(clauses, " AND "), args, nil
}

func conditionSQL(cond retrieval.Condition) (string, []interface{}, error) {
	if _, ok := filterableColumns[cond.Field]; !ok {
		return "", nil, fmt.Errorf("unfilterable field %q", cond.Field)
	}
	switch cond.Op {
	case retrieval.OpEq:
		return cond.Field + " = ?", []interface{}{cond.Value}, nil
	case retrieval.OpGte:
		return cond.Field + " >= ?", []interface{}{cond.Value}, nil
	case retrieval.OpLte:
		return cond.Field + " <= ?", []interface{}{cond.Value}, nil
	case retrieval.OpIn:
		if len(cond.Values) == 0 {
			return "", nil, fmt.Errorf("empty $in set for field %q", cond.Field)
		}
		placeholders := strings.Repeat("?, ", len(cond.Values))
		return cond.Field + " IN (" + placeholders[:len(placeholders)-2] + ")", cond.Values, nil
	default:
		return "", nil, fmt.Errorf("unsupported filter op %q", cond.Op)
	}
}

const selectColumns = `SELECT chunk_id, receipt_id, chunk_type, content,
	merchant_name, merchant_city, merchant_state,
	transaction_date, transaction_ts,
	payment_method, card_network,
	total_amount, tax_amount, tip_amount, subtotal,
	item_name, item_price, item_category, group_category,
	has_warranty, has_tip, has_discounts, has_delivery_fee, is_return,
	filename, extra, embedding, created_at`

func scanEvidence(rows *sql.Rows) (retrieval.Evidence, []float32, error) {
	var ev retrieval.Evidence
	var ts sql.NullInt64
	var total, tax, tip, subtotal, price sql.NullFloat64
	var extra string
	var embedding []byte
	var createdAt time.Time

	err := rows.Scan(
		&ev.ChunkID, &ev.ReceiptID, &ev.ChunkType, &ev.Content,
		&ev.MerchantName, &ev.MerchantCity, &ev.MerchantState,
		&ev.TransactionDate, &ts,
		&ev.PaymentMethod, &ev.CardNetwork,
		&total, &tax, &tip, &subtotal,
		&ev.ItemName, &price, &ev.ItemCategory, &ev.GroupCategory,
		&ev.HasWarranty, &ev.HasTip, &ev.HasDiscounts, &ev.HasDeliveryFee, &ev.IsReturn,
		&ev.Filename, &extra, &embedding, &createdAt)
	if err != nil {
		return retrieval.Evidence{}, nil, err
	}

	if ts.Valid {
		ev.TransactionTS = ts.Int64
	}
	ev.TotalAmount = nullableFloat(total)
	ev.TaxAmount = nullableFloat(tax)
	ev.TipAmount = nullableFloat(tip)
	ev.Subtotal = nullableFloat(subtotal)
	ev.ItemPrice = nullableFloat(price)
	ev.CreatedAt = createdAt

	if extra != "" && extra != "{}" {
		ev.Extra = decodeExtra(extra)
	}

	var vec []float32
	if len(embedding) > 0 {
		vec = decodeVector(embedding)
	}
	return ev, vec, nil
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func decodeExtra(raw string) map[string]interface{} {
	var extra map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &extra); err != nil {
		return nil
	}
	return extra
}
