// Package export renders query results as Excel workbooks for download.
package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/receiptiq/receiptiq/internal/query/engine"
)

const (
	sheetSummary  = "Summary"
	sheetReceipts = "Receipts"
	sheetItems    = "Items"
)

// ReportWriter builds workbooks from query results.
type ReportWriter struct {
	logger *zap.Logger
}

// NewReportWriter creates a report writer.
func NewReportWriter(logger *zap.Logger) *ReportWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportWriter{logger: logger}
}

// WriteQueryResult renders res into a three-sheet workbook and returns
// the serialized file.
func (w *ReportWriter) WriteQueryResult(res engine.QueryResult) (*bytes.Buffer, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := w.fillSummary(file, res); err != nil {
		return nil, err
	}
	if err := w.fillReceipts(file, res.Receipts); err != nil {
		return nil, err
	}
	if err := w.fillItems(file, res.Items); err != nil {
		return nil, err
	}
	// excelize creates "Sheet1" by default; Summary replaces it.
	if err := file.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	w.logger.Debug("query result exported",
		zap.Int("receipts", len(res.Receipts)),
		zap.Int("items", len(res.Items)))
	return buf, nil
}

func (w *ReportWriter) fillSummary(file *excelize.File, res engine.QueryResult) error {
	if _, err := file.NewSheet(sheetSummary); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	rows := [][]interface{}{
		{"Query", res.Metadata.Intent.RawQuery},
		{"Answer", res.Answer},
		{"Query type", res.QueryType},
		{"Confidence", res.Confidence},
		{"Receipts", len(res.Receipts)},
		{"Items", len(res.Items)},
	}
	if audit := res.Metadata.Audit; audit != nil {
		rows = append(rows,
			[]interface{}{"Aggregation", string(audit.Aggregation)},
			[]interface{}{"Basis", string(audit.Basis)},
			[]interface{}{"Metric", audit.MetricField},
			[]interface{}{"Audited count", audit.Count},
			[]interface{}{"Audited value", audit.Value.StringFixed(2)},
		)
	}
	return writeRows(file, sheetSummary, nil, rows)
}

func (w *ReportWriter) fillReceipts(file *excelize.File, receipts []engine.ReceiptSummary) error {
	if _, err := file.NewSheet(sheetReceipts); err != nil {
		return fmt.Errorf("create receipts sheet: %w", err)
	}

	header := []interface{}{"Receipt ID", "Merchant", "Date", "Total", "Tax", "Tip", "Subtotal", "Payment", "Network", "File"}
	rows := make([][]interface{}, 0, len(receipts))
	for _, r := range receipts {
		rows = append(rows, []interface{}{
			r.ReceiptID, r.MerchantName, r.TransactionDate,
			floatCell(r.TotalAmount), floatCell(r.TaxAmount), floatCell(r.TipAmount), floatCell(r.Subtotal),
			r.PaymentMethod, r.CardNetwork, r.Filename,
		})
	}
	return writeRows(file, sheetReceipts, header, rows)
}

func (w *ReportWriter) fillItems(file *excelize.File, items []engine.ItemSummary) error {
	if _, err := file.NewSheet(sheetItems); err != nil {
		return fmt.Errorf("create items sheet: %w", err)
	}

	header := []interface{}{"Receipt ID", "Item", "Price", "Category", "Merchant", "Date"}
	rows := make([][]interface{}, 0, len(items))
	for _, item := range items {
		rows = append(rows, []interface{}{
			item.ReceiptID, item.ItemName, floatCell(item.ItemPrice),
			item.ItemCategory, item.MerchantName, item.TransactionDate,
		})
	}
	return writeRows(file, sheetItems, header, rows)
}

func writeRows(file *excelize.File, sheet string, header []interface{}, rows [][]interface{}) error {
	rowNum := 1
	if header != nil {
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		if err := file.SetSheetRow(sheet, cell, &header); err != nil {
			return fmt.Errorf("write %s header: %w", sheet, err)
		}
		rowNum++
	}
	for _, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		row := row
		if err := file.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, rowNum, err)
		}
		rowNum++
	}
	return nil
}

func floatCell(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
