/*
Package importer reads stock-in sheets.

SHEET LAYOUT:
  The first worksheet holds a header row followed by one row per line.
  Headers are matched case-insensitively after trimming, and must be exact:

    Material Code   required
    Quantity        required, decimal > 0
    Unit Price      optional, decimal >= 0
    Notes           optional

  Column order is free. Blank rows are skipped. Any bad cell fails the whole
  sheet with a ValidationError naming the row, before anything is booked.
*/
package importer

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/mfg-ledger/domain"
	"github.com/warp/mfg-ledger/inventory"
	"github.com/xuri/excelize/v2"
)

const (
	HeaderMaterialCode = "Material Code"
	HeaderQuantity     = "Quantity"
	HeaderUnitPrice    = "Unit Price"
	HeaderNotes        = "Notes"
)

// Row is one parsed sheet line. Line is the 1-based spreadsheet row number.
type Row struct {
	Line         int
	MaterialCode string
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	Notes        string
}

type columns struct {
	code, qty, price, notes int
}

// ReadStockIn parses the first worksheet of an xlsx stream.
func ReadStockIn(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &domain.ValidationError{Field: "file", Message: "is not a readable xlsx workbook"}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &domain.ValidationError{Field: "file", Message: "has no worksheets"}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &domain.ValidationError{Field: "file", Message: "is not a readable xlsx workbook"}
	}
	if len(rows) == 0 {
		return nil, &domain.ValidationError{Field: "file", Message: "has no header row"}
	}

	cols, err := locateColumns(rows[0])
	if err != nil {
		return nil, err
	}

	var out []Row
	for i, cells := range rows[1:] {
		line := i + 2
		if blank(cells) {
			continue
		}
		row, err := parseRow(cells, cols, line)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if len(out) == 0 {
		return nil, &domain.ValidationError{Field: "file", Message: "has no data rows"}
	}
	return out, nil
}

func locateColumns(header []string) (columns, error) {
	cols := columns{code: -1, qty: -1, price: -1, notes: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case strings.ToLower(HeaderMaterialCode):
			cols.code = i
		case strings.ToLower(HeaderQuantity):
			cols.qty = i
		case strings.ToLower(HeaderUnitPrice):
			cols.price = i
		case strings.ToLower(HeaderNotes):
			cols.notes = i
		}
	}
	if cols.code < 0 {
		return cols, &domain.ValidationError{Field: "header", Message: "is missing column " + HeaderMaterialCode}
	}
	if cols.qty < 0 {
		return cols, &domain.ValidationError{Field: "header", Message: "is missing column " + HeaderQuantity}
	}
	return cols, nil
}

func parseRow(cells []string, cols columns, line int) (Row, error) {
	row := Row{
		Line:         line,
		MaterialCode: cell(cells, cols.code),
		Notes:        cell(cells, cols.notes),
		UnitPrice:    decimal.Zero,
	}
	if row.MaterialCode == "" {
		return row, rowError(line, HeaderMaterialCode, "is required")
	}

	qty, err := decimal.NewFromString(cell(cells, cols.qty))
	if err != nil {
		return row, rowError(line, HeaderQuantity, "must be a number")
	}
	if !qty.IsPositive() {
		return row, rowError(line, HeaderQuantity, "must be greater than 0")
	}
	row.Quantity = qty

	if raw := cell(cells, cols.price); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return row, rowError(line, HeaderUnitPrice, "must be a number")
		}
		if price.IsNegative() {
			return row, rowError(line, HeaderUnitPrice, "must not be negative")
		}
		row.UnitPrice = price
	}
	return row, nil
}

func rowError(line int, column, msg string) error {
	return &domain.ValidationError{Field: fmt.Sprintf("row %d %s", line, column), Message: msg}
}

func cell(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ToLines turns parsed rows into stock-in lines that look materials up by
// code, within customerID's scope first and then among shared materials.
func ToLines(rows []Row, customerID string) []inventory.StockInLine {
	lines := make([]inventory.StockInLine, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, inventory.StockInLine{
			Material:  inventory.MaterialByCode{CustomerID: customerID, Code: r.MaterialCode},
			Quantity:  r.Quantity,
			UnitPrice: r.UnitPrice,
			Notes:     r.Notes,
		})
	}
	return lines
}

// WriteTemplate writes an empty stock-in sheet with the expected headers.
func WriteTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, h := range []string{HeaderMaterialCode, HeaderQuantity, HeaderUnitPrice, HeaderNotes} {
		ref, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, ref, h); err != nil {
			return err
		}
	}
	return f.Write(w)
}
