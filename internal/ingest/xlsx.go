package ingest

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/invoice-audit/internal/model"
)

// XLSXOptions configures the XLSX parser.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	SkipRows   int    // number of header rows to skip
}

// ReadXLSX reads an XLSX sheet and returns all rows as string slices.
func ReadXLSX(path string, opts XLSXOptions) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open xlsx")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for i, row := range sheet.Rows {
		if i < opts.SkipRows {
			continue
		}
		rows = append(rows, rowToStrings(row))
	}

	return rows, nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("ingest: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("ingest: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

// ReadReferenceXLSX parses a reference database workbook. Recognized
// sheets, each with a header row:
//
//	purchase_orders: po_number, vendor, approved_amount, tax_rate,
//	                 valid_items (";"-separated),
//	                 max_quantity ("item=qty;item=qty")
//	vendor_master:   name, address
//	customer_info:   name, billing_address
//
// Missing sheets load as empty sections.
func ReadReferenceXLSX(path string) (*model.ReferenceDB, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open reference workbook")
	}

	db := &model.ReferenceDB{
		PurchaseOrders: map[string]model.PurchaseOrder{},
		VendorMaster:   map[string]model.VendorRecord{},
		CustomerInfo:   map[string]model.CustomerRecord{},
	}

	if sheet, ok := f.Sheet["purchase_orders"]; ok {
		if err := readPurchaseOrders(sheet, db); err != nil {
			return nil, err
		}
	}
	if sheet, ok := f.Sheet["vendor_master"]; ok {
		for name, value := range keyedColumn(sheet, "name", "address") {
			db.VendorMaster[name] = model.VendorRecord{Address: value}
		}
	}
	if sheet, ok := f.Sheet["customer_info"]; ok {
		for name, value := range keyedColumn(sheet, "name", "billing_address") {
			db.CustomerInfo[name] = model.CustomerRecord{BillingAddress: value}
		}
	}

	return db, nil
}

func readPurchaseOrders(sheet *xlsx.Sheet, db *model.ReferenceDB) error {
	if len(sheet.Rows) == 0 {
		return nil
	}
	cols := headerIndex(rowToStrings(sheet.Rows[0]))

	for i, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		poNumber := cellAt(cells, cols.col("po_number"))
		if poNumber == "" {
			continue
		}

		po := model.PurchaseOrder{Vendor: cellAt(cells, cols.col("vendor"))}
		if v := cellAt(cells, cols.col("approved_amount")); v != "" {
			amount, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return eris.Wrapf(err, "ingest: purchase_orders row %d: approved_amount", i+2)
			}
			po.ApprovedAmount = amount
		}
		if v := cellAt(cells, cols.col("tax_rate")); v != "" {
			r, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return eris.Wrapf(err, "ingest: purchase_orders row %d: tax_rate", i+2)
			}
			po.TaxRate = &r
		}
		if v := cellAt(cells, cols.col("valid_items")); v != "" {
			for _, item := range strings.Split(v, ";") {
				if item = strings.TrimSpace(item); item != "" {
					po.ValidItems = append(po.ValidItems, item)
				}
			}
		}
		if v := cellAt(cells, cols.col("max_quantity")); v != "" {
			po.MaxQuantity = map[string]int{}
			for _, pair := range strings.Split(v, ";") {
				name, qty, found := strings.Cut(pair, "=")
				if !found {
					continue
				}
				n, err := strconv.Atoi(strings.TrimSpace(qty))
				if err != nil {
					return eris.Wrapf(err, "ingest: purchase_orders row %d: max_quantity", i+2)
				}
				po.MaxQuantity[strings.TrimSpace(name)] = n
			}
		}

		db.PurchaseOrders[poNumber] = po
	}
	return nil
}

// keyedColumn reads a two-column sheet into a map, pairing keyCol with
// valueCol by header name. Rows with an empty key are skipped.
func keyedColumn(sheet *xlsx.Sheet, keyCol, valueCol string) map[string]string {
	out := map[string]string{}
	if len(sheet.Rows) == 0 {
		return out
	}
	cols := headerIndex(rowToStrings(sheet.Rows[0]))

	for _, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		key := cellAt(cells, cols.col(keyCol))
		if key == "" {
			continue
		}
		out[key] = cellAt(cells, cols.col(valueCol))
	}
	return out
}

// headerIndex maps lowercased header names to column positions.
// Lookups for absent columns return -1 so cellAt treats them as empty.
type headerMap map[string]int

func headerIndex(header []string) headerMap {
	idx := make(headerMap, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return idx
}

func (h headerMap) col(name string) int {
	if i, ok := h[name]; ok {
		return i
	}
	return -1
}

// cellAt returns the cell at index i, or "" when the row is short or
// the column absent (index -1).
func cellAt(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}
