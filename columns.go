package main

import (
	"strings"
	"unicode/utf8"
)

type field string

const (
	fieldBarcode  field = "barcode"
	fieldName     field = "name"
	fieldSpec     field = "specification"
	fieldQuantity field = "quantity"
	fieldUnit     field = "unit"
	fieldPrice    field = "price"
	fieldAmount   field = "amount"
	fieldGift     field = "gift"
)

// Header names seen on suppliers' order sheets and on our own template.  Gift comes before quantity and price before
// name so that substring matching gives "赠品数量" to gift and "商品条码" to barcode.
var fieldOrder = []field{fieldBarcode, fieldGift, fieldAmount, fieldPrice, fieldQuantity, fieldUnit, fieldSpec, fieldName}

var fieldNames = map[field][]string{
	fieldBarcode:  {"条码", "条形码", "商品条码", "商品条形码", "商品编码", "商品编号", "基本条码", "条码（必填）", "barcode", "编码"},
	fieldName:     {"商品名称", "名称", "品名", "商品全名", "商品名", "产品名称", "货物名称", "商品或服务名称", "品项名", "商品"},
	fieldSpec:     {"规格", "规格型号", "商品规格", "包装规格", "型号"},
	fieldQuantity: {"数量", "采购数量", "购买数量", "订单数量", "数量（必填）", "采购量", "采购量（必填）"},
	fieldUnit:     {"单位", "采购单位", "计量单位", "单位（必填）"},
	fieldPrice:    {"单价", "价格", "采购单价", "销售价", "进货价", "单价（必填）", "采购单价（必填）"},
	fieldAmount:   {"金额", "订单金额", "总金额", "总价金额", "小计（元）"},
	fieldGift:     {"赠送量", "赠品数量", "赠送数量", "赠品"},
}

// Words which mark a row as the header row.
var headerKeywords = []string{"行号", "条码", "条形码", "商品条码", "商品名称", "规格", "单价", "数量", "金额", "单位", "必填"}

// How many rows from the top we look for the header in: the first row plus the five below it.  Suppliers often put
// a title and shop details above the header.
const headerSearchRows = 6

// Columns maps a logical field to its column index.
type Columns map[field]int

func (c Columns) Has(f field) bool {
	_, ok := c[f]
	return ok
}

// Get returns the cell for f in row, or "" if the column is missing.
func (c Columns) Get(row []string, f field) string {
	i, ok := c[f]

	if !ok || i >= len(row) {
		return ""
	}

	return row[i]
}

// FindHeaderRow returns the index of the header row: the first with at least three header keywords, else the first.
func FindHeaderRow(t *Table) int {
	for i := 0; i < len(t.Rows) && i < headerSearchRows; i++ {
		matches := 0

		for _, keyword := range headerKeywords {
			for _, cell := range t.Rows[i] {
				if strings.Contains(cell, keyword) {
					matches++
					break
				}
			}
		}

		if matches >= 3 {
			if i > 0 {
				sugar.Infof("Header found at row %d", i+1)
			}

			return i
		}
	}

	return 0
}

func cleanHeader(str string) string {
	return strings.ToLower(strings.Join(strings.Fields(CleanCell(str)), ""))
}

// MapColumns works out which column holds which field.  We try progressively looser matching: exact, then the
// header containing a known name, then a fuzzy match to cope with OCR misreads.  Each column is used at most once.
func MapColumns(header []string) Columns {
	cols := Columns{}
	claimed := map[int]bool{}
	cleaned := make([]string, len(header))

	for i, h := range header {
		cleaned[i] = cleanHeader(h)
	}

	assign := func(f field, match func(col string, name string) bool) {
		if cols.Has(f) {
			return
		}

		for _, name := range fieldNames[f] {
			name = cleanHeader(name)

			for i, col := range cleaned {
				if col == "" || claimed[i] {
					continue
				}

				if match(col, name) {
					cols[f] = i
					claimed[i] = true
					return
				}
			}
		}
	}

	strategies := []func(col string, name string) bool{
		func(col, name string) bool { return col == name },
		strings.Contains,
		func(col, name string) bool { return compare(col, name) >= confidence },
	}

	for _, strategy := range strategies {
		for _, f := range fieldOrder {
			assign(f, strategy)
		}
	}

	sugar.Debugf("Column mapping %v for header %v", cols, header)

	return cols
}

// runeLen is what we want for similarity on Chinese text; len() would count bytes.
func runeLen(str string) int {
	return utf8.RuneCountInString(str)
}
