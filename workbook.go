package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Column layout of the purchase order template.  Row 1 is the header.
const (
	colName     = "A"
	colBarcode  = "B"
	colQuantity = "C"
	colGift     = "D"
	colPrice    = "E"

	firstDataRow = 2
	priceFormat  = "0.0000"
)

var defaultTemplateHeader = []interface{}{"商品名称", "条码（必填）", "采购量（必填）", "赠送量", "采购单价（必填）"}

// OrderLine is one row of a purchase order as written to the template.
type OrderLine struct {
	Barcode  string
	Name     string
	Quantity float64
	Gift     float64
	Price    float64
}

func ReadWorkbook(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	defer f.Close()

	return readFirstSheet(f)
}

func ReadWorkbookBytes(data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	defer f.Close()

	return readFirstSheet(f)
}

func readFirstSheet(f *excelize.File) (*Table, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return NewTable(nil), nil
	}

	// Raw values, otherwise long barcodes come back in scientific notation.
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}

	return NewTable(rows), nil
}

// WriteTable saves recognised OCR rows as a plain workbook.
func WriteTable(path string, t *Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	for i, row := range t.Rows {
		values := make([]interface{}, len(row))
		for j, cell := range row {
			values[j] = cell
		}

		cellRef, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cellRef, &values); err != nil {
			return err
		}
	}

	return saveWorkbook(f, path)
}

func saveWorkbook(f *excelize.File, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}

	return nil
}

// openTemplate opens the purchase order template, or builds an equivalent blank one if we don't have it.
func openTemplate(path string) (*excelize.File, string, error) {
	if path != "" && strings.EqualFold(filepath.Ext(path), ".xlsx") {
		if _, err := os.Stat(path); err == nil {
			f, err := excelize.OpenFile(path)
			if err != nil {
				return nil, "", fmt.Errorf("failed to open template %s: %w", path, err)
			}

			return f, f.GetSheetName(0), nil
		}
	}

	if path != "" {
		sugar.Warnf("Template %s not found or not xlsx, using built in layout", path)
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	if err := f.SetSheetRow(sheet, "A1", &defaultTemplateHeader); err != nil {
		f.Close()
		return nil, "", err
	}

	return f, sheet, nil
}

// WriteOrder fills the template with lines and saves the result to path.
func WriteOrder(templatePath string, path string, lines []OrderLine) error {
	f, sheet, err := openTemplate(templatePath)
	if err != nil {
		return err
	}

	defer f.Close()

	format := priceFormat
	priceStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &format})
	if err != nil {
		return err
	}

	// Only fill in names where the template has somewhere to put them.
	header, _ := f.GetCellValue(sheet, colName+"1")
	withNames := strings.Contains(header, "名称")

	for i, line := range lines {
		row := firstDataRow + i
		cell := func(col string) string {
			return fmt.Sprintf("%s%d", col, row)
		}

		if withNames && line.Name != "" {
			if err := f.SetCellStr(sheet, cell(colName), line.Name); err != nil {
				return err
			}
		}

		// Barcodes are text; as numbers they would lose digits.
		if err := f.SetCellStr(sheet, cell(colBarcode), line.Barcode); err != nil {
			return err
		}

		if err := f.SetCellFloat(sheet, cell(colQuantity), line.Quantity, -1, 64); err != nil {
			return err
		}

		if line.Gift > 0 {
			if err := f.SetCellFloat(sheet, cell(colGift), line.Gift, -1, 64); err != nil {
				return err
			}
		}

		if err := f.SetCellFloat(sheet, cell(colPrice), roundPrice(line.Price), -1, 64); err != nil {
			return err
		}

		if err := f.SetCellStyle(sheet, cell(colPrice), cell(colPrice), priceStyle); err != nil {
			return err
		}
	}

	return saveWorkbook(f, path)
}
