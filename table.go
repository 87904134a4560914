package main

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

// Baidu's table OCR returns one of these per recognised table.
type OCRTable struct {
	Body      []OCRCell `json:"body"`
	ExcelFile string    `json:"excel_file"`
}

// A single recognised cell.  Merged cells span [start, end).
type OCRCell struct {
	RowStart int    `json:"row_start"`
	RowEnd   int    `json:"row_end"`
	ColStart int    `json:"col_start"`
	ColEnd   int    `json:"col_end"`
	Words    string `json:"words"`
}

type OCRResponse struct {
	ErrorCode    int             `json:"error_code"`
	ErrorMsg     string          `json:"error_msg"`
	RequestID    string          `json:"request_id"`
	ExcelFile    string          `json:"excel_file"`
	TablesResult []OCRTable      `json:"tables_result"`
	Result       json.RawMessage `json:"result"`
}

// Nested result object.  The async endpoints put everything here, and some sync responses do too.
type OCRResult struct {
	RequestID    string     `json:"request_id"`
	ResultData   string     `json:"result_data"`
	ExcelFile    string     `json:"excel_file"`
	RetCode      *int       `json:"ret_code"`
	RetMsg       string     `json:"ret_msg"`
	TablesResult []OCRTable `json:"tables_result"`
}

// Table is what the rest of the pipeline sees: rows of cell text, all rows the same width.
type Table struct {
	Rows [][]string
}

var (
	reLineBreaks = regexp.MustCompile(`[\r\n]+`)
	reCellSpaces = regexp.MustCompile(`[ \t\x{3000}]+`)
)

func ParseOCRResponse(data []byte) (*OCRResponse, error) {
	var r OCRResponse

	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode OCR response: %w", err)
	}

	if r.ErrorCode != 0 {
		return &r, &APIError{Code: r.ErrorCode, Msg: r.ErrorMsg}
	}

	return &r, nil
}

// Nested decodes the "result" member, or returns nil if there isn't an object there.
func (r *OCRResponse) Nested() *OCRResult {
	if len(r.Result) == 0 {
		return nil
	}

	var nested OCRResult
	if err := json.Unmarshal(r.Result, &nested); err != nil {
		// Sometimes a list of request ids.
		var list []OCRResult

		if err := json.Unmarshal(r.Result, &list); err != nil || len(list) == 0 {
			return nil
		}

		return &list[0]
	}

	return &nested
}

func (r *OCRResponse) Tables() []OCRTable {
	if len(r.TablesResult) > 0 {
		return r.TablesResult
	}

	if nested := r.Nested(); nested != nil {
		return nested.TablesResult
	}

	return nil
}

// ExcelData finds the base64 workbook wherever this version of the API has decided to put it.
func (r *OCRResponse) ExcelData() string {
	if r.ExcelFile != "" {
		return r.ExcelFile
	}

	if nested := r.Nested(); nested != nil {
		if nested.ResultData != "" {
			return nested.ResultData
		}

		if nested.ExcelFile != "" {
			return nested.ExcelFile
		}
	}

	for _, table := range r.Tables() {
		if table.ExcelFile != "" {
			return table.ExcelFile
		}
	}

	return ""
}

func (r *OCRResponse) AsyncRequestID() string {
	if nested := r.Nested(); nested != nil && nested.RequestID != "" {
		return nested.RequestID
	}

	return r.RequestID
}

// CellTable lays the recognised cells out on a grid.  Multiple tables on one image are stacked.
func CellTable(tables []OCRTable) *Table {
	t := &Table{}
	cols := 0

	for _, table := range tables {
		for _, cell := range table.Body {
			if cell.ColEnd > cols {
				cols = cell.ColEnd
			}

			if cell.ColStart+1 > cols {
				cols = cell.ColStart + 1
			}
		}
	}

	for _, table := range tables {
		rows := 0

		for _, cell := range table.Body {
			if cell.RowEnd > rows {
				rows = cell.RowEnd
			}

			if cell.RowStart+1 > rows {
				rows = cell.RowStart + 1
			}
		}

		grid := make([][]string, rows)
		for i := range grid {
			grid[i] = make([]string, cols)
		}

		for _, cell := range table.Body {
			if cell.RowStart < 0 || cell.ColStart < 0 {
				continue
			}

			grid[cell.RowStart][cell.ColStart] = CleanCell(cell.Words)
		}

		t.Rows = append(t.Rows, grid...)
	}

	return t
}

// CleanCell tidies up OCR'd cell text: full width forms become ASCII, line breaks inside the cell go.
func CleanCell(str string) string {
	str = width.Narrow.String(str)
	str = reLineBreaks.ReplaceAllString(str, "")
	str = reCellSpaces.ReplaceAllString(str, " ")

	return strings.TrimSpace(str)
}

// NewTable pads ragged rows, as returned by spreadsheet readers, out to a rectangle.
func NewTable(rows [][]string) *Table {
	cols := 0

	for _, row := range rows {
		if len(row) > cols {
			cols = len(row)
		}
	}

	t := &Table{Rows: make([][]string, len(rows))}

	for i, row := range rows {
		padded := make([]string, cols)
		for j, cell := range row {
			padded[j] = CleanCell(cell)
		}

		t.Rows[i] = padded
	}

	return t
}
