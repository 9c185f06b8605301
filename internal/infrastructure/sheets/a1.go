package sheets

import (
	"fmt"
	"strings"
)

// ColumnLetter converts a 1-based column index to A1 letters (1 → A, 27 → AA)
func ColumnLetter(col int) string {
	if col < 1 {
		return ""
	}
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}

// SheetRange returns an A1 range covering the whole sheet
func SheetRange(sheet string) string {
	return quoteSheet(sheet)
}

// HeaderRange returns an A1 range covering the sheet's first row
func HeaderRange(sheet string) string {
	return quoteSheet(sheet) + "!1:1"
}

// CellRange returns the A1 reference of a single cell (1-based row and column)
func CellRange(sheet string, row, col int) string {
	return fmt.Sprintf("%s!%s%d", quoteSheet(sheet), ColumnLetter(col), row)
}

func quoteSheet(sheet string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
}
