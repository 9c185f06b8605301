package console

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	orderRowSelector  = "tbody.center"
	orderCellSelector = "td.orderNum"
	checkboxSelector  = ".chkbox"
)

// ListedOrder is one row of the console's shipping order list
type ListedOrder struct {
	// Row is the position of the row among all order rows, in document order
	Row           int
	MarketOrderID string
	HasCheckbox   bool
}

// ParseOrderList extracts order ids from the HTML of the order list container.
// Rows without an order cell, or whose cell has no id line, are skipped.
func ParseOrderList(html string) ([]ListedOrder, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse order list: %w", err)
	}

	var orders []ListedOrder
	doc.Find(orderRowSelector).Each(func(i int, row *goquery.Selection) {
		cell := row.Find(orderCellSelector).First()
		if cell.Length() == 0 {
			return
		}
		id := orderIDFromCell(cell)
		if id == "" {
			return
		}
		orders = append(orders, ListedOrder{
			Row:           i,
			MarketOrderID: id,
			HasCheckbox:   row.Find(checkboxSelector).Length() > 0,
		})
	})
	return orders, nil
}

// orderIDFromCell returns the first token of the cell's second visible line.
// The first line is the order date; the second starts with the order id.
func orderIDFromCell(cell *goquery.Selection) string {
	lines := renderedLines(cell)
	if len(lines) < 2 {
		return ""
	}
	fields := strings.Fields(lines[1])
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// renderedLines approximates the browser's rendered text: <br> and block elements
// break lines, and blank lines disappear.
func renderedLines(sel *goquery.Selection) []string {
	sel = sel.Clone()
	sel.Find("br").ReplaceWithHtml("\n")
	sel.Find("div, p, li").Each(func(_ int, block *goquery.Selection) {
		block.PrependHtml("\n")
		block.AppendHtml("\n")
	})

	var lines []string
	for _, line := range strings.Split(sel.Text(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
