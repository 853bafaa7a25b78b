package lanfund

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/bobmcallan/lanfund/internal/models"
)

// tableColumns is the number of data cells per watchlist row: code, name,
// time, net value, estimated growth, day growth, streak, 30-day change.
// Rows may carry extra trailing button cells, which are ignored.
const tableColumns = 8

// ParseTableRows parses the <tr> fragment returned by /api/portfolio/table.
// Rows with fewer than eight cells (placeholders such as "loading") are skipped.
func ParseTableRows(fragment string) ([]models.FundRow, error) {
	tbody := &html.Node{Type: html.ElementNode, Data: "tbody", DataAtom: atom.Tbody}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), tbody)
	if err != nil {
		return nil, fmt.Errorf("parse table html: %w", err)
	}

	var rows []models.FundRow
	for _, n := range nodes {
		if n.Type != html.ElementNode || n.DataAtom != atom.Tr {
			continue
		}
		cells := rowCells(n)
		if len(cells) < tableColumns {
			continue
		}
		code := attr(n, "data-code")
		if code == "" {
			code = cells[0]
		}
		rows = append(rows, models.FundRow{
			Code:                code,
			Name:                cells[1],
			Time:                cells[2],
			NetValueText:        cells[3],
			EstimatedGrowthText: cells[4],
			DayGrowthText:       cells[5],
			StreakText:          cells[6],
			Month30Text:         cells[7],
		})
	}
	return rows, nil
}

func rowCells(tr *html.Node) []string {
	var cells []string
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
			cells = append(cells, strings.TrimSpace(textContent(c)))
		}
	}
	return cells
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}
