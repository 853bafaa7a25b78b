package display

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bobmcallan/lanfund/internal/common"
	"github.com/bobmcallan/lanfund/internal/models"
)

// Gains are red and losses green, as on mainland quote boards.
var (
	positiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#f44336"))
	negativeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4caf50"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	sortedStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
)

// Colorize renders text in the style of its tone.
func Colorize(text string) string {
	switch Classify(text) {
	case TonePositive:
		return positiveStyle.Render(text)
	case ToneNegative:
		return negativeStyle.Render(text)
	}
	return text
}

// Table is a plain text grid of cells.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Sort orders the rows by col using s, which tracks the toggle state.
func (t *Table) Sort(s *Sorter, col int) Direction {
	return s.Sort(t.Rows, col)
}

// Render lays the table out in aligned columns. Data cells are colorized and
// the header of the sorted column carries an arrow.
func (t *Table) Render(s *Sorter) string {
	sortCol, dir := -1, Ascending
	if s != nil {
		sortCol, dir = s.Column()
	}

	headers := make([]string, len(t.Headers))
	for i, h := range t.Headers {
		headers[i] = h
		if i == sortCol {
			if dir == Descending {
				headers[i] += " ▼"
			} else {
				headers[i] += " ▲"
			}
		}
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range t.Rows {
		for i := 0; i < len(r) && i < len(widths); i++ {
			if w := lipgloss.Width(r[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	for i, h := range headers {
		style := headerStyle
		if i == sortCol {
			style = sortedStyle
		}
		b.WriteString(style.Render(pad(h, widths[i])))
		if i < len(headers)-1 {
			b.WriteString("  ")
		}
	}
	b.WriteByte('\n')

	for _, r := range t.Rows {
		for i := range widths {
			cell := ""
			if i < len(r) {
				cell = r[i]
			}
			b.WriteString(Colorize(cell))
			if i < len(widths)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+2))
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func pad(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

// RowTable is the raw watchlist as returned by the backend.
func RowTable(rows []models.FundRow) *Table {
	t := &Table{Headers: []string{"代码", "名称", "时间", "净值", "估算涨幅", "日涨幅", "连涨/跌", "近30天"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, r.Cells())
	}
	return t
}

// SummaryTable lists each held fund with its computed figures. Money columns
// are masked when hidden is set.
func SummaryTable(s *models.PositionSummary, hidden bool) *Table {
	t := &Table{Headers: []string{"代码", "名称", "净值", "净值日期", "估算涨幅", "持仓金额", "估算收益", "当日收益", "累计收益", "待确认"}}
	if s == nil {
		return t
	}
	for _, f := range s.Funds {
		actual := "净值未更新"
		if f.NetValueUpdated(s.Date) {
			actual = common.MaskSignedMoney(f.ActualGain, hidden)
		}
		pending := ""
		if f.PendingAdd != 0 || f.PendingReduce != 0 {
			pending = fmt.Sprintf("+%s / -%s", common.MaskMoney(f.PendingAdd, hidden), common.MaskMoney(f.PendingReduce, hidden))
		}
		t.Rows = append(t.Rows, []string{
			f.Code,
			f.Name,
			fmt.Sprintf("%.4f", f.NetValue),
			f.NetValueDate,
			common.FormatPercent(f.EstimatedGainPct),
			common.MaskMoney(f.PositionAmount, hidden),
			common.MaskSignedMoney(f.EstimatedGain, hidden),
			actual,
			common.MaskSignedMoney(f.CumulativeReturn, hidden),
			pending,
		})
	}
	return t
}

// RecordTable lists backend position records, newest first as returned.
func RecordTable(records []models.PositionRecord, hidden bool) *Table {
	t := &Table{Headers: []string{"ID", "代码", "名称", "操作", "金额", "交易日", "时段", "份额变化", "可撤销"}}
	for _, r := range records {
		op := "加仓"
		if r.Op == models.OpReduce {
			op = "减仓"
		}
		undo := "否"
		if r.CanUndo {
			undo = "是"
		}
		t.Rows = append(t.Rows, []string{
			fmt.Sprintf("%d", r.ID),
			r.FundCode,
			r.FundName,
			op,
			common.MaskMoney(r.Amount, hidden),
			r.TradeDate,
			string(r.Period),
			fmt.Sprintf("%+.2f", r.NewHoldingUnits-r.PrevHoldingUnits),
			undo,
		})
	}
	return t
}

// PendingTable lists pending settlements for both ledgers.
func PendingTable(adds, reduces []models.PendingSettlement, hidden bool) *Table {
	t := &Table{Headers: []string{"操作", "代码", "金额", "到账日"}}
	for _, e := range adds {
		t.Rows = append(t.Rows, []string{"加仓", e.FundCode, common.MaskMoney(e.Amount, hidden), e.SettlementDate})
	}
	for _, e := range reduces {
		t.Rows = append(t.Rows, []string{"减仓", e.FundCode, common.MaskMoney(e.Amount, hidden), e.SettlementDate})
	}
	return t
}
