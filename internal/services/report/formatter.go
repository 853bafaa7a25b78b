package report

import (
	"fmt"
	"strings"

	"github.com/bobmcallan/lanfund/internal/common"
	"github.com/bobmcallan/lanfund/internal/models"
)

const netValuePending = "净值未更新"

// formatSummary renders the position summary as markdown
func formatSummary(s *models.PositionSummary, prefs models.Preferences) string {
	hidden := prefs.HideSensitiveValues
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# 持仓汇总 %s\n\n", s.Date))
	sb.WriteString(fmt.Sprintf("**总持仓:** %s\n", common.MaskMoney(s.TotalValue, hidden)))
	sb.WriteString(fmt.Sprintf("**今日估算收益:** %s (%s)\n", common.MaskSignedMoney(s.EstimatedGain, hidden), common.FormatPercent(s.EstimatedGainPct)))
	if s.NetValueUpdated() {
		sb.WriteString(fmt.Sprintf("**今日实际收益:** %s (%s)\n", common.MaskSignedMoney(s.ActualGain, hidden), common.FormatPercent(s.ActualGainPct)))
	} else {
		sb.WriteString(fmt.Sprintf("**今日实际收益:** %s\n", netValuePending))
	}
	sb.WriteString(fmt.Sprintf("**累计收益:** %s\n", common.MaskSignedMoney(s.TotalCumulativeReturn, hidden)))
	if s.CumulativeCorrection != 0 {
		sb.WriteString(fmt.Sprintf("**累计修正:** %s\n", common.MaskSignedMoney(-s.CumulativeCorrection, hidden)))
	}
	sb.WriteString(fmt.Sprintf("**持有基金:** %d\n\n", s.HeldCount))

	if len(s.Funds) == 0 {
		sb.WriteString("_暂无持仓_\n")
		return sb.String()
	}

	sb.WriteString("| 代码 | 名称 | 净值 | 估算涨幅 | 持仓金额 | 估算收益 | 当日收益 | 累计收益 |\n")
	sb.WriteString("|------|------|------|----------|----------|----------|----------|----------|\n")
	for _, f := range s.Funds {
		actual := netValuePending
		if f.NetValueUpdated(s.Date) {
			actual = fmt.Sprintf("%s (%s)", common.MaskSignedMoney(f.ActualGain, hidden), common.FormatPercent(f.ActualGainPct))
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %.4f (%s) | %s | %s | %s | %s | %s |\n",
			f.Code, escapeCell(f.Name), f.NetValue, f.NetValueDate,
			common.FormatPercent(f.EstimatedGainPct),
			common.MaskMoney(f.PositionAmount, hidden),
			common.MaskSignedMoney(f.EstimatedGain, hidden),
			actual,
			common.MaskSignedMoney(f.CumulativeReturn, hidden),
		))
	}

	var pending []models.FundDetail
	for _, f := range s.Funds {
		if f.PendingAdd != 0 || f.PendingReduce != 0 {
			pending = append(pending, f)
		}
	}
	if len(pending) > 0 {
		sb.WriteString("\n## 待确认\n\n")
		for _, f := range pending {
			sb.WriteString(fmt.Sprintf("- %s %s: 加仓 %s, 减仓 %s\n", f.Code, escapeCell(f.Name),
				common.MaskMoney(f.PendingAdd, hidden), common.MaskMoney(f.PendingReduce, hidden)))
		}
	}

	if s.SkippedRows > 0 {
		sb.WriteString(fmt.Sprintf("\n_%d 行数据无法解析，已跳过_\n", s.SkippedRows))
	}
	return sb.String()
}

// formatCard renders the showoff card as markdown
func formatCard(c *models.ShowoffCard, hidden bool) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# 今日战绩 %s\n\n", c.Date))
	sb.WriteString(fmt.Sprintf("**总持仓:** %s\n\n", common.MaskMoney(c.TotalValue, hidden)))
	sb.WriteString(fmt.Sprintf("**估算收益:** %s\n\n", common.MaskSignedMoney(c.EstimatedGain, hidden)))
	if c.NetValueUpdated {
		sb.WriteString(fmt.Sprintf("**实际收益:** %s\n\n", common.MaskSignedMoney(c.ActualGain, hidden)))
	} else {
		sb.WriteString(fmt.Sprintf("**实际收益:** %s\n\n", netValuePending))
	}

	if len(c.TopFunds) > 0 {
		sb.WriteString("## 收益前三\n\n")
		for i, f := range c.TopFunds {
			kind := "估"
			if f.Actual {
				kind = "实"
			}
			sb.WriteString(fmt.Sprintf("%d. **%s** %s  %s (%s) [%s]\n", i+1, escapeCell(f.Name), f.Code,
				common.MaskSignedMoney(f.Gain, hidden), common.FormatPercent(f.GainPct), kind))
		}
	}
	return sb.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
