package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/lanfund/internal/app"
	"github.com/bobmcallan/lanfund/internal/common"
	"github.com/bobmcallan/lanfund/internal/display"
	"github.com/bobmcallan/lanfund/internal/models"
	"github.com/bobmcallan/lanfund/internal/services/ledger"
)

func newSummaryCmd() *cobra.Command {
	var (
		asJSON     bool
		asMarkdown bool
		sortCol    int
		descending bool
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show holdings, today's gains and pending settlements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				ctx := cmd.Context()
				summary, err := a.PortfolioService.Refresh(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				prefs := a.LedgerService.Preferences(ctx)

				switch {
				case asJSON:
					return writeJSON(out, summary)
				case asMarkdown:
					rendered, err := a.ReportService.RenderTerminal(a.ReportService.SummaryMarkdown(summary, prefs))
					if err != nil {
						return err
					}
					fmt.Fprint(out, rendered)
					return nil
				}

				fmt.Fprint(out, summaryHeader(summary, prefs.HideSensitiveValues))
				tbl := display.SummaryTable(summary, prefs.HideSensitiveValues)
				sorter := display.NewSorter()
				if sortCol >= 0 {
					tbl.Sort(sorter, sortCol)
					if descending {
						tbl.Sort(sorter, sortCol)
					}
				}
				fmt.Fprint(out, tbl.Render(sorter))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	cmd.Flags().BoolVar(&asMarkdown, "markdown", false, "render the summary as markdown")
	cmd.Flags().IntVar(&sortCol, "sort", -1, "sort by column index")
	cmd.Flags().BoolVar(&descending, "desc", false, "sort descending")
	return cmd
}

// summaryHeader is the totals line above the fund table.
func summaryHeader(s *models.PositionSummary, hidden bool) string {
	actual := "净值未更新"
	if s.NetValueUpdated() {
		actual = fmt.Sprintf("%s (%s)", common.MaskSignedMoney(s.ActualGain, hidden), common.FormatPercent(s.ActualGainPct))
	}
	line := fmt.Sprintf("%s  持仓 %d  总额 %s  估算 %s  实际 %s  累计 %s\n",
		s.Date,
		s.HeldCount,
		common.MaskMoney(s.TotalValue, hidden),
		display.Colorize(fmt.Sprintf("%s (%s)", common.MaskSignedMoney(s.EstimatedGain, hidden), common.FormatPercent(s.EstimatedGainPct))),
		display.Colorize(actual),
		display.Colorize(common.MaskSignedMoney(s.TotalCumulativeReturn, hidden)),
	)
	if s.SkippedRows > 0 {
		line += fmt.Sprintf("跳过 %d 行无法解析的数据\n", s.SkippedRows)
	}
	return line + "\n"
}

type changeFlags struct {
	date     string
	period   string
	netValue float64
}

func (f *changeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.date, "date", "", "trade date YYYY-MM-DD (default: backend today)")
	cmd.Flags().StringVar(&f.period, "period", "", "before15 or after15 (default: from backend clock)")
	cmd.Flags().Float64Var(&f.netValue, "nv", 0, "net value to price the trade at (default: latest)")
}

func newAddCmd() *cobra.Command {
	return newChangeCmd(models.OpAdd, "add CODE AMOUNT", "Add money to a position")
}

func newReduceCmd() *cobra.Command {
	return newChangeCmd(models.OpReduce, "reduce CODE AMOUNT", "Take money out of a position")
}

func newChangeCmd(op models.PositionOp, use, short string) *cobra.Command {
	var flags changeFlags
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[1])
			}
			return withApp(func(a *app.App) error {
				ctx := cmd.Context()
				tt, err := resolveTradeTime(ctx, flags.date, flags.period, a.Backend.BeijingTime, a.Clock)
				if err != nil {
					return err
				}
				change := models.PositionChange{Code: args[0], Amount: amount, TradeTime: tt, NetValue: flags.netValue}

				var result *models.PositionResult
				if op == models.OpAdd {
					result, err = a.PortfolioService.AddPosition(ctx, change)
				} else {
					result, err = a.PortfolioService.ReducePosition(ctx, change)
				}
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), describeResult(result, a.LedgerService.HideSensitive(ctx)))
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// resolveTradeTime fills missing flags from the backend clock, falling back
// to the local clock when the backend cannot be reached.
func resolveTradeTime(
	ctx context.Context,
	date, period string,
	serverTime func(context.Context) (*models.ServerTime, error),
	clock *common.Clock,
) (*models.TradeTime, error) {
	tt := &models.TradeTime{Date: date, Period: models.Period(period)}
	if tt.Date != "" && tt.Period != "" {
		return tt, nil
	}

	now := clock.Now()
	st := &models.ServerTime{Date: now.Format(common.DateLayout), Hour: now.Hour(), Minute: now.Minute()}
	if remote, err := serverTime(ctx); err == nil && remote.Date != "" {
		st = remote
	}

	if tt.Date == "" {
		tt.Date = st.Date
	}
	if tt.Period == "" {
		tt.Period = st.DefaultPeriod()
	}
	if !tt.Period.Valid() {
		return nil, fmt.Errorf("period must be before15 or after15, got %q", period)
	}
	return tt, nil
}

func describeResult(r *models.PositionResult, hidden bool) string {
	verb := "加仓"
	if r.Op == models.OpReduce {
		verb = "减仓"
	}
	s := fmt.Sprintf("%s %s 成功: 份额 %.2f → %.2f, 成本 %.4f → %.4f (净值 %.4f)\n",
		verb, r.Code,
		r.Previous.HoldingUnits, r.Holding.HoldingUnits,
		r.Previous.CostPerUnit, r.Holding.CostPerUnit,
		r.NetValue,
	)
	s += fmt.Sprintf("待确认 %s, 预计 %s 到账\n", common.MaskMoney(r.Pending.Amount, hidden), r.Pending.SettlementDate)
	if r.BackendMessage != "" {
		s += r.BackendMessage + "\n"
	}
	return s
}

func newPendingCmd() *cobra.Command {
	var clearAll bool
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List unsettled adds and reduces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				ctx := cmd.Context()
				if clearAll {
					if err := a.LedgerService.Clear(ctx); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "待确认记录已清空")
					return nil
				}
				adds, reduces, err := a.LedgerService.Prune(ctx, a.Clock.Today())
				if err != nil {
					return err
				}
				if len(adds)+len(reduces) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "没有待确认的交易")
					return nil
				}
				hidden := a.LedgerService.HideSensitive(ctx)
				fmt.Fprint(cmd.OutOrStdout(), display.PendingTable(adds, reduces, hidden).Render(nil))

				adding, reducing := ledger.SumByFund(adds), ledger.SumByFund(reduces)
				total := 0.0
				for _, v := range adding {
					total += v
				}
				for _, v := range reducing {
					total -= v
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\n净待确认 %s\n", common.MaskSignedMoney(total, hidden))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&clearAll, "clear", false, "drop both pending ledgers")
	return cmd
}

func newHoldingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "holding CODE UNITS COST",
		Short: "Set a fund's holding units and cost per unit",
		Long: `Set a fund's holding units and cost per unit directly.

No add or reduce record is created. A cost of 0 is stored as 1.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			units, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid units %q", args[1])
			}
			cost, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("invalid cost %q", args[2])
			}
			return withApp(func(a *app.App) error {
				ctx := cmd.Context()
				res, err := a.PortfolioService.SetHolding(ctx, args[0], units, cost)
				if err != nil {
					return err
				}
				hidden := a.LedgerService.HideSensitive(ctx)
				out := cmd.OutOrStdout()
				if res.BackendMessage != "" {
					fmt.Fprintln(out, res.BackendMessage)
				}
				fmt.Fprintf(out, "%s 份额 %s 成本 %s 持仓 %s\n",
					res.Code,
					maskUnits(res.Holding.HoldingUnits, hidden),
					strconv.FormatFloat(res.Holding.CostPerUnit, 'f', 4, 64),
					common.MaskMoney(res.Shares, hidden))
				return nil
			})
		},
	}
}

func maskUnits(units float64, hidden bool) string {
	if hidden {
		return common.SensitiveMask
	}
	return strconv.FormatFloat(units, 'f', 2, 64)
}

func newCardCmd() *cobra.Command {
	var pngPath string
	cmd := &cobra.Command{
		Use:   "card",
		Short: "Show today's showoff card",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				ctx := cmd.Context()
				card, err := a.PortfolioService.ShowoffCard(ctx)
				if err != nil {
					return err
				}
				rendered, err := a.ReportService.RenderTerminal(a.ReportService.CardMarkdown(card, a.LedgerService.HideSensitive(ctx)))
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), rendered)

				if pngPath == "" {
					return nil
				}
				png, err := a.ReportService.CardChart(card)
				if err != nil {
					return err
				}
				if err := os.WriteFile(pngPath, png, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", pngPath, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "chart written to %s\n", pngPath)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&pngPath, "png", "", "also write a bar chart PNG to this path")
	return cmd
}

func newExportCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the fund breakdown as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				summary, err := a.PortfolioService.Refresh(cmd.Context())
				if err != nil {
					return err
				}
				var w io.Writer = cmd.OutOrStdout()
				if outPath != "" {
					f, err := os.Create(outPath)
					if err != nil {
						return fmt.Errorf("failed to create %s: %w", outPath, err)
					}
					defer f.Close()
					w = f
				}
				return a.ReportService.ExportCSV(summary, w)
			})
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write to file instead of stdout")
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
