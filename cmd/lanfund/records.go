package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/lanfund/internal/app"
	"github.com/bobmcallan/lanfund/internal/display"
)

func newRecordsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "records",
		Short: "List add and reduce records kept by the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				ctx := cmd.Context()
				records, err := a.PortfolioService.PositionRecords(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), records)
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "暂无记录")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), display.RecordTable(records, a.LedgerService.HideSensitive(ctx)).Render(nil))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	return cmd
}

func newUndoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo ID",
		Short: "Undo a position record before its deadline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("record id must be a positive integer")
			}
			return withApp(func(a *app.App) error {
				msg, err := a.PortfolioService.UndoRecord(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				return nil
			})
		},
	}
}
