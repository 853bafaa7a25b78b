package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/lanfund/internal/app"
	"github.com/bobmcallan/lanfund/internal/common"
)

func newCorrectionCmd() *cobra.Command {
	var flagValue float64
	cmd := &cobra.Command{
		Use:   "correction [VALUE]",
		Short: "Show or set the cumulative return correction",
		Long: `Show or set the cumulative return correction.

Negative values must be passed with --value or after "--", for example
"lanfund correction --value -50" or "lanfund correction -- -50".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set := cmd.Flags().Changed("value")
			value := flagValue
			if len(args) == 1 {
				if set {
					return fmt.Errorf("give the correction as an argument or with --value, not both")
				}
				v, err := strconv.ParseFloat(args[0], 64)
				if err != nil {
					return fmt.Errorf("invalid correction %q", args[0])
				}
				value, set = v, true
			}
			return withApp(func(a *app.App) error {
				ctx := cmd.Context()
				if set {
					if err := a.LedgerService.SetCorrection(ctx, value); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "累计修正 %s\n", common.FormatSignedMoney(a.LedgerService.Correction(ctx)))
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&flagValue, "value", 0, "set the correction (accepts negative values)")
	return cmd
}

func newPrivacyCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "privacy [on|off]",
		Short:     "Show or toggle masking of money figures",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				ctx := cmd.Context()
				if len(args) == 1 {
					if err := a.LedgerService.SetHideSensitive(ctx, args[0] == "on"); err != nil {
						return err
					}
				}
				state := "off"
				if a.LedgerService.HideSensitive(ctx) {
					state = "on"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "privacy %s\n", state)
				return nil
			})
		},
	}
}
