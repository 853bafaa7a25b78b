// Command lanfund tracks fund positions against the LanFund dashboard backend.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bobmcallan/lanfund/internal/app"
	"github.com/bobmcallan/lanfund/internal/clients/lanfund"
)

var configPath string

func main() {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, userMessage(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lanfund",
		Short:         "Fund position tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: $LANFUND_CONFIG or lanfund.toml)")

	root.AddCommand(
		newServeCmd(),
		newSummaryCmd(),
		newAddCmd(),
		newReduceCmd(),
		newPendingCmd(),
		newHoldingCmd(),
		newCorrectionCmd(),
		newPrivacyCmd(),
		newCardCmd(),
		newExportCmd(),
		newRecordsCmd(),
		newUndoCmd(),
		newFundsCmd(),
		newTokenCmd(),
		newVersionCmd(),
	)
	return root
}

// withApp opens the App for the duration of fn.
func withApp(fn func(a *app.App) error) error {
	a, err := app.NewApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// userMessage shows backend rejections verbatim and everything else as a
// generic failure with the cause.
func userMessage(err error) string {
	if rej, ok := lanfund.IsRejected(err); ok {
		return rej.Error()
	}
	return "Error: " + err.Error()
}
