package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/lanfund/internal/app"
)

func newFundsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "funds",
		Short: "Manage the fund roster",
	}
	cmd.AddCommand(
		rosterCmd("add CODE...", "Add funds to the roster", func(a *app.App, cmd *cobra.Command, codes []string) (string, error) {
			return a.PortfolioService.AddFunds(cmd.Context(), codes)
		}),
		rosterCmd("delete CODE...", "Remove funds from the roster", func(a *app.App, cmd *cobra.Command, codes []string) (string, error) {
			return a.PortfolioService.DeleteFunds(cmd.Context(), codes)
		}),
		newSectorCmd(),
		rosterCmd("unsector CODE...", "Clear sector tags", func(a *app.App, cmd *cobra.Command, codes []string) (string, error) {
			return a.PortfolioService.UnmarkSectors(cmd.Context(), codes)
		}),
		newDownloadCmd(),
		newUploadCmd(),
	)
	return cmd
}

// parseCodes accepts codes as separate args or comma separated.
func parseCodes(args []string) []string {
	var codes []string
	for _, arg := range args {
		for _, c := range strings.Split(arg, ",") {
			if c = strings.TrimSpace(c); c != "" {
				codes = append(codes, c)
			}
		}
	}
	return codes
}

func rosterCmd(use, short string, fn func(a *app.App, cmd *cobra.Command, codes []string) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codes := parseCodes(args)
			if len(codes) == 0 {
				return fmt.Errorf("at least one fund code is required")
			}
			return withApp(func(a *app.App) error {
				msg, err := fn(a, cmd, codes)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				return nil
			})
		},
	}
}

func newSectorCmd() *cobra.Command {
	var sectors []string
	cmd := rosterCmd("sector CODE...", "Tag funds with sectors", nil)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		codes := parseCodes(args)
		tags := parseCodes(sectors)
		if len(codes) == 0 || len(tags) == 0 {
			return fmt.Errorf("codes and --sectors are required")
		}
		return withApp(func(a *app.App) error {
			msg, err := a.PortfolioService.MarkSectors(cmd.Context(), codes, tags)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		})
	}
	cmd.Flags().StringSliceVarP(&sectors, "sectors", "s", nil, "sector names, comma separated")
	return cmd
}

func newDownloadCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the roster as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				data, err := a.Backend.DownloadRoster(cmd.Context())
				if err != nil {
					return err
				}
				if outPath == "" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(outPath, data, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", outPath, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "roster written to %s\n", outPath)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write to file instead of stdout")
	return cmd
}

func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload FILE",
		Short: "Replace the roster from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			return withApp(func(a *app.App) error {
				msg, err := a.Backend.UploadRoster(cmd.Context(), filepath.Base(args[0]), data)
				if err != nil {
					return err
				}
				if err := a.PortfolioService.Hydrate(cmd.Context()); err != nil {
					a.Logger.Warn().Err(err).Msg("Failed to reload roster after upload")
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				return nil
			})
		},
	}
}
