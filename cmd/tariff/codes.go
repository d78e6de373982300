package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Veraticus/tariff/internal/cli"
	"github.com/Veraticus/tariff/internal/common"
	"github.com/Veraticus/tariff/internal/storage"
)

func codesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codes",
		Short: "Manage the commodity code registry",
	}

	cmd.AddCommand(codesImportCmd())
	cmd.AddCommand(codesLookupCmd())
	cmd.AddCommand(codesCountCmd())

	return cmd
}

// withRegistry opens the configured registry for the duration of fn.
func withRegistry(ctx context.Context, fn func(storage.Registry) error) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	registry, closeRegistry, err := openRegistry(ctx, cfg, store)
	if err != nil {
		return err
	}
	defer closeRegistry()

	return fn(registry)
}

func codesImportCmd() *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import commodity codes from a CSV file",
		Long: `Import commodity codes from a CSV file with a header row and the
columns hs_code, description and code. Rows with fewer than three columns
or an unusable HS code are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0]) // #nosec G304
			if err != nil {
				return fmt.Errorf("failed to open commodity code file: %w", err)
			}
			defer func() { _ = f.Close() }()

			return withRegistry(cmd.Context(), func(registry storage.Registry) error {
				return importCodes(cmd.Context(), registry, f, replace, cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "Delete existing codes before importing")
	return cmd
}

func importCodes(ctx context.Context, registry storage.Registry, in io.Reader, replace bool, out io.Writer) error {
	stats, err := registry.ImportCommodityCodes(ctx, in, replace)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	total, err := registry.CountCommodityCodes(ctx)
	if err != nil {
		return err
	}

	common.LogInfo("commodity codes imported", common.Fields{
		"imported": stats.Imported,
		"skipped":  stats.Skipped,
		"total":    total,
	})
	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Imported %d commodity codes (%d skipped, %d in registry)", stats.Imported, stats.Skipped, total)))
	return nil
}

func codesLookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "lookup <hs code>",
		Short:   "Show the commodity codes registered under an HS code",
		Example: "  tariff codes lookup 8471.30",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(cmd.Context(), func(registry storage.Registry) error {
				return lookupCodes(cmd.Context(), registry, args[0], cmd.OutOrStdout())
			})
		},
	}
}

func lookupCodes(ctx context.Context, registry storage.Registry, hsCode string, out io.Writer) error {
	codes, err := registry.LookupCommodityCodes(ctx, hsCode)
	switch {
	case errors.Is(err, storage.ErrInvalidCommodityCode):
		return common.NewUserError(fmt.Sprintf("%q is not an HS code", hsCode), err)
	case errors.Is(err, common.ErrNotFound):
		codes = nil
	case err != nil:
		return err
	}

	fmt.Fprintln(out, cli.RenderCommodityCodes(codes))
	return nil
}

func codesCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of registered commodity codes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRegistry(cmd.Context(), func(registry storage.Registry) error {
				n, err := registry.CountCommodityCodes(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
}
