package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/tariff/internal/cli"
	"github.com/Veraticus/tariff/internal/common"
	"github.com/Veraticus/tariff/internal/config"
	"github.com/Veraticus/tariff/internal/model"
	"github.com/Veraticus/tariff/internal/sheets"
	"github.com/Veraticus/tariff/internal/storage"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and export recorded classifications",
	}

	cmd.AddCommand(historyListCmd())
	cmd.AddCommand(historyShowCmd())
	cmd.AddCommand(historyExportCmd())

	return cmd
}

func withStore(ctx context.Context, fn func(*storage.SQLiteStorage) error) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	return fn(store)
}

func historyListCmd() *cobra.Command {
	var (
		limit   int
		product string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent classifications",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), func(store *storage.SQLiteStorage) error {
				var (
					summaries []model.ClassificationSummary
					err       error
				)
				if product != "" {
					summaries, err = store.FindClassificationsByProduct(cmd.Context(), product)
				} else {
					summaries, err = store.ListClassifications(cmd.Context(), limit)
				}
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), cli.RenderHistory(summaries))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of classifications to show (0 for all)")
	cmd.Flags().StringVar(&product, "product", "", "Only show classifications of this product name")

	return cmd
}

func historyShowCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one recorded classification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid classification id %q", args[0])
			}

			return withStore(cmd.Context(), func(store *storage.SQLiteStorage) error {
				result, err := store.GetClassification(cmd.Context(), id)
				if err != nil {
					return err
				}

				if jsonOut {
					return writeResultJSON(cmd.OutOrStdout(), result, nil)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.RenderResult(result))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the classification as JSON")
	return cmd
}

func historyExportCmd() *cobra.Command {
	var (
		format string
		output string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export recorded classifications to CSV or Google Sheets",
		Example: `  tariff history export --format csv -o classifications.csv
  tariff history export --format sheets`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), func(store *storage.SQLiteStorage) error {
				summaries, err := store.ListClassifications(cmd.Context(), limit)
				if err != nil {
					return err
				}

				switch strings.ToLower(format) {
				case "csv":
					return exportCSV(cmd.OutOrStdout(), output, summaries)
				case "sheets":
					return exportSheets(cmd.Context(), summaries)
				default:
					return fmt.Errorf("unknown export format %q (use csv or sheets)", format)
				}
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "Export format (csv, sheets)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "CSV output file (default stdout)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Number of classifications to export (0 for all)")

	return cmd
}

func exportCSV(stdout io.Writer, path string, summaries []model.ClassificationSummary) error {
	out := stdout
	if path != "" {
		f, err := os.Create(config.ExpandPath(path)) // #nosec G304
		if err != nil {
			return fmt.Errorf("failed to create export file: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	if err := writeHistoryCSV(out, summaries); err != nil {
		return err
	}
	if path != "" {
		slog.Info("history exported", "file", path, "classifications", len(summaries))
	}
	return nil
}

// writeHistoryCSV writes the same columns as the spreadsheet export.
func writeHistoryCSV(w io.Writer, summaries []model.ClassificationSummary) error {
	cw := csv.NewWriter(w)
	for _, row := range sheets.HistoryRows(summaries, time.UTC) {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = fmt.Sprint(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func exportSheets(ctx context.Context, summaries []model.ClassificationSummary) error {
	sheetsCfg, err := config.LoadSheetsConfig(viper.GetViper())
	if err != nil {
		return fmt.Errorf("google sheets is not configured (run 'tariff auth sheets'): %w", err)
	}

	writer, err := sheets.NewWriter(ctx, *sheetsCfg, slog.Default())
	if err != nil {
		return err
	}
	return exportTo(ctx, writer, summaries)
}

func exportTo(ctx context.Context, writer sheets.HistoryWriter, summaries []model.ClassificationSummary) error {
	if len(summaries) == 0 {
		slog.Warn("no classifications to export")
	}
	if err := writer.Write(ctx, summaries); err != nil {
		common.LogError(err, "history export failed", common.Fields{"rows": len(summaries)})
		return err
	}
	return nil
}
