package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/tariff/internal/cli"
	"github.com/Veraticus/tariff/internal/common"
	"github.com/Veraticus/tariff/internal/engine"
)

func batchCmd() *cobra.Command {
	var (
		workers int
		dryRun  bool
		output  string
	)

	cmd := &cobra.Command{
		Use:   "batch <file|->",
		Short: "Classify a list of products",
		Long: `Classify every product name in a file, one per line. Use - to read
from standard input. Blank lines and lines starting with # are ignored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := readNames(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			if len(names) == 0 {
				return common.NewUserError(fmt.Sprintf("%s contains no product names", args[0]), common.ErrNoProducts)
			}

			a, err := newApp(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			defer a.Close()

			if workers <= 0 {
				workers = a.config.Classification.Workers
			}

			var results io.Writer
			if output != "" {
				f, err := os.Create(output) // #nosec G304
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer func() { _ = f.Close() }()
				results = f
			}

			return runBatch(cmd, a.pipeline, names, workers, results)
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Products classified in parallel (default from classification.workers)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Use offline mock backends instead of calling any model")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write one JSON result per line to this file")

	return cmd
}

func readNames(stdin io.Reader, path string) ([]string, error) {
	if path == "-" {
		return cli.ReadProductNames(stdin)
	}

	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to open product list: %w", err)
	}
	defer func() { _ = f.Close() }()

	return cli.ReadProductNames(f)
}

func runBatch(cmd *cobra.Command, pipeline *engine.Pipeline, names []string, workers int, results io.Writer) error {
	errOut := cmd.ErrOrStderr()

	interrupts := cli.NewInterruptHandler(errOut)
	ctx, stop := interrupts.HandleInterrupts(cmd.Context())
	defer stop()

	var enc *json.Encoder
	if results != nil {
		enc = json.NewEncoder(results)
	}

	progress := cli.NewBatchProgress(errOut, len(names))
	start := time.Now()

	outcomes := pipeline.ClassifyBatch(ctx, names, workers, func(o engine.BatchOutcome) {
		progress.Advance(cli.RenderOutcome(o))
		if enc != nil {
			_ = enc.Encode(batchRecord(o))
		}
	})
	progress.Finish()

	summary := engine.Summarize(outcomes, time.Since(start))
	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBatchSummary(summary))

	if interrupts.WasInterrupted() {
		return ctx.Err()
	}
	return nil
}

type batchLine struct {
	Product     string       `json:"product_name"`
	Code        string       `json:"commodity_code,omitempty"`
	Description string       `json:"description,omitempty"`
	Reasoning   string       `json:"reasoning,omitempty"`
	Error       string       `json:"error,omitempty"`
	Stage       engine.Stage `json:"stage,omitempty"`
	HSCodes     []string     `json:"hs_codes,omitempty"`
	ID          int64        `json:"id,omitempty"`
}

func batchRecord(o engine.BatchOutcome) batchLine {
	line := batchLine{Product: o.ProductName}
	if o.Result != nil {
		line.HSCodes = o.Result.Product.Codes
		line.Code = o.Result.BestMatch.Code
		line.Description = o.Result.Description
		line.Reasoning = o.Result.BestMatch.Reasoning
		line.ID = o.Result.ID
	}
	if o.Err != nil {
		line.Error = o.Err.Error()
		line.Stage = engine.StageOf(o.Err)
	}
	return line
}
