package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/tariff/internal/cli"
	"github.com/Veraticus/tariff/internal/engine"
	"github.com/Veraticus/tariff/internal/model"
)

type classifyOptions struct {
	dryRun    bool
	jsonOut   bool
	noSpinner bool
}

func classifyCmd() *cobra.Command {
	var opts classifyOptions

	cmd := &cobra.Command{
		Use:   "classify [product name]",
		Short: "Classify a product into a commodity code",
		Long: `Classify a product name into an HS commodity code.

Without arguments, product names are read interactively, one per line.`,
		Example: `  tariff classify "stainless steel water bottle"
  tariff classify --json "cotton t-shirt"
  tariff classify --dry-run laptop`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Use offline mock backends instead of calling any model")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVar(&opts.noSpinner, "no-spinner", false, "Do not show a spinner while classifying")

	return cmd
}

func runClassify(cmd *cobra.Command, args []string, opts classifyOptions) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, opts.dryRun)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()

	if len(args) > 0 {
		return classifyOne(ctx, a.pipeline, out, strings.Join(args, " "), opts)
	}

	reader := cli.NewLineReader(cmd.InOrStdin())
	for {
		if _, err := fmt.Fprint(out, cli.BoldStyle.Render("Product name → ")); err != nil {
			return err
		}

		name, err := reader.ReadLine(ctx)
		if name != "" {
			if classifyErr := classifyOne(ctx, a.pipeline, out, name, opts); classifyErr != nil {
				fmt.Fprintln(out, cli.FormatError(classifyErr.Error()))
			}
		}

		switch {
		case errors.Is(err, io.EOF), errors.Is(err, cli.ErrInputCancelled):
			fmt.Fprintln(out)
			return nil
		case err != nil:
			return err
		}
	}
}

type pipelineClassifier interface {
	Classify(ctx context.Context, req model.ClassificationRequest) (*model.ClassificationResult, error)
}

func classifyOne(ctx context.Context, p pipelineClassifier, out io.Writer, name string, opts classifyOptions) error {
	var (
		result *model.ClassificationResult
		err    error
	)
	run := func(ctx context.Context) error {
		result, err = p.Classify(ctx, model.ClassificationRequest{ProductName: name})
		return nil
	}

	if opts.noSpinner || opts.jsonOut {
		_ = run(ctx)
	} else if spinErr := cli.RunWithSpinner(ctx, os.Stderr, "Classifying "+name+"...", run); spinErr != nil {
		return spinErr
	}

	if opts.jsonOut {
		return writeResultJSON(out, result, err)
	}

	if result != nil {
		fmt.Fprintln(out, cli.RenderResult(result))
	}
	if err != nil {
		if engine.StageOf(err) == engine.StageNoCodes {
			fmt.Fprintln(out, cli.FormatWarning(err.Error()))
			return nil
		}
		return err
	}
	if result.ID != 0 {
		fmt.Fprintln(out, cli.SubtleStyle.Render(fmt.Sprintf("Saved as classification #%d", result.ID)))
	}
	return nil
}

type jsonOutcome struct {
	Result *model.ClassificationResult `json:"result,omitempty"`
	Error  string                      `json:"error,omitempty"`
	Stage  engine.Stage                `json:"stage,omitempty"`
}

func writeResultJSON(out io.Writer, result *model.ClassificationResult, err error) error {
	outcome := jsonOutcome{Result: result}
	if err != nil {
		outcome.Error = err.Error()
		outcome.Stage = engine.StageOf(err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(outcome); encErr != nil {
		return encErr
	}
	if err != nil && outcome.Stage != engine.StageNoCodes {
		return err
	}
	return nil
}
