package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/schollz/progressbar/v3"
)

// BatchProgress tracks a batch run on a progress bar.
type BatchProgress struct {
	bar    *progressbar.ProgressBar
	writer io.Writer
}

// NewBatchProgress creates a progress bar for total products.
func NewBatchProgress(w io.Writer, total int) *BatchProgress {
	p := &BatchProgress{writer: w}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Classifying products...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(w); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
	return p
}

// Advance marks one product as done and prints line above the bar when it
// is not empty.
func (p *BatchProgress) Advance(line string) {
	if line != "" {
		if err := p.bar.Clear(); err != nil {
			slog.Warn("Failed to clear progress bar", "error", err)
		}
		if _, err := fmt.Fprintln(p.writer, line); err != nil {
			slog.Warn("Failed to write progress line", "error", err)
		}
	}
	if err := p.bar.Add(1); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// Finish completes the bar.
func (p *BatchProgress) Finish() {
	if err := p.bar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
}
