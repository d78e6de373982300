package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/tariff/internal/engine"
	"github.com/Veraticus/tariff/internal/model"
)

func field(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, LabelStyle.Render(label), value)
}

// RenderResult formats a classification for the terminal. Partial results,
// such as those without any HS code, render whatever stages completed.
func RenderResult(result *model.ClassificationResult) string {
	info := result.Product
	var b strings.Builder

	b.WriteString(field("Product", BoldStyle.Render(info.Name)) + "\n")
	b.WriteString(field("Type", info.Type) + "\n")
	b.WriteString(field("Information", info.Information) + "\n\n")

	b.WriteString(BoldStyle.Render("Model opinions") + "\n")
	for _, src := range info.Sources {
		switch {
		case src.Failed:
			b.WriteString(fmt.Sprintf("  %s %s %s\n", ErrorStyle.Render(ErrorIcon), src.Backend, SubtleStyle.Render("unavailable")))
		case len(src.Codes) == 0:
			b.WriteString(fmt.Sprintf("  %s %s %s\n", WarningStyle.Render("-"), src.Backend, SubtleStyle.Render("no code given")))
		default:
			b.WriteString(fmt.Sprintf("  %s %s %s\n", SuccessStyle.Render(SuccessIcon), src.Backend, strings.Join(src.Codes, ", ")))
		}
	}

	b.WriteString("\n" + field("HS codes", strings.Join(info.Codes, ", ")) + "\n")

	if len(info.Rules) > 0 {
		b.WriteString("\n" + BoldStyle.Render("Classification rules") + "\n")
		for _, code := range info.Codes {
			if rule, ok := info.Rules[code]; ok {
				b.WriteString(fmt.Sprintf("  %s %s\n", CodeStyle.Render(code), rule))
			}
		}
	}

	if len(result.Candidates) > 0 {
		b.WriteString("\n" + BoldStyle.Render(fmt.Sprintf("Commodity candidates (%d)", len(result.Candidates))) + "\n")
		for _, c := range result.Candidates {
			b.WriteString(fmt.Sprintf("  %s %s\n", CodeStyle.Render(c.Code), truncate(c.Description, 90)))
		}
	}

	b.WriteString("\n")
	if result.BestMatch.HasCode() {
		b.WriteString(field("Best match", CodeStyle.Render(result.BestMatch.Code)) + "\n")
		if result.Description != "" {
			b.WriteString(field("Description", result.Description) + "\n")
		}
	} else {
		b.WriteString(field("Best match", WarningStyle.Render("none")) + "\n")
	}
	if result.BestMatch.Reasoning != "" {
		b.WriteString(field("Reasoning", result.BestMatch.Reasoning) + "\n")
	}

	return RenderBox("Classification", strings.TrimRight(b.String(), "\n"))
}

// RenderOutcome formats one line of batch progress.
func RenderOutcome(o engine.BatchOutcome) string {
	switch {
	case o.Err == nil && !o.Result.BestMatch.HasCode():
		return FormatWarning(fmt.Sprintf("%s: no registry match for %s", o.ProductName, strings.Join(o.Result.Product.Codes, ", ")))
	case o.Err == nil:
		return FormatSuccess(fmt.Sprintf("%s → %s", o.ProductName, o.Result.BestMatch.Code))
	case engine.StageOf(o.Err) == engine.StageNoCodes:
		return FormatWarning(fmt.Sprintf("%s: %v", o.ProductName, o.Err))
	default:
		return FormatError(fmt.Sprintf("%s: %v", o.ProductName, o.Err))
	}
}

// RenderBatchSummary formats the totals of a batch run.
func RenderBatchSummary(s engine.BatchSummary) string {
	summary := fmt.Sprintf("  • Products: %d\n", s.Total) +
		fmt.Sprintf("  • Classified: %d\n", s.Succeeded) +
		fmt.Sprintf("  • No HS codes: %d\n", s.NoCodes) +
		fmt.Sprintf("  • Failed: %d\n", s.Failed) +
		fmt.Sprintf("  • Time taken: %s", s.Duration.Round(time.Second))
	return RenderBox("Batch Complete", summary)
}

// RenderHistory formats stored classifications as a table, newest first.
func RenderHistory(summaries []model.ClassificationSummary) string {
	if len(summaries) == 0 {
		return FormatInfo("No classifications recorded yet.")
	}

	sorted := append([]model.ClassificationSummary(nil), summaries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	var b strings.Builder
	b.WriteString(TableHeaderStyle.Render(fmt.Sprintf("%-6s %-17s %-32s %-12s", "ID", "Classified", "Product", "Code")) + "\n")
	for _, s := range sorted {
		code := s.BestCode
		if code == "" {
			code = "-"
		}
		b.WriteString(fmt.Sprintf("%-6d %-17s %-32s %-12s\n",
			s.ID,
			s.CreatedAt.Local().Format("2006-01-02 15:04"),
			truncate(s.ProductName, 32),
			code))
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderCommodityCodes formats registry rows grouped by HS code.
func RenderCommodityCodes(codes []model.CommodityCode) string {
	if len(codes) == 0 {
		return FormatWarning("No matching commodity codes.")
	}

	var b strings.Builder
	current := ""
	for _, c := range codes {
		if c.HSCode != current {
			current = c.HSCode
			b.WriteString(BoldStyle.Render("HS "+current) + "\n")
		}
		b.WriteString(fmt.Sprintf("  %s %s\n", CodeStyle.Render(c.Code), c.Description))
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
