package sheets

import (
	"strings"
	"time"

	"github.com/Veraticus/tariff/internal/model"
)

// HistoryHeader is the column header row of an export.
var HistoryHeader = []any{"ID", "Classified At", "Product", "HS Codes", "Commodity Code", "Description"}

// HistoryRows converts stored classifications into sheet rows, header first.
// Times are rendered in loc, or UTC when loc is nil.
func HistoryRows(summaries []model.ClassificationSummary, loc *time.Location) [][]any {
	if loc == nil {
		loc = time.UTC
	}

	values := make([][]any, 0, len(summaries)+1)
	values = append(values, HistoryHeader)
	for _, s := range summaries {
		values = append(values, []any{
			s.ID,
			s.CreatedAt.In(loc).Format("2006-01-02 15:04:05"),
			s.ProductName,
			strings.Join(s.HSCodes, ", "),
			s.BestCode,
			s.Description,
		})
	}
	return values
}
