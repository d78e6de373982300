package model

import "time"

// CommodityCode is a row of the commodity code registry.
type CommodityCode struct {
	HSCode      string `json:"hs_code"`
	Code        string `json:"code"`
	Description string `json:"description"`
	ID          int64  `json:"id"`
}

// Candidate converts the registry row into a ranking candidate.
func (c CommodityCode) Candidate() CommodityCandidate {
	return CommodityCandidate{
		HSCode:      c.HSCode,
		Code:        c.Code,
		Description: c.Description,
	}
}

// ClassificationSummary is a compact view of a stored classification.
type ClassificationSummary struct {
	CreatedAt   time.Time `json:"created_at"`
	ProductName string    `json:"product_name"`
	BestCode    string    `json:"commodity_code"`
	Description string    `json:"description"`
	HSCodes     []string  `json:"hs_codes"`
	ID          int64     `json:"id"`
}
