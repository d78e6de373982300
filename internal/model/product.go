// Package model defines the core domain models used throughout the application.
package model

import (
	"errors"
	"strings"
	"time"
)

// NoCodesFound stands in for an empty consensus so downstream stages always
// receive a non-empty code sequence.
const NoCodesFound = "No HS codes found"

// ErrEmptyProductName is returned when a classification request has no product name.
var ErrEmptyProductName = errors.New("product name cannot be empty")

// ClassificationRequest is a single product classification request.
type ClassificationRequest struct {
	ProductName string `json:"product_name"`
}

// Validate ensures the request carries a usable product name.
func (r ClassificationRequest) Validate() error {
	if strings.TrimSpace(r.ProductName) == "" {
		return ErrEmptyProductName
	}
	return nil
}

// Backend identifies one language model backend.
type Backend struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

func (b Backend) String() string {
	if b.Model == "" {
		return b.Provider
	}
	return b.Provider + "/" + b.Model
}

// ModelSourceResult is one backend's opinion on the HS code of a product.
// Failed is set when the backend call failed; RawText is empty in that case.
type ModelSourceResult struct {
	Backend Backend  `json:"backend"`
	RawText string   `json:"raw_text"`
	Codes   []string `json:"codes"`
	Failed  bool     `json:"failed,omitempty"`
}

// ConsolidatedCodes is the deduplicated union of codes across all sources.
type ConsolidatedCodes []string

// IsSentinel reports whether the codes hold only the NoCodesFound placeholder.
func (c ConsolidatedCodes) IsSentinel() bool {
	return len(c) == 1 && c[0] == NoCodesFound
}

// ProductInfo is the aggregate output of product analysis.
type ProductInfo struct {
	CreatedAt   time.Time           `json:"created_at"`
	Rules       map[string]string   `json:"classification_rules"`
	Name        string              `json:"name"`
	Type        string              `json:"type"`
	Information string              `json:"information"`
	Codes       ConsolidatedCodes   `json:"hs_codes"`
	Sources     []ModelSourceResult `json:"sources"`
}

// CommodityCandidate is a registry entry matched from an extracted HS code.
type CommodityCandidate struct {
	HSCode      string `json:"hs_code"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

// BestMatchResult is the ranker's pick among the commodity candidates.
// Code is empty when there were no candidates to choose from.
type BestMatchResult struct {
	Code      string `json:"best_commodity_code,omitempty"`
	Reasoning string `json:"best_commodity_reasoning"`
}

// HasCode reports whether a candidate was selected.
func (r BestMatchResult) HasCode() bool {
	return r.Code != ""
}

// ClassificationResult is the complete outcome of classifying one product.
type ClassificationResult struct {
	Product     ProductInfo          `json:"product_info"`
	BestMatch   BestMatchResult      `json:"best_match"`
	Description string               `json:"description,omitempty"`
	Candidates  []CommodityCandidate `json:"matching_commodity_info"`
	ID          int64                `json:"id,omitempty"`
}

// CandidateDescription returns the description of the candidate with the given code.
func (r *ClassificationResult) CandidateDescription(code string) (string, bool) {
	for _, c := range r.Candidates {
		if c.Code == code {
			return c.Description, true
		}
	}
	return "", false
}
