package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Veraticus/tariff/internal/common"
	"github.com/Veraticus/tariff/internal/engine"
	"github.com/Veraticus/tariff/internal/model"
)

const defaultListLimit = 50

type errorResponse struct {
	Error string `json:"error"`
}

type classifyRequest struct {
	ProductName *string `json:"product_name"`
}

// classifyResponse is the answer of /api/classify. Fields are null when the
// ranker could not settle on a code.
type classifyResponse struct {
	CommodityCode *string `json:"commodity_code"`
	Description   *string `json:"description"`
	Reasoning     string  `json:"reasoning"`
	ID            int64   `json:"id,omitempty"`
}

// productView is the product_info object of /process.
type productView struct {
	Rules         map[string]string          `json:"classification_rules"`
	Name          string                     `json:"name"`
	Type          string                     `json:"type"`
	Information   string                     `json:"information"`
	BestCode      string                     `json:"best_commodity_code,omitempty"`
	BestReasoning string                     `json:"best_commodity_reasoning,omitempty"`
	HSCodes       []string                   `json:"hs_codes"`
	Sources       []model.ModelSourceResult  `json:"sources"`
	Matching      []model.CommodityCandidate `json:"matching_commodity_info,omitempty"`
}

func newProductView(result *model.ClassificationResult) productView {
	view := productView{
		Name:        result.Product.Name,
		Type:        result.Product.Type,
		Information: result.Product.Information,
		HSCodes:     result.Product.Codes,
		Rules:       result.Product.Rules,
		Sources:     result.Product.Sources,
		Matching:    result.Candidates,
	}
	if len(result.Candidates) > 0 {
		view.BestCode = result.BestMatch.Code
		view.BestReasoning = result.BestMatch.Reasoning
	}
	return view
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.history != nil {
		if err := s.history.Ping(r.Context()); err != nil {
			s.logger.Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleProcess serves the form submission of the web page.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Bad request")
		return
	}
	name := strings.TrimSpace(r.PostForm.Get("product_name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "Please enter a valid product name.")
		return
	}

	result, err := s.classifier.Classify(r.Context(), model.ClassificationRequest{ProductName: name})
	if err != nil {
		stage := engine.StageOf(err)
		switch {
		case stage == engine.StageNoCodes && result != nil:
			// Show what the backends said even without a registry match.
		case stage == engine.StageClassification:
			writeError(w, http.StatusBadRequest, "Error processing product information.")
			return
		default:
			s.internalError(w, err, name)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]productView{"product_info": newProductView(result)})
}

// handleClassify serves the JSON API.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Bad request")
		return
	}
	if req.ProductName == nil {
		writeError(w, http.StatusBadRequest, "Product name is required")
		return
	}
	name := strings.TrimSpace(*req.ProductName)
	if name == "" {
		writeError(w, http.StatusBadRequest, "Product name cannot be empty")
		return
	}

	result, err := s.classifier.Classify(r.Context(), model.ClassificationRequest{ProductName: name})
	if err != nil {
		switch engine.StageOf(err) {
		case engine.StageClassification:
			writeError(w, http.StatusBadRequest, "Could not classify product")
		case engine.StageNoCodes:
			writeError(w, http.StatusNotFound, "No matching commodity code found")
		default:
			s.logger.Error("classification failed", "product", name, "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error: "+err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, classifyResponse{
		CommodityCode: optional(result.BestMatch.Code),
		Description:   optional(result.Description),
		Reasoning:     result.BestMatch.Reasoning,
		ID:            result.ID,
	})
}

func (s *Server) handleListClassifications(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "Resource not found")
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Bad request")
			return
		}
		limit = n
	}

	summaries, err := s.history.ListClassifications(r.Context(), limit)
	if err != nil {
		s.internalError(w, err, "")
		return
	}
	if summaries == nil {
		summaries = []model.ClassificationSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"classifications": summaries})
}

func (s *Server) handleGetClassification(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "Resource not found")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad request")
		return
	}

	result, err := s.history.GetClassification(r.Context(), id)
	if errors.Is(err, common.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Resource not found")
		return
	}
	if err != nil {
		s.internalError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) internalError(w http.ResponseWriter, err error, product string) {
	s.logger.Error("request failed", "product", product, "error", err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
