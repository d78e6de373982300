package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/tariff/internal/llm"
	"github.com/Veraticus/tariff/internal/model"
)

// Fixed rationales used when the ranking response cannot be used.
const (
	NoClearMatchReasoning = "No clear best match was identified. Using first available code as default."
	NoCandidatesReasoning = "No commodity code candidates were available to compare."
	rankingErrorPrefix    = "Error occurred while analyzing matches: "
)

var (
	bestMatchPhrases = []string{"best match", "most appropriate", "best option"}
	positivePhrases  = []string{"aligns", "matches", "appropriate", "suitable", "correct"}
)

// Ranker asks one backend to argue for the best commodity candidate and picks
// it from the reply with a text heuristic.
type Ranker struct {
	gateway *llm.Gateway
	client  llm.Client
	logger  *slog.Logger
}

// NewRanker creates a ranker backed by client.
func NewRanker(gateway *llm.Gateway, client llm.Client, logger *slog.Logger) *Ranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ranker{
		gateway: gateway,
		client:  client,
		logger:  logger,
	}
}

// FindBestMatch picks one of candidates. It never fails: when the backend or
// the parse fails, the first candidate is returned with the error as rationale.
func (r *Ranker) FindBestMatch(
	ctx context.Context,
	productType, productInfo string,
	codes []string,
	candidates []model.CommodityCandidate,
) (result model.BestMatchResult) {
	if len(candidates) == 0 {
		return model.BestMatchResult{Reasoning: NoCandidatesReasoning}
	}

	defer func() {
		if p := recover(); p != nil {
			result = rankingFailure(candidates, fmt.Errorf("%v", p))
			r.logger.Error("ranking panicked", "panic", p)
		}
	}()

	prompt, err := renderPrompt(bestMatchTemplate, bestMatchPromptData{
		ProductType: productType,
		ProductInfo: productInfo,
		Codes:       codes,
		Candidates:  candidates,
	})
	if err != nil {
		return rankingFailure(candidates, err)
	}

	reasoning, err := r.gateway.Do(ctx, r.client, llm.Request{Prompt: prompt})
	if err != nil {
		r.logger.Warn("ranking backend failed",
			"backend", r.client.Backend().String(),
			"stage", "ranking",
			"error", err)
		return rankingFailure(candidates, err)
	}

	result = selectBestMatch(reasoning, candidates)
	r.logger.Info("best commodity match selected", "code", result.Code)
	return result
}

// selectBestMatch applies the phrase heuristic to a ranking response. Ties
// go to the earliest candidate.
func selectBestMatch(reasoning string, candidates []model.CommodityCandidate) model.BestMatchResult {
	if len(candidates) == 0 {
		return model.BestMatchResult{Reasoning: reasoning}
	}

	lower := strings.ToLower(reasoning)
	paragraphs := strings.Split(reasoning, "\n\n")

	if strings.Contains(lower, "best match") && containsAny(lower, bestMatchPhrases) {
		for _, c := range candidates {
			if !strings.Contains(reasoning, c.Code) {
				continue
			}
			for _, p := range paragraphs {
				if strings.Contains(p, c.Code) && containsAny(strings.ToLower(p), bestMatchPhrases) {
					return model.BestMatchResult{Code: c.Code, Reasoning: reasoning}
				}
			}
		}
	}

	for _, c := range candidates {
		if !strings.Contains(reasoning, c.Code) {
			continue
		}
		if p, ok := firstParagraphWith(paragraphs, c.Code); ok && containsAny(strings.ToLower(p), positivePhrases) {
			return model.BestMatchResult{Code: c.Code, Reasoning: reasoning}
		}
	}

	return model.BestMatchResult{Code: candidates[0].Code, Reasoning: NoClearMatchReasoning}
}

func rankingFailure(candidates []model.CommodityCandidate, err error) model.BestMatchResult {
	result := model.BestMatchResult{Reasoning: rankingErrorPrefix + err.Error()}
	if len(candidates) > 0 {
		result.Code = candidates[0].Code
	}
	return result
}

func firstParagraphWith(paragraphs []string, code string) (string, bool) {
	for _, p := range paragraphs {
		if strings.Contains(p, code) {
			return p, true
		}
	}
	return "", false
}

func containsAny(s string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(s, phrase) {
			return true
		}
	}
	return false
}
