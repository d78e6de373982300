package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/tariff/internal/common"
	"github.com/Veraticus/tariff/internal/llm"
	"github.com/Veraticus/tariff/internal/model"
)

// RuleUnavailable replaces a classification rule explanation the backend did not provide.
const RuleUnavailable = "Classification rule unavailable"

// Analyzer builds the ProductInfo record for a product name.
type Analyzer struct {
	gateway   *llm.Gateway
	primary   llm.Client
	consensus *ConsensusRequester
	logger    *slog.Logger
	now       func() time.Time
}

// NewAnalyzer creates an analyzer. primary answers the product type,
// product information and rule questions.
func NewAnalyzer(gateway *llm.Gateway, primary llm.Client, consensus *ConsensusRequester, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		gateway:   gateway,
		primary:   primary,
		consensus: consensus,
		logger:    logger,
		now:       time.Now,
	}
}

// Analyze describes the product, collects HS codes from every backend and
// explains the classification rule behind each code. It returns a complete
// record or an error, never a partial record.
func (a *Analyzer) Analyze(ctx context.Context, name string) (*model.ProductInfo, error) {
	productType, productInfo, err := a.describe(ctx, name)
	if err != nil {
		return nil, err
	}

	sources, codes := a.consensus.Request(ctx, productType, productInfo)

	rules := map[string]string{}
	if !codes.IsSentinel() {
		rules = a.rules(ctx, productType, productInfo, codes)
	}

	return &model.ProductInfo{
		Name:        name,
		Type:        productType,
		Information: productInfo,
		Codes:       codes,
		Rules:       rules,
		Sources:     sources,
		CreatedAt:   a.now().UTC(),
	}, nil
}

// describe asks the primary backend for the product type and information at
// the same time. Both answers must be non-empty.
func (a *Analyzer) describe(ctx context.Context, name string) (string, string, error) {
	typePrompt, err := renderPrompt(productTypeTemplate, productPromptData{Name: name})
	if err != nil {
		return "", "", err
	}
	infoPrompt, err := renderPrompt(productInfoTemplate, productPromptData{Name: name})
	if err != nil {
		return "", "", err
	}

	var productType, productInfo string
	var g errgroup.Group
	g.Go(func() error {
		productType = a.gateway.Send(ctx, a.primary, llm.Request{System: productTypeSystem, Prompt: typePrompt})
		return nil
	})
	g.Go(func() error {
		productInfo = a.gateway.Send(ctx, a.primary, llm.Request{System: productInfoSystem, Prompt: infoPrompt})
		return nil
	})
	_ = g.Wait()

	if productType == "" {
		return "", "", fmt.Errorf("%w: no product type for %q", common.ErrClassificationFailed, name)
	}
	if productInfo == "" {
		return "", "", fmt.Errorf("%w: no product information for %q", common.ErrClassificationFailed, name)
	}

	a.logger.Info("product described",
		"product", name,
		"type", productType)

	return productType, productInfo, nil
}

// rules requests one rule explanation per code concurrently.
func (a *Analyzer) rules(ctx context.Context, productType, productInfo string, codes model.ConsolidatedCodes) map[string]string {
	explanations := make([]string, len(codes))

	var g errgroup.Group
	for i, code := range codes {
		g.Go(func() error {
			prompt, err := renderPrompt(classificationRuleTemplate, rulePromptData{
				Code:        code,
				ProductType: productType,
				ProductInfo: productInfo,
			})
			if err != nil {
				a.logger.Error("failed to build rule prompt", "code", code, "error", err)
				return nil
			}
			explanations[i] = a.gateway.Send(ctx, a.primary, llm.Request{Prompt: prompt})
			return nil
		})
	}
	_ = g.Wait()

	rules := make(map[string]string, len(codes))
	for i, code := range codes {
		if explanations[i] == "" {
			explanations[i] = RuleUnavailable
		}
		rules[code] = explanations[i]
	}
	return rules
}
