package engine

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/tariff/internal/hscode"
	"github.com/Veraticus/tariff/internal/llm"
	"github.com/Veraticus/tariff/internal/model"
)

// ConsensusRequester asks every backend in a fixed roster for an HS code and
// merges the extracted codes.
type ConsensusRequester struct {
	gateway *llm.Gateway
	logger  *slog.Logger
	roster  []llm.Client
}

// NewConsensusRequester creates a requester over roster. The roster order is
// the order of the returned sources and of the consolidated codes.
func NewConsensusRequester(gateway *llm.Gateway, roster []llm.Client, logger *slog.Logger) *ConsensusRequester {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsensusRequester{
		gateway: gateway,
		roster:  roster,
		logger:  logger,
	}
}

// Roster returns the identities of the configured backends.
func (c *ConsensusRequester) Roster() []model.Backend {
	backends := make([]model.Backend, len(c.roster))
	for i, client := range c.roster {
		backends[i] = client.Backend()
	}
	return backends
}

// Request sends the HS code prompt to every backend concurrently and waits for
// all of them. A failing backend yields a failed source entry and never
// affects the others.
func (c *ConsensusRequester) Request(ctx context.Context, productType, productInfo string) ([]model.ModelSourceResult, model.ConsolidatedCodes) {
	sources := make([]model.ModelSourceResult, len(c.roster))
	for i, client := range c.roster {
		sources[i] = model.ModelSourceResult{
			Backend: client.Backend(),
			Codes:   []string{},
			Failed:  true,
		}
	}

	prompt, err := renderPrompt(hsCodeTemplate, hsCodePromptData{
		ProductType: productType,
		ProductInfo: productInfo,
	})
	if err != nil {
		c.logger.Error("failed to build HS code prompt", "error", err)
		return sources, Consolidate(sources)
	}
	req := llm.Request{System: hsCodeSystem, Prompt: prompt}

	var g errgroup.Group
	for i, client := range c.roster {
		g.Go(func() error {
			backend := client.Backend()
			text, err := c.gateway.Do(ctx, client, req)
			if err != nil {
				c.logger.Warn("backend failed during consensus",
					"backend", backend.String(),
					"stage", "consensus",
					"error", err)
				return nil
			}

			codes := hscode.Extract(text)
			c.logger.Info("HS codes from backend",
				"backend", backend.String(),
				"codes", codes)

			sources[i] = model.ModelSourceResult{
				Backend: backend,
				RawText: text,
				Codes:   codes,
			}
			return nil
		})
	}
	_ = g.Wait()

	return sources, Consolidate(sources)
}

// Consolidate unions the codes of all sources in source order. An empty union
// yields the NoCodesFound sentinel.
func Consolidate(sources []model.ModelSourceResult) model.ConsolidatedCodes {
	seen := make(map[string]bool)
	var codes model.ConsolidatedCodes
	for _, source := range sources {
		for _, code := range source.Codes {
			if seen[code] {
				continue
			}
			seen[code] = true
			codes = append(codes, code)
		}
	}

	if len(codes) == 0 {
		return model.ConsolidatedCodes{model.NoCodesFound}
	}
	return codes
}
