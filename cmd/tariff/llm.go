package main

import (
	"fmt"
	"strings"

	"github.com/Veraticus/tariff/internal/config"
	"github.com/Veraticus/tariff/internal/llm"
)

// backendSet is the resolved model roster.
type backendSet struct {
	primary llm.Client
	ranker  llm.Client
	roster  []llm.Client
}

// buildBackends creates one client per configured backend. The primary is
// the first roster entry; a ranker that is also in the roster reuses its client.
func buildBackends(cfg *config.LLMConfig) (*backendSet, error) {
	named, err := cfg.Roster()
	if err != nil {
		return nil, err
	}

	clients := make(map[string]llm.Client, len(named)+1)
	set := &backendSet{}
	for _, b := range named {
		client, err := llm.NewClient(b.ClientConfig())
		if err != nil {
			return nil, fmt.Errorf("backend %q: %w", b.Name, err)
		}
		clients[b.Name] = client
		set.roster = append(set.roster, client)
	}
	set.primary = set.roster[0]

	rankerCfg, err := cfg.RankerBackend()
	if err != nil {
		return nil, err
	}
	if client, ok := clients[rankerCfg.Name]; ok {
		set.ranker = client
	} else {
		set.ranker, err = llm.NewClient(rankerCfg.ClientConfig())
		if err != nil {
			return nil, fmt.Errorf("ranker backend %q: %w", rankerCfg.Name, err)
		}
	}

	return set, nil
}

const dryRunCode = "8471.30"

// dryRunBackends returns offline backends with canned answers, for trying
// the pipeline without credentials.
func dryRunBackends() *backendSet {
	answer := func(req llm.Request) (string, error) {
		switch {
		case strings.Contains(req.Prompt, "general rules for the interpretation"):
			return "[dry run] GRI 1: classification is determined by the terms of the headings.", nil
		case strings.Contains(req.Prompt, "commodity code"):
			return "[dry run] No model was consulted; the first candidate is used.", nil
		case strings.Contains(strings.ToLower(req.Prompt), "hs code"):
			return fmt.Sprintf("[dry run] HS code %s", dryRunCode), nil
		default:
			return "[dry run] No model was consulted.", nil
		}
	}

	primary := llm.NewMockClient("dry-run", "primary").WithHandler(answer)
	return &backendSet{
		primary: primary,
		ranker:  primary,
		roster: []llm.Client{
			primary,
			llm.NewMockClient("dry-run", "alternate").WithHandler(answer),
		},
	}
}
