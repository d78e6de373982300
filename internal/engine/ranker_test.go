package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/tariff/internal/llm"
	"github.com/Veraticus/tariff/internal/model"
)

var motorCandidates = []model.CommodityCandidate{
	{HSCode: "850110", Code: "850110", Description: "desc A"},
	{HSCode: "850120", Code: "850120", Description: "desc B"},
}

func TestSelectBestMatch(t *testing.T) {
	tests := []struct {
		name          string
		reasoning     string
		candidates    []model.CommodityCandidate
		wantCode      string
		wantReasoning string
	}{
		{
			name:       "explicit best match",
			reasoning:  "850110 is the best match because the motor output is below 37.5 W.",
			candidates: motorCandidates,
			wantCode:   "850110",
		},
		{
			name:       "best match in a later paragraph",
			reasoning:  "Both codes cover motors.\n\nCode 850120 covers universal motors.\n\nHowever, 850110 is the best match for this product.",
			candidates: motorCandidates,
			wantCode:   "850110",
		},
		{
			name:       "most appropriate phrase with best match elsewhere",
			reasoning:  "Looking for the best match.\n\n850120 is the most appropriate code here.",
			candidates: motorCandidates,
			wantCode:   "850120",
		},
		{
			name:       "tie goes to first candidate",
			reasoning:  "Either 850120 or 850110 could be the best match.",
			candidates: motorCandidates,
			wantCode:   "850110",
		},
		{
			name:       "positive justification",
			reasoning:  "Code 850120 aligns with the product description.",
			candidates: motorCandidates,
			wantCode:   "850120",
		},
		{
			name:       "positive word only counts in first paragraph with the code",
			reasoning:  "850110 covers small motors.\n\nIn summary 850110 is suitable.\n\n850120 is correct for universal motors.",
			candidates: motorCandidates,
			wantCode:   "850120",
		},
		{
			name:       "case insensitive phrases",
			reasoning:  "BEST MATCH: 850120. It is the Best Option available.",
			candidates: motorCandidates,
			wantCode:   "850120",
		},
		{
			name:          "no recognizable phrases",
			reasoning:     "These codes describe electric motors of different kinds.",
			candidates:    motorCandidates,
			wantCode:      "850110",
			wantReasoning: NoClearMatchReasoning,
		},
		{
			name:          "code mentioned without justification",
			reasoning:     "850120 is listed.",
			candidates:    motorCandidates,
			wantCode:      "850110",
			wantReasoning: NoClearMatchReasoning,
		},
		{
			name:          "empty response",
			reasoning:     "",
			candidates:    motorCandidates,
			wantCode:      "850110",
			wantReasoning: NoClearMatchReasoning,
		},
		{
			name:          "no candidates",
			reasoning:     "850110 is the best match.",
			wantCode:      "",
			wantReasoning: "850110 is the best match.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := selectBestMatch(tt.reasoning, tt.candidates)
			assert.Equal(t, tt.wantCode, got.Code)

			wantReasoning := tt.wantReasoning
			if wantReasoning == "" {
				wantReasoning = tt.reasoning
			}
			assert.Equal(t, wantReasoning, got.Reasoning)
		})
	}
}

func TestRanker_FindBestMatch(t *testing.T) {
	client := llm.NewMockClient("openrouter", "openai/gpt-4-turbo-preview").
		WithResponse("After comparing both descriptions, 850110 is the best match because the motor is under 37.5 W.")
	ranker := NewRanker(newTestGateway(t), client, testLogger())

	got := ranker.FindBestMatch(context.Background(), "Electric motor", "Small DC motor",
		[]string{"850110", "850120"}, motorCandidates)

	assert.Equal(t, "850110", got.Code)
	assert.True(t, got.HasCode())
	assert.Contains(t, got.Reasoning, "is the best match")

	calls := client.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "* Code: 850110\ndesc A")
	assert.Contains(t, calls[0].Prompt, "* Code: 850120\ndesc B")
	assert.Contains(t, calls[0].Prompt, "Product type: Electric motor")
}

func TestRanker_BackendFailure(t *testing.T) {
	client := llm.NewMockClient("openrouter", "m").WithError(errors.New("502 bad gateway"))
	ranker := NewRanker(newTestGateway(t), client, testLogger())

	got := ranker.FindBestMatch(context.Background(), "t", "i", []string{"850120"}, motorCandidates)

	assert.Equal(t, "850110", got.Code)
	assert.True(t, strings.HasPrefix(got.Reasoning, "Error occurred while analyzing matches: "))
	assert.Contains(t, got.Reasoning, "502 bad gateway")
}

func TestRanker_Panic(t *testing.T) {
	client := llm.NewMockClient("openrouter", "m").WithHandler(func(llm.Request) (string, error) {
		panic("unexpected response shape")
	})
	ranker := NewRanker(newTestGateway(t), client, testLogger())

	var got model.BestMatchResult
	assert.NotPanics(t, func() {
		got = ranker.FindBestMatch(context.Background(), "t", "i", nil, motorCandidates)
	})
	assert.Equal(t, "850110", got.Code)
	assert.Equal(t, "Error occurred while analyzing matches: unexpected response shape", got.Reasoning)
}

func TestRanker_NoCandidates(t *testing.T) {
	client := llm.NewMockClient("openrouter", "m").WithResponse("850110 is the best match")
	ranker := NewRanker(newTestGateway(t), client, testLogger())

	got := ranker.FindBestMatch(context.Background(), "t", "i", []string{"850110"}, nil)

	assert.False(t, got.HasCode())
	assert.Equal(t, NoCandidatesReasoning, got.Reasoning)
	assert.Empty(t, client.Calls())
}
