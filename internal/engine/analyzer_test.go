package engine

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/tariff/internal/common"
	"github.com/Veraticus/tariff/internal/llm"
	"github.com/Veraticus/tariff/internal/model"
)

var sixDigits = regexp.MustCompile(`^\d{6}$`)

func newTestAnalyzer(t *testing.T, primary *llm.MockClient, alternates ...llm.Client) *Analyzer {
	t.Helper()
	gateway := newTestGateway(t)
	roster := append([]llm.Client{primary}, alternates...)
	consensus := NewConsensusRequester(gateway, roster, testLogger())
	return NewAnalyzer(gateway, primary, consensus, testLogger())
}

func TestAnalyzer_WaterBottle(t *testing.T) {
	primary := waterBottlePrimary()
	claude := llm.NewMockClient("anthropic", "claude-3-5-sonnet-20240620").
		WithResponse("I would classify it under 7323.93, stainless steel household articles.")
	gemini := llm.NewMockClient("gemini", "gemini-1.5-flash-latest").
		WithResponse("HS 9617.00: vacuum flasks and other vacuum vessels.")
	groq := llm.NewMockClient("groq", "llama3-8b-8192").WithError(errors.New("429 too many requests"))

	analyzer := newTestAnalyzer(t, primary, claude, gemini, groq)
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.FixedZone("EST", -5*60*60))
	analyzer.now = func() time.Time { return fixed }

	info, err := analyzer.Analyze(context.Background(), "stainless steel water bottle")
	require.NoError(t, err)

	assert.Equal(t, "stainless steel water bottle", info.Name)
	assert.NotEmpty(t, info.Type)
	assert.NotEmpty(t, info.Information)
	assert.Equal(t, model.ConsolidatedCodes{"732393", "961700"}, info.Codes)
	for _, code := range info.Codes {
		assert.Regexp(t, sixDigits, code)
		assert.NotEmpty(t, info.Rules[code], "rule for %s", code)
	}
	assert.Len(t, info.Rules, 2)

	require.Len(t, info.Sources, 4)
	assert.Equal(t, []string{"732393"}, info.Sources[0].Codes)
	assert.True(t, info.Sources[3].Failed)

	assert.Equal(t, time.UTC, info.CreatedAt.Location())
	assert.True(t, fixed.Equal(info.CreatedAt))

	// Consensus results are reused for the sources; nothing is asked twice.
	assert.Equal(t, 1, countCalls(primary, hsCodeSystem))
	assert.Len(t, claude.Calls(), 1)
	assert.Len(t, gemini.Calls(), 1)
}

func TestAnalyzer_DescriptionRequired(t *testing.T) {
	tests := []struct {
		name    string
		replies primaryReplies
	}{
		{
			name:    "empty product type",
			replies: primaryReplies{productInfo: "info", hsCode: "847130"},
		},
		{
			name:    "empty product information",
			replies: primaryReplies{productType: "type", hsCode: "847130"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := llm.NewMockClient("openai", "m").WithHandler(tt.replies.handler())
			analyzer := newTestAnalyzer(t, primary)

			info, err := analyzer.Analyze(context.Background(), "laptop")
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrClassificationFailed)
			assert.Nil(t, info)

			// No consensus round is started without a description.
			assert.Zero(t, countCalls(primary, hsCodeSystem))
		})
	}
}

func TestAnalyzer_PrimaryFailure(t *testing.T) {
	primary := llm.NewMockClient("openai", "m").WithError(errors.New("connection reset"))
	analyzer := newTestAnalyzer(t, primary)

	_, err := analyzer.Analyze(context.Background(), "laptop")
	assert.ErrorIs(t, err, common.ErrClassificationFailed)
}

func TestAnalyzer_SentinelSkipsRules(t *testing.T) {
	primary := llm.NewMockClient("openai", "m").WithHandler(primaryReplies{
		productType: "Unknown gadget",
		productInfo: "Nothing recognizable",
		hsCode:      "I cannot determine a code.",
		rule:        "GRI 1",
	}.handler())
	analyzer := newTestAnalyzer(t, primary, llm.NewMockClient("groq", "x").WithError(errors.New("down")))

	info, err := analyzer.Analyze(context.Background(), "thingamajig")
	require.NoError(t, err)

	assert.True(t, info.Codes.IsSentinel())
	assert.NotNil(t, info.Rules)
	assert.Empty(t, info.Rules)
	for _, req := range primary.Calls() {
		assert.NotContains(t, req.Prompt, "general rules for the interpretation")
	}
}

func TestAnalyzer_RuleUnavailable(t *testing.T) {
	primary := llm.NewMockClient("openai", "m").WithHandler(primaryReplies{
		productType: "Electric motor",
		productInfo: "A small DC motor",
		hsCode:      "850110 or 850120",
	}.handler())
	analyzer := newTestAnalyzer(t, primary)

	info, err := analyzer.Analyze(context.Background(), "dc motor")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"850110": RuleUnavailable,
		"850120": RuleUnavailable,
	}, info.Rules)
}

func TestAnalyzer_RulePerCode(t *testing.T) {
	primary := llm.NewMockClient("openai", "m").WithHandler(func(req llm.Request) (string, error) {
		switch {
		case req.System == productTypeSystem:
			return "Electric motor", nil
		case req.System == productInfoSystem:
			return "A small DC motor", nil
		case req.System == hsCodeSystem:
			return "850110, perhaps 850120", nil
		case regexp.MustCompile(`HS code 850110`).MatchString(req.Prompt):
			return "Rule 1", nil
		default:
			return "Rule 3(a)", nil
		}
	})
	analyzer := newTestAnalyzer(t, primary)

	info, err := analyzer.Analyze(context.Background(), "dc motor")
	require.NoError(t, err)

	assert.Equal(t, "Rule 1", info.Rules["850110"])
	assert.Equal(t, "Rule 3(a)", info.Rules["850120"])
}
