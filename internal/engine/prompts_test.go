package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/tariff/internal/model"
)

func TestRenderPrompt(t *testing.T) {
	tests := []struct {
		data     any
		name     string
		template string
		contains []string
	}{
		{
			name:     "product type",
			template: productTypeTemplate,
			data:     productPromptData{Name: "stainless steel water bottle"},
			contains: []string{"What is the product type and category for stainless steel water bottle?"},
		},
		{
			name:     "product info",
			template: productInfoTemplate,
			data:     productPromptData{Name: "laptop"},
			contains: []string{"Provide detailed information about laptop", "material composition"},
		},
		{
			name:     "hs code",
			template: hsCodeTemplate,
			data:     hsCodePromptData{ProductType: "Drinkware", ProductInfo: "Steel bottle"},
			contains: []string{"HS Nomenclature 2017", "6-digit HS code classification for Drinkware and Steel bottle."},
		},
		{
			name:     "classification rule",
			template: classificationRuleTemplate,
			data:     rulePromptData{Code: "732393", ProductType: "Drinkware", ProductInfo: "Steel bottle"},
			contains: []string{"which rule, from 1-6", "HS code 732393", "Product Type: Drinkware, Product Information: Steel bottle"},
		},
		{
			name:     "best match",
			template: bestMatchTemplate,
			data: bestMatchPromptData{
				ProductType: "Motor",
				ProductInfo: "Small DC motor",
				Codes:       []string{"850110", "850120"},
				Candidates: []model.CommodityCandidate{
					{HSCode: "850110", Code: "8501101000", Description: "Motors of an output not exceeding 37.5 W"},
					{HSCode: "850120", Code: "8501200000", Description: "Universal AC/DC motors"},
				},
			},
			contains: []string{
				"The extracted commodity codes are: 850110, 850120",
				"* Code: 8501101000\nMotors of an output not exceeding 37.5 W",
				"* Code: 8501200000\nUniversal AC/DC motors",
				"which code is the best match and why?",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := renderPrompt(tt.template, tt.data)
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
		})
	}
}

func TestRenderPrompt_UnknownTemplate(t *testing.T) {
	_, err := renderPrompt("missing", nil)
	assert.Error(t, err)
}
