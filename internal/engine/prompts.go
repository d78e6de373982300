package engine

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/Veraticus/tariff/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	productTypeTemplate        = "product_type"
	productInfoTemplate        = "product_info"
	hsCodeTemplate             = "hs_code"
	classificationRuleTemplate = "classification_rule"
	bestMatchTemplate          = "best_match"
)

// System messages sent alongside the prompts.
const (
	productTypeSystem = "You are an expert in product classification."
	productInfoSystem = "You are an expert in product descriptions."
	hsCodeSystem      = "You are an expert in HS code classification."
)

var prompts = mustLoadTemplates(
	productTypeTemplate,
	productInfoTemplate,
	hsCodeTemplate,
	classificationRuleTemplate,
	bestMatchTemplate,
)

type productPromptData struct {
	Name string
}

type hsCodePromptData struct {
	ProductType string
	ProductInfo string
}

type rulePromptData struct {
	Code        string
	ProductType string
	ProductInfo string
}

type bestMatchPromptData struct {
	ProductType string
	ProductInfo string
	Codes       []string
	Candidates  []model.CommodityCandidate
}

func mustLoadTemplates(names ...string) map[string]*template.Template {
	funcMap := template.FuncMap{
		"join": strings.Join,
	}

	templates := make(map[string]*template.Template, len(names))
	for _, name := range names {
		filename := fmt.Sprintf("templates/%s.tmpl", name)
		templates[name] = template.Must(
			template.New(name + ".tmpl").Funcs(funcMap).ParseFS(templateFS, filename))
	}
	return templates
}

// renderPrompt executes the named template and trims the result.
func renderPrompt(name string, data any) (string, error) {
	tmpl, ok := prompts[name]
	if !ok {
		return "", fmt.Errorf("template %s not found", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	return strings.TrimSpace(buf.String()), nil
}
