package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/tariff/internal/common"
	"github.com/Veraticus/tariff/internal/config"
	"github.com/Veraticus/tariff/internal/engine"
	"github.com/Veraticus/tariff/internal/llm"
	"github.com/Veraticus/tariff/internal/model"
	"github.com/Veraticus/tariff/internal/sheets"
	"github.com/Veraticus/tariff/internal/storage"
	"github.com/Veraticus/tariff/internal/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createTestStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	return testutil.SetupTestDB(t, testutil.SampleCodes()...).Storage
}

func dryRunPipeline(t *testing.T, store *storage.SQLiteStorage) *engine.Pipeline {
	t.Helper()

	gateway := llm.NewGateway(llm.GatewayConfig{Timeout: time.Second}, testLogger())
	t.Cleanup(gateway.Close)
	return buildPipeline(gateway, dryRunBackends(), store, store, testLogger())
}

func TestDryRunPipeline(t *testing.T) {
	store := createTestStore(t)
	p := dryRunPipeline(t, store)

	result, err := p.Classify(context.Background(), model.ClassificationRequest{ProductName: "laptop"})
	require.NoError(t, err)

	assert.Equal(t, model.ConsolidatedCodes{"847130"}, result.Product.Codes)
	assert.Len(t, result.Product.Sources, 2)
	assert.Contains(t, result.Product.Rules["847130"], "GRI 1")
	assert.Equal(t, engine.NoClearMatchReasoning, result.BestMatch.Reasoning)
	assert.Len(t, result.Candidates, 2)
	assert.Equal(t, "8471300000", result.BestMatch.Code)
	assert.Equal(t, "Portable automatic data processing machines", result.Description)
	assert.NotZero(t, result.ID)

	saved, err := store.ListClassifications(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "laptop", saved[0].ProductName)
}

func TestBuildBackends(t *testing.T) {
	cfg := &config.LLMConfig{
		Primary:    "openai",
		Alternates: []string{"groq", "openai"},
		Backends: map[string]config.BackendConfig{
			"openai": {Provider: "openai", APIKey: "sk"},
			"groq":   {Provider: "groq", APIKey: "gk"},
		},
	}

	set, err := buildBackends(cfg)
	require.NoError(t, err)
	require.Len(t, set.roster, 2)
	assert.Equal(t, "openai", set.primary.Backend().Provider)
	assert.Equal(t, "groq", set.roster[1].Backend().Provider)
	assert.Same(t, set.primary, set.ranker, "ranker reuses the primary client")

	cfg.Backends["broken"] = config.BackendConfig{Provider: "nope"}
	cfg.Alternates = []string{"broken"}
	_, err = buildBackends(cfg)
	assert.ErrorContains(t, err, `backend "broken"`)
}

func TestImportAndLookupCodes(t *testing.T) {
	ctx := context.Background()
	store := testutil.SetupTestDB(t).Storage

	var out bytes.Buffer
	require.NoError(t, importCodes(ctx, store, strings.NewReader(testutil.SampleRegistryCSV+"bad,row\n"), false, &out))
	assert.Contains(t, out.String(), "Imported 3 commodity codes (1 skipped, 3 in registry)")

	out.Reset()
	require.NoError(t, lookupCodes(ctx, store, "8471.30", &out))
	assert.Contains(t, out.String(), "8471300090")

	out.Reset()
	require.NoError(t, lookupCodes(ctx, store, "999999", &out))
	assert.Contains(t, out.String(), "No matching")

	err = lookupCodes(ctx, store, "laptop", &out)
	var userErr *common.UserError
	assert.ErrorAs(t, err, &userErr)
}

func TestWriteHistoryCSV(t *testing.T) {
	var buf bytes.Buffer
	summaries := []model.ClassificationSummary{{
		ID:          3,
		CreatedAt:   time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		ProductName: `Bottle, "insulated"`,
		HSCodes:     []string{"7323.93"},
		BestCode:    "7323930010",
		Description: "Stainless steel household articles",
	}}

	require.NoError(t, writeHistoryCSV(&buf, summaries))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Product", records[0][2])
	assert.Equal(t, []string{"3", "2026-05-01 12:00:00", `Bottle, "insulated"`, "7323.93", "7323930010", "Stainless steel household articles"}, records[1])
}

func TestExportTo(t *testing.T) {
	mock := sheets.NewMockWriter()
	summaries := []model.ClassificationSummary{{ID: 1, ProductName: "Laptop"}}

	require.NoError(t, exportTo(context.Background(), mock, summaries))
	assert.Equal(t, 1, mock.WriteCount())

	mock.WriteFunc = func(context.Context, []model.ClassificationSummary) error { return errors.New("quota") }
	assert.EqualError(t, exportTo(context.Background(), mock, summaries), "quota")
}

func TestBatchRecord(t *testing.T) {
	ok := batchRecord(engine.BatchOutcome{
		ProductName: "Laptop",
		Result: &model.ClassificationResult{
			Product:     model.ProductInfo{Codes: model.ConsolidatedCodes{"8471.30"}},
			BestMatch:   model.BestMatchResult{Code: "8471300000", Reasoning: "r"},
			Description: "d",
			ID:          4,
		},
	})
	assert.Equal(t, batchLine{Product: "Laptop", Code: "8471300000", Description: "d", Reasoning: "r", HSCodes: []string{"8471.30"}, ID: 4}, ok)

	failed := batchRecord(engine.BatchOutcome{ProductName: "x", Err: &engine.PipelineError{Stage: engine.StageInternal, Err: errors.New("boom")}})
	assert.Equal(t, engine.StageInternal, failed.Stage)
	assert.Contains(t, failed.Error, "boom")
}

func TestRunBatch(t *testing.T) {
	store := createTestStore(t)
	p := dryRunPipeline(t, store)

	cmd := &cobra.Command{}
	var stdout, stderr, results bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetContext(context.Background())

	require.NoError(t, runBatch(cmd, p, []string{"laptop", "notebook computer"}, 2, &results))

	assert.Contains(t, stdout.String(), "Classified: 2")
	assert.Equal(t, 2, strings.Count(results.String(), "\n"))
	assert.Contains(t, results.String(), `"commodity_code":"8471300000"`)
}

func TestReadNames(t *testing.T) {
	names, err := readNames(strings.NewReader("a\nb\n"), "-")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	path := filepath.Join(t.TempDir(), "names.txt")
	require.NoError(t, os.WriteFile(path, []byte("# products\nlaptop\n"), 0600))
	names, err = readNames(nil, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"laptop"}, names)

	_, err = readNames(nil, filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

type stubClassifier struct {
	result *model.ClassificationResult
	err    error
}

func (s stubClassifier) Classify(context.Context, model.ClassificationRequest) (*model.ClassificationResult, error) {
	return s.result, s.err
}

func TestClassifyOne(t *testing.T) {
	result := &model.ClassificationResult{
		Product:   model.ProductInfo{Name: "Laptop", Codes: model.ConsolidatedCodes{"8471.30"}},
		BestMatch: model.BestMatchResult{Code: "8471300000", Reasoning: "only one"},
		ID:        9,
	}

	t.Run("rendered", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, classifyOne(context.Background(), stubClassifier{result: result}, &out, "Laptop", classifyOptions{noSpinner: true}))
		assert.Contains(t, out.String(), "8471300000")
		assert.Contains(t, out.String(), "#9")
	})

	t.Run("no codes is not an error", func(t *testing.T) {
		var out bytes.Buffer
		err := classifyOne(context.Background(), stubClassifier{
			result: &model.ClassificationResult{Product: model.ProductInfo{Codes: model.ConsolidatedCodes{model.NoCodesFound}}},
			err:    &engine.PipelineError{Stage: engine.StageNoCodes, Err: engine.ErrNoCodesFound},
		}, &out, "x", classifyOptions{noSpinner: true})
		require.NoError(t, err)
		assert.Contains(t, out.String(), "no HS codes found")
	})

	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, classifyOne(context.Background(), stubClassifier{result: result}, &out, "Laptop", classifyOptions{jsonOut: true}))
		assert.Contains(t, out.String(), `"best_commodity_code": "8471300000"`)
	})

	t.Run("json failure", func(t *testing.T) {
		var out bytes.Buffer
		err := classifyOne(context.Background(), stubClassifier{
			err: &engine.PipelineError{Stage: engine.StageClassification, Err: common.ErrClassificationFailed},
		}, &out, "x", classifyOptions{jsonOut: true})
		assert.ErrorIs(t, err, common.ErrClassificationFailed)
		assert.Contains(t, out.String(), `"stage": "classification"`)
	})
}

func TestSaveConfigValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tariff", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  primary: groq\n"), 0600))

	require.NoError(t, saveConfigValue(path, "sheets.refresh_token", "tok"))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	assert.Equal(t, "tok", v.GetString("sheets.refresh_token"))
	assert.Equal(t, "groq", v.GetString("llm.primary"))
	assert.False(t, v.IsSet("server.port"), "defaults are not written")
}

func TestSaveConfigValue_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new", "config.yaml")
	require.NoError(t, saveConfigValue(path, "sheets.refresh_token", "tok"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "refresh_token: tok")
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Empty(t, firstNonEmpty("", ""))
}

func TestBatchCmd_NoProducts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.txt")
	require.NoError(t, os.WriteFile(path, []byte("# nothing yet\n\n"), 0600))

	cmd := batchCmd()
	cmd.SetArgs([]string{path})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.ExecuteContext(context.Background())
	require.ErrorIs(t, err, common.ErrNoProducts)
	var userErr *common.UserError
	assert.ErrorAs(t, err, &userErr)
}
