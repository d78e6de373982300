package engine

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Veraticus/tariff/internal/llm"
	"github.com/Veraticus/tariff/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGateway(t *testing.T) *llm.Gateway {
	t.Helper()
	g := llm.NewGateway(llm.GatewayConfig{Timeout: 200 * time.Millisecond}, testLogger())
	t.Cleanup(g.Close)
	return g
}

// primaryReplies scripts the primary backend by prompt kind.
type primaryReplies struct {
	productType string
	productInfo string
	hsCode      string
	rule        string
}

func (r primaryReplies) handler() func(llm.Request) (string, error) {
	return func(req llm.Request) (string, error) {
		switch {
		case req.System == productTypeSystem:
			return r.productType, nil
		case req.System == productInfoSystem:
			return r.productInfo, nil
		case req.System == hsCodeSystem:
			return r.hsCode, nil
		case strings.Contains(req.Prompt, "general rules for the interpretation"):
			return r.rule, nil
		}
		return "", nil
	}
}

func waterBottlePrimary() *llm.MockClient {
	return llm.NewMockClient("openai", "gpt-4-turbo-preview").WithHandler(primaryReplies{
		productType: "Drinkware: a reusable beverage container.",
		productInfo: "A double-walled stainless steel bottle used to carry drinks.",
		hsCode:      "The most specific HS code is 7323.93 (table, kitchen or other household articles of stainless steel).",
		rule:        "GRI 1 applies: the heading text covers household articles of stainless steel.",
	}.handler())
}

func countCalls(client *llm.MockClient, system string) int {
	n := 0
	for _, req := range client.Calls() {
		if req.System == system {
			n++
		}
	}
	return n
}

type fakeMatcher struct {
	err      error
	registry map[string][]model.CommodityCandidate
	calls    [][]string
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	mu       sync.Mutex
}

func (m *fakeMatcher) FindCandidates(ctx context.Context, codes []string) ([]model.CommodityCandidate, error) {
	cur := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		prev := m.maxSeen.Load()
		if cur <= prev || m.maxSeen.CompareAndSwap(prev, cur) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	m.calls = append(m.calls, codes)
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	var out []model.CommodityCandidate
	for _, code := range codes {
		out = append(out, m.registry[code]...)
	}
	return out, nil
}

type fakeStore struct {
	err   error
	saved []*model.ClassificationResult
	mu    sync.Mutex
}

func (s *fakeStore) SaveClassification(_ context.Context, result *model.ClassificationResult) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.saved = append(s.saved, result)
	return int64(len(s.saved)), nil
}
