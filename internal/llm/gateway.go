package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Veraticus/tariff/internal/common"
)

const previewLength = 120

// GatewayConfig controls how the gateway issues backend calls.
type GatewayConfig struct {
	// Timeout bounds a single backend call. Expiry is treated like a transport failure.
	Timeout time.Duration
	// MaxRetries is the number of attempts per call; 0 or 1 means a single attempt.
	MaxRetries int
	RetryDelay time.Duration
	// CacheTTL enables response caching when positive.
	CacheTTL time.Duration
	// RateLimit is the per-backend request budget per minute; 0 disables limiting.
	RateLimit int
}

// Gateway issues completion requests to backends. It is safe for concurrent use.
type Gateway struct {
	logger    *slog.Logger
	cache     *responseCache
	limiters  map[string]*rate.Limiter
	retryOpts common.RetryOptions
	timeout   time.Duration
	rateLimit int
	mu        sync.Mutex
}

// NewGateway creates a gateway with the given call policy.
func NewGateway(cfg GatewayConfig, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}

	g := &Gateway{
		logger:    logger,
		limiters:  make(map[string]*rate.Limiter),
		timeout:   cfg.Timeout,
		rateLimit: cfg.RateLimit,
		retryOpts: common.RetryOptions{
			MaxAttempts:  cfg.MaxRetries,
			InitialDelay: cfg.RetryDelay,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}
	if cfg.CacheTTL > 0 {
		g.cache = newResponseCache(cfg.CacheTTL)
	}

	return g
}

// Do sends req to client and returns the reply text. Errors are returned to
// the caller; use Send on paths that must never fail.
func (g *Gateway) Do(ctx context.Context, client Client, req Request) (string, error) {
	backend := client.Backend().String()
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", backend, err)
	}

	var key string
	if g.cache != nil {
		key = cacheKey(backend, req)
		if text, ok := g.cache.get(key); ok {
			g.logger.Debug("model response cache hit", "backend", backend)
			return text, nil
		}
	}

	start := time.Now()
	var text string
	err := common.WithRetry(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		if limiter := g.limiter(backend); limiter != nil {
			if err := limiter.Wait(callCtx); err != nil {
				if ctxErr := callCtx.Err(); ctxErr != nil {
					return fmt.Errorf("rate limiter: %w", ctxErr)
				}
				// The next token arrives after the call deadline.
				return fmt.Errorf("rate limiter: %w: %v", context.DeadlineExceeded, err)
			}
		}

		out, err := client.Complete(callCtx, req)
		if err != nil {
			return err
		}
		text = out
		return nil
	}, g.retryOpts)
	if err != nil {
		return "", fmt.Errorf("%s: %w", backend, err)
	}

	g.logger.Info("model response",
		"backend", backend,
		"duration", time.Since(start),
		"preview", preview(text))

	if g.cache != nil && text != "" {
		g.cache.set(key, text)
	}

	return text, nil
}

// Send is Do with failures degraded to an empty string. The failure is logged.
func (g *Gateway) Send(ctx context.Context, client Client, req Request) string {
	text, err := g.Do(ctx, client, req)
	if err != nil {
		g.logger.Warn("model request failed",
			"backend", client.Backend().String(),
			"error", err)
		return ""
	}
	return text
}

// Close releases background resources held by the gateway.
func (g *Gateway) Close() {
	if g.cache != nil {
		g.cache.Close()
	}
}

// limiter returns the token bucket of backend: rateLimit requests per
// minute, with a burst of a full minute's budget.
func (g *Gateway) limiter(backend string) *rate.Limiter {
	if g.rateLimit <= 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	rl, ok := g.limiters[backend]
	if !ok {
		rl = rate.NewLimiter(rate.Limit(float64(g.rateLimit)/60), g.rateLimit)
		g.limiters[backend] = rl
	}
	return rl
}

// preview shortens a response for logging.
func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength]) + "..."
}
