package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Frankramos181422/metamask-extension/internal/domain/entity"
	"github.com/Frankramos181422/metamask-extension/internal/pkg/metrics"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Handler performs a single JSON-RPC call.
type Handler func(ctx context.Context, method string, params []any) (json.RawMessage, error)

// Middleware wraps a Handler with additional behavior.
type Middleware func(Handler) Handler

// chainMiddleware composes middlewares around terminal so that the first
// middleware in the list sees the request first.
func chainMiddleware(terminal Handler, middlewares ...Middleware) Handler {
	h := terminal
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// metricsMiddleware records request counts and latency per method.
func metricsMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, method string, params []any) (json.RawMessage, error) {
			start := time.Now()
			result, err := next(ctx, method, params)
			metrics.RPCRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			metrics.RPCRequestsTotal.WithLabelValues(method, outcome).Inc()
			return result, err
		}
	}
}

// rateLimitMiddleware blocks until the limiter grants a slot.
func rateLimitMiddleware(limiter *rate.Limiter) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, method string, params []any) (json.RawMessage, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limiter wait aborted for %s: %w", method, err)
			}
			return next(ctx, method, params)
		}
	}
}

// retryMiddleware retries transport-level failures. JSON-RPC error objects
// are authoritative answers from the endpoint and are never retried.
func retryMiddleware(maxRetries int, delay time.Duration, logger *zap.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, method string, params []any) (json.RawMessage, error) {
			var lastErr error
			for attempt := 0; attempt <= maxRetries; attempt++ {
				if attempt > 0 {
					select {
					case <-ctx.Done():
						return nil, ctx.Err()
					case <-time.After(delay):
					}
				}
				result, err := next(ctx, method, params)
				if err == nil {
					return result, nil
				}
				var rpcErr *entity.RPCError
				if errors.As(err, &rpcErr) {
					return nil, err
				}
				lastErr = err
				logger.Debug("Retrying JSON-RPC request after transport failure",
					zap.String("method", method),
					zap.Int("attempt", attempt+1),
					zap.Error(err))
			}
			return nil, lastErr
		}
	}
}

// cacheableMethods are idempotent for a fixed block reference.
var cacheableMethods = map[string]struct{}{
	"eth_getBlockByNumber":      {},
	"eth_getBlockByHash":        {},
	"eth_getTransactionReceipt": {},
	"eth_getCode":               {},
}

// blockRefTags are moving references that must never be served from cache.
var blockRefTags = map[string]struct{}{
	"latest":   {},
	"pending":  {},
	"earliest": {},
}

// cacheMiddleware serves repeated idempotent requests from an in-memory TTL
// cache. Requests addressing a moving block tag bypass the cache entirely.
func cacheMiddleware(ttl time.Duration, logger *zap.Logger) Middleware {
	responses := cache.New(ttl, 2*ttl)
	return func(next Handler) Handler {
		return func(ctx context.Context, method string, params []any) (json.RawMessage, error) {
			if !isCacheable(method, params) {
				return next(ctx, method, params)
			}
			key, err := cacheKey(method, params)
			if err != nil {
				return next(ctx, method, params)
			}
			if cached, found := responses.Get(key); found {
				logger.Debug("Serving JSON-RPC response from cache", zap.String("method", method))
				return cached.(json.RawMessage), nil
			}
			result, err := next(ctx, method, params)
			if err != nil {
				return nil, err
			}
			responses.Set(key, result, cache.DefaultExpiration)
			return result, nil
		}
	}
}

func isCacheable(method string, params []any) bool {
	if _, ok := cacheableMethods[method]; !ok {
		return false
	}
	for _, p := range params {
		if s, ok := p.(string); ok {
			if _, moving := blockRefTags[s]; moving {
				return false
			}
		}
	}
	return true
}

func cacheKey(method string, params []any) (string, error) {
	encoded, err := jsonCodec.Marshal(params)
	if err != nil {
		return "", err
	}
	return method + ":" + string(encoded), nil
}
