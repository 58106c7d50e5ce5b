package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/Frankramos181422/metamask-extension/internal/app/port"
	"github.com/Frankramos181422/metamask-extension/internal/config"
	networkdefinition "github.com/Frankramos181422/metamask-extension/internal/infrastructure/network/definition"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Factory builds provider/block-tracker pairs per spec. It is pure: equal
// specs yield independent, equivalent pairs.
type Factory struct {
	rpcCfg     config.RpcClientConfig
	trackerCfg config.BlockTrackerConfig
	logger     *zap.Logger
}

var _ port.NetworkClientFactory = (*Factory)(nil)

// NewFactory creates a network client factory with the given tuning.
func NewFactory(rpcCfg config.RpcClientConfig, trackerCfg config.BlockTrackerConfig, logger *zap.Logger) *Factory {
	return &Factory{
		rpcCfg:     rpcCfg,
		trackerCfg: trackerCfg,
		logger:     logger.Named("NetworkClientFactory"),
	}
}

// CreateNetworkClient builds the middleware chain and polling block tracker
// for spec.
func (f *Factory) CreateNetworkClient(spec port.NetworkClientSpec) (port.Provider, port.BlockTracker, error) {
	endpoint, err := f.resolveEndpoint(spec)
	if err != nil {
		return nil, nil, err
	}

	timeout := time.Duration(f.rpcCfg.DefaultTimeoutMs) * time.Millisecond
	transport := newHTTPTransport(endpoint, timeout, f.logger)

	middlewares := []Middleware{metricsMiddleware()}
	if f.rpcCfg.RateLimit > 0 {
		limiter := rate.NewLimiter(rate.Limit(f.rpcCfg.RateLimit), f.rpcCfg.BurstLimit)
		middlewares = append(middlewares, rateLimitMiddleware(limiter))
	}
	middlewares = append(middlewares,
		retryMiddleware(f.rpcCfg.MaxRetries, time.Duration(f.rpcCfg.RetryDelayMs)*time.Millisecond, f.logger),
		cacheMiddleware(time.Duration(f.rpcCfg.CacheTTLSeconds)*time.Second, f.logger),
	)

	provider := newProvider(chainMiddleware(transport.handle, middlewares...))

	pollInterval := time.Duration(f.trackerCfg.PollIntervalMs) * time.Millisecond
	tracker := NewPollingBlockTracker(provider, pollInterval, f.logger)

	f.logger.Debug("Created network client",
		zap.String("type", string(spec.Type)),
		zap.String("network", string(spec.Network)),
		zap.String("chainId", string(spec.ChainID)))
	return provider, tracker, nil
}

func (f *Factory) resolveEndpoint(spec port.NetworkClientSpec) (string, error) {
	switch spec.Type {
	case port.NetworkClientTypeInfura:
		if strings.TrimSpace(spec.APIKey) == "" {
			return "", fmt.Errorf("infura network client requires an API key")
		}
		def, ok := networkdefinition.ByType(spec.Network)
		if !ok {
			return "", fmt.Errorf("unknown built-in network %q", spec.Network)
		}
		return fmt.Sprintf("https://%s.infura.io/v3/%s", def.Subdomain, spec.APIKey), nil
	case port.NetworkClientTypeCustom:
		if strings.TrimSpace(spec.RPCURL) == "" {
			return "", fmt.Errorf("custom network client requires an rpcUrl")
		}
		return spec.RPCURL, nil
	default:
		return "", fmt.Errorf("unknown network client type %q", spec.Type)
	}
}
