package client

import (
	"context"
	"encoding/json"

	"github.com/Frankramos181422/metamask-extension/internal/app/port"
)

// Provider is a JSON-RPC provider: a middleware chain terminating in an HTTP
// transport against one fixed endpoint.
type Provider struct {
	handler Handler
}

var _ port.Provider = (*Provider)(nil)

func newProvider(handler Handler) *Provider {
	return &Provider{handler: handler}
}

// Request performs a JSON-RPC call through the middleware chain.
func (p *Provider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	return p.handler(ctx, method, params)
}
