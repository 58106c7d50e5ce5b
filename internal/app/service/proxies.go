package service

import (
	"context"
	"encoding/json"

	"github.com/Frankramos181422/metamask-extension/internal/app/port"
	"github.com/Frankramos181422/metamask-extension/internal/pkg/events"
	"github.com/Frankramos181422/metamask-extension/internal/pkg/proxy"
)

// ProviderProxy is the stable provider reference handed to subscribers. Its
// backing provider retargets on every network switch; a Request through a
// handle captured earlier always dispatches against the current target.
type ProviderProxy struct {
	swap *proxy.Swappable[port.Provider]
}

var _ port.Provider = (*ProviderProxy)(nil)

func newProviderProxy(target port.Provider) *ProviderProxy {
	return &ProviderProxy{swap: proxy.NewSwappable(target)}
}

// Request forwards to the current target.
func (p *ProviderProxy) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	return p.swap.Get().Request(ctx, method, params...)
}

// SetTarget atomically replaces the backing provider.
func (p *ProviderProxy) SetTarget(target port.Provider) {
	p.swap.SetTarget(target)
}

// BlockTrackerProxy is the stable block-tracker reference handed to
// subscribers. Listeners registered through it are transparently re-bound to
// the new tracker on every switch; tracker-private lifecycle events
// (underscore-prefixed) stay pinned to the tracker they were registered on.
type BlockTrackerProxy struct {
	swap    *proxy.Swappable[port.BlockTracker]
	emitter *proxy.EmitterProxy
}

var _ port.BlockTracker = (*BlockTrackerProxy)(nil)

func newBlockTrackerProxy(target port.BlockTracker) *BlockTrackerProxy {
	return &BlockTrackerProxy{
		swap:    proxy.NewSwappable(target),
		emitter: proxy.NewEmitterProxy(target, proxy.FilterSkipInternal),
	}
}

// On registers fn through the proxy's subscription ledger.
func (p *BlockTrackerProxy) On(event string, fn events.Listener) (off func()) {
	return p.emitter.On(event, fn)
}

// Once registers fn for a single delivery through the ledger.
func (p *BlockTrackerProxy) Once(event string, fn events.Listener) (off func()) {
	return p.emitter.Once(event, fn)
}

// LatestBlock forwards to the current tracker.
func (p *BlockTrackerProxy) LatestBlock(ctx context.Context) (string, error) {
	return p.swap.Get().LatestBlock(ctx)
}

// Destroy forwards to the current tracker.
func (p *BlockTrackerProxy) Destroy(ctx context.Context) error {
	return p.swap.Get().Destroy(ctx)
}

// SetTarget swaps the tracker and re-binds every ledgered listener.
func (p *BlockTrackerProxy) SetTarget(target port.BlockTracker) {
	p.swap.SetTarget(target)
	p.emitter.SetTarget(target)
}
